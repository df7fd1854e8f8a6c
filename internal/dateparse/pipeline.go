// Package dateparse extracts reminder deadlines from Russian free text.
//
// Parsing is pure: every function takes the reference "now" as a naive
// wall-clock value in the owner's timezone and never reads the system clock.
package dateparse

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/hray3182/PingMe/internal/models"
)

// Status is the outcome of a parse pass
type Status int

const (
	StatusReady Status = iota
	StatusNeedsTime
	StatusAmbiguous
	StatusUnparseable
	StatusPastInstant
)

func (s Status) String() string {
	switch s {
	case StatusReady:
		return "ready"
	case StatusNeedsTime:
		return "needs_time"
	case StatusAmbiguous:
		return "ambiguous"
	case StatusUnparseable:
		return "unparseable"
	case StatusPastInstant:
		return "past_instant"
	}
	return "unknown"
}

// Result of Parse. Which fields are set depends on Status:
//   - Ready, PastInstant: Text and At
//   - NeedsTime: Text and At (midnight of the resolved day)
//   - Ambiguous: Ambiguity
//   - Unparseable: nothing beyond Raw
type Result struct {
	Status     Status
	Raw        string
	Text       string
	At         time.Time
	Recurrence models.Recurrence
	Fragments  []string
	Ambiguity  *Ambiguity
}

var triggerPrefixRE = regexp.MustCompile(`(?i)^\s*(?:напомни(?:те)?|напомнить)(?:\s+мне)?(?:\s*[,:])?\s+`)

// StripPrefix drops a leading "напомни [мне]".
func StripPrefix(text string) string {
	stripped := triggerPrefixRE.ReplaceAllString(text, "")
	if strings.TrimSpace(stripped) == "" {
		return strings.TrimSpace(text)
	}
	return strings.TrimSpace(stripped)
}

// Parse runs the full pipeline on one message.
func Parse(text string, now time.Time) Result {
	raw := strings.TrimSpace(text)
	res := Result{Raw: raw}

	body := StripPrefix(raw)
	body, res.Recurrence = ExtractRecurrence(body)

	if amb, ok := FindAmbiguity(body); ok {
		res.Status = StatusAmbiguous
		res.Ambiguity = amb
		return res
	}

	normalized := Normalize(body)
	frags := Extract(normalized)
	if len(frags) == 0 {
		res.Status = StatusUnparseable
		return res
	}
	res.Fragments = Texts(frags)

	resolved, ok := Resolve(frags, now)
	if !ok {
		res.Status = StatusUnparseable
		return res
	}

	res.Text = CleanText(normalized, frags)
	if res.Text == "" {
		res.Text = raw
	}
	res.At = resolved.At

	switch {
	case !resolved.HasTime:
		res.Status = StatusNeedsTime
	case !resolved.At.After(now):
		res.Status = StatusPastInstant
	default:
		res.Status = StatusReady
	}
	return res
}

// Clarify re-runs Parse after the user picked an interpretation of an
// ambiguous fragment.
func Clarify(raw string, amb Ambiguity, asTime bool, now time.Time) Result {
	replacement := amb.AsDate(now)
	if asTime {
		replacement = amb.AsTime()
	}
	return Parse(amb.Substitute(raw, replacement), now)
}

var bareHourRE = regexp.MustCompile(`^\s*(\d{1,2})\s*$`)

// CombineTime attaches a user-supplied time of day ("10:00", "9 утра",
// "10-00") to a previously resolved date.
func CombineTime(date time.Time, input string, now time.Time) (time.Time, error) {
	input = strings.TrimSpace(input)
	if m := bareHourRE.FindStringSubmatch(input); m != nil {
		input = m[1] + ":00"
	}

	var tod *Fragment
	for _, f := range Extract(Normalize(input)) {
		if f.Kind == KindTime {
			tod = &f
			break
		}
	}
	if tod == nil {
		return time.Time{}, fmt.Errorf("combine time %q: %w", input, models.ErrUnparseable)
	}

	y, mo, d := date.Date()
	at := time.Date(y, mo, d, atoi(tod.groups[1]), atoi(tod.groups[2]), 0, 0, date.Location())
	if !at.After(now) {
		return at, fmt.Errorf("combine time %q: %w", input, models.ErrPastInstant)
	}
	return at, nil
}

var (
	edgeJunkRE   = regexp.MustCompile(`^[\s,.;:!?\-–—]+|[\s,.;:\-–—]+$`)
	edgeWordsRE  = regexp.MustCompile(`(?i)^(?:в|во|и|а)\s+|\s+(?:в|во|и|а)$`)
	loneEdgeWord = regexp.MustCompile(`(?i)^(?:в|во|и|а)$`)
)

// CleanText removes the fragments and any preposition attached to them,
// then trims leftover punctuation, conjunctions and a dangling "в".
func CleanText(normalized string, frags []Fragment) string {
	out := normalized
	for _, f := range frags {
		re := regexp.MustCompile(`(?i)(^|[^\p{L}\p{N}])(?:(?:в|во|к|на)\s+)?` + regexp.QuoteMeta(f.Text))
		out = re.ReplaceAllString(out, "$1")
	}
	out = collapseSpaces(out)
	for {
		prev := out
		out = edgeJunkRE.ReplaceAllString(out, "")
		out = edgeWordsRE.ReplaceAllString(out, "")
		if loneEdgeWord.MatchString(out) {
			out = ""
		}
		out = strings.TrimSpace(out)
		if out == prev {
			break
		}
	}
	return out
}
