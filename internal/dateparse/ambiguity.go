package dateparse

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Ambiguity is a dotted pair that reads both as H.MM and as D.M.
type Ambiguity struct {
	Fragment    string
	HourGuess   int
	MinuteGuess int
}

// AsTime renders the time-of-day interpretation
func (a Ambiguity) AsTime() string {
	return fmt.Sprintf("%02d:%02d", a.HourGuess, a.MinuteGuess)
}

// AsDate renders the calendar interpretation with the year made explicit,
// rolling to next year when the day already passed.
func (a Ambiguity) AsDate(now time.Time) string {
	today := civilOf(now)
	d := civilDate{year: today.year, month: time.Month(a.MinuteGuess), day: a.HourGuess}
	if d.before(today) {
		d.year++
	}
	return fmt.Sprintf("%02d.%02d.%d", d.day, int(d.month), d.year)
}

var ambiguousDotRE = regexp.MustCompile(`(\d{1,2})\.(\d{2})`)

// FindAmbiguity returns the first dotted pair that could be either a time
// (hour ≤ 23) or a date (second number 01..12), unless the rest of the
// text already names a time, in which case the pair must be a date.
func FindAmbiguity(text string) (*Ambiguity, bool) {
	for _, m := range findAll(ambiguousDotRE, guard{before: beforeDateLike, after: afterDateLike}, text) {
		h, mm := atoi(m.Groups[1]), atoi(m.Groups[2])
		if h > 23 || mm < 1 || mm > 12 {
			continue
		}
		rest := text[:m.Start] + " " + text[m.End:]
		if HasExplicitTime(rest) {
			return nil, false
		}
		return &Ambiguity{Fragment: m.text(text), HourGuess: h, MinuteGuess: mm}, true
	}
	return nil, false
}

// Substitute replaces the first occurrence of the ambiguous fragment with
// the chosen interpretation.
func (a Ambiguity) Substitute(text, replacement string) string {
	return strings.Replace(text, a.Fragment, replacement, 1)
}
