package rrule

import (
	"fmt"
	"strings"
	"time"

	"github.com/hray3182/PingMe/internal/models"
	"github.com/teambition/rrule-go"
)

// maxAdvanceSteps bounds NextAfter for anchors far in the past
const maxAdvanceSteps = 1_000_000

// Advance moves t forward by one recurrence period. Monthly and yearly
// steps clamp to the last day of the target month instead of overflowing.
// An unknown kind is a programming error and panics.
func Advance(t time.Time, kind models.Recurrence) time.Time {
	switch kind {
	case models.RecurrenceHourly:
		return t.Add(time.Hour)
	case models.RecurrenceDaily:
		return t.AddDate(0, 0, 1)
	case models.RecurrenceWeekly:
		return t.AddDate(0, 0, 7)
	case models.RecurrenceMonthly:
		return addMonthsClamped(t, 1)
	case models.RecurrenceYearly:
		return addMonthsClamped(t, 12)
	}
	panic(fmt.Sprintf("rrule: unknown recurrence %q", kind))
}

// NextAfter returns the first instant reachable from anchor by whole
// recurrence steps that is strictly after now.
func NextAfter(anchor time.Time, kind models.Recurrence, now time.Time) time.Time {
	next := Advance(anchor, kind)
	for i := 0; !next.After(now) && i < maxAdvanceSteps; i++ {
		next = Advance(next, kind)
	}
	return next
}

func addMonthsClamped(t time.Time, months int) time.Time {
	y, m, d := t.Date()
	total := int(m) - 1 + months
	ty := y + total/12
	tm := time.Month(total%12 + 1)
	if last := daysIn(ty, tm); d > last {
		d = last
	}
	return time.Date(ty, tm, d, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

var kindToFreq = map[models.Recurrence]rrule.Frequency{
	models.RecurrenceHourly:  rrule.HOURLY,
	models.RecurrenceDaily:   rrule.DAILY,
	models.RecurrenceWeekly:  rrule.WEEKLY,
	models.RecurrenceMonthly: rrule.MONTHLY,
	models.RecurrenceYearly:  rrule.YEARLY,
}

// ToRRULE renders kind as an RFC 5545 rule, e.g. "FREQ=DAILY".
func ToRRULE(kind models.Recurrence) (string, error) {
	freq, ok := kindToFreq[kind]
	if !ok {
		return "", fmt.Errorf("unsupported recurrence %q", kind)
	}
	opt := rrule.ROption{Freq: freq}
	return opt.RRuleString(), nil
}

// FromRRULE maps a simple RFC 5545 rule back to a recurrence kind. Only a
// bare FREQ with interval 1 is accepted; anything richer is rejected.
func FromRRULE(ruleStr string) (models.Recurrence, error) {
	ruleStr = strings.TrimPrefix(strings.TrimSpace(ruleStr), "RRULE:")

	opt, err := rrule.StrToROption(ruleStr)
	if err != nil {
		return models.RecurrenceNone, fmt.Errorf("failed to parse RRULE: %w", err)
	}
	if opt.Interval > 1 || opt.Count > 0 || !opt.Until.IsZero() ||
		len(opt.Byweekday) > 0 || len(opt.Bymonthday) > 0 || len(opt.Bymonth) > 0 ||
		len(opt.Byhour) > 0 || len(opt.Byminute) > 0 || len(opt.Bysetpos) > 0 {
		return models.RecurrenceNone, fmt.Errorf("RRULE %q is not a plain frequency", ruleStr)
	}
	for kind, freq := range kindToFreq {
		if opt.Freq == freq {
			return kind, nil
		}
	}
	return models.RecurrenceNone, fmt.Errorf("unsupported frequency in %q", ruleStr)
}

// Parse accepts either a kind name ("daily") or an RRULE string.
func Parse(s string) (models.Recurrence, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return models.RecurrenceNone, nil
	}
	if kind := models.Recurrence(strings.ToLower(s)); kind.Valid() {
		return kind, nil
	}
	return FromRRULE(s)
}

// Describe returns a short Russian label for the cadence
func Describe(kind models.Recurrence) string {
	switch kind {
	case models.RecurrenceHourly:
		return "каждый час"
	case models.RecurrenceDaily:
		return "каждый день"
	case models.RecurrenceWeekly:
		return "каждую неделю"
	case models.RecurrenceMonthly:
		return "каждый месяц"
	case models.RecurrenceYearly:
		return "каждый год"
	default:
		return ""
	}
}
