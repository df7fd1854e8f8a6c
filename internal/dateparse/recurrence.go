package dateparse

import (
	"regexp"

	"github.com/hray3182/PingMe/internal/models"
)

var recurrencePatterns = []struct {
	kind models.Recurrence
	re   *regexp.Regexp
}{
	{models.RecurrenceHourly, regexp.MustCompile(`(?i)каждый\s+час|ежечасно|раз\s+в\s+час`)},
	{models.RecurrenceDaily, regexp.MustCompile(`(?i)каждый\s+день|ежедневно|раз\s+в\s+(?:день|сутки)`)},
	{models.RecurrenceWeekly, regexp.MustCompile(`(?i)кажд(?:ую|ая)\s+неделю|еженедельно|раз\s+в\s+неделю`)},
	{models.RecurrenceMonthly, regexp.MustCompile(`(?i)каждый\s+месяц|ежемесячно|раз\s+в\s+месяц`)},
	{models.RecurrenceYearly, regexp.MustCompile(`(?i)каждый\s+год|ежегодно|раз\s+в\s+год`)},
}

// ExtractRecurrence removes the first recurrence keyword from text and
// returns its kind. Text without a keyword comes back unchanged.
func ExtractRecurrence(text string) (string, models.Recurrence) {
	for _, p := range recurrencePatterns {
		ms := findAll(p.re, guard{}, text)
		if len(ms) == 0 {
			continue
		}
		m := ms[0]
		return collapseSpaces(text[:m.Start] + " " + text[m.End:]), p.kind
	}
	return text, models.RecurrenceNone
}
