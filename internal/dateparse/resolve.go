package dateparse

import (
	"strconv"
	"strings"
	"time"
)

// Resolution is the instant a set of fragments describes.
type Resolution struct {
	At time.Time
	// HasTime is false when only a calendar day was named; At is then
	// midnight of that day.
	HasTime bool
}

var monthsGenitive = map[string]time.Month{
	"января": time.January, "февраля": time.February, "марта": time.March,
	"апреля": time.April, "мая": time.May, "июня": time.June,
	"июля": time.July, "августа": time.August, "сентября": time.September,
	"октября": time.October, "ноября": time.November, "декабря": time.December,
}

var weekdayStems = []struct {
	stem string
	day  time.Weekday
}{
	{"понедельник", time.Monday},
	{"вторник", time.Tuesday},
	{"сред", time.Wednesday},
	{"четверг", time.Thursday},
	{"пятниц", time.Friday},
	{"суббот", time.Saturday},
	{"воскресень", time.Sunday},
}

// Resolve turns extracted fragments into an instant relative to now.
// now is a naive wall-clock value in the owner's timezone.
//
// Explicit dates win over relative days, which win over weekday names. A
// dated instant without a year that is not after now moves one year
// ahead. A bare time of day that already passed today moves to tomorrow.
// A named calendar day that does not exist (31.02) fails the whole parse.
func Resolve(frags []Fragment, now time.Time) (Resolution, bool) {
	var (
		date      *civilDate
		yearGiven bool
		tod       *clock
		duration  time.Duration
		found     bool
	)
	today := civilOf(now)

	for _, f := range frags {
		switch f.Kind {
		case KindDate:
			d, withYear, ok := numericDate(f.groups, today.year)
			if !ok {
				return Resolution{}, false
			}
			if date == nil || !date.explicit {
				date, yearGiven, found = &d, withYear, true
				date.explicit = true
			}
		case KindNamedDate:
			d, withYear, ok := namedDate(f.groups, today.year)
			if !ok {
				return Resolution{}, false
			}
			if date == nil || !date.explicit {
				date, yearGiven, found = &d, withYear, true
				date.explicit = true
			}
		case KindRelDay:
			if date == nil {
				d := today.addDays(relDayOffset(f.Text))
				date, found = &d, true
			}
		case KindInDays:
			if date == nil {
				d := inDays(today, f.groups)
				date, found = &d, true
			}
		case KindWeekday:
			if date == nil {
				d := nextWeekday(today, weekdayOf(f.groups[1]))
				date, found = &d, true
			}
		case KindNext:
			if date == nil {
				d := nextUnit(today, strings.ToLower(f.groups[1]))
				date, found = &d, true
			}
		case KindTime:
			if tod == nil {
				tod, found = &clock{hour: atoi(f.groups[1]), minute: atoi(f.groups[2])}, true
			}
		case KindDuration:
			if duration == 0 {
				duration, found = durationOf(f.groups), true
			}
		}
	}

	if !found {
		return Resolution{}, false
	}
	if duration > 0 {
		return Resolution{At: now.Add(duration), HasTime: true}, true
	}

	if date == nil && tod == nil {
		return Resolution{}, false
	}
	if date == nil {
		at := today.at(*tod, now.Location())
		if !at.After(now) {
			at = at.AddDate(0, 0, 1)
		}
		return Resolution{At: at, HasTime: true}, true
	}

	if tod == nil {
		if date.explicit && !yearGiven && date.before(today) {
			next, ok := date.nextYear()
			if !ok {
				return Resolution{}, false
			}
			date = &next
		}
		return Resolution{At: date.at(clock{}, now.Location())}, true
	}

	at := date.at(*tod, now.Location())
	if date.explicit && !yearGiven && !at.After(now) {
		next, ok := date.nextYear()
		if !ok {
			return Resolution{}, false
		}
		at = next.at(*tod, now.Location())
	}
	return Resolution{At: at, HasTime: true}, true
}

type civilDate struct {
	year     int
	month    time.Month
	day      int
	explicit bool
}

type clock struct {
	hour, minute int
}

func civilOf(t time.Time) civilDate {
	y, m, d := t.Date()
	return civilDate{year: y, month: m, day: d}
}

func (c civilDate) at(k clock, loc *time.Location) time.Time {
	return time.Date(c.year, c.month, c.day, k.hour, k.minute, 0, 0, loc)
}

func (c civilDate) addDays(n int) civilDate {
	return civilOf(c.at(clock{}, time.UTC).AddDate(0, 0, n))
}

func (c civilDate) before(o civilDate) bool {
	if c.year != o.year {
		return c.year < o.year
	}
	if c.month != o.month {
		return c.month < o.month
	}
	return c.day < o.day
}

func (c civilDate) nextYear() (civilDate, bool) {
	n := c
	n.year++
	return n, validDate(n.year, n.month, n.day)
}

func validDate(y int, m time.Month, d int) bool {
	if m < time.January || m > time.December || d < 1 {
		return false
	}
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return t.Month() == m && t.Day() == d
}

func numericDate(g []string, defaultYear int) (civilDate, bool, bool) {
	d, m := atoi(g[1]), time.Month(atoi(g[2]))
	y, withYear := defaultYear, g[3] != ""
	if withYear {
		y = atoi(g[3])
		if len(g[3]) == 2 {
			y += 2000
		}
	}
	if !validDate(y, m, d) {
		return civilDate{}, false, false
	}
	return civilDate{year: y, month: m, day: d}, withYear, true
}

func namedDate(g []string, defaultYear int) (civilDate, bool, bool) {
	d := atoi(g[1])
	m, ok := monthsGenitive[strings.ToLower(g[2])]
	if !ok {
		return civilDate{}, false, false
	}
	y, withYear := defaultYear, g[3] != ""
	if withYear {
		y = atoi(g[3])
	}
	if !validDate(y, m, d) {
		return civilDate{}, false, false
	}
	return civilDate{year: y, month: m, day: d}, withYear, true
}

func relDayOffset(word string) int {
	switch strings.ToLower(word) {
	case "завтра":
		return 1
	case "послезавтра":
		return 2
	}
	return 0
}

func inDays(today civilDate, g []string) civilDate {
	n := 1
	if g[1] != "" {
		n = atoi(g[1])
	}
	base := today.at(clock{}, time.UTC)
	unit := strings.ToLower(g[2])
	switch {
	case strings.HasPrefix(unit, "недел"):
		return civilOf(base.AddDate(0, 0, 7*n))
	case strings.HasPrefix(unit, "месяц"):
		return addMonths(today, n)
	case strings.HasPrefix(unit, "год"), unit == "лет":
		return addMonths(today, 12*n)
	}
	return civilOf(base.AddDate(0, 0, n))
}

func addMonths(c civilDate, n int) civilDate {
	total := int(c.month) - 1 + n
	out := civilDate{year: c.year + total/12, month: time.Month(total%12 + 1), day: c.day}
	for !validDate(out.year, out.month, out.day) {
		out.day--
	}
	return out
}

func weekdayOf(word string) time.Weekday {
	word = strings.ToLower(word)
	for _, w := range weekdayStems {
		if strings.HasPrefix(word, w.stem) {
			return w.day
		}
	}
	return time.Monday
}

// nextWeekday returns the next date falling on wd, never today.
func nextWeekday(today civilDate, wd time.Weekday) civilDate {
	current := today.at(clock{}, time.UTC).Weekday()
	ahead := (int(wd) - int(current) + 7) % 7
	if ahead == 0 {
		ahead = 7
	}
	return today.addDays(ahead)
}

func nextUnit(today civilDate, word string) civilDate {
	switch {
	case strings.HasPrefix(word, "недел"):
		return today.addDays(7)
	case strings.HasPrefix(word, "месяц"):
		return addMonths(today, 1)
	case strings.HasPrefix(word, "год"):
		return addMonths(today, 12)
	}
	return nextWeekday(today, weekdayOf(word))
}

func durationOf(g []string) time.Duration {
	n := 1
	if g[1] != "" {
		n = atoi(g[1])
	}
	unit := strings.ToLower(g[2])
	switch {
	case unit == "полчаса":
		return 30 * time.Minute
	case strings.HasPrefix(unit, "час"):
		return time.Duration(n) * time.Hour
	}
	return time.Duration(n) * time.Minute
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
