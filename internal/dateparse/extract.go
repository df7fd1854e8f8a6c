package dateparse

import (
	"regexp"
	"sort"
)

// Kind classifies an extracted fragment
type Kind int

const (
	KindDate      Kind = iota // 19.02, 19.02.2026, 19/02
	KindNamedDate             // 20 ноября, 20 ноября 2026
	KindRelDay                // сегодня, завтра, послезавтра
	KindInDays                // через 3 дня, через неделю
	KindWeekday               // в пятницу
	KindNext                  // в следующий понедельник, на следующей неделе
	KindTime                  // 13:00
	KindDuration              // через 30 минут, через 2 часа
)

func (k Kind) String() string {
	switch k {
	case KindDate:
		return "date"
	case KindNamedDate:
		return "named-date"
	case KindRelDay:
		return "relative-day"
	case KindInDays:
		return "in-days"
	case KindWeekday:
		return "weekday"
	case KindNext:
		return "next"
	case KindTime:
		return "time"
	case KindDuration:
		return "duration"
	}
	return "unknown"
}

// Fragment is a date or time substring found in the text
type Fragment struct {
	Text   string
	Kind   Kind
	Start  int
	End    int
	groups []string
}

type fragmentPattern struct {
	kind  Kind
	re    *regexp.Regexp
	guard guard
}

const (
	weekdayAlt = `понедельник|вторник|сред[уа]|четверг|пятниц[уа]|суббот[уа]|воскресенье`
	monthAlt   = `января|февраля|марта|апреля|мая|июня|июля|августа|сентября|октября|ноября|декабря`
)

var fragmentPatterns = []fragmentPattern{
	{kind: KindDate, re: regexp.MustCompile(`(\d{1,2})[./](\d{1,2})(?:[./](\d{4}|\d{2}))?`),
		guard: guard{before: beforeDateLike, after: afterDateLike}},
	{kind: KindNamedDate, re: regexp.MustCompile(`(?i)(\d{1,2})\s+(` + monthAlt + `)(?:\s+(\d{4}))?`)},
	{kind: KindRelDay, re: regexp.MustCompile(`(?i)послезавтра|завтра|сегодня`)},
	{kind: KindInDays, re: regexp.MustCompile(`(?i)через\s+(?:(\d+)\s+)?(дн(?:я|ей)|день|недел(?:ю|и|ь)|месяц(?:а|ев)?|года?|лет)`)},
	{kind: KindWeekday, re: regexp.MustCompile(`(?i)(?:(?:в|во)\s+)?(` + weekdayAlt + `)`)},
	{kind: KindNext, re: regexp.MustCompile(`(?i)(?:(?:в|во|на)\s+)?следующ(?:ий|ую|ее|ей|ем|его)\s+(` + weekdayAlt + `|недел[еюя]|месяц[еа]?|год[уа]?)`)},
	{kind: KindTime, re: regexp.MustCompile(`(\d{1,2}):(\d{2})`), guard: guard{after: regexp.MustCompile(`^:\d`)}},
	{kind: KindDuration, re: regexp.MustCompile(`(?i)через\s+(?:(\d+)\s+)?(минут[уы]?|мин|час(?:а|ов)?|полчаса)`)},
}

// Extract returns the distinct date/time fragments of text in order of
// appearance. A match lying inside a longer match is dropped, and a
// fragment text seen twice is reported once.
func Extract(text string) []Fragment {
	var all []Fragment
	for _, p := range fragmentPatterns {
		for _, m := range findAll(p.re, p.guard, text) {
			if !validFragment(p.kind, m.Groups) {
				continue
			}
			all = append(all, Fragment{Text: m.text(text), Kind: p.kind, Start: m.Start, End: m.End, groups: m.Groups})
		}
	}

	sort.SliceStable(all, func(i, j int) bool {
		if all[i].Start != all[j].Start {
			return all[i].Start < all[j].Start
		}
		return all[i].End-all[i].Start > all[j].End-all[j].Start
	})

	var out []Fragment
	seen := make(map[string]bool)
	lastEnd := -1
	for _, f := range all {
		if f.Start < lastEnd {
			continue
		}
		lastEnd = f.End
		if seen[f.Text] {
			continue
		}
		seen[f.Text] = true
		out = append(out, f)
	}
	return out
}

// Texts returns the fragment substrings
func Texts(frags []Fragment) []string {
	out := make([]string, len(frags))
	for i, f := range frags {
		out[i] = f.Text
	}
	return out
}

// HasExplicitTime reports whether text names a time of day or a
// duration once colloquial forms are normalized.
func HasExplicitTime(text string) bool {
	return hasTime(Extract(Normalize(text)))
}

func hasTime(frags []Fragment) bool {
	for _, f := range frags {
		if f.Kind == KindTime || f.Kind == KindDuration {
			return true
		}
	}
	return false
}

func validFragment(kind Kind, g []string) bool {
	switch kind {
	case KindTime:
		h, m := atoi(g[1]), atoi(g[2])
		return h <= 23 && m <= 59
	case KindDate:
		d, m := atoi(g[1]), atoi(g[2])
		return d >= 1 && d <= 31 && m >= 1 && m <= 12
	}
	return true
}
