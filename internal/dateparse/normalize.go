package dateparse

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// normalizer rewrites one colloquial time form into a canonical H:MM token.
type normalizer struct {
	name    string
	re      *regexp.Regexp
	guard   guard
	replace func(groups []string) (string, bool)
}

var afterDateLike = regexp.MustCompile(`^[./\-]\d`)
var beforeDateLike = regexp.MustCompile(`[./\-]$`)

// "через 2 часа" and "через 2 дня" are durations, not clock times
var afterThrough = regexp.MustCompile(`(?i)через\s+$`)

// normalizers run in order; earlier rules produce tokens later rules skip.
var normalizers = []normalizer{
	{
		// "7 утра", "в 7 вечера", "7 вечером", "2 часа дня"
		name:  "day-part",
		re:    regexp.MustCompile(`(?i)(\d{1,2})(?:[:.\-]00)?\s*(?:час(?:а|ов)?\s+)?(утра|ночи|вечера|вечером|дня|днём|днем)`),
		guard: guard{before: afterThrough},
		replace: func(g []string) (string, bool) {
			h, _ := strconv.Atoi(g[1])
			h, ok := dayPartHour(h, strings.ToLower(g[2]))
			if !ok {
				return "", false
			}
			return fmt.Sprintf("%02d:00", h), true
		},
	},
	{
		// "13 часов", "9 часа"; "через 2 часа" is a duration and stays
		name:  "hours-word",
		re:    regexp.MustCompile(`(?i)(\d{1,2})\s*час(?:а|ов)?`),
		guard: guard{before: afterThrough},
		replace: func(g []string) (string, bool) {
			h, _ := strconv.Atoi(g[1])
			if h > 23 {
				return "", false
			}
			return fmt.Sprintf("%02d:00", h), true
		},
	},
	{
		// "10-00", "9-30"
		name:  "dash",
		re:    regexp.MustCompile(`(\d{1,2})-(\d{2})`),
		guard: guard{before: beforeDateLike, after: afterDateLike},
		replace: func(g []string) (string, bool) {
			h, _ := strconv.Atoi(g[1])
			m, _ := strconv.Atoi(g[2])
			if h > 23 || m > 59 {
				return "", false
			}
			return g[1] + ":" + g[2], true
		},
	},
	{
		// "18.00", "18.30"; "18.02" could be a date and is left alone
		name:  "dot",
		re:    regexp.MustCompile(`(\d{1,2})\.(\d{2})`),
		guard: guard{before: beforeDateLike, after: afterDateLike},
		replace: func(g []string) (string, bool) {
			h, _ := strconv.Atoi(g[1])
			m, _ := strconv.Atoi(g[2])
			if !dotIsTime(h, m) {
				return "", false
			}
			return g[1] + ":" + g[2], true
		},
	},
	{
		// "в 20", "в 9"
		name: "lone-hour",
		re:   regexp.MustCompile(`(?i)(в|во)\s+(\d{1,2})`),
		guard: guard{after: regexp.MustCompile(
			`(?i)^(?:[:./\-]\d|\s*(?:минут|мин|сек|час|дн|день|недел|месяц|год|лет|числ|январ|феврал|март|апрел|ма[яй]|июн|июл|август|сентябр|октябр|ноябр|декабр|утра|ночи|вечер|дня|днём|днем))`)},
		replace: func(g []string) (string, bool) {
			h, _ := strconv.Atoi(g[2])
			if h > 23 {
				return "", false
			}
			return fmt.Sprintf("%s %02d:00", g[1], h), true
		},
	},
}

// Normalize rewrites colloquial hour phrases into H:MM tokens so the
// extractor only has to recognize one time format.
func Normalize(text string) string {
	for _, n := range normalizers {
		text = replaceAll(n.re, n.guard, text, n.replace)
	}
	return text
}

func dayPartHour(h int, part string) (int, bool) {
	switch {
	case strings.HasPrefix(part, "утр"):
		if h > 12 {
			return 0, false
		}
		return h % 12, true
	case strings.HasPrefix(part, "ноч"):
		if h > 12 {
			return 0, false
		}
		return h % 12, true
	case strings.HasPrefix(part, "вечер"):
		if h > 23 {
			return 0, false
		}
		if h < 12 {
			return h + 12, true
		}
		if h == 12 {
			return 0, true
		}
		return h, true
	default: // дня / днём
		if h > 23 {
			return 0, false
		}
		if h < 12 {
			return h + 12, true
		}
		return h, true
	}
}

// dotIsTime reports whether an H.MM pair can only be a time of day.
// Minutes 01..12 could equally be a month.
func dotIsTime(h, m int) bool {
	if h > 23 || m > 59 {
		return false
	}
	return m == 0 || m > 12
}
