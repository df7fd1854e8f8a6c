package dateparse

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// RE2 word boundaries are ASCII-only, so Cyrillic words need an explicit
// check around each match.

type match struct {
	Start, End int
	Groups     []string
}

func (m match) text(s string) string { return s[m.Start:m.End] }

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

func bounded(s string, start, end int) bool {
	if start > 0 {
		if r, _ := utf8.DecodeLastRuneInString(s[:start]); isWordRune(r) {
			return false
		}
	}
	if end < len(s) {
		if r, _ := utf8.DecodeRuneInString(s[end:]); isWordRune(r) {
			return false
		}
	}
	return true
}

// guard holds optional context checks applied around a match.
type guard struct {
	before *regexp.Regexp // skip if text before the match matches
	after  *regexp.Regexp // skip if text after the match matches
}

func (g guard) allows(s string, start, end int) bool {
	if !bounded(s, start, end) {
		return false
	}
	if g.before != nil && g.before.MatchString(s[:start]) {
		return false
	}
	if g.after != nil && g.after.MatchString(s[end:]) {
		return false
	}
	return true
}

func findAll(re *regexp.Regexp, g guard, s string) []match {
	var out []match
	for _, idx := range re.FindAllStringSubmatchIndex(s, -1) {
		if !g.allows(s, idx[0], idx[1]) {
			continue
		}
		groups := make([]string, len(idx)/2)
		for i := range groups {
			if idx[2*i] >= 0 {
				groups[i] = s[idx[2*i]:idx[2*i+1]]
			}
		}
		out = append(out, match{Start: idx[0], End: idx[1], Groups: groups})
	}
	return out
}

// replaceAll rewrites every guarded match of re using fn. Returning false
// from fn keeps the match unchanged.
func replaceAll(re *regexp.Regexp, g guard, s string, fn func(groups []string) (string, bool)) string {
	matches := findAll(re, g, s)
	if len(matches) == 0 {
		return s
	}
	var b strings.Builder
	last := 0
	for _, m := range matches {
		repl, ok := fn(m.Groups)
		if !ok {
			continue
		}
		b.WriteString(s[last:m.Start])
		b.WriteString(repl)
		last = m.End
	}
	b.WriteString(s[last:])
	return b.String()
}

var spaceRE = regexp.MustCompile(`\s+`)

func collapseSpaces(s string) string {
	return strings.TrimSpace(spaceRE.ReplaceAllString(s, " "))
}
