package format

import (
	"regexp"
	"sort"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// ParseResult contains plain text and message entities
type ParseResult struct {
	Text     string
	Entities []tgbotapi.MessageEntity
}

// UTF16Len calculates the UTF-16 length of a string.
// Telegram measures entity offsets and lengths in UTF-16 code units.
func UTF16Len(s string) int {
	length := 0
	for _, r := range s {
		if r >= 0x10000 {
			length += 2
		} else {
			length++
		}
	}
	return length
}

type markup struct {
	entity string
	re     *regexp.Regexp
}

// Order matters: bold before italic so "**" is not read as two "*".
var markups = []markup{
	{"bold", regexp.MustCompile(`\*\*(.+?)\*\*`)},
	{"code", regexp.MustCompile("`([^`]+?)`")},
	{"italic", regexp.MustCompile(`(?:^|[^\p{L}\p{N}_])(_([^_\n]+?)_)(?:[^\p{L}\p{N}_]|$)`)},
}

// ParseMarkdown strips **bold**, `code` and _italic_ markers from text and
// returns Telegram entities for them. Unmatched markers stay as literal
// text, so user-typed asterisks never break a message.
func ParseMarkdown(text string) ParseResult {
	var entities []tgbotapi.MessageEntity
	result := text

	for _, m := range markups {
		for {
			loc := m.re.FindStringSubmatchIndex(result)
			if loc == nil {
				break
			}

			// The italic pattern wraps the marked span in its own group
			start, end, innerStart, innerEnd := loc[0], loc[1], loc[2], loc[3]
			if len(loc) > 4 {
				start, end, innerStart, innerEnd = loc[2], loc[3], loc[4], loc[5]
			}
			inner := result[innerStart:innerEnd]

			cut := removal{
				openStart:  UTF16Len(result[:start]),
				openEnd:    UTF16Len(result[:innerStart]),
				closeStart: UTF16Len(result[:innerEnd]),
				closeEnd:   UTF16Len(result[:end]),
			}
			for i := range entities {
				entityEnd := cut.remap(entities[i].Offset + entities[i].Length)
				entities[i].Offset = cut.remap(entities[i].Offset)
				entities[i].Length = entityEnd - entities[i].Offset
			}
			entities = append(entities, tgbotapi.MessageEntity{
				Type:   m.entity,
				Offset: cut.openStart,
				Length: UTF16Len(inner),
			})
			result = result[:start] + inner + result[end:]
		}
	}

	sort.SliceStable(entities, func(i, j int) bool {
		return entities[i].Offset < entities[j].Offset
	})

	return ParseResult{
		Text:     strings.TrimRight(result, " \n"),
		Entities: entities,
	}
}

// removal describes a marker pair being stripped, in UTF-16 units
type removal struct {
	openStart, openEnd, closeStart, closeEnd int
}

// remap translates a position in the text before the removal to the
// position in the text after it.
func (c removal) remap(pos int) int {
	openLen := c.openEnd - c.openStart
	switch {
	case pos >= c.closeEnd:
		return pos - openLen - (c.closeEnd - c.closeStart)
	case pos >= c.closeStart:
		return c.closeStart - openLen
	case pos >= c.openEnd:
		return pos - openLen
	case pos >= c.openStart:
		return c.openStart
	}
	return pos
}
