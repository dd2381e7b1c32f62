package telegram

import (
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
)

// Split breaks text into chunks of at most limit runes, preferring blank
// lines, then line breaks, as cut points. A single line longer than limit is
// cut mid-line.
func Split(text string, limit int) []string {
	if limit <= 0 {
		limit = MaxMessageLength
	}
	if runeLen(text) <= limit {
		return []string{text}
	}

	var chunks []string
	var cur strings.Builder
	curLen := 0

	flush := func() {
		if s := strings.Trim(cur.String(), "\n"); s != "" {
			chunks = append(chunks, s)
		}
		cur.Reset()
		curLen = 0
	}

	add := func(piece, sep string) {
		n := runeLen(piece)
		sepLen := 0
		if curLen > 0 {
			sepLen = runeLen(sep)
		}
		if curLen+sepLen+n > limit {
			flush()
			sepLen = 0
		}
		if sepLen > 0 {
			cur.WriteString(sep)
		}
		cur.WriteString(piece)
		curLen += sepLen + n
	}

	for _, para := range strings.Split(text, "\n\n") {
		if runeLen(para) <= limit {
			add(para, "\n\n")
			continue
		}
		for i, line := range strings.Split(para, "\n") {
			sep := "\n"
			if i == 0 {
				sep = "\n\n"
			}
			for _, piece := range hardWrap(line, limit) {
				add(piece, sep)
				sep = "\n"
			}
		}
	}
	flush()

	return chunks
}

func hardWrap(line string, limit int) []string {
	runes := []rune(line)
	if len(runes) <= limit {
		return []string{line}
	}
	var out []string
	for len(runes) > limit {
		out = append(out, string(runes[:limit]))
		runes = runes[limit:]
	}
	if len(runes) > 0 {
		out = append(out, string(runes))
	}
	return out
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}

// PlainText strips the Telegram HTML markup from a message, decoding
// entities, for printing to a terminal.
func PlainText(message string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(message))
	if err != nil {
		return message
	}
	return doc.Find("body").Text()
}
