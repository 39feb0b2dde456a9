package render

import (
	"regexp"
	"strings"

	"github.com/starford/quill/internal/grammar"
)

const wordsPerMinute = 200

var (
	inlineLinkRe = regexp.MustCompile(`\[([^\]]*)\]\([^)]*\)`)
	emphasisRe   = regexp.MustCompile(`\*{1,2}([^*]+)\*{1,2}`)
)

// PlainText returns the readable text of src, one block per line, with
// inline markup removed. Code bodies and media are left out.
func PlainText(src string) string {
	return plainText(grammar.Parse(src))
}

func plainText(doc *grammar.Document) string {
	var lines []string
	for _, n := range doc.Nodes {
		switch v := n.(type) {
		case grammar.Paragraph:
			lines = append(lines, stripInline(v.Text))
		case grammar.Heading:
			lines = append(lines, stripInline(v.Text))
		case grammar.Quote:
			lines = append(lines, stripInline(v.Text))
		case grammar.List:
			for _, item := range v.Items {
				lines = append(lines, stripInline(item))
			}
		}
	}
	return strings.Join(lines, "\n")
}

func stripInline(s string) string {
	s = inlineLinkRe.ReplaceAllString(s, "$1")
	return emphasisRe.ReplaceAllString(s, "$1")
}

// Excerpt returns at most n runes of the plain text of src, cut at a word
// boundary and suffixed with an ellipsis when shortened.
func Excerpt(src string, n int) string {
	words := strings.Fields(PlainText(src))
	flat := strings.Join(words, " ")
	if n <= 0 || len([]rune(flat)) <= n {
		return flat
	}
	var b strings.Builder
	for _, w := range words {
		next := len([]rune(b.String())) + len([]rune(w))
		if b.Len() > 0 {
			next++
		}
		if next > n {
			break
		}
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(w)
	}
	if b.Len() == 0 {
		return string([]rune(flat)[:n]) + "…"
	}
	return b.String() + "…"
}

// ReadingMinutes estimates reading time of src at 200 words per minute,
// code included. The result is at least 1.
func ReadingMinutes(src string) int {
	doc := grammar.Parse(src)
	words := len(strings.Fields(plainText(doc)))
	for _, n := range doc.Nodes {
		if c, ok := n.(grammar.Code); ok {
			words += len(strings.Fields(c.Body))
		}
	}
	minutes := (words + wordsPerMinute - 1) / wordsPerMinute
	return max(minutes, 1)
}
