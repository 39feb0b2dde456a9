package grammar

import (
	"strconv"
	"strings"
	"unicode"
)

// Slugify lowercases text and joins its letter/digit runs with '-'.
// Text with no letters or digits yields "section".
func Slugify(text string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(text) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			if dash && b.Len() > 0 {
				b.WriteByte('-')
			}
			b.WriteRune(r)
			dash = false
		default:
			dash = true
		}
	}
	if b.Len() == 0 {
		return "section"
	}
	return b.String()
}

// Anchors returns a unique anchor id per heading. Repeated slugs get the
// first free numeric suffix: intro, intro-1, intro-2.
func Anchors(headings []Heading) []string {
	seen := make(map[string]bool, len(headings))
	out := make([]string, len(headings))
	for i, h := range headings {
		base := Slugify(h.Text)
		slug := base
		for n := 1; seen[slug]; n++ {
			slug = base + "-" + strconv.Itoa(n)
		}
		seen[slug] = true
		out[i] = slug
	}
	return out
}
