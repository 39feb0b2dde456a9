// Package codec converts between a story's block sequence and the flat text
// format it is stored in.
//
// Encode and Decode are pure. Decode never fails; markup it cannot classify is
// kept as text. Image captions have no textual form and do not survive a round
// trip. A text block is written verbatim, so one holding line breaks decodes
// as one text block per line.
package codec

import (
	"strconv"
	"strings"

	"github.com/starford/quill/internal/grammar"
	"github.com/starford/quill/internal/story"
)

const blockSeparator = "\n\n"

var (
	flattenLine = strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ")
	cleanLang   = strings.NewReplacer("]", "", "\r", "", "\n", "")
)

// Encode serialises blocks. Code blocks still being edited are dropped, as are
// blocks whose rendering is blank.
func Encode(blocks []story.Block) string {
	parts := make([]string, 0, len(blocks))
	for _, b := range blocks {
		s, ok := encodeBlock(b)
		if !ok || strings.TrimSpace(s) == "" {
			continue
		}
		parts = append(parts, s)
	}
	return strings.Join(parts, blockSeparator)
}

func encodeBlock(b story.Block) (string, bool) {
	switch v := b.(type) {
	case story.Text:
		return v.Text, true
	case story.Heading:
		return strings.Repeat("#", story.ClampLevel(v.Level)) + " " + flattenLine.Replace(v.Text), true
	case story.Quote:
		lines := strings.Split(strings.ReplaceAll(v.Text, "\r\n", "\n"), "\n")
		for i, l := range lines {
			lines[i] = "> " + l
		}
		return strings.Join(lines, "\n"), true
	case story.Divider:
		return "---", true
	case story.List:
		lines := make([]string, len(v.Items))
		for i, item := range v.Items {
			marker := "-"
			if v.Ordered {
				marker = strconv.Itoa(i+1) + "."
			}
			lines[i] = marker + " " + flattenLine.Replace(item)
		}
		return strings.Join(lines, "\n"), true
	case story.Code:
		return "[CODE:" + codeLanguage(v.Language) + "]\n" + v.Code + "\n[/CODE]", true
	case story.Image:
		return "[IMAGE:" + v.URL + "]", true
	case story.Video:
		return "[VIDEO:" + v.URL + "]", true
	case story.Embed:
		return "[EMBED:" + v.URL + "]", true
	case story.CodeEditing:
		return "", false
	}
	return "", false
}

func codeLanguage(lang string) string {
	lang = strings.TrimSpace(cleanLang.Replace(lang))
	if lang == "" {
		return story.DefaultCodeLanguage
	}
	return lang
}

// Decode parses s into a block sequence with freshly generated ids. The result
// is never empty.
func Decode(s string) []story.Block {
	return DecodeDocument(s).Blocks()
}

// DecodeDocument parses s into an editable Document.
func DecodeDocument(s string, opts ...story.Option) *story.Document {
	return story.FromBlocks(Project(grammar.Parse(s)), opts...)
}

// Project maps AST nodes to blocks without ids. A [TOC] marker has no block
// kind of its own and is kept as a text block holding the marker.
func Project(doc *grammar.Document) []story.Block {
	out := make([]story.Block, 0, len(doc.Nodes))
	for _, n := range doc.Nodes {
		switch v := n.(type) {
		case grammar.Paragraph:
			out = append(out, story.Text{Text: v.Text})
		case grammar.Heading:
			out = append(out, story.Heading{Level: v.Level, Text: v.Text})
		case grammar.Quote:
			out = append(out, story.Quote{Text: v.Text})
		case grammar.List:
			out = append(out, story.List{Items: append([]string(nil), v.Items...), Ordered: v.Ordered})
		case grammar.Divider:
			out = append(out, story.Divider{})
		case grammar.Code:
			out = append(out, story.Code{Language: codeLanguage(v.Language), Code: v.Body})
		case grammar.Media:
			out = append(out, mediaBlock(v))
		case grammar.TOC:
			out = append(out, story.Text{Text: "[TOC]"})
		}
	}
	return out
}

func mediaBlock(m grammar.Media) story.Block {
	switch m.Kind {
	case grammar.MediaVideo:
		return story.Video{URL: m.URL}
	case grammar.MediaEmbed:
		return story.Embed{URL: m.URL}
	default:
		return story.Image{URL: m.URL}
	}
}
