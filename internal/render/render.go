// Package render turns a stored story body into display HTML.
package render

import (
	"bytes"
	"html"
	"strconv"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"github.com/starford/quill/internal/grammar"
)

// Renderer produces HTML from the story grammar. The zero value is not
// usable; use New.
type Renderer struct {
	toc    bool
	inline bool
	md     goldmark.Markdown
}

// Option configures a Renderer.
type Option func(*Renderer)

// WithTOC controls whether [TOC] markers expand into a table of contents.
// When disabled the marker is shown literally.
func WithTOC(enabled bool) Option {
	return func(r *Renderer) { r.toc = enabled }
}

// WithInlineMarkdown renders **bold**, *italic* and [text](url) inside text
// blocks. Off by default: emphasis markers are displayed as typed.
func WithInlineMarkdown(enabled bool) Option {
	return func(r *Renderer) { r.inline = enabled }
}

// New returns a Renderer. TOC expansion is on by default.
func New(opts ...Option) *Renderer {
	r := &Renderer{toc: true}
	for _, opt := range opts {
		opt(r)
	}
	if r.inline {
		r.md = goldmark.New()
	}
	return r
}

// Render parses src and renders it.
func (r *Renderer) Render(src string) string {
	return r.RenderDocument(grammar.Parse(src))
}

// RenderDocument renders an already parsed document.
func (r *Renderer) RenderDocument(doc *grammar.Document) string {
	headings := doc.Headings()
	anchors := grammar.Anchors(headings)

	var b strings.Builder
	hi := 0
	for _, n := range doc.Nodes {
		switch v := n.(type) {
		case grammar.Paragraph:
			b.WriteString("<p>" + r.text(v.Text) + "</p>")
		case grammar.Heading:
			tag := "h" + strconv.Itoa(v.Level)
			b.WriteString("<" + tag + ` id="` + anchors[hi] + `">` + r.text(v.Text) + "</" + tag + ">")
			hi++
		case grammar.Quote:
			b.WriteString("<blockquote>" + r.text(v.Text) + "</blockquote>")
		case grammar.List:
			tag := "ul"
			if v.Ordered {
				tag = "ol"
			}
			b.WriteString("<" + tag + ">")
			for _, item := range v.Items {
				b.WriteString("<li>" + r.text(item) + "</li>")
			}
			b.WriteString("</" + tag + ">")
		case grammar.Divider:
			b.WriteString("<hr>")
		case grammar.Code:
			b.WriteString(`<pre><code class="language-` + html.EscapeString(v.Language) + `">` +
				html.EscapeString(v.Body) + "</code></pre>")
		case grammar.Media:
			b.WriteString(media(v))
		case grammar.TOC:
			if !r.toc {
				b.WriteString("<p>[TOC]</p>")
				break
			}
			b.WriteString(tocHTML(headings, anchors))
		}
		b.WriteByte('\n')
	}
	return b.String()
}

// text renders inline content. With inline markdown enabled only content
// goldmark reads as a single paragraph is converted; anything else, such as
// a line goldmark would treat as a block, is escaped as is.
func (r *Renderer) text(s string) string {
	if !r.inline {
		return html.EscapeString(s)
	}
	src := []byte(s)
	root := r.md.Parser().Parse(text.NewReader(src))
	p := root.FirstChild()
	if p == nil || p.NextSibling() != nil || p.Kind() != ast.KindParagraph {
		return html.EscapeString(s)
	}
	var buf bytes.Buffer
	if err := r.md.Renderer().Render(&buf, src, root); err != nil {
		return html.EscapeString(s)
	}
	out := strings.TrimSpace(buf.String())
	out = strings.TrimPrefix(out, "<p>")
	return strings.TrimSuffix(out, "</p>")
}

func media(m grammar.Media) string {
	switch m.Kind {
	case grammar.MediaVideo:
		if embed, ok := EmbedURL(m.URL); ok {
			return iframe(embed)
		}
		return `<video controls src="` + attrURL(m.URL) + `"></video>`
	case grammar.MediaEmbed:
		embed, _ := EmbedURL(m.URL)
		return iframe(embed)
	default:
		return `<figure><img src="` + attrURL(m.URL) + `" alt=""></figure>`
	}
}

func iframe(src string) string {
	return `<iframe src="` + attrURL(src) + `" frameborder="0" allowfullscreen></iframe>`
}

// Entry is one table of contents line.
type Entry struct {
	Level  int    `json:"level"`
	Text   string `json:"text"`
	Anchor string `json:"anchor"`
}

// TOC lists every heading of src with its anchor id. Lines inside code
// spans are never headings.
func TOC(src string) []Entry {
	headings := grammar.Parse(src).Headings()
	anchors := grammar.Anchors(headings)
	out := make([]Entry, len(headings))
	for i, h := range headings {
		out[i] = Entry{Level: h.Level, Text: h.Text, Anchor: anchors[i]}
	}
	return out
}

func tocHTML(headings []grammar.Heading, anchors []string) string {
	var b strings.Builder
	b.WriteString(`<nav class="toc"><ul>`)
	for i, h := range headings {
		b.WriteString(`<li class="toc-h` + strconv.Itoa(h.Level) + `"><a href="#` + anchors[i] + `">` +
			html.EscapeString(h.Text) + "</a></li>")
	}
	b.WriteString("</ul></nav>")
	return b.String()
}
