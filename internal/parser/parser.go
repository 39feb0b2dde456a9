// Package parser reads story files: YAML frontmatter followed by an encoded
// story body.
package parser

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/starford/quill/internal/grammar"
	"github.com/starford/quill/internal/models"
	"github.com/starford/quill/internal/render"
)

// ExcerptLength is the rune limit of Result.Excerpt.
const ExcerptLength = 200

var tagRe = regexp.MustCompile(`(?:^|\s)#([A-Za-z][A-Za-z0-9_/-]*)`)

// Frontmatter is the YAML header of a story file.
type Frontmatter struct {
	Title       string        `yaml:"title,omitempty"`
	Author      string        `yaml:"author,omitempty"`
	Status      models.Status `yaml:"status,omitempty"`
	Tags        []string      `yaml:"tags,omitempty"`
	PublishedAt *time.Time    `yaml:"published_at,omitempty"`
}

// Result holds the output of parsing a story file.
type Result struct {
	Frontmatter    Frontmatter
	HasFrontmatter bool
	Body           string
	Title          string
	Tags           []string
	Media          []grammar.Media
	PlainText      string
	Excerpt        string
	ReadingMinutes int
}

// Status returns the frontmatter status, defaulting to draft.
func (r *Result) Status() models.Status {
	if r.Frontmatter.Status == models.StatusPublished {
		return models.StatusPublished
	}
	return models.StatusDraft
}

// Parse splits data into frontmatter and body and derives the title, tags,
// media and reading statistics from the body.
func Parse(data []byte) (*Result, error) {
	fm, ok, body := splitFrontmatter(data)
	doc := grammar.Parse(body)

	return &Result{
		Frontmatter:    fm,
		HasFrontmatter: ok,
		Body:           body,
		Title:          deriveTitle(fm, doc),
		Tags:           extractTags(doc, fm),
		Media:          doc.MediaURLs(),
		PlainText:      render.PlainText(body),
		Excerpt:        render.Excerpt(body, ExcerptLength),
		ReadingMinutes: render.ReadingMinutes(body),
	}, nil
}

// Compose writes fm as a YAML header followed by body.
func Compose(fm Frontmatter, body string) ([]byte, error) {
	head, err := yaml.Marshal(fm)
	if err != nil {
		return nil, fmt.Errorf("parser: marshal frontmatter: %w", err)
	}
	var buf bytes.Buffer
	buf.WriteString("---\n")
	if s := string(head); s != "{}\n" {
		buf.WriteString(s)
	}
	buf.WriteString("---\n\n")
	buf.WriteString(strings.TrimRight(body, "\n"))
	buf.WriteString("\n")
	return buf.Bytes(), nil
}

// splitFrontmatter separates YAML frontmatter (between leading --- delimiters)
// from the body. Without a valid header the whole input is body.
func splitFrontmatter(data []byte) (Frontmatter, bool, string) {
	const delim = "---"
	var fm Frontmatter
	trimmed := bytes.TrimLeft(data, "\n\r")

	if !bytes.HasPrefix(trimmed, []byte(delim+"\n")) && !bytes.HasPrefix(trimmed, []byte(delim+"\r\n")) {
		return fm, false, string(data)
	}

	rest := trimmed[len(delim):]
	idx := bytes.Index(rest, []byte("\n"+delim))
	if idx < 0 {
		return fm, false, string(data)
	}

	yamlBlock := rest[:idx]
	afterDelim := rest[idx+1+len(delim):]
	if len(afterDelim) > 0 && afterDelim[0] != '\n' && afterDelim[0] != '\r' {
		return fm, false, string(data)
	}
	body := strings.TrimLeft(string(afterDelim), "\n\r")

	if err := yaml.Unmarshal(yamlBlock, &fm); err != nil {
		return Frontmatter{}, false, string(data)
	}
	return fm, true, body
}

// extractTags collects frontmatter tags followed by inline #tags from the
// body's prose. Code bodies are not scanned.
func extractTags(doc *grammar.Document, fm Frontmatter) []string {
	seen := make(map[string]struct{})
	var out []string
	add := func(t string) {
		t = strings.TrimSpace(t)
		if t == "" {
			return
		}
		if _, dup := seen[t]; dup {
			return
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}

	for _, t := range fm.Tags {
		add(t)
	}
	for _, text := range prose(doc) {
		for _, m := range tagRe.FindAllStringSubmatch(text, -1) {
			add(m[1])
		}
	}
	return out
}

func prose(doc *grammar.Document) []string {
	var out []string
	for _, n := range doc.Nodes {
		switch v := n.(type) {
		case grammar.Paragraph:
			out = append(out, v.Text)
		case grammar.Quote:
			out = append(out, v.Text)
		case grammar.List:
			out = append(out, v.Items...)
		}
	}
	return out
}

// deriveTitle returns the frontmatter title if set, otherwise the first
// level-1 heading, otherwise the first heading of any level.
func deriveTitle(fm Frontmatter, doc *grammar.Document) string {
	if fm.Title != "" {
		return fm.Title
	}
	headings := doc.Headings()
	for _, h := range headings {
		if h.Level == 1 {
			return strings.TrimSpace(h.Text)
		}
	}
	if len(headings) > 0 {
		return strings.TrimSpace(headings[0].Text)
	}
	return ""
}
