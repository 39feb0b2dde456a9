package grammar

import (
	"regexp"
	"strings"
)

var (
	// codeSpanRe matches the shortest span from [CODE:lang] to the next
	// [/CODE]. An empty body may omit its line.
	codeSpanRe  = regexp.MustCompile(`(?s)\[CODE:([^\]\n]*)\]\n(?:(.*?)\n)??\[/CODE\]`)
	headingRe   = regexp.MustCompile(`^(#{1,3}) (.*)$`)
	quoteRe     = regexp.MustCompile(`^> ?(.*)$`)
	bulletRe    = regexp.MustCompile(`^- (.*)$`)
	numberedRe  = regexp.MustCompile(`^\d+\. (.*)$`)
	mediaLineRe = regexp.MustCompile(`^\[(IMAGE|VIDEO|EMBED):(.*)\]$`)
)

const (
	dividerLine = "---"
	tocLine     = "[TOC]"
)

// Parse tokenizes src. Code spans are extracted before any line scanning so
// their bodies are never read as other markup; the text around them is then
// classified line by line.
func Parse(src string) *Document {
	src = strings.ReplaceAll(src, "\r\n", "\n")
	p := &parser{}

	last := 0
	for _, m := range codeSpanRe.FindAllStringSubmatchIndex(src, -1) {
		p.text(src[last:m[0]], last)
		var body string
		if m[4] >= 0 {
			body = src[m[4]:m[5]]
		}
		p.emit(Code{
			Offset:   m[0],
			Language: strings.TrimSpace(src[m[2]:m[3]]),
			Body:     body,
		})
		last = m[1]
	}
	p.text(src[last:], last)

	return &Document{Nodes: p.nodes}
}

type parser struct {
	nodes []Node

	list  *List
	quote *Quote
	parts []string
}

func (p *parser) text(seg string, base int) {
	off := base
	for _, raw := range strings.SplitAfter(seg, "\n") {
		start := off
		off += len(raw)
		p.line(strings.TrimSuffix(raw, "\n"), start)
	}
	p.flush()
}

func (p *parser) line(l string, off int) {
	trimmed := strings.TrimSpace(l)
	if trimmed == "" {
		p.flush()
		return
	}

	switch {
	case trimmed == dividerLine:
		p.emit(Divider{Offset: off})
		return
	case trimmed == tocLine:
		p.emit(TOC{Offset: off})
		return
	}

	if m := mediaLineRe.FindStringSubmatch(trimmed); m != nil {
		p.emit(Media{Offset: off, Kind: MediaKind(m[1]), URL: strings.TrimSpace(m[2])})
		return
	}
	if m := headingRe.FindStringSubmatch(l); m != nil {
		p.emit(Heading{Offset: off, Level: len(m[1]), Text: m[2]})
		return
	}
	if m := quoteRe.FindStringSubmatch(l); m != nil {
		p.flushList()
		if p.quote == nil {
			p.quote = &Quote{Offset: off}
		}
		p.parts = append(p.parts, m[1])
		return
	}
	if m := bulletRe.FindStringSubmatch(l); m != nil {
		p.listItem(false, m[1], off)
		return
	}
	if m := numberedRe.FindStringSubmatch(l); m != nil {
		p.listItem(true, m[1], off)
		return
	}

	p.emit(Paragraph{Offset: off, Text: l})
}

func (p *parser) listItem(ordered bool, item string, off int) {
	p.flushQuote()
	if p.list != nil && p.list.Ordered != ordered {
		p.flushList()
	}
	if p.list == nil {
		p.list = &List{Offset: off, Ordered: ordered}
	}
	p.list.Items = append(p.list.Items, item)
}

// emit closes any open run and appends n.
func (p *parser) emit(n Node) {
	p.flush()
	p.nodes = append(p.nodes, n)
}

func (p *parser) flush() {
	p.flushList()
	p.flushQuote()
}

func (p *parser) flushList() {
	if p.list == nil {
		return
	}
	p.nodes = append(p.nodes, *p.list)
	p.list = nil
}

func (p *parser) flushQuote() {
	if p.quote == nil {
		return
	}
	p.quote.Text = strings.Join(p.parts, " ")
	p.nodes = append(p.nodes, *p.quote)
	p.quote = nil
	p.parts = nil
}
