// Package grammar parses the flat story format into an AST shared by the
// editor codec and the read-only renderer.
//
// The format is line oriented. Blocks are separated by blank lines and each
// kind is identified by a sigil at the start of its line:
//
//	# Title            heading (1 to 3 '#')
//	> quoted           quote
//	---                divider
//	- item / 1. item   list
//	[CODE:lang]        code span, closed by [/CODE] on its own line
//	[IMAGE:url]        image
//	[VIDEO:url]        video
//	[EMBED:url]        embed
//	[TOC]              table of contents marker
//
// Anything else is a paragraph line. Parsing never fails: malformed markup is
// kept as paragraph text.
package grammar

// Node is an AST node. The set of implementations is closed.
type Node interface {
	// Pos is the byte offset of the node's first line in the LF-normalised source.
	Pos() int
	node()
}

// Paragraph is one unclassified source line, verbatim.
type Paragraph struct {
	Offset int
	Text   string
}

// Heading is a '#'-prefixed line.
type Heading struct {
	Offset int
	Level  int
	Text   string
}

// Quote is a run of '>' lines, joined with single spaces.
type Quote struct {
	Offset int
	Text   string
}

// List is a run of list lines of the same orderedness.
type List struct {
	Offset  int
	Ordered bool
	Items   []string
}

// Divider is a '---' line.
type Divider struct {
	Offset int
}

// Code is an extracted [CODE:lang] span. Body is verbatim.
type Code struct {
	Offset   int
	Language string
	Body     string
}

// MediaKind is the tag name of a media line.
type MediaKind string

// Media tags.
const (
	MediaImage MediaKind = "IMAGE"
	MediaVideo MediaKind = "VIDEO"
	MediaEmbed MediaKind = "EMBED"
)

// Media is an [IMAGE:..], [VIDEO:..] or [EMBED:..] line.
type Media struct {
	Offset int
	Kind   MediaKind
	URL    string
}

// TOC is a [TOC] line.
type TOC struct {
	Offset int
}

func (n Paragraph) Pos() int { return n.Offset }
func (n Heading) Pos() int   { return n.Offset }
func (n Quote) Pos() int     { return n.Offset }
func (n List) Pos() int      { return n.Offset }
func (n Divider) Pos() int   { return n.Offset }
func (n Code) Pos() int      { return n.Offset }
func (n Media) Pos() int     { return n.Offset }
func (n TOC) Pos() int       { return n.Offset }

func (Paragraph) node() {}
func (Heading) node()   {}
func (Quote) node()     {}
func (List) node()      {}
func (Divider) node()   {}
func (Code) node()      {}
func (Media) node()     {}
func (TOC) node()       {}

// Document is a parsed story body.
type Document struct {
	Nodes []Node
}

// Headings returns every heading node in document order.
func (d *Document) Headings() []Heading {
	var out []Heading
	for _, n := range d.Nodes {
		if h, ok := n.(Heading); ok {
			out = append(out, h)
		}
	}
	return out
}

// HasTOC reports whether the document contains a [TOC] marker.
func (d *Document) HasTOC() bool {
	for _, n := range d.Nodes {
		if _, ok := n.(TOC); ok {
			return true
		}
	}
	return false
}

// MediaURLs returns the URLs of all media nodes in document order.
func (d *Document) MediaURLs() []Media {
	var out []Media
	for _, n := range d.Nodes {
		if m, ok := n.(Media); ok {
			out = append(out, m)
		}
	}
	return out
}
