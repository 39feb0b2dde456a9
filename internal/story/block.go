// Package story defines the block model of a story and the operations an
// editor performs on a block sequence.
package story

// Kind discriminates block variants.
type Kind string

// Block kinds.
const (
	KindText        Kind = "text"
	KindHeading     Kind = "heading"
	KindQuote       Kind = "quote"
	KindDivider     Kind = "divider"
	KindList        Kind = "list"
	KindCode        Kind = "code"
	KindCodeEditing Kind = "code-editing"
	KindImage       Kind = "image"
	KindVideo       Kind = "video"
	KindEmbed       Kind = "embed"
)

// DefaultCodeLanguage is used when a code block has no language tag.
const DefaultCodeLanguage = "plaintext"

// Heading levels.
const (
	MinHeadingLevel = 1
	MaxHeadingLevel = 3
)

// Block is one structural unit of story content. The set of implementations
// is closed; switch on the concrete type to handle every kind.
type Block interface {
	BlockID() string
	Kind() Kind
	block()
}

// Text is a plain paragraph. Inline emphasis markers are literal characters.
type Text struct {
	ID   string
	Text string
}

// Heading is a section title of level 1..3.
type Heading struct {
	ID    string
	Level int
	Text  string
}

// Quote is a block quotation.
type Quote struct {
	ID   string
	Text string
}

// Divider is a horizontal rule.
type Divider struct {
	ID string
}

// List is a bulleted or numbered list. Items is never empty inside a Document.
type List struct {
	ID      string
	Items   []string
	Ordered bool
}

// Code is a confirmed code sample stored verbatim.
type Code struct {
	ID       string
	Language string
	Code     string
}

// CodeEditing is a code block under active edit. It is never encoded and must
// be confirmed or cancelled before the story is publishable. Previous holds the
// confirmed block being edited, if any.
type CodeEditing struct {
	ID       string
	Language string
	Code     string
	Previous *Code
}

// Image is an image reference. Caption is editor-only and is not persisted.
type Image struct {
	ID      string
	URL     string
	Caption string
}

// Video is a video reference.
type Video struct {
	ID  string
	URL string
}

// Embed is an embedded external resource.
type Embed struct {
	ID  string
	URL string
}

func (b Text) BlockID() string        { return b.ID }
func (b Heading) BlockID() string     { return b.ID }
func (b Quote) BlockID() string       { return b.ID }
func (b Divider) BlockID() string     { return b.ID }
func (b List) BlockID() string        { return b.ID }
func (b Code) BlockID() string        { return b.ID }
func (b CodeEditing) BlockID() string { return b.ID }
func (b Image) BlockID() string       { return b.ID }
func (b Video) BlockID() string       { return b.ID }
func (b Embed) BlockID() string       { return b.ID }

func (Text) Kind() Kind        { return KindText }
func (Heading) Kind() Kind     { return KindHeading }
func (Quote) Kind() Kind       { return KindQuote }
func (Divider) Kind() Kind     { return KindDivider }
func (List) Kind() Kind        { return KindList }
func (Code) Kind() Kind        { return KindCode }
func (CodeEditing) Kind() Kind { return KindCodeEditing }
func (Image) Kind() Kind       { return KindImage }
func (Video) Kind() Kind       { return KindVideo }
func (Embed) Kind() Kind       { return KindEmbed }

func (Text) block()        {}
func (Heading) block()     {}
func (Quote) block()       {}
func (Divider) block()     {}
func (List) block()        {}
func (Code) block()        {}
func (CodeEditing) block() {}
func (Image) block()       {}
func (Video) block()       {}
func (Embed) block()       {}

// WithID returns a copy of b carrying id.
func WithID(b Block, id string) Block {
	switch v := b.(type) {
	case Text:
		v.ID = id
		return v
	case Heading:
		v.ID = id
		return v
	case Quote:
		v.ID = id
		return v
	case Divider:
		v.ID = id
		return v
	case List:
		v.ID = id
		v.Items = cloneItems(v.Items)
		return v
	case Code:
		v.ID = id
		return v
	case CodeEditing:
		v.ID = id
		return v
	case Image:
		v.ID = id
		return v
	case Video:
		v.ID = id
		return v
	case Embed:
		v.ID = id
		return v
	}
	return b
}

// TextOf returns the editable text of text, heading, and quote blocks.
func TextOf(b Block) (string, bool) {
	switch v := b.(type) {
	case Text:
		return v.Text, true
	case Heading:
		return v.Text, true
	case Quote:
		return v.Text, true
	}
	return "", false
}

// ClampLevel forces a heading level into 1..3.
func ClampLevel(level int) int {
	if level < MinHeadingLevel {
		return MinHeadingLevel
	}
	if level > MaxHeadingLevel {
		return MaxHeadingLevel
	}
	return level
}

// normalize enforces per-block invariants: heading level range and non-empty lists.
func normalize(b Block) Block {
	switch v := b.(type) {
	case Heading:
		v.Level = ClampLevel(v.Level)
		return v
	case List:
		if len(v.Items) == 0 {
			return Text{ID: v.ID}
		}
		v.Items = cloneItems(v.Items)
		return v
	case Code:
		if v.Language == "" {
			v.Language = DefaultCodeLanguage
		}
		return v
	}
	return b
}

func cloneItems(items []string) []string {
	if items == nil {
		return nil
	}
	out := make([]string, len(items))
	copy(out, items)
	return out
}
