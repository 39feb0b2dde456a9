package story

// Patch lists block fields to overwrite. Nil fields are left untouched;
// fields that do not apply to the target kind are ignored. A non-nil, empty
// Items turns a list into an empty text block.
type Patch struct {
	Text     *string  `json:"text,omitempty"`
	Level    *int     `json:"level,omitempty"`
	Items    []string `json:"items,omitempty"`
	Ordered  *bool    `json:"ordered,omitempty"`
	Language *string  `json:"language,omitempty"`
	Code     *string  `json:"code,omitempty"`
	URL      *string  `json:"url,omitempty"`
	Caption  *string  `json:"caption,omitempty"`
}

// Update shallow-merges p into the block with id.
func (d *Document) Update(id string, p Patch) bool {
	i := d.Index(id)
	if i < 0 {
		return false
	}
	d.replace(i, p.apply(d.blocks[i]))
	return true
}

func (p Patch) apply(b Block) Block {
	switch v := b.(type) {
	case Text:
		setString(&v.Text, p.Text)
		return v
	case Heading:
		setString(&v.Text, p.Text)
		if p.Level != nil {
			v.Level = *p.Level
		}
		return v
	case Quote:
		setString(&v.Text, p.Text)
		return v
	case List:
		if p.Items != nil {
			v.Items = cloneItems(p.Items)
		}
		if p.Ordered != nil {
			v.Ordered = *p.Ordered
		}
		return v
	case Code:
		setString(&v.Language, p.Language)
		setString(&v.Code, p.Code)
		return v
	case CodeEditing:
		setString(&v.Language, p.Language)
		setString(&v.Code, p.Code)
		return v
	case Image:
		setString(&v.URL, p.URL)
		setString(&v.Caption, p.Caption)
		return v
	case Video:
		setString(&v.URL, p.URL)
		return v
	case Embed:
		setString(&v.URL, p.URL)
		return v
	}
	return b
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}

// SplitOnEnter splits the text of a text, heading, or quote block at the rune
// offset: the head stays in place and the tail moves into a new text block
// inserted right after. For other kinds an empty text block is inserted after.
// The returned block is the new sibling.
func (d *Document) SplitOnEnter(id string, offset int) (Block, bool) {
	i := d.Index(id)
	if i < 0 {
		return nil, false
	}
	cur := d.blocks[i]
	text, ok := TextOf(cur)
	if !ok {
		return d.InsertAfter(id, Text{})
	}
	head, tail := splitRunes(text, offset)
	d.replace(i, withText(cur, head))
	return d.InsertAfter(id, Text{Text: tail})
}

// MergeOnBackspace handles backspace at offset 0 of a text block whose
// predecessor is also a text block. The block is removed; a non-empty block's
// text is appended to the predecessor. It returns the predecessor id and the
// caret position (in runes) at the join point.
func (d *Document) MergeOnBackspace(id string) (focusID string, caret int, ok bool) {
	i := d.Index(id)
	if i <= 0 {
		return "", 0, false
	}
	cur, isText := d.blocks[i].(Text)
	if !isText {
		return "", 0, false
	}
	prev, prevIsText := d.blocks[i-1].(Text)
	if !prevIsText {
		return "", 0, false
	}
	caret = runeLen(prev.Text)
	if cur.Text != "" {
		prev.Text += cur.Text
		d.blocks[i-1] = prev
	}
	d.Delete(id)
	return prev.ID, caret, true
}

func withText(b Block, text string) Block {
	switch v := b.(type) {
	case Text:
		v.Text = text
		return v
	case Heading:
		v.Text = text
		return v
	case Quote:
		v.Text = text
		return v
	}
	return b
}

func splitRunes(s string, offset int) (string, string) {
	r := []rune(s)
	offset = clamp(offset, 0, len(r))
	return string(r[:offset]), string(r[offset:])
}

func runeLen(s string) int {
	return len([]rune(s))
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
