package story

// Format is an inline emphasis applied to a selection. The markers are
// stored as literal characters and never parsed into sub-structure.
type Format string

// Inline formats.
const (
	FormatBold   Format = "bold"
	FormatItalic Format = "italic"
	FormatLink   Format = "link"
)

// ApplyFormat wraps the rune range [start, end) of a text, heading, or quote
// block in the markers for f. url is used by FormatLink only.
func (d *Document) ApplyFormat(id string, start, end int, f Format, url string) bool {
	i := d.Index(id)
	if i < 0 {
		return false
	}
	text, ok := TextOf(d.blocks[i])
	if !ok {
		return false
	}
	r := []rune(text)
	start = clamp(start, 0, len(r))
	end = clamp(end, start, len(r))
	sel := string(r[start:end])

	var wrapped string
	switch f {
	case FormatBold:
		wrapped = "**" + sel + "**"
	case FormatItalic:
		wrapped = "*" + sel + "*"
	case FormatLink:
		wrapped = "[" + sel + "](" + url + ")"
	default:
		return false
	}
	d.replace(i, withText(d.blocks[i], string(r[:start])+wrapped+string(r[end:])))
	return true
}
