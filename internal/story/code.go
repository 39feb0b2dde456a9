package story

// InsertCodeEditor opens a new code editor after anchorID.
func (d *Document) InsertCodeEditor(anchorID, language string) (Block, bool) {
	if language == "" {
		language = DefaultCodeLanguage
	}
	return d.InsertAfter(anchorID, CodeEditing{Language: language})
}

// BeginCodeEdit switches a confirmed code block back into editing. Cancelling
// the edit restores the block as it was.
func (d *Document) BeginCodeEdit(id string) bool {
	i := d.Index(id)
	if i < 0 {
		return false
	}
	c, ok := d.blocks[i].(Code)
	if !ok {
		return false
	}
	prev := c
	d.replace(i, CodeEditing{Language: c.Language, Code: c.Code, Previous: &prev})
	return true
}

// ConfirmCode turns a code editor into a code block.
func (d *Document) ConfirmCode(id string) bool {
	i := d.Index(id)
	if i < 0 {
		return false
	}
	e, ok := d.blocks[i].(CodeEditing)
	if !ok {
		return false
	}
	d.replace(i, Code{Language: e.Language, Code: e.Code})
	return true
}

// CancelCode discards a code edit: a new editor is removed, an edit of an
// existing block restores the original.
func (d *Document) CancelCode(id string) bool {
	i := d.Index(id)
	if i < 0 {
		return false
	}
	e, ok := d.blocks[i].(CodeEditing)
	if !ok {
		return false
	}
	if e.Previous != nil {
		d.replace(i, *e.Previous)
		return true
	}
	return d.Delete(id)
}
