package story

import "slices"

// SetListItem replaces item n of a list block.
func (d *Document) SetListItem(id string, n int, text string) bool {
	i, l, ok := d.list(id)
	if !ok || n < 0 || n >= len(l.Items) {
		return false
	}
	l.Items = cloneItems(l.Items)
	l.Items[n] = text
	d.replace(i, l)
	return true
}

// InsertListItem inserts text after item n; n = -1 inserts at the front.
func (d *Document) InsertListItem(id string, n int, text string) bool {
	i, l, ok := d.list(id)
	if !ok || n < -1 || n >= len(l.Items) {
		return false
	}
	l.Items = slices.Insert(cloneItems(l.Items), n+1, text)
	d.replace(i, l)
	return true
}

// RemoveListItem deletes item n. Removing the last item turns the list into
// an empty text block.
func (d *Document) RemoveListItem(id string, n int) bool {
	i, l, ok := d.list(id)
	if !ok || n < 0 || n >= len(l.Items) {
		return false
	}
	l.Items = slices.Delete(cloneItems(l.Items), n, n+1)
	d.replace(i, l)
	return true
}

func (d *Document) list(id string) (int, List, bool) {
	i := d.Index(id)
	if i < 0 {
		return -1, List{}, false
	}
	l, ok := d.blocks[i].(List)
	return i, l, ok
}
