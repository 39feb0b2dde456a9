package story

import (
	"errors"
	"slices"

	"github.com/starford/quill/internal/ulid"
)

// ErrUnresolvedCodeEdit is returned by Publishable while a code block is still being edited.
var ErrUnresolvedCodeEdit = errors.New("story: code block edit not confirmed or cancelled")

// Document is the block sequence of one open story. It is never empty.
// A Document has a single writer; it does no locking of its own.
type Document struct {
	blocks []Block
	newID  func() string
}

// Option configures a Document.
type Option func(*Document)

// WithIDGenerator overrides the block id generator.
func WithIDGenerator(fn func() string) Option {
	return func(d *Document) {
		d.newID = fn
	}
}

// New returns a Document holding a single empty text block.
func New(opts ...Option) *Document {
	d := &Document{newID: ulid.GenerateID}
	for _, opt := range opts {
		opt(d)
	}
	d.reset()
	return d
}

// FromBlocks builds a Document from blocks. Missing or duplicate ids are
// replaced, block invariants are enforced, and an empty input yields the
// single-empty-text default.
func FromBlocks(blocks []Block, opts ...Option) *Document {
	d := &Document{newID: ulid.GenerateID}
	for _, opt := range opts {
		opt(d)
	}
	seen := make(map[string]struct{}, len(blocks))
	for _, b := range blocks {
		if b == nil {
			continue
		}
		id := b.BlockID()
		if _, dup := seen[id]; id == "" || dup {
			id = d.newID()
		}
		seen[id] = struct{}{}
		d.blocks = append(d.blocks, normalize(WithID(b, id)))
	}
	if len(d.blocks) == 0 {
		d.reset()
	}
	return d
}

func (d *Document) reset() {
	d.blocks = []Block{Text{ID: d.newID()}}
}

// Blocks returns a copy of the block sequence.
func (d *Document) Blocks() []Block {
	out := make([]Block, len(d.blocks))
	for i, b := range d.blocks {
		out[i] = WithID(b, b.BlockID())
	}
	return out
}

// Len returns the number of blocks.
func (d *Document) Len() int { return len(d.blocks) }

// Index returns the position of the block with id, or -1.
func (d *Document) Index(id string) int {
	return slices.IndexFunc(d.blocks, func(b Block) bool { return b.BlockID() == id })
}

// Get returns the block with id.
func (d *Document) Get(id string) (Block, bool) {
	i := d.Index(id)
	if i < 0 {
		return nil, false
	}
	return WithID(d.blocks[i], id), true
}

// At returns the block at position i.
func (d *Document) At(i int) (Block, bool) {
	if i < 0 || i >= len(d.blocks) {
		return nil, false
	}
	b := d.blocks[i]
	return WithID(b, b.BlockID()), true
}

// InsertAfter splices b, under a fresh id, right after the block with anchorID.
// An unknown anchor leaves the document unchanged.
func (d *Document) InsertAfter(anchorID string, b Block) (Block, bool) {
	i := d.Index(anchorID)
	if i < 0 || b == nil {
		return nil, false
	}
	nb := normalize(WithID(b, d.newID()))
	d.blocks = slices.Insert(d.blocks, i+1, nb)
	return nb, true
}

// Delete removes the block with id. Deleting the only block replaces the
// sequence with a fresh empty text block.
func (d *Document) Delete(id string) bool {
	i := d.Index(id)
	if i < 0 {
		return false
	}
	d.blocks = slices.Delete(d.blocks, i, i+1)
	if len(d.blocks) == 0 {
		d.reset()
	}
	return true
}

// replace swaps the block at i, keeping its id.
func (d *Document) replace(i int, b Block) {
	d.blocks[i] = normalize(WithID(b, d.blocks[i].BlockID()))
}

// Publishable reports whether the document can be encoded without losing an
// in-progress code edit.
func (d *Document) Publishable() error {
	for _, b := range d.blocks {
		if b.Kind() == KindCodeEditing {
			return ErrUnresolvedCodeEdit
		}
	}
	return nil
}
