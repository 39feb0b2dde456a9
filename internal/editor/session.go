// Package editor holds open editing sessions. A session owns the block
// sequence of one story and applies editor operations to it one at a time.
package editor

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/starford/quill/internal/codec"
	"github.com/starford/quill/internal/story"
)

var (
	// ErrUnknownOp is returned for an op type the session does not handle.
	ErrUnknownOp = errors.New("editor: unknown op")
	// ErrMalformedOp is returned when an op lacks a field its type requires.
	ErrMalformedOp = errors.New("editor: malformed op")
)

// OpType names an editor operation.
type OpType string

// Operations accepted by Session.Apply.
const (
	OpInsertAfter OpType = "insert_after"
	OpDelete      OpType = "delete"
	OpUpdate      OpType = "update"
	OpEnter       OpType = "enter"
	OpBackspace   OpType = "backspace"
	OpListSet     OpType = "list_set"
	OpListInsert  OpType = "list_insert"
	OpListRemove  OpType = "list_remove"
	OpCodeInsert  OpType = "code_insert"
	OpCodeBegin   OpType = "code_begin"
	OpCodeConfirm OpType = "code_confirm"
	OpCodeCancel  OpType = "code_cancel"
	OpFormat      OpType = "format"
	OpFocus       OpType = "focus"
)

// Op is one editor operation as sent by a client. ID is the target or
// anchor block; the remaining fields are read according to Type.
type Op struct {
	Type     OpType           `json:"op"`
	ID       string           `json:"id"`
	Block    *story.WireBlock `json:"block,omitempty"`
	Patch    *story.Patch     `json:"patch,omitempty"`
	Offset   int              `json:"offset,omitempty"`
	Index    int              `json:"index,omitempty"`
	Text     string           `json:"text,omitempty"`
	Language string           `json:"language,omitempty"`
	Start    int              `json:"start,omitempty"`
	End      int              `json:"end,omitempty"`
	Format   story.Format     `json:"format,omitempty"`
	URL      string           `json:"url,omitempty"`
}

// Focus is the block holding the caret and the caret's rune offset.
type Focus struct {
	BlockID string `json:"block_id"`
	Caret   int    `json:"caret"`
}

// Result reports the effect of an op.
type Result struct {
	Changed bool             `json:"changed"`
	Focus   Focus            `json:"focus"`
	Created *story.WireBlock `json:"created,omitempty"`
}

// Session is one open editor over a story. Ops are serialised by the session.
type Session struct {
	ID   string
	Slug string

	mu       sync.Mutex
	doc      *story.Document
	base     string
	focus    Focus
	dirty    bool
	lang     string
	lastUsed time.Time
}

func newSession(id, slug, checksum, content, lang string, now time.Time) *Session {
	doc := codec.DecodeDocument(content)
	first, _ := doc.At(0)
	return &Session{
		ID:       id,
		Slug:     slug,
		doc:      doc,
		base:     checksum,
		focus:    Focus{BlockID: first.BlockID()},
		lang:     lang,
		lastUsed: now,
	}
}

// Apply runs op against the session's document. Ops that name a missing
// block or do not fit the target's kind leave the document unchanged and
// report Changed false.
func (s *Session) Apply(op Op) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.apply(op)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %s", err, op.Type)
	}
	if res.Changed && op.Type != OpFocus {
		s.dirty = true
	}
	if res.Focus.BlockID != "" {
		s.focus = res.Focus
	}
	s.ensureFocus()
	res.Focus = s.focus
	return res, nil
}

func (s *Session) apply(op Op) (Result, error) {
	d := s.doc
	switch op.Type {
	case OpInsertAfter:
		if op.Block == nil {
			return Result{}, ErrMalformedOp
		}
		b, err := story.FromWire(*op.Block)
		if err != nil {
			return Result{}, errors.Join(ErrMalformedOp, err)
		}
		return created(d.InsertAfter(op.ID, b))

	case OpDelete:
		i := d.Index(op.ID)
		if i < 0 {
			return Result{}, nil
		}
		d.Delete(op.ID)
		return Result{Changed: true, Focus: s.endOf(max(i-1, 0))}, nil

	case OpUpdate:
		if op.Patch == nil {
			return Result{}, ErrMalformedOp
		}
		return Result{Changed: d.Update(op.ID, *op.Patch)}, nil

	case OpEnter:
		return created(d.SplitOnEnter(op.ID, op.Offset))

	case OpBackspace:
		id, caret, ok := d.MergeOnBackspace(op.ID)
		if !ok {
			return Result{}, nil
		}
		return Result{Changed: true, Focus: Focus{BlockID: id, Caret: caret}}, nil

	case OpListSet:
		return Result{Changed: d.SetListItem(op.ID, op.Index, op.Text)}, nil
	case OpListInsert:
		return Result{Changed: d.InsertListItem(op.ID, op.Index, op.Text)}, nil
	case OpListRemove:
		return Result{Changed: d.RemoveListItem(op.ID, op.Index)}, nil

	case OpCodeInsert:
		lang := op.Language
		if lang == "" {
			lang = s.lang
		}
		return created(d.InsertCodeEditor(op.ID, lang))
	case OpCodeBegin:
		return Result{Changed: d.BeginCodeEdit(op.ID)}, nil
	case OpCodeConfirm:
		return Result{Changed: d.ConfirmCode(op.ID)}, nil
	case OpCodeCancel:
		i := d.Index(op.ID)
		if !d.CancelCode(op.ID) {
			return Result{}, nil
		}
		if d.Index(op.ID) < 0 {
			return Result{Changed: true, Focus: s.endOf(max(i-1, 0))}, nil
		}
		return Result{Changed: true}, nil

	case OpFormat:
		return Result{Changed: d.ApplyFormat(op.ID, op.Start, op.End, op.Format, op.URL)}, nil

	case OpFocus:
		if d.Index(op.ID) < 0 {
			return Result{}, nil
		}
		return Result{Changed: true, Focus: Focus{BlockID: op.ID, Caret: max(op.Offset, 0)}}, nil
	}
	return Result{}, ErrUnknownOp
}

func created(b story.Block, ok bool) (Result, error) {
	if !ok {
		return Result{}, nil
	}
	w := story.ToWire(b)
	return Result{Changed: true, Focus: Focus{BlockID: b.BlockID()}, Created: &w}, nil
}

// endOf returns a focus at the end of the block at i.
func (s *Session) endOf(i int) Focus {
	b, ok := s.doc.At(i)
	if !ok {
		return Focus{}
	}
	text, _ := story.TextOf(b)
	return Focus{BlockID: b.BlockID(), Caret: len([]rune(text))}
}

// ensureFocus moves the caret to the first block if its block is gone.
func (s *Session) ensureFocus() {
	if s.doc.Index(s.focus.BlockID) >= 0 {
		return
	}
	first, _ := s.doc.At(0)
	s.focus = Focus{BlockID: first.BlockID()}
}

// Blocks returns a copy of the current block sequence.
func (s *Session) Blocks() []story.Block {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc.Blocks()
}

// Focus returns the current caret position.
func (s *Session) Focus() Focus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.focus
}

// Dirty reports whether the document changed since it was opened or last saved.
func (s *Session) Dirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dirty
}

// BaseChecksum is the checksum of the stored story the session was opened from
// or last saved to.
func (s *Session) BaseChecksum() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.base
}

// Encode serialises the current document. Open code edits are not included.
func (s *Session) Encode() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return codec.Encode(s.doc.Blocks())
}

// Publishable reports whether the document has no open code edit.
func (s *Session) Publishable() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc.Publishable()
}

// MarkSaved records a successful save under checksum.
func (s *Session) MarkSaved(checksum string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.base = checksum
	s.dirty = false
}

// MarshalJSON encodes the session state for clients.
func (s *Session) MarshalJSON() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return json.Marshal(sessionState{
		ID:       s.ID,
		Slug:     s.Slug,
		Checksum: s.base,
		Dirty:    s.dirty,
		Focus:    s.focus,
		Blocks:   story.ToWireAll(s.doc.Blocks()),
	})
}

type sessionState struct {
	ID       string            `json:"id"`
	Slug     string            `json:"slug"`
	Checksum string            `json:"checksum"`
	Dirty    bool              `json:"dirty"`
	Focus    Focus             `json:"focus"`
	Blocks   []story.WireBlock `json:"blocks"`
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastUsed = now
	s.mu.Unlock()
}

func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastUsed
}
