package story

import (
	"encoding/json"
	"fmt"
)

// WireBlock is the JSON form of a block. Only the fields meaningful for Kind are set.
type WireBlock struct {
	ID       string   `json:"id,omitempty"`
	Kind     Kind     `json:"kind"`
	Text     string   `json:"text,omitempty"`
	Level    int      `json:"level,omitempty"`
	Items    []string `json:"items,omitempty"`
	Ordered  bool     `json:"ordered,omitempty"`
	Language string   `json:"language,omitempty"`
	Code     string   `json:"code,omitempty"`
	URL      string   `json:"url,omitempty"`
	Caption  string   `json:"caption,omitempty"`
}

// ToWire converts a block to its JSON form.
func ToWire(b Block) WireBlock {
	w := WireBlock{ID: b.BlockID(), Kind: b.Kind()}
	switch v := b.(type) {
	case Text:
		w.Text = v.Text
	case Heading:
		w.Level, w.Text = v.Level, v.Text
	case Quote:
		w.Text = v.Text
	case Divider:
	case List:
		w.Items, w.Ordered = cloneItems(v.Items), v.Ordered
	case Code:
		w.Language, w.Code = v.Language, v.Code
	case CodeEditing:
		w.Language, w.Code = v.Language, v.Code
	case Image:
		w.URL, w.Caption = v.URL, v.Caption
	case Video:
		w.URL = v.URL
	case Embed:
		w.URL = v.URL
	}
	return w
}

// FromWire converts the JSON form back to a block.
func FromWire(w WireBlock) (Block, error) {
	switch w.Kind {
	case KindText:
		return Text{ID: w.ID, Text: w.Text}, nil
	case KindHeading:
		return Heading{ID: w.ID, Level: w.Level, Text: w.Text}, nil
	case KindQuote:
		return Quote{ID: w.ID, Text: w.Text}, nil
	case KindDivider:
		return Divider{ID: w.ID}, nil
	case KindList:
		return List{ID: w.ID, Items: cloneItems(w.Items), Ordered: w.Ordered}, nil
	case KindCode:
		return Code{ID: w.ID, Language: w.Language, Code: w.Code}, nil
	case KindCodeEditing:
		return CodeEditing{ID: w.ID, Language: w.Language, Code: w.Code}, nil
	case KindImage:
		return Image{ID: w.ID, URL: w.URL, Caption: w.Caption}, nil
	case KindVideo:
		return Video{ID: w.ID, URL: w.URL}, nil
	case KindEmbed:
		return Embed{ID: w.ID, URL: w.URL}, nil
	}
	return nil, fmt.Errorf("story: unknown block kind %q", w.Kind)
}

// MarshalBlocks encodes blocks as a JSON array.
func MarshalBlocks(blocks []Block) ([]byte, error) {
	return json.Marshal(ToWireAll(blocks))
}

// ToWireAll converts every block to its JSON form.
func ToWireAll(blocks []Block) []WireBlock {
	out := make([]WireBlock, len(blocks))
	for i, b := range blocks {
		out[i] = ToWire(b)
	}
	return out
}

// FromWireAll converts JSON-form blocks, failing on the first unknown kind.
func FromWireAll(ws []WireBlock) ([]Block, error) {
	out := make([]Block, 0, len(ws))
	for i, w := range ws {
		b, err := FromWire(w)
		if err != nil {
			return nil, fmt.Errorf("block %d: %w", i, err)
		}
		out = append(out, b)
	}
	return out, nil
}

// UnmarshalBlocks decodes a JSON array of blocks.
func UnmarshalBlocks(data []byte) ([]Block, error) {
	var ws []WireBlock
	if err := json.Unmarshal(data, &ws); err != nil {
		return nil, fmt.Errorf("story: decode blocks: %w", err)
	}
	return FromWireAll(ws)
}

// MarshalJSON implements json.Marshaler.
func (d *Document) MarshalJSON() ([]byte, error) {
	return MarshalBlocks(d.blocks)
}
