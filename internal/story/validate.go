package story

import (
	"fmt"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Validate checks that blocks form a publishable story: headings are level
// 1..3, lists have items, media blocks carry a URL, and no code edit is open.
func Validate(blocks []Block) error {
	if len(blocks) == 0 {
		return fmt.Errorf("story: no blocks")
	}
	for i, b := range blocks {
		if err := validateBlock(b); err != nil {
			return fmt.Errorf("block %d (%s): %w", i, b.Kind(), err)
		}
	}
	return nil
}

func validateBlock(b Block) error {
	switch v := b.(type) {
	case Heading:
		return validation.Validate(v.Level, validation.Required, validation.Min(MinHeadingLevel), validation.Max(MaxHeadingLevel))
	case List:
		return validation.Validate(v.Items, validation.Required)
	case Image:
		return validation.Validate(v.URL, validation.Required)
	case Video:
		return validation.Validate(v.URL, validation.Required)
	case Embed:
		return validation.Validate(v.URL, validation.Required)
	case CodeEditing:
		return ErrUnresolvedCodeEdit
	}
	return nil
}
