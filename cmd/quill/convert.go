package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/starford/quill/internal/codec"
	"github.com/starford/quill/internal/render"
	"github.com/starford/quill/internal/story"
)

// readInput reads the file named by the first argument, or stdin when it is
// absent or "-".
func readInput(cmd *cli.Command) ([]byte, error) {
	name := cmd.Args().First()
	if name == "" || name == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(name)
}

func encodeAction(_ context.Context, cmd *cli.Command) error {
	in, err := readInput(cmd)
	if err != nil {
		return err
	}
	return encodeBlocks(in, os.Stdout)
}

func decodeAction(_ context.Context, cmd *cli.Command) error {
	in, err := readInput(cmd)
	if err != nil {
		return err
	}
	return decodeText(in, os.Stdout)
}

func renderAction(_ context.Context, cmd *cli.Command) error {
	in, err := readInput(cmd)
	if err != nil {
		return err
	}
	r := render.New(render.WithTOC(cmd.Bool("toc")), render.WithInlineMarkdown(cmd.Bool("inline")))
	_, err = io.WriteString(os.Stdout, r.Render(string(in)))
	return err
}

func encodeBlocks(in []byte, w io.Writer) error {
	var wire []story.WireBlock
	if err := json.Unmarshal(in, &wire); err != nil {
		return fmt.Errorf("encode: parse blocks: %w", err)
	}
	blocks, err := story.FromWireAll(wire)
	if err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	_, err = fmt.Fprintln(w, codec.Encode(blocks))
	return err
}

func decodeText(in []byte, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(story.ToWireAll(codec.Decode(string(in))))
}
