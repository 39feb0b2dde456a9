package mcpserver

// StoryFormatContract describes the story body format that LLM consumers
// should follow when creating or updating stories.
const StoryFormatContract = `# Quill Story Format Contract

A story body is a sequence of blocks separated by a blank line. Each block
is written in one of the forms below. Anything that matches no other form is
a paragraph of plain text.

## Blocks

| Block     | Form                                            |
|-----------|-------------------------------------------------|
| Heading   | ` + "`# Title`" + `, ` + "`## Section`" + ` or ` + "`### Sub-section`" + ` (levels 1-3)       |
| Quote     | every line starts with ` + "`> `" + `                      |
| List      | ` + "`- item`" + ` lines, or ` + "`1. item`" + ` lines for an ordered list |
| Divider   | a line containing only ` + "`---`" + `                     |
| Code      | ` + "`[CODE:lang]`" + `, the code lines, then ` + "`[/CODE]`" + `         |
| Image     | ` + "`[IMAGE:url]`" + ` on its own line                       |
| Video     | ` + "`[VIDEO:url]`" + ` on its own line                       |
| Embed     | ` + "`[EMBED:url]`" + ` on its own line (YouTube, Vimeo)      |
| Contents  | ` + "`[TOC]`" + ` on its own line; replaced by a table of contents |

## Rules

1. **Separate blocks with one blank line.** Consecutive quote or list lines
   form one block.
2. **Code is opaque.** Everything between ` + "`[CODE:lang]`" + ` and the next
   ` + "`[/CODE]`" + ` is kept verbatim; other markup inside it is not read.
   ` + "`[/CODE]`" + ` cannot appear inside a code block.
3. **Headings stop at level 3.** ` + "`####`" + ` and deeper are plain text.
4. **Inline formatting** uses ` + "`**bold**`" + `, ` + "`*italic*`" + ` and ` + "`[text](url)`" + `
   inside paragraphs, headings and quotes.
5. **Tags** are written as ` + "`#tag`" + ` anywhere in text, or passed to the
   create tool. They are lowercase, kebab-case.
6. **Slugs** are lowercase letters, digits and single dashes
   (e.g. ` + "`my-first-story`" + `). When omitted the slug is derived from the title.
7. **Encoding** is UTF-8. Do not add YAML frontmatter to the body; title,
   tags and status are managed by the tools.

## Media

- Upload images and videos with the ` + "`upload_asset`" + ` tool. It returns a
  ` + "`markup`" + ` field ready to paste into the body as its own block.
- Assets live under ` + "`/attachments/`" + `; always reference them by that
  absolute path.
- Supported formats: png, jpg, jpeg, gif, webp, svg, mp4, webm.

## Example

` + "```" + `
[TOC]

## Arrival

The train pulled in at dawn. #travel

> Nobody was waiting on the platform.

[IMAGE:/attachments/platform.jpg]

## Notes

- pack lighter
- leave earlier

[CODE:sh]
echo "done"
[/CODE]
` + "```" + `
`
