// Package format turns loosely structured analysis text into display blocks.
//
// The classification is a heuristic over generated text, not a grammar: a numbered
// line is a heading, "-label: value" is a field, any other "-" line is a bullet and
// everything else is a paragraph. Re-running Blocks over the display text of its own
// output is not idempotent, since the markers that drove classification are removed.
package format

import (
	"regexp"
	"strings"
)

type Kind string

const (
	KindHeading   Kind = "heading"
	KindField     Kind = "field"
	KindBullet    Kind = "bullet"
	KindParagraph Kind = "paragraph"
)

// Block is one renderable unit. Label and Value are set only for fields.
type Block struct {
	Kind  Kind   `json:"type"`
	Text  string `json:"text,omitempty"`
	Label string `json:"label,omitempty"`
	Value string `json:"value,omitempty"`
}

func Heading(text string) Block   { return Block{Kind: KindHeading, Text: text} }
func Bullet(text string) Block    { return Block{Kind: KindBullet, Text: text} }
func Paragraph(text string) Block { return Block{Kind: KindParagraph, Text: text} }

func Field(label, value string) Block {
	return Block{Kind: KindField, Label: label, Value: value}
}

// String returns the text a reader sees for the block.
func (b Block) String() string {
	if b.Kind == KindField {
		return b.Label + ": " + b.Value
	}
	return b.Text
}

var (
	emphasis       = strings.NewReplacer("*", "", "_", "", "#", "", "`", "")
	numberedPrefix = regexp.MustCompile(`^\d+\.`)
	numberedStrip  = regexp.MustCompile(`^\d+\.\s*`)
)

// Blocks classifies every non-blank line of text, preserving input order.
func Blocks(text string) []Block {
	lines := strings.Split(text, "\n")
	blocks := make([]Block, 0, len(lines))
	for _, line := range lines {
		if block, ok := classify(line); ok {
			blocks = append(blocks, block)
		}
	}
	return blocks
}

func classify(line string) (Block, bool) {
	clean := strings.TrimSpace(emphasis.Replace(line))
	if clean == "" {
		return Block{}, false
	}

	// The numbered check wins over the dash/colon checks.
	if numberedPrefix.MatchString(clean) {
		return Heading(numberedStrip.ReplaceAllString(clean, "")), true
	}

	if rest, ok := strings.CutPrefix(clean, "-"); ok {
		if label, value, found := strings.Cut(rest, ":"); found {
			return Field(strings.TrimSpace(label), strings.TrimSpace(value)), true
		}
		return Bullet(strings.TrimSpace(rest)), true
	}

	return Paragraph(clean), true
}
