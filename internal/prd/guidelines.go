package prd

import (
	"fmt"
	"strings"
)

// Guidelines is the writing guidance folded into every generation prompt.
// Build it once at startup; the accessors return copies.
type Guidelines struct {
	audience   string
	tone       string
	principles []string
	sections   []string
}

// NewGuidelines creates a Guidelines value.
func NewGuidelines(audience, tone string, principles, sections []string) Guidelines {
	return Guidelines{
		audience:   audience,
		tone:       tone,
		principles: append([]string(nil), principles...),
		sections:   append([]string(nil), sections...),
	}
}

// Principles returns the guiding principles.
func (g Guidelines) Principles() []string {
	return append([]string(nil), g.principles...)
}

// Format renders the guidelines as a prompt block.
func (g Guidelines) Format() string {
	var b strings.Builder
	b.WriteString("## Writing guidelines\n")
	if g.audience != "" {
		fmt.Fprintf(&b, "- Audience: %s\n", g.audience)
	}
	if g.tone != "" {
		fmt.Fprintf(&b, "- Tone: %s\n", g.tone)
	}
	for _, p := range g.principles {
		fmt.Fprintf(&b, "- %s\n", p)
	}
	if len(g.sections) > 0 {
		fmt.Fprintf(&b, "- Required sections: %s\n", strings.Join(g.sections, ", "))
	}
	return b.String()
}
