package prd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

const sectionSeparator = "\n\n---\n\n"

// Markdown renders the document for copy/paste export. Metrics and the
// provenance block are not exported.
func Markdown(doc *Document) string {
	var sections []string

	if doc.Overview != "" {
		sections = append(sections, "## Overview\n"+doc.Overview)
	}
	for _, s := range []struct {
		heading string
		raw     json.RawMessage
	}{
		{"Problem", doc.Problem},
		{"Goals", doc.Goals},
		{"Competitive Analysis", doc.CompetitiveAnalysis},
		{"Technical Approach", doc.TechnicalApproach},
		{"Implementation Details", doc.ImplementationDetails},
		{"Business Model", doc.BusinessModel},
	} {
		body := renderRaw(s.raw)
		if body == "" {
			continue
		}
		sections = append(sections, "## "+s.heading+"\n"+body)
	}

	if len(doc.Features) > 0 {
		var b strings.Builder
		b.WriteString("## Features\n")
		for i, f := range doc.Features {
			fmt.Fprintf(&b, "\n### %d. %s", i+1, f.Title)
			if f.Priority != "" {
				fmt.Fprintf(&b, " (%s)", f.Priority)
			}
			b.WriteString("\n")
			if f.Description != "" {
				b.WriteString(f.Description + "\n")
			}
		}
		sections = append(sections, strings.TrimRight(b.String(), "\n"))
	}

	return strings.Join(sections, sectionSeparator)
}

// node is a JSON value with object key order preserved.
type node struct {
	scalar string
	keys   []string
	fields []*node
	items  []*node
	kind   byte // 's' scalar, 'o' object, 'a' array
}

func renderRaw(raw json.RawMessage) string {
	if len(bytes.TrimSpace(raw)) == 0 || string(bytes.TrimSpace(raw)) == "null" {
		return ""
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	n, err := parseNode(dec)
	if err != nil {
		return string(raw)
	}
	var b strings.Builder
	writeNode(&b, n, 3)
	return strings.TrimRight(b.String(), "\n")
}

func parseNode(dec *json.Decoder) (*node, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			n := &node{kind: 'o'}
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return nil, err
				}
				key, _ := keyTok.(string)
				child, err := parseNode(dec)
				if err != nil {
					return nil, err
				}
				n.keys = append(n.keys, key)
				n.fields = append(n.fields, child)
			}
			_, err := dec.Token()
			return n, err
		case '[':
			n := &node{kind: 'a'}
			for dec.More() {
				child, err := parseNode(dec)
				if err != nil {
					return nil, err
				}
				n.items = append(n.items, child)
			}
			_, err := dec.Token()
			return n, err
		}
		return nil, fmt.Errorf("unexpected delimiter %v", t)
	case nil:
		return &node{kind: 's'}, nil
	default:
		return &node{kind: 's', scalar: fmt.Sprint(t)}, nil
	}
}

// writeNode renders scalars as text, arrays as bullet lists, and objects
// as "**key:** value" lines with nested structures under sub-headings.
func writeNode(b *strings.Builder, n *node, depth int) {
	switch n.kind {
	case 's':
		b.WriteString(n.scalar + "\n")
	case 'a':
		for _, item := range n.items {
			if item.kind == 's' {
				fmt.Fprintf(b, "- %s\n", item.scalar)
				continue
			}
			writeNode(b, item, depth)
		}
	case 'o':
		for i, key := range n.keys {
			child := n.fields[i]
			if child.kind == 's' {
				if child.scalar != "" {
					fmt.Fprintf(b, "**%s:** %s\n", key, child.scalar)
				}
				continue
			}
			fmt.Fprintf(b, "\n%s %s\n", strings.Repeat("#", min(depth, 6)), key)
			writeNode(b, child, depth+1)
		}
	}
}
