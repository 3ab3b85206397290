// Package docs extracts documentation properties from the comments attached
// to a declaration.
//
// A comment block contributes free text to the global property and may carry
// tags on lines of their own:
//
//	@description Long form description
//	@example     "1.0.5"
//	@default     10
//	@deprecated  use Other instead
//
// A paragraph starting with "Deprecated:" sets the deprecated property, as in
// regular Go doc comments. Repeated properties are joined with a newline.
package docs

import (
	"regexp"
	"strings"

	"github.com/apinni/apinni/internal/schema"
	"github.com/apinni/apinni/internal/typedesc"
)

// DirectivePrefix marks annotation lines, which never count as documentation.
const DirectivePrefix = "apinni:"

// DeprecatedFlag is the deprecated value of a tag given without text.
const DeprecatedFlag = "true"

var tagLine = regexp.MustCompile(`^@([A-Za-z]+)\b\s*(.*)$`)

// Supported lists the recognised tags.
var Supported = []string{"description", "example", "default", "deprecated"}

// Extract returns the documentation carried by the given comment blocks.
func Extract(blocks []string) schema.Docs {
	var d schema.Docs
	for _, block := range blocks {
		extractBlock(&d, block)
	}
	return d
}

// FromNode extracts the documentation of a declaration site. A nil node has
// no documentation.
func FromNode(node typedesc.Node) schema.Docs {
	if node == nil {
		return schema.Docs{}
	}
	return Extract(node.Comments())
}

// Apply merges the documentation of node onto n without touching its shape.
func Apply(n *schema.Node, node typedesc.Node) *schema.Node {
	if n == nil {
		return n
	}
	if d := FromNode(node); !d.IsZero() {
		n.Docs.Merge(d)
	}
	return n
}

type blockState struct {
	docs      *schema.Docs
	global    []string
	tag       string
	text      []string
	skip      bool
	paragraph bool
}

func extractBlock(d *schema.Docs, block string) {
	st := &blockState{docs: d}

	for _, line := range strings.Split(block, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, DirectivePrefix) || strings.HasPrefix(trimmed, "//"+DirectivePrefix) {
			continue
		}

		if m := tagLine.FindStringSubmatch(trimmed); m != nil {
			st.flush()
			name := strings.ToLower(m[1])
			if !isSupported(name) {
				st.skip = true
				continue
			}
			st.tag = name
			st.text = []string{m[2]}
			continue
		}

		if st.tag == "" && !st.skip && strings.HasPrefix(trimmed, "Deprecated:") {
			st.flush()
			st.tag = "deprecated"
			st.paragraph = true
			st.text = []string{strings.TrimSpace(strings.TrimPrefix(trimmed, "Deprecated:"))}
			continue
		}

		if st.paragraph && trimmed == "" {
			st.flush()
			continue
		}

		switch {
		case st.tag != "":
			st.text = append(st.text, trimmed)
		case st.skip:
			// text of an unsupported tag
		default:
			st.global = append(st.global, trimmed)
		}
	}
	st.flush()

	if g := strings.TrimSpace(strings.Join(st.global, "\n")); g != "" {
		join(&d.Global, g)
	}
}

func (st *blockState) flush() {
	if st.tag != "" {
		text := strings.TrimSpace(strings.Join(st.text, "\n"))
		if text == "" && st.tag == "deprecated" {
			text = DeprecatedFlag
		}
		if text != "" {
			join(field(st.docs, st.tag), text)
		}
	}
	st.tag = ""
	st.text = nil
	st.skip = false
	st.paragraph = false
}

func field(d *schema.Docs, tag string) *string {
	switch tag {
	case "description":
		return &d.Description
	case "example":
		return &d.Example
	case "default":
		return &d.Default
	default:
		return &d.Deprecated
	}
}

func join(dst *string, text string) {
	if *dst == "" {
		*dst = text
		return
	}
	*dst = *dst + "\n" + text
}

func isSupported(tag string) bool {
	for _, s := range Supported {
		if s == tag {
			return true
		}
	}
	return false
}
