// Package render serializes a schema into TypeScript declaration text.
package render

import (
	"bytes"
	"regexp"
	"strconv"
	"strings"

	"github.com/goccy/go-json"

	"github.com/apinni/apinni/internal/docs"
	"github.com/apinni/apinni/internal/schema"
)

var plainKey = regexp.MustCompile(`^[A-Za-z_$][A-Za-z0-9_$]*$`)

// Render returns one exported type alias per definition: the reference
// table first, then the top-level schema entries.
func Render(s *schema.Schema) string {
	var parts []string
	emit := func(name string, node *schema.Node) {
		parts = append(parts, comment(node.Docs, 0)+"export type "+name+" = "+Type(node, 0)+";")
	}
	if s.Refs != nil {
		s.Refs.Each(emit)
	}
	if s.Schema != nil {
		s.Schema.Each(emit)
	}
	return strings.Join(parts, "\n")
}

// Type renders a single node at the given indentation level.
func Type(n *schema.Node, level int) string {
	if n == nil {
		return "any"
	}

	switch n.Kind {
	case schema.KindRef:
		if n.Name != "" {
			return n.Name
		}
		return "any"
	case schema.KindString:
		if s, ok := n.Const.(string); ok {
			return quote(s)
		}
		return "string"
	case schema.KindNumber:
		if f, ok := n.Const.(float64); ok {
			return formatNumber(f)
		}
		return "number"
	case schema.KindBoolean:
		if b, ok := n.Const.(bool); ok {
			return strconv.FormatBool(b)
		}
		return "boolean"
	case schema.KindNull:
		return "null"
	case schema.KindUndefined:
		return "undefined"
	case schema.KindNever:
		return "never"
	case schema.KindArray:
		return array(n, level)
	case schema.KindTuple:
		return tuple(n, level)
	case schema.KindObject:
		return object(n, level)
	case schema.KindEnum:
		return enum(n)
	case schema.KindUnion:
		return union(n, level)
	case schema.KindIntersection:
		return intersection(n, level)
	}
	return "any"
}

func indent(level int) string {
	return strings.Repeat("  ", level)
}

func needsParens(s string) bool {
	return strings.Contains(s, " & ") || strings.Contains(s, " | ") || strings.Contains(s, " &\n")
}

func array(n *schema.Node, level int) string {
	items := Type(n.Items, level)
	if needsParens(items) {
		return "(" + items + ")[]"
	}
	return items + "[]"
}

func tuple(n *schema.Node, level int) string {
	slots := make([]string, 0, len(n.Slots))
	for _, s := range n.Slots {
		typ := Type(s.Type, level)
		var b strings.Builder
		if s.Rest {
			b.WriteString("...")
		}
		if s.Name != "" {
			b.WriteString(s.Name)
			if s.Optional && !s.Rest {
				b.WriteString("?")
			}
			b.WriteString(": ")
		}
		switch {
		case s.Rest:
			b.WriteString("(" + typ + ")[]")
		case s.Optional && s.Name == "":
			if needsParens(typ) {
				typ = "(" + typ + ")"
			}
			b.WriteString(typ + "?")
		default:
			b.WriteString(typ)
		}
		slots = append(slots, b.String())
	}
	return "[" + strings.Join(slots, ", ") + "]"
}

func object(n *schema.Node, level int) string {
	inner := indent(level + 1)
	var lines []string

	if n.IndexedProperties != nil {
		lines = append(lines, inner+"[key: string]: "+Type(n.IndexedProperties, level+1)+";")
	}

	for _, p := range n.Properties {
		key := p.Name
		if !plainKey.MatchString(key) {
			key = quote(key)
		}
		if !n.IsRequired(p.Name) {
			key += "?"
		}
		prefix := inner
		if p.Type != nil {
			prefix += comment(p.Type.Docs, level+1)
		}
		lines = append(lines, prefix+key+": "+Type(p.Type, level+1)+";")
	}

	if len(lines) == 0 {
		return "{}"
	}
	return "{\n" + strings.Join(lines, "\n") + "\n" + indent(level) + "}"
}

func enum(n *schema.Node) string {
	values := make([]string, 0, len(n.Values))
	for _, v := range n.Values {
		switch x := v.(type) {
		case string:
			values = append(values, quote(x))
		case float64:
			values = append(values, formatNumber(x))
		case bool:
			values = append(values, strconv.FormatBool(x))
		}
	}
	if len(values) == 0 {
		return "never"
	}
	return strings.Join(values, " | ")
}

func union(n *schema.Node, level int) string {
	if len(n.AnyOf) == 0 {
		return "never"
	}
	members := make([]string, 0, len(n.AnyOf))
	for _, m := range n.AnyOf {
		s := Type(m, level)
		if m != nil && (m.Kind == schema.KindUnion || m.Kind == schema.KindIntersection) {
			s = "(" + s + ")"
		}
		members = append(members, s)
	}
	return strings.Join(members, " | ")
}

func intersection(n *schema.Node, level int) string {
	if len(n.AllOf) == 0 {
		return "any"
	}
	members := make([]string, 0, len(n.AllOf))
	for _, m := range n.AllOf {
		s := Type(m, level)
		if m != nil && m.Kind == schema.KindUnion {
			s = "(" + s + ")"
		}
		members = append(members, s)
	}
	return strings.Join(members, " &\n"+indent(level))
}

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// comment renders d as a JSDoc block followed by a newline and the
// indentation of the commented line, or "" when d is empty.
func comment(d schema.Docs, level int) string {
	if d.IsZero() {
		return ""
	}

	var body []string
	if d.Global != "" {
		body = append(body, strings.Split(d.Global, "\n")...)
	}
	tag := func(name, text string) {
		if text == "" {
			return
		}
		if name == "deprecated" && text == docs.DeprecatedFlag {
			body = append(body, "@deprecated")
			return
		}
		lines := strings.Split(text, "\n")
		body = append(body, "@"+name+" "+lines[0])
		body = append(body, lines[1:]...)
	}
	tag("description", d.Description)
	tag("example", d.Example)
	tag("default", d.Default)
	tag("deprecated", d.Deprecated)

	pad := indent(level)
	var b strings.Builder
	b.WriteString("/**\n")
	for _, line := range body {
		b.WriteString(pad + " *")
		if line != "" {
			b.WriteString(" " + strings.ReplaceAll(line, "*/", "*\\/"))
		}
		b.WriteString("\n")
	}
	b.WriteString(pad + " */\n" + pad)
	return b.String()
}

// quote renders s as a double-quoted string literal. JSON escapes are valid
// TypeScript escapes.
func quote(s string) string {
	var b bytes.Buffer
	enc := json.NewEncoder(&b)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return strconv.Quote(s)
	}
	return strings.TrimSuffix(b.String(), "\n")
}
