package schema

import (
	"bytes"

	json "github.com/goccy/go-json"
)

// objectWriter writes a JSON object with keys in call order.
type objectWriter struct {
	buf   bytes.Buffer
	count int
	err   error
}

func (w *objectWriter) field(key string, value any) {
	if w.err != nil {
		return
	}
	data, err := json.Marshal(value)
	if err != nil {
		w.err = err
		return
	}
	w.raw(key, data)
}

func (w *objectWriter) raw(key string, data []byte) {
	if w.count == 0 {
		w.buf.WriteByte('{')
	} else {
		w.buf.WriteByte(',')
	}
	k, _ := json.Marshal(key)
	w.buf.Write(k)
	w.buf.WriteByte(':')
	w.buf.Write(data)
	w.count++
}

func (w *objectWriter) bytes() ([]byte, error) {
	if w.err != nil {
		return nil, w.err
	}
	if w.count == 0 {
		return []byte("{}"), nil
	}
	w.buf.WriteByte('}')
	return w.buf.Bytes(), nil
}

// MarshalJSON encodes the node with a stable key order.
func (n *Node) MarshalJSON() ([]byte, error) {
	w := &objectWriter{}
	w.field("type", n.Kind)

	switch n.Kind {
	case KindString, KindNumber, KindBoolean:
		if n.Const != nil {
			w.field("const", n.Const)
		}
	case KindEnum:
		values := n.Values
		if values == nil {
			values = []any{}
		}
		w.field("values", values)
	case KindArray:
		w.field("items", n.Items)
	case KindTuple:
		items := make([]map[string]any, 0, len(n.Slots))
		for _, s := range n.Slots {
			item := map[string]any{
				"type":     s.Type,
				"optional": s.Optional,
				"rest":     s.Rest,
			}
			if s.Name != "" {
				item["name"] = s.Name
			}
			items = append(items, item)
		}
		w.field("items", items)
	case KindObject:
		props := &objectWriter{}
		for _, p := range n.Properties {
			props.field(p.Name, p.Type)
		}
		data, err := props.bytes()
		if err != nil {
			return nil, err
		}
		w.raw("properties", data)
		if len(n.Required) > 0 {
			w.field("required", n.Required)
		}
		if n.IndexedProperties != nil {
			w.field("indexedProperties", n.IndexedProperties)
		}
	case KindRef:
		w.field("name", n.Name)
	case KindUnion:
		w.field("anyOf", n.AnyOf)
	case KindIntersection:
		w.field("allOf", n.AllOf)
	}

	if n.Description != "" {
		w.field("description", n.Description)
	}
	if n.Example != "" {
		w.field("example", n.Example)
	}
	if n.Default != "" {
		w.field("default", n.Default)
	}
	if n.Deprecated != "" {
		w.field("deprecated", n.Deprecated)
	}
	if n.Global != "" {
		w.field("global", n.Global)
	}
	return w.bytes()
}

// MarshalJSON encodes the table as an object in insertion order.
func (t *Table) MarshalJSON() ([]byte, error) {
	w := &objectWriter{}
	t.Each(func(name string, node *Node) {
		w.field(name, node)
	})
	return w.bytes()
}

// Encode returns the indented JSON form of v using the schema encoders.
func Encode(v any) ([]byte, error) {
	return json.MarshalIndent(v, "", "  ")
}
