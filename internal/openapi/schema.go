package openapi

import (
	"github.com/apinni/apinni/internal/schema"
)

// Schema converts a schema node into an OpenAPI schema object.
func Schema(n *schema.Node) map[string]interface{} {
	if n == nil {
		return map[string]interface{}{}
	}
	out := shape(n)
	if desc := description(n.Docs); desc != "" {
		out["description"] = desc
	}
	if n.Example != "" {
		out["example"] = n.Example
	}
	if n.Default != "" {
		out["default"] = n.Default
	}
	if n.Deprecated != "" {
		out["deprecated"] = true
	}
	return out
}

func shape(n *schema.Node) map[string]interface{} {
	switch n.Kind {
	case schema.KindNever, schema.KindUndefined:
		return map[string]interface{}{"not": map[string]interface{}{}}
	case schema.KindNull:
		return map[string]interface{}{"type": "null"}
	case schema.KindString, schema.KindNumber, schema.KindBoolean:
		out := map[string]interface{}{"type": primitive(n.Kind)}
		if n.Const != nil {
			out["enum"] = []interface{}{n.Const}
		}
		return out
	case schema.KindEnum:
		out := map[string]interface{}{"enum": n.Values}
		if t := enumType(n.Values); t != "" {
			out["type"] = t
		}
		return out
	case schema.KindArray:
		return map[string]interface{}{"type": "array", "items": Schema(n.Items)}
	case schema.KindTuple:
		return tuple(n)
	case schema.KindObject:
		return object(n)
	case schema.KindRef:
		return ref(n.Name)
	case schema.KindUnion:
		return map[string]interface{}{"oneOf": list(n.AnyOf)}
	case schema.KindIntersection:
		return map[string]interface{}{"allOf": list(n.AllOf)}
	}
	return map[string]interface{}{}
}

func tuple(n *schema.Node) map[string]interface{} {
	var prefix []interface{}
	min := 0
	out := map[string]interface{}{"type": "array"}
	for _, slot := range n.Slots {
		if slot.Rest {
			out["items"] = Schema(slot.Type)
			continue
		}
		prefix = append(prefix, Schema(slot.Type))
		if !slot.Optional {
			min++
		}
	}
	out["prefixItems"] = prefix
	if _, ok := out["items"]; !ok {
		out["items"] = false
		out["maxItems"] = len(prefix)
	}
	out["minItems"] = min
	return out
}

func object(n *schema.Node) map[string]interface{} {
	out := map[string]interface{}{"type": "object"}
	if len(n.Properties) > 0 {
		props := make(map[string]interface{}, len(n.Properties))
		for _, p := range n.Properties {
			props[p.Name] = Schema(p.Type)
		}
		out["properties"] = props
	}
	if len(n.Required) > 0 {
		out["required"] = n.Required
	}
	if n.IndexedProperties != nil {
		out["additionalProperties"] = Schema(n.IndexedProperties)
	}
	return out
}

func list(nodes []*schema.Node) []interface{} {
	out := make([]interface{}, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, Schema(n))
	}
	return out
}

func primitive(k schema.Kind) string {
	switch k {
	case schema.KindNumber:
		return "number"
	case schema.KindBoolean:
		return "boolean"
	}
	return "string"
}

func enumType(values []any) string {
	t := ""
	for _, v := range values {
		var vt string
		switch v.(type) {
		case string:
			vt = "string"
		case float64, int, int64:
			vt = "number"
		case bool:
			vt = "boolean"
		default:
			return ""
		}
		if t != "" && t != vt {
			return ""
		}
		t = vt
	}
	return t
}

func description(d schema.Docs) string {
	if d.Description != "" {
		return d.Description
	}
	return d.Global
}
