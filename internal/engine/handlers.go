package engine

import (
	"go.uber.org/zap"

	"github.com/apinni/apinni/internal/docs"
	"github.com/apinni/apinni/internal/schema"
	"github.com/apinni/apinni/internal/typedesc"
)

// handler converts one family of descriptor shapes.
type handler struct {
	name    string
	match   func(d typedesc.Descriptor) bool
	resolve func(in Input) *schema.Node
}

func is(shapes ...typedesc.Shape) func(typedesc.Descriptor) bool {
	return func(d typedesc.Descriptor) bool {
		for _, s := range shapes {
			if d.Is(s) {
				return true
			}
		}
		return false
	}
}

func constant(build func() *schema.Node) func(Input) *schema.Node {
	return func(Input) *schema.Node { return build() }
}

// dispatchTable lists the handlers in priority order. Array, tuple, union
// and intersection must stay ahead of object.
func (e *Engine) dispatchTable() []handler {
	return []handler{
		{"any", is(typedesc.Any), constant(schema.Any)},
		{"never", is(typedesc.Never), constant(schema.Never)},
		{"undefined", is(typedesc.Undefined), constant(schema.Undefined)},
		{"null", is(typedesc.Null), constant(schema.Null)},
		{"string", is(typedesc.String, typedesc.TemplateLiteral), constant(schema.String)},
		{"number", is(typedesc.Number), constant(schema.Number)},
		{"boolean", is(typedesc.Boolean), constant(schema.Boolean)},
		{"literal", typedesc.IsLiteral, e.convertLiteral},
		{"enum", is(typedesc.Enum), e.convertEnum},
		{"deferred", is(typedesc.Deferred), e.convertDeferred},
		{"array", is(typedesc.Array), e.convertArray},
		{"tuple", is(typedesc.Tuple), e.convertTuple},
		{"union", is(typedesc.Union), e.convertUnion},
		{"intersection", is(typedesc.Intersection), e.convertIntersection},
		{"object", is(typedesc.Object), e.convertObject},
	}
}

func literalNode(d typedesc.Descriptor) *schema.Node {
	switch v := d.Literal().(type) {
	case string:
		return schema.StringConst(v)
	case bool:
		return schema.BooleanConst(v)
	case float64:
		return schema.NumberConst(v)
	case int64:
		return schema.NumberConst(float64(v))
	case int:
		return schema.NumberConst(float64(v))
	}
	return nil
}

func (e *Engine) convertLiteral(in Input) *schema.Node {
	if n := literalNode(in.Type); n != nil {
		return n
	}
	e.logger.Debug("literal without value", zap.String("type", in.Type.Text()))
	return schema.Any()
}

func (e *Engine) convertEnum(in Input) *schema.Node {
	values := make([]any, 0, len(in.Type.Members()))
	for _, m := range in.Type.Members() {
		if v := literalNode(m); v != nil {
			values = append(values, v.Const)
		}
	}
	return docs.Apply(schema.Enum(values...), in.Type.Declaration())
}

func (e *Engine) convertDeferred(in Input) *schema.Node {
	if elem := in.Type.Elem(); elem != nil {
		return e.child(in, elem)
	}
	return schema.Any()
}

func (e *Engine) convertArray(in Input) *schema.Node {
	elem := in.Type.Elem()
	if elem == nil {
		return schema.Array(schema.Any())
	}
	return schema.Array(e.child(in, elem))
}

func (e *Engine) convertTuple(in Input) *schema.Node {
	slots := in.Type.Slots()
	out := make([]schema.Slot, 0, len(slots))
	for _, s := range slots {
		out = append(out, schema.Slot{
			Type:     e.child(in, s.Type),
			Name:     s.Name,
			Optional: s.Optional,
			Rest:     s.Rest,
		})
	}
	return schema.Tuple(out...)
}

func (e *Engine) convertUnion(in Input) *schema.Node {
	var (
		kept      []typedesc.Descriptor
		hasTrue   bool
		hasFalse  bool
		boolIndex = -1
	)
	for _, m := range in.Type.Members() {
		if m.Is(typedesc.Undefined) {
			continue
		}
		if m.Is(typedesc.BooleanLiteral) {
			if b, ok := m.Literal().(bool); ok {
				if b {
					hasTrue = true
				} else {
					hasFalse = true
				}
				if boolIndex < 0 {
					boolIndex = len(kept)
				}
			}
		}
		kept = append(kept, m)
	}

	switch len(kept) {
	case 0:
		return schema.Undefined()
	case 1:
		return e.child(in, kept[0])
	}

	pairOnly := hasTrue && hasFalse && len(kept) == 2
	if pairOnly {
		return schema.Boolean()
	}

	allLiterals := true
	for _, m := range kept {
		if !typedesc.IsLiteral(m) {
			allLiterals = false
			break
		}
	}
	if allLiterals {
		values := make([]any, 0, len(kept))
		for _, m := range kept {
			values = append(values, literalNode(m).Const)
		}
		return schema.Enum(values...)
	}

	collapse := hasTrue && hasFalse
	members := make([]*schema.Node, 0, len(kept))
	for i, m := range kept {
		if collapse && m.Is(typedesc.BooleanLiteral) {
			if i == boolIndex {
				members = append(members, schema.Boolean())
			}
			continue
		}
		members = append(members, e.child(in, m))
	}
	return schema.Union(members...)
}

func (e *Engine) convertIntersection(in Input) *schema.Node {
	members := in.Type.Members()
	out := make([]*schema.Node, 0, len(members))
	for _, m := range members {
		out = append(out, e.child(in, m))
	}
	return schema.Intersection(out...)
}

func (e *Engine) convertObject(in Input) *schema.Node {
	obj := schema.Object()

	for _, p := range in.Type.Properties() {
		typ := p.Declared
		if typ == nil && p.Resolve != nil {
			typ = p.Resolve(in.Node)
		}
		if typ == nil {
			e.logger.Debug("property without type",
				zap.String("type", in.Type.Text()),
				zap.String("property", p.Name))
			continue
		}
		node := docs.Apply(e.child(in, typ), p.Node)
		obj.AddProperty(p.Name, node, !p.Optional)
	}

	if idx := in.Type.IndexType(); idx != nil {
		obj.IndexedProperties = e.child(in, idx)
	}

	return docs.Apply(obj, in.Type.Declaration())
}
