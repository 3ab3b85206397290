package gotypes

import (
	"go/types"

	"github.com/apinni/apinni/internal/typedesc"
)

// descriptor is the typedesc.Descriptor of one go/types type. typ is the
// type as referenced, under the structure its children are read from.
type descriptor struct {
	a     *Adapter
	typ   types.Type
	under types.Type
	shape typedesc.Shape

	alias   string
	symbol  string
	builtin bool
	obj     types.Object

	args     []typedesc.Descriptor
	target   typedesc.Descriptor
	apparent typedesc.Descriptor

	members  []typedesc.Descriptor
	literal  any
	variadic bool
}

func (d *descriptor) Is(s typedesc.Shape) bool        { return d.shape == s }
func (d *descriptor) AliasName() string               { return d.alias }
func (d *descriptor) SymbolName() string              { return d.symbol }
func (d *descriptor) IsBuiltin() bool                 { return d.builtin }
func (d *descriptor) Target() typedesc.Descriptor     { return d.target }
func (d *descriptor) TypeArgs() []typedesc.Descriptor { return d.args }
func (d *descriptor) Literal() any                    { return d.literal }

func (d *descriptor) Apparent() typedesc.Descriptor {
	if d.apparent != nil {
		return d.apparent
	}
	return d
}

func (d *descriptor) Elem() typedesc.Descriptor {
	switch t := d.under.(type) {
	case *types.Slice:
		return d.a.Describe(t.Elem())
	case *types.Array:
		return d.a.Describe(t.Elem())
	case *types.Chan:
		return d.a.Describe(t.Elem())
	}
	return nil
}

func (d *descriptor) Slots() []typedesc.Slot {
	switch t := d.under.(type) {
	case *types.Array:
		elem := d.a.Describe(t.Elem())
		slots := make([]typedesc.Slot, t.Len())
		for i := range slots {
			slots[i] = typedesc.Slot{Type: elem}
		}
		return slots
	case *types.Tuple:
		slots := make([]typedesc.Slot, 0, t.Len())
		for i := 0; i < t.Len(); i++ {
			v := t.At(i)
			slot := typedesc.Slot{Type: d.a.Describe(v.Type()), Name: v.Name()}
			if slot.Name == "_" {
				slot.Name = ""
			}
			if d.variadic && i == t.Len()-1 {
				if s, ok := v.Type().(*types.Slice); ok {
					slot.Type = d.a.Describe(s.Elem())
				}
				slot.Rest = true
			}
			slots = append(slots, slot)
		}
		return slots
	}
	return nil
}

func (d *descriptor) Members() []typedesc.Descriptor {
	if d.members != nil {
		return d.members
	}
	switch t := d.under.(type) {
	case *types.Pointer:
		return []typedesc.Descriptor{d.a.Describe(t.Elem()), typedesc.Synthetic(typedesc.Null)}
	case *types.Struct:
		if d.shape != typedesc.Intersection {
			return nil
		}
		var members []typedesc.Descriptor
		for i := 0; i < t.NumFields(); i++ {
			if isPromoted(t, i) {
				members = append(members, d.a.Describe(deref(t.Field(i).Type())))
			}
		}
		own := &descriptor{a: d.a, typ: t, under: t, shape: typedesc.Object}
		if len(own.Properties()) > 0 {
			members = append(members, own)
		}
		return members
	}
	return nil
}

func (d *descriptor) Properties() []typedesc.Property {
	st, ok := d.under.(*types.Struct)
	if !ok || d.shape != typedesc.Object {
		return nil
	}

	var props []typedesc.Property
	for i := 0; i < st.NumFields(); i++ {
		f := st.Field(i)
		name, opts, skip := jsonTag(st.Tag(i))
		if skip || isPromoted(st, i) || !f.Exported() {
			continue
		}
		if name == "" {
			name = f.Name()
		}

		optional := hasOption(opts, "omitempty") || hasOption(opts, "omitzero")
		describe := d.a.Describe
		if hasOption(opts, "string") && stringEncodable(f.Type()) {
			describe = d.a.describeQuoted
		}
		declared := describe(f.Type())
		if ptr, isPtr := types.Unalias(f.Type()).(*types.Pointer); isPtr && optional {
			declared = &descriptor{
				a:     d.a,
				typ:   f.Type(),
				under: f.Type(),
				shape: typedesc.Union,
				members: []typedesc.Descriptor{
					describe(ptr.Elem()),
					typedesc.Synthetic(typedesc.Undefined),
				},
			}
		}

		props = append(props, typedesc.Property{
			Name:     name,
			Optional: optional,
			Declared: declared,
			Node:     d.a.universe.Declaration(f),
		})
	}
	return props
}

func (d *descriptor) IndexType() typedesc.Descriptor {
	if m, ok := d.under.(*types.Map); ok {
		return d.a.Describe(m.Elem())
	}
	return nil
}

func (d *descriptor) Declaration() typedesc.Node {
	if d.obj == nil {
		return nil
	}
	return d.a.universe.Declaration(d.obj)
}

func (d *descriptor) Text() string {
	if name := typedesc.NominalName(d); name != "" {
		return name
	}
	if d.typ == nil {
		return d.shape.String()
	}
	return types.TypeString(d.typ, func(p *types.Package) string { return p.Name() })
}

// stringEncodable reports whether the ",string" tag option quotes a field of
// type t: a number or boolean, possibly behind an unnamed pointer, without
// its own marshaling methods.
func stringEncodable(t types.Type) bool {
	t = types.Unalias(t)
	if ptr, ok := t.(*types.Pointer); ok {
		t = types.Unalias(ptr.Elem())
	}
	b, ok := t.Underlying().(*types.Basic)
	if !ok || b.Info()&(types.IsNumeric|types.IsBoolean) == 0 {
		return false
	}
	return !hasMethod(t, "MarshalJSON") && !hasMethod(t, "MarshalText")
}

// describeQuoted describes a stringEncodable type as encoded with the
// ",string" tag option.
func (a *Adapter) describeQuoted(t types.Type) typedesc.Descriptor {
	if ptr, ok := types.Unalias(t).(*types.Pointer); ok {
		return &descriptor{
			a:     a,
			typ:   t,
			under: t,
			shape: typedesc.Union,
			members: []typedesc.Descriptor{
				a.builtin(ptr.Elem(), typedesc.String),
				typedesc.Synthetic(typedesc.Null),
			},
		}
	}
	return a.builtin(t, typedesc.String)
}

func hasOption(opts []string, name string) bool {
	for _, o := range opts {
		if o == name {
			return true
		}
	}
	return false
}
