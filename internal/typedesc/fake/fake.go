// Package fake builds in-memory type descriptors for tests that exercise the
// conversion engine without a type checker.
package fake

import (
	"fmt"
	"strings"

	"github.com/apinni/apinni/internal/typedesc"
)

// Type is a hand-assembled descriptor. The zero value satisfies Any.
type Type struct {
	Shape    typedesc.Shape
	Alias    string
	Symbol   string
	Builtin  bool
	Generic  *Type
	Args     []typedesc.Descriptor
	Expanded typedesc.Descriptor
	Element  typedesc.Descriptor
	Elements []typedesc.Slot
	Items    []typedesc.Descriptor
	Value    any
	Props    []typedesc.Property
	Index    typedesc.Descriptor
	Decl     typedesc.Node
}

func (t *Type) Is(s typedesc.Shape) bool { return t.Shape == s }
func (t *Type) AliasName() string        { return t.Alias }
func (t *Type) SymbolName() string       { return t.Symbol }
func (t *Type) IsBuiltin() bool          { return t.Builtin }

func (t *Type) Target() typedesc.Descriptor {
	if t.Generic == nil {
		return nil
	}
	return t.Generic
}

func (t *Type) TypeArgs() []typedesc.Descriptor { return t.Args }

func (t *Type) Apparent() typedesc.Descriptor {
	if t.Expanded != nil {
		return t.Expanded
	}
	return t
}

func (t *Type) Elem() typedesc.Descriptor       { return t.Element }
func (t *Type) Slots() []typedesc.Slot          { return t.Elements }
func (t *Type) Members() []typedesc.Descriptor  { return t.Items }
func (t *Type) Literal() any                    { return t.Value }
func (t *Type) Properties() []typedesc.Property { return t.Props }
func (t *Type) IndexType() typedesc.Descriptor  { return t.Index }
func (t *Type) Declaration() typedesc.Node      { return t.Decl }

func (t *Type) Text() string {
	if name := typedesc.NominalName(t); name != "" {
		return name
	}
	switch t.Shape {
	case typedesc.StringLiteral:
		return fmt.Sprintf("%q", t.Value)
	case typedesc.NumberLiteral, typedesc.BooleanLiteral:
		return fmt.Sprint(t.Value)
	case typedesc.Union, typedesc.Intersection:
		sep := " | "
		if t.Shape == typedesc.Intersection {
			sep = " & "
		}
		parts := make([]string, 0, len(t.Items))
		for _, item := range t.Items {
			parts = append(parts, item.Text())
		}
		return strings.Join(parts, sep)
	}
	return t.Shape.String()
}

func Any() *Type       { return &Type{Shape: typedesc.Any} }
func Never() *Type     { return &Type{Shape: typedesc.Never} }
func Undefined() *Type { return &Type{Shape: typedesc.Undefined} }
func Null() *Type      { return &Type{Shape: typedesc.Null} }
func String() *Type    { return &Type{Shape: typedesc.String} }
func Number() *Type    { return &Type{Shape: typedesc.Number} }
func Boolean() *Type   { return &Type{Shape: typedesc.Boolean} }

// Lit returns a literal type for a string, float64 or bool value.
func Lit(v any) *Type {
	switch x := v.(type) {
	case string:
		return &Type{Shape: typedesc.StringLiteral, Value: x}
	case bool:
		return &Type{Shape: typedesc.BooleanLiteral, Value: x}
	case int:
		return &Type{Shape: typedesc.NumberLiteral, Value: float64(x)}
	default:
		return &Type{Shape: typedesc.NumberLiteral, Value: v}
	}
}

// True and False are the two boolean literal types.
func True() *Type  { return Lit(true) }
func False() *Type { return Lit(false) }

func Array(elem typedesc.Descriptor) *Type {
	return &Type{Shape: typedesc.Array, Element: elem}
}

func Deferred(arg typedesc.Descriptor) *Type {
	return &Type{Shape: typedesc.Deferred, Element: arg}
}

func Tuple(slots ...typedesc.Slot) *Type {
	return &Type{Shape: typedesc.Tuple, Elements: slots}
}

func Union(members ...typedesc.Descriptor) *Type {
	return &Type{Shape: typedesc.Union, Items: members}
}

func Intersection(members ...typedesc.Descriptor) *Type {
	return &Type{Shape: typedesc.Intersection, Items: members}
}

// Enum returns an enum type named name over literal members.
func Enum(name string, values ...any) *Type {
	t := &Type{Shape: typedesc.Enum, Symbol: name}
	for _, v := range values {
		t.Items = append(t.Items, Lit(v))
	}
	return t
}

// Object returns an object type with the given properties.
func Object(props ...typedesc.Property) *Type {
	return &Type{Shape: typedesc.Object, Props: props}
}

// Prop returns a required property declared with typ.
func Prop(name string, typ typedesc.Descriptor) typedesc.Property {
	return typedesc.Property{Name: name, Declared: typ}
}

// OptProp returns an optional property declared with typ.
func OptProp(name string, typ typedesc.Descriptor) typedesc.Property {
	return typedesc.Property{Name: name, Declared: typ, Optional: true}
}

// DocProp returns a required property carrying documentation blocks.
func DocProp(name string, typ typedesc.Descriptor, docs ...string) typedesc.Property {
	return typedesc.Property{Name: name, Declared: typ, Node: typedesc.Comments(docs)}
}

// Named returns t declared under a symbol name.
func Named(name string, t *Type) *Type {
	t.Symbol = name
	return t
}

// Aliased returns t referenced through an alias name.
func Aliased(name string, t *Type) *Type {
	t.Alias = name
	return t
}

// Documented attaches documentation blocks to the declaration of t.
func Documented(t *Type, docs ...string) *Type {
	t.Decl = typedesc.Comments(docs)
	return t
}

// Slot returns a tuple slot.
func Slot(typ typedesc.Descriptor, name string, optional, rest bool) typedesc.Slot {
	return typedesc.Slot{Type: typ, Name: name, Optional: optional, Rest: rest}
}
