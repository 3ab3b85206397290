// Package schema defines the canonical intermediate representation produced by
// the conversion engine and consumed by the declaration and OpenAPI renderers.
package schema

// Kind identifies the variant of a Node.
type Kind string

const (
	KindAny          Kind = "any"
	KindNever        Kind = "never"
	KindUndefined    Kind = "undefined"
	KindNull         Kind = "null"
	KindString       Kind = "string"
	KindNumber       Kind = "number"
	KindBoolean      Kind = "boolean"
	KindEnum         Kind = "enum"
	KindArray        Kind = "array"
	KindTuple        Kind = "tuple"
	KindObject       Kind = "object"
	KindRef          Kind = "ref"
	KindUnion        Kind = "union"
	KindIntersection Kind = "intersection"
)

// Docs holds the documentation properties every node may carry.
type Docs struct {
	Description string `json:"description,omitempty"`
	Example     string `json:"example,omitempty"`
	Default     string `json:"default,omitempty"`
	Deprecated  string `json:"deprecated,omitempty"`
	Global      string `json:"global,omitempty"`
}

// IsZero reports whether no documentation property is set.
func (d Docs) IsZero() bool {
	return d == Docs{}
}

// Merge copies every non-empty property of other onto d.
func (d *Docs) Merge(other Docs) {
	if other.Description != "" {
		d.Description = other.Description
	}
	if other.Example != "" {
		d.Example = other.Example
	}
	if other.Default != "" {
		d.Default = other.Default
	}
	if other.Deprecated != "" {
		d.Deprecated = other.Deprecated
	}
	if other.Global != "" {
		d.Global = other.Global
	}
}

// Node is one schema node. Only the fields relevant to Kind are populated.
// A Ref node never carries a body: bodies live in the reference table.
type Node struct {
	Kind Kind

	// Const holds the literal value of a String, Number or Boolean node
	// (string, float64 or bool). Nil means the node is not a literal.
	Const any

	// Values holds the members of an Enum node.
	Values []any

	// Items is the element of an Array node.
	Items *Node

	// Slots are the elements of a Tuple node.
	Slots []Slot

	// Properties, Required and IndexedProperties describe an Object node.
	Properties        []Property
	Required          []string
	IndexedProperties *Node

	// Name is the referenced definition of a Ref node.
	Name string

	AnyOf []*Node
	AllOf []*Node

	Docs
}

// Slot is one tuple element with its structural metadata.
type Slot struct {
	Type     *Node
	Name     string
	Optional bool
	Rest     bool
}

// Property is one named object member.
type Property struct {
	Name string
	Type *Node
}

func Any() *Node       { return &Node{Kind: KindAny} }
func Never() *Node     { return &Node{Kind: KindNever} }
func Undefined() *Node { return &Node{Kind: KindUndefined} }
func Null() *Node      { return &Node{Kind: KindNull} }
func String() *Node    { return &Node{Kind: KindString} }
func Number() *Node    { return &Node{Kind: KindNumber} }
func Boolean() *Node   { return &Node{Kind: KindBoolean} }

// StringConst returns a string literal node.
func StringConst(v string) *Node { return &Node{Kind: KindString, Const: v} }

// NumberConst returns a number literal node.
func NumberConst(v float64) *Node { return &Node{Kind: KindNumber, Const: v} }

// BooleanConst returns a boolean literal node.
func BooleanConst(v bool) *Node { return &Node{Kind: KindBoolean, Const: v} }

// Enum returns an enum node over the given literal values.
func Enum(values ...any) *Node { return &Node{Kind: KindEnum, Values: values} }

// Array returns an array node of items.
func Array(items *Node) *Node { return &Node{Kind: KindArray, Items: items} }

// Tuple returns a tuple node.
func Tuple(slots ...Slot) *Node { return &Node{Kind: KindTuple, Slots: slots} }

// Ref returns a reference to the named definition.
func Ref(name string) *Node { return &Node{Kind: KindRef, Name: name} }

// Union returns a union node.
func Union(members ...*Node) *Node { return &Node{Kind: KindUnion, AnyOf: members} }

// Intersection returns an intersection node.
func Intersection(members ...*Node) *Node { return &Node{Kind: KindIntersection, AllOf: members} }

// Object returns an empty object node.
func Object() *Node { return &Node{Kind: KindObject} }

// AddProperty appends a property to an object node, marking it required when
// required is true.
func (n *Node) AddProperty(name string, typ *Node, required bool) {
	n.Properties = append(n.Properties, Property{Name: name, Type: typ})
	if required {
		n.Required = append(n.Required, name)
	}
}

// Property returns the type of the named property, or nil.
func (n *Node) Property(name string) *Node {
	for _, p := range n.Properties {
		if p.Name == name {
			return p.Type
		}
	}
	return nil
}

// IsRequired reports whether name is listed in Required.
func (n *Node) IsRequired(name string) bool {
	for _, r := range n.Required {
		if r == name {
			return true
		}
	}
	return false
}

// IsLiteral reports whether the node is a string, number or boolean literal.
func (n *Node) IsLiteral() bool {
	return n.Const != nil && (n.Kind == KindString || n.Kind == KindNumber || n.Kind == KindBoolean)
}
