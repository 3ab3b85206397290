// Package typedesc defines the type descriptor abstraction the conversion
// engine consumes. A descriptor is an opaque, borrowed handle onto one type
// of the underlying type service: it answers shape predicates, exposes its
// structural children and carries its nominal identity.
package typedesc

// ScratchPrefix starts the name of every alias created only to evaluate a
// type. Such names are never used as reference names.
const ScratchPrefix = "_apinniScratch"

// Shape is one predicate a descriptor can satisfy.
type Shape int

const (
	Any Shape = iota
	Never
	Undefined
	Null
	String
	TemplateLiteral
	Number
	Boolean
	StringLiteral
	NumberLiteral
	BooleanLiteral
	Enum
	Deferred
	Array
	Tuple
	Union
	Intersection
	Object
)

var shapeNames = [...]string{
	Any:             "any",
	Never:           "never",
	Undefined:       "undefined",
	Null:            "null",
	String:          "string",
	TemplateLiteral: "template-literal",
	Number:          "number",
	Boolean:         "boolean",
	StringLiteral:   "string-literal",
	NumberLiteral:   "number-literal",
	BooleanLiteral:  "boolean-literal",
	Enum:            "enum",
	Deferred:        "deferred",
	Array:           "array",
	Tuple:           "tuple",
	Union:           "union",
	Intersection:    "intersection",
	Object:          "object",
}

func (s Shape) String() string {
	if int(s) < len(shapeNames) {
		return shapeNames[s]
	}
	return "unknown"
}

// Descriptor is a handle onto one type.
type Descriptor interface {
	// Is reports whether the type has the given shape.
	Is(s Shape) bool

	// AliasName is the name of the alias the type was referenced through, if any.
	AliasName() string

	// SymbolName is the name of the declared type, if any.
	SymbolName() string

	// IsBuiltin reports whether the nominal identity belongs to the language
	// or its standard library.
	IsBuiltin() bool

	// Target is the generic declaration the type instantiates, or nil.
	Target() Descriptor

	// TypeArgs are the type arguments of a generic instantiation.
	TypeArgs() []Descriptor

	// Apparent is the expanded structural form of the type.
	Apparent() Descriptor

	// Elem is the element of an array or the argument of a deferred wrapper.
	Elem() Descriptor

	// Slots are the tuple elements.
	Slots() []Slot

	// Members are the union, intersection or enum members.
	Members() []Descriptor

	// Literal is the value of a literal type: string, float64 or bool.
	Literal() any

	// Properties are the object members.
	Properties() []Property

	// IndexType is the value type of a string or number index signature.
	IndexType() Descriptor

	// Declaration is the declaration site of the nominal type, or nil.
	Declaration() Node

	// Text is a human-readable rendering of the type.
	Text() string
}

// Slot is one tuple element.
type Slot struct {
	Type     Descriptor
	Name     string
	Optional bool
	Rest     bool
}

// Property is one object member. Declared is the type as written at the
// member's declaration and keeps alias identity; Resolve asks the type service
// for the member type at a given declaration site and is used when no
// declared type exists.
type Property struct {
	Name     string
	Optional bool
	Declared Descriptor
	Resolve  func(at Node) Descriptor
	Node     Node
}

// Node is a declaration site.
type Node interface {
	// Comments returns the documentation blocks attached to the declaration.
	Comments() []string
}

// Comments is a Node backed by a fixed list of blocks.
type Comments []string

func (c Comments) Comments() []string { return c }

// IsLiteral reports whether d is a string, number or boolean literal type.
func IsLiteral(d Descriptor) bool {
	return d.Is(StringLiteral) || d.Is(NumberLiteral) || d.Is(BooleanLiteral)
}

// NominalName returns the alias name of d, falling back to its symbol name.
func NominalName(d Descriptor) string {
	if name := d.AliasName(); name != "" {
		return name
	}
	return d.SymbolName()
}
