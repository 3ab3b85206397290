package typedesc

// Nominal wraps d so that it reports alias as its alias name and node as its
// declaration, with no generic target. It forces the engine to treat an
// otherwise transparent type nominally.
func Nominal(d Descriptor, alias string, node Node) Descriptor {
	return &nominal{Descriptor: d, alias: alias, node: node}
}

type nominal struct {
	Descriptor
	alias string
	node  Node
}

func (n *nominal) AliasName() string      { return n.alias }
func (n *nominal) Target() Descriptor     { return nil }
func (n *nominal) TypeArgs() []Descriptor { return nil }
func (n *nominal) Declaration() Node      { return n.node }

// Unknown returns a descriptor that only satisfies Any. It stands in for
// types the type service could not resolve.
func Unknown(text string) Descriptor {
	return unknown(text)
}

type unknown string

func (u unknown) Is(s Shape) bool      { return s == Any }
func (unknown) AliasName() string      { return "" }
func (unknown) SymbolName() string     { return "" }
func (unknown) IsBuiltin() bool        { return false }
func (unknown) Target() Descriptor     { return nil }
func (unknown) TypeArgs() []Descriptor { return nil }
func (u unknown) Apparent() Descriptor { return u }
func (unknown) Elem() Descriptor       { return nil }
func (unknown) Slots() []Slot          { return nil }
func (unknown) Members() []Descriptor  { return nil }
func (unknown) Literal() any           { return nil }
func (unknown) Properties() []Property { return nil }
func (unknown) IndexType() Descriptor  { return nil }
func (unknown) Declaration() Node      { return nil }
func (u unknown) Text() string         { return string(u) }

// Synthetic returns a descriptor that satisfies only shape, used for types
// the type service has no handle for, such as undefined.
func Synthetic(shape Shape) Descriptor {
	return synthetic(shape)
}

type synthetic Shape

func (s synthetic) Is(shape Shape) bool  { return Shape(s) == shape }
func (synthetic) AliasName() string      { return "" }
func (synthetic) SymbolName() string     { return "" }
func (synthetic) IsBuiltin() bool        { return true }
func (synthetic) Target() Descriptor     { return nil }
func (synthetic) TypeArgs() []Descriptor { return nil }
func (s synthetic) Apparent() Descriptor { return s }
func (synthetic) Elem() Descriptor       { return nil }
func (synthetic) Slots() []Slot          { return nil }
func (synthetic) Members() []Descriptor  { return nil }
func (synthetic) Literal() any           { return nil }
func (synthetic) Properties() []Property { return nil }
func (synthetic) IndexType() Descriptor  { return nil }
func (synthetic) Declaration() Node      { return nil }
func (s synthetic) Text() string         { return Shape(s).String() }
