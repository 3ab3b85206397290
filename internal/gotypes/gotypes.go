// Package gotypes exposes go/types types as type descriptors.
package gotypes

import (
	"go/constant"
	"go/types"
	"reflect"
	"sort"
	"strings"

	"github.com/apinni/apinni/internal/typedesc"
)

// maxTupleLen is the longest array rendered as a tuple. Longer arrays are
// rendered as plain arrays of their element.
const maxTupleLen = 32

// Universe supplies the identity and documentation of declared objects.
type Universe interface {
	// QualifiedName returns the unique name of a declared type or variable.
	QualifiedName(obj types.Object) string
	// Declaration returns the documentation node of a declared object, or nil.
	Declaration(obj types.Object) typedesc.Node
	// IsLocal reports whether pkg belongs to the inspected program.
	IsLocal(pkg *types.Package) bool
}

// Adapter describes go/types types.
type Adapter struct {
	universe Universe
	enums    map[*types.TypeName][]*types.Const
}

// New creates an adapter resolving identities through u.
func New(u Universe) *Adapter {
	return &Adapter{
		universe: u,
		enums:    make(map[*types.TypeName][]*types.Const),
	}
}

// Describe returns the descriptor of t.
func (a *Adapter) Describe(t types.Type) typedesc.Descriptor {
	switch t := t.(type) {
	case nil:
		return typedesc.Unknown("<nil>")
	case *types.Alias:
		return a.describeAlias(t)
	case *types.Named:
		return a.describeNamed(t)
	}
	return a.structural(t)
}

// DescribeObject returns the descriptor of the type of obj together with
// its declaration node.
func (a *Adapter) DescribeObject(obj types.Object) (typedesc.Descriptor, typedesc.Node) {
	return a.Describe(obj.Type()), a.universe.Declaration(obj)
}

// DescribeTuple returns a tuple descriptor over vars. When variadic is true
// the last variable is a rest slot of its element type.
func (a *Adapter) DescribeTuple(vars *types.Tuple, variadic bool) typedesc.Descriptor {
	return &descriptor{a: a, typ: vars, under: vars, shape: typedesc.Tuple, variadic: variadic}
}

// DescribeConstant returns the literal descriptor of a constant value.
func (a *Adapter) DescribeConstant(val constant.Value) typedesc.Descriptor {
	v := literalValue(val)
	switch v.(type) {
	case string:
		return &descriptor{a: a, shape: typedesc.StringLiteral, literal: v}
	case float64:
		return &descriptor{a: a, shape: typedesc.NumberLiteral, literal: v}
	case bool:
		return &descriptor{a: a, shape: typedesc.BooleanLiteral, literal: v}
	}
	return typedesc.Unknown(val.ExactString())
}

func (a *Adapter) describeAlias(al *types.Alias) typedesc.Descriptor {
	actual := types.Unalias(al)

	if args := al.TypeArgs(); args != nil && args.Len() > 0 {
		d := a.structural(actual.Underlying())
		d.typ = al
		d.alias = a.universe.QualifiedName(al.Origin().Obj())
		d.builtin = a.isBuiltin(al.Obj().Pkg())
		d.args = a.describeList(args)
		d.target = a.Describe(al.Origin())
		d.apparent = a.structural(actual.Underlying())
		return d
	}

	switch actual.(type) {
	case *types.Basic, *types.Named:
		return a.Describe(actual)
	}

	d := a.structural(actual)
	d.typ = al
	d.alias = a.universe.QualifiedName(al.Obj())
	d.builtin = a.isBuiltin(al.Obj().Pkg())
	d.obj = al.Obj()
	return d
}

func (a *Adapter) describeNamed(n *types.Named) typedesc.Descriptor {
	obj := n.Obj()
	pkg := obj.Pkg()
	local := a.universe.IsLocal(pkg)

	basic, isBasic := n.Underlying().(*types.Basic)
	if isBasic && local {
		if consts := a.enumConstants(n); len(consts) > 0 {
			members := make([]typedesc.Descriptor, 0, len(consts))
			for _, c := range consts {
				members = append(members, a.DescribeConstant(c.Val()))
			}
			return &descriptor{
				a:       a,
				typ:     n,
				under:   basic,
				shape:   typedesc.Enum,
				symbol:  a.universe.QualifiedName(obj),
				obj:     obj,
				members: members,
			}
		}
	}

	if special := a.wellKnown(n); special != nil {
		return special
	}
	if isBasic {
		return a.structural(basic)
	}

	d := a.structural(n.Underlying())
	d.typ = n
	d.builtin = !local && isStdlib(pkg)
	if local {
		d.obj = obj
	}

	if args := n.TypeArgs(); args != nil && args.Len() > 0 {
		d.symbol = a.universe.QualifiedName(n.Origin().Obj())
		d.args = a.describeList(args)
		d.target = a.Describe(n.Origin())
		d.apparent = a.structural(n.Underlying())
		return d
	}

	d.symbol = a.universe.QualifiedName(obj)
	return d
}

// wellKnown maps types whose JSON encoding differs from their structure.
func (a *Adapter) wellKnown(n *types.Named) typedesc.Descriptor {
	obj := n.Obj()
	if pkg := obj.Pkg(); pkg != nil {
		switch pkg.Path() + "." + obj.Name() {
		case "time.Time":
			return a.builtin(n, typedesc.String)
		case "time.Duration":
			return a.builtin(n, typedesc.Number)
		case "encoding/json.RawMessage", "encoding/json.Number":
			return a.builtin(n, typedesc.Any)
		}
	}
	if hasMethod(n, "MarshalJSON") {
		return a.builtin(n, typedesc.Any)
	}
	if hasMethod(n, "MarshalText") {
		return a.builtin(n, typedesc.String)
	}
	return nil
}

func (a *Adapter) isBuiltin(pkg *types.Package) bool {
	return !a.universe.IsLocal(pkg) && isStdlib(pkg)
}

// isStdlib reports whether pkg is predeclared or belongs to the standard
// library, whose import paths have no dot in their first element.
func isStdlib(pkg *types.Package) bool {
	if pkg == nil {
		return true
	}
	first, _, _ := strings.Cut(pkg.Path(), "/")
	return !strings.Contains(first, ".")
}

func (a *Adapter) builtin(t types.Type, shape typedesc.Shape) *descriptor {
	return &descriptor{a: a, typ: t, under: t.Underlying(), shape: shape, builtin: true}
}

func hasMethod(t types.Type, name string) bool {
	obj, _, _ := types.LookupFieldOrMethod(t, true, nil, name)
	fn, ok := obj.(*types.Func)
	if !ok {
		return false
	}
	sig := fn.Type().(*types.Signature)
	return sig.Params().Len() == 0 && sig.Results().Len() == 2
}

// enumConstants returns the package-level constants of type n in
// declaration order.
func (a *Adapter) enumConstants(n *types.Named) []*types.Const {
	obj := n.Obj()
	if consts, ok := a.enums[obj]; ok {
		return consts
	}
	var consts []*types.Const
	if pkg := obj.Pkg(); pkg != nil {
		scope := pkg.Scope()
		for _, name := range scope.Names() {
			c, ok := scope.Lookup(name).(*types.Const)
			if ok && types.Identical(c.Type(), n) {
				consts = append(consts, c)
			}
		}
	}
	sort.Slice(consts, func(i, j int) bool { return consts[i].Pos() < consts[j].Pos() })
	a.enums[obj] = consts
	return consts
}

func (a *Adapter) describeList(list *types.TypeList) []typedesc.Descriptor {
	out := make([]typedesc.Descriptor, 0, list.Len())
	for i := 0; i < list.Len(); i++ {
		out = append(out, a.Describe(list.At(i)))
	}
	return out
}

// structural describes an unnamed type.
func (a *Adapter) structural(t types.Type) *descriptor {
	return &descriptor{a: a, typ: t, under: t, shape: shapeOf(t)}
}

func shapeOf(t types.Type) typedesc.Shape {
	switch t := t.(type) {
	case *types.Basic:
		switch {
		case t.Kind() == types.UntypedNil:
			return typedesc.Null
		case t.Info()&types.IsString != 0:
			return typedesc.String
		case t.Info()&types.IsBoolean != 0:
			return typedesc.Boolean
		case t.Info()&types.IsNumeric != 0:
			return typedesc.Number
		}
	case *types.Pointer:
		return typedesc.Union
	case *types.Slice:
		if isByte(t.Elem()) {
			return typedesc.String
		}
		return typedesc.Array
	case *types.Array:
		if t.Len() > maxTupleLen {
			return typedesc.Array
		}
		return typedesc.Tuple
	case *types.Map:
		return typedesc.Object
	case *types.Struct:
		for i := 0; i < t.NumFields(); i++ {
			if isPromoted(t, i) {
				return typedesc.Intersection
			}
		}
		return typedesc.Object
	case *types.Chan:
		return typedesc.Deferred
	case *types.Tuple:
		return typedesc.Tuple
	}
	return typedesc.Any
}

func isByte(t types.Type) bool {
	b, ok := types.Unalias(t).(*types.Basic)
	return ok && b.Kind() == types.Byte
}

func deref(t types.Type) types.Type {
	if p, ok := types.Unalias(t).(*types.Pointer); ok {
		return p.Elem()
	}
	return t
}

// isPromoted reports whether field i of st is an embedded struct whose
// fields are promoted into the JSON object.
func isPromoted(st *types.Struct, i int) bool {
	f := st.Field(i)
	if !f.Embedded() {
		return false
	}
	name, _, skip := jsonTag(st.Tag(i))
	if skip || name != "" {
		return false
	}
	_, ok := deref(f.Type()).Underlying().(*types.Struct)
	return ok
}

func jsonTag(tag string) (name string, opts []string, skip bool) {
	value, ok := reflect.StructTag(tag).Lookup("json")
	if !ok {
		return "", nil, false
	}
	if value == "-" {
		return "", nil, true
	}
	parts := strings.Split(value, ",")
	return parts[0], parts[1:], false
}

func literalValue(val constant.Value) any {
	switch val.Kind() {
	case constant.String:
		return constant.StringVal(val)
	case constant.Bool:
		return constant.BoolVal(val)
	case constant.Int, constant.Float:
		f, _ := constant.Float64Val(val)
		return f
	}
	return nil
}
