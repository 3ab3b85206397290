// Package engine converts type descriptors into schema nodes.
//
// Conversion is a total function: every descriptor produces a node and
// shapes the engine cannot express degrade to Any. Named types are converted
// once per reference context, stored in the caller's reference table, and
// returned as Ref nodes.
package engine

import (
	"strconv"
	"strings"
	"unicode"

	"go.uber.org/zap"

	"github.com/apinni/apinni/internal/docs"
	"github.com/apinni/apinni/internal/schema"
	"github.com/apinni/apinni/internal/typedesc"
)

// DefaultMaxDepth bounds the depth trace of one conversion.
const DefaultMaxDepth = 100

// Input is one conversion request.
type Input struct {
	// Type is the descriptor to convert.
	Type typedesc.Descriptor
	// Node is the declaration site the descriptor was obtained from.
	Node typedesc.Node
	// Context names the reference table discovered definitions go to.
	Context string
	// Reference is the definition currently being registered, if any.
	Reference string
	// Depth is the trace of contexts entered so far.
	Depth []string
}

// Engine converts descriptors into schema nodes.
type Engine struct {
	MaxDepth int

	refs     *References
	handlers []handler
	logger   *zap.Logger
}

// New creates an engine writing into refs
func New(refs *References, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Engine{
		MaxDepth: DefaultMaxDepth,
		refs:     refs,
		logger:   logger,
	}
	e.handlers = e.dispatchTable()
	return e
}

// References returns the tables the engine writes into.
func (e *Engine) References() *References {
	return e.refs
}

// Convert converts one descriptor.
func (e *Engine) Convert(in Input) *schema.Node {
	if in.Type == nil {
		return schema.Any()
	}
	if in.Context == "" {
		in.Context = DefaultContext
	}
	if len(in.Depth) > e.MaxDepth {
		e.logger.Debug("depth ceiling reached",
			zap.String("context", in.Context),
			zap.String("type", in.Type.Text()),
			zap.Int("depth", len(in.Depth)))
		return schema.Any()
	}

	trace := make([]string, len(in.Depth), len(in.Depth)+1)
	copy(trace, in.Depth)
	in.Depth = append(trace, in.Context)

	if name := e.referenceName(in.Type, in.Reference); name != "" {
		return e.convertReference(in, name)
	}

	for _, h := range e.handlers {
		if h.match(in.Type) {
			return h.resolve(in)
		}
	}

	e.logger.Debug("unsupported type shape", zap.String("type", in.Type.Text()))
	return schema.Any()
}

// referenceName returns the name under which d is registered as a
// definition, or "" when d converts inline.
func (e *Engine) referenceName(d typedesc.Descriptor, inFlight string) string {
	if typedesc.IsLiteral(d) || d.IsBuiltin() {
		return ""
	}
	name := typedesc.NominalName(d)
	if name == "" || name == inFlight || strings.HasPrefix(name, typedesc.ScratchPrefix) {
		return ""
	}
	return name
}

func (e *Engine) convertReference(in Input, name string) *schema.Node {
	table := e.refs.Table(in.Context)

	if args := in.Type.TypeArgs(); len(args) > 0 {
		for _, arg := range args {
			argName := e.referenceName(arg, "")
			if argName == "" || table.Has(argName) {
				continue
			}
			e.register(table, argName, Input{
				Type:      arg,
				Node:      in.Node,
				Context:   in.Context,
				Reference: argName,
				Depth:     in.Depth,
			})
		}
		return e.convertInstance(in, name, table)
	}

	if !table.Has(name) {
		e.register(table, name, Input{
			Type:      in.Type,
			Node:      in.Node,
			Context:   in.Context,
			Reference: name,
			Depth:     in.Depth,
		})
	}
	return schema.Ref(name)
}

// convertInstance expands a generic instantiation inline. An instantiation
// met again inside its own expansion is registered as a definition instead,
// and every mention of it, the outermost included, becomes a Ref.
func (e *Engine) convertInstance(in Input, name string, table *schema.Table) *schema.Node {
	key := in.Context + "\x00" + instanceKey(in.Type)
	if ref, ok := e.refs.instances[key]; ok {
		return schema.Ref(ref)
	}
	if x, ok := e.refs.expanding[key]; ok {
		if x.ref == "" {
			x.ref = instanceName(table, name, in.Type.TypeArgs())
			table.Reserve(x.ref)
			e.logger.Debug("recursive generic instantiation",
				zap.String("type", instanceKey(in.Type)),
				zap.String("ref", x.ref))
		}
		return schema.Ref(x.ref)
	}

	x := &expansion{}
	e.refs.expanding[key] = x
	body := e.Convert(Input{
		Type:      in.Type.Apparent(),
		Node:      in.Node,
		Context:   in.Context,
		Reference: name,
		Depth:     in.Depth,
	})
	delete(e.refs.expanding, key)
	if x.ref == "" {
		return body
	}

	if decl := in.Type.Declaration(); decl != nil {
		docs.Apply(body, decl)
	}
	table.Set(x.ref, body)
	e.refs.instances[key] = x.ref
	return schema.Ref(x.ref)
}

// instanceKey identifies a generic instantiation by its name and the keys of
// its arguments, as in Tree[User].
func instanceKey(d typedesc.Descriptor) string {
	name := typedesc.NominalName(d)
	if name == "" {
		name = d.Text()
	}
	args := d.TypeArgs()
	if len(args) == 0 {
		return name
	}
	keys := make([]string, len(args))
	for i, a := range args {
		keys[i] = instanceKey(a)
	}
	return name + "[" + strings.Join(keys, ",") + "]"
}

// instanceName picks the definition name of a recursive instantiation: the
// generic name when it is free, otherwise the name followed by its argument
// names, as in TreeOfUser.
func instanceName(table *schema.Table, name string, args []typedesc.Descriptor) string {
	if !table.Has(name) {
		return name
	}
	var b strings.Builder
	b.WriteString(name)
	b.WriteString("Of")
	for _, a := range args {
		for _, r := range instanceKey(a) {
			if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' {
				b.WriteRune(r)
			}
		}
	}
	base := b.String()
	candidate := base
	for i := 1; table.Has(candidate); i++ {
		candidate = base + "_" + strconv.Itoa(i)
	}
	return candidate
}

// register reserves name before converting so that self references resolve
// to a Ref instead of recursing.
func (e *Engine) register(table *schema.Table, name string, in Input) {
	table.Reserve(name)
	body := e.Convert(in)
	if decl := in.Type.Declaration(); decl != nil {
		docs.Apply(body, decl)
	}
	table.Set(name, body)
}

func (e *Engine) child(in Input, d typedesc.Descriptor) *schema.Node {
	return e.Convert(Input{
		Type:    d,
		Node:    in.Node,
		Context: in.Context,
		Depth:   in.Depth,
	})
}
