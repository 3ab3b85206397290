// Package resolver converts a batch of named entries into one Schema and
// resolves name collisions between the batch and the definitions it
// references.
package resolver

import (
	"context"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/apinni/apinni/internal/engine"
	"github.com/apinni/apinni/internal/schema"
	"github.com/apinni/apinni/internal/typedesc"
)

// Entry is one top-level definition of a batch. Exactly one of Model, Inline
// or Type is set.
type Entry struct {
	Name string

	// Model is the name of a declaration to look up.
	Model string

	// Inline is a free-form type expression.
	Inline string

	// Type and Node are an already resolved descriptor and its declaration.
	Type typedesc.Descriptor
	Node typedesc.Node
}

func (e Entry) String() string {
	switch {
	case e.Model != "":
		return e.Name + " (model " + e.Model + ")"
	case e.Inline != "":
		return e.Name + " (inline " + e.Inline + ")"
	}
	return e.Name
}

// Scratch evaluates model names and inline expressions in a disposable
// type-checking context.
type Scratch interface {
	// Inline returns the descriptor of a type expression.
	Inline(index int) (typedesc.Descriptor, typedesc.Node)
	// Model returns the descriptor of a named declaration.
	Model(name string) (typedesc.Descriptor, typedesc.Node, error)
	// Close discards the context.
	Close()
}

// ScratchFactory creates a scratch context seeded with the collected
// declaration fragments and the inline expressions of a batch, in order.
type ScratchFactory func(ctx context.Context, collected []string, inline []string) (Scratch, error)

// Resolver builds schemas from entries.
type Resolver struct {
	scratch   ScratchFactory
	collected []string
	logger    *zap.Logger
}

// New creates a resolver. scratch may be nil when every entry carries a
// resolved descriptor.
func New(scratch ScratchFactory, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{scratch: scratch, logger: logger}
}

// StoreCollected replaces the declaration fragments used to seed scratch
// contexts.
func (r *Resolver) StoreCollected(fragments []string) {
	r.collected = append([]string(nil), fragments...)
}

// GenerateSchema converts entries into a Schema. Descriptor entries are
// converted first, then inline and model entries inside one scratch context.
// Only an ambiguous model name aborts the batch.
func (r *Resolver) GenerateSchema(ctx context.Context, entries []Entry) (*schema.Schema, error) {
	out := schema.New()
	refs := engine.NewReferences()
	eng := engine.New(refs, r.logger)

	for _, e := range entries {
		out.Schema.Reserve(e.Name)
	}

	var deferred []Entry
	var inline []string
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if e.Type == nil {
			deferred = append(deferred, e)
			if e.Model == "" && e.Inline != "" {
				inline = append(inline, e.Inline)
			}
			continue
		}
		typ := e.Type
		if e.Node != nil && typ.AliasName() == "" && typ.SymbolName() == "" && typ.Target() == nil {
			typ = typedesc.Nominal(typ, typedesc.ScratchPrefix+"Entry", e.Node)
		}
		out.Schema.Set(e.Name, eng.Convert(engine.Input{
			Type:    typ,
			Node:    e.Node,
			Context: e.Name,
		}))
	}

	if len(deferred) > 0 {
		if err := r.convertDeferred(ctx, eng, out, deferred, inline); err != nil {
			return nil, err
		}
	}

	for _, e := range entries {
		if n, _ := out.Schema.Get(e.Name); n == nil {
			out.Schema.Set(e.Name, schema.Any())
		}
	}

	out.Refs = refs.Merge()
	resolveCollisions(out)
	return out, nil
}

func (r *Resolver) convertDeferred(ctx context.Context, eng *engine.Engine, out *schema.Schema, entries []Entry, inline []string) error {
	if r.scratch == nil {
		r.logger.Warn("no scratch context available, entries degrade to any", zap.Int("entries", len(entries)))
		return nil
	}

	sc, err := r.scratch(ctx, r.collected, inline)
	if err != nil {
		r.logger.Warn("failed to create scratch context", zap.Error(err))
		return nil
	}
	defer sc.Close()

	next := 0
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}

		var (
			typ  typedesc.Descriptor
			node typedesc.Node
		)
		switch {
		case e.Model != "":
			typ, node, err = sc.Model(e.Model)
			if err != nil {
				return fmt.Errorf("resolving %s: %w", e, err)
			}
		case e.Inline != "":
			typ, node = sc.Inline(next)
			next++
		}
		if typ == nil {
			r.logger.Debug("entry has no type", zap.String("entry", e.String()))
			out.Schema.Set(e.Name, schema.Any())
			continue
		}

		out.Schema.Set(e.Name, eng.Convert(engine.Input{
			Type:    typ,
			Node:    node,
			Context: e.Name,
		}))
	}
	return nil
}

// resolveCollisions renames every top-level entry whose name is also a
// definition name to <name>_<n>, with the smallest n free in both tables.
func resolveCollisions(s *schema.Schema) {
	for _, name := range s.Schema.Keys() {
		if !s.Refs.Has(name) {
			continue
		}
		for n := 1; ; n++ {
			candidate := name + "_" + strconv.Itoa(n)
			if s.Refs.Has(candidate) || s.Schema.Has(candidate) {
				continue
			}
			s.Schema.Rename(name, candidate)
			s.MappedReferences[name] = candidate
			break
		}
	}
}
