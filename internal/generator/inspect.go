package generator

import (
	"context"
	"fmt"

	"github.com/apinni/apinni/internal/render"
	"github.com/apinni/apinni/internal/resolver"
	"github.com/apinni/apinni/internal/typeindex"
)

// Inspection is the rendered form of a set of named types.
type Inspection struct {
	Text string
	// Missing lists the names no declaration matched. They render as any.
	Missing []string
	// Known lists every indexed type name.
	Known []string
}

// Inspect renders the declarations of the named types.
func (g *Generator) Inspect(ctx context.Context, names []string) (*Inspection, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	prog, err := g.loader.Load(ctx, g.config.Patterns...)
	if err != nil {
		return nil, fmt.Errorf("load packages: %w", err)
	}
	ix, err := typeindex.Build(prog, g.logger)
	if err != nil {
		return nil, fmt.Errorf("index types: %w", err)
	}
	resolved, err := ix.LookupNode(names)
	if err != nil {
		return nil, err
	}

	out := &Inspection{}
	entries := make([]resolver.Entry, len(resolved))
	for i, r := range resolved {
		if r.Decl == nil {
			out.Missing = append(out.Missing, r.Name)
		}
		entries[i] = resolver.Entry{Name: r.Name, Type: r.Type, Node: r.Node}
	}
	for _, d := range ix.Decls() {
		if d.Kind == typeindex.TypeDecl {
			out.Known = append(out.Known, d.Name)
		}
	}

	s, err := resolver.New(nil, g.logger).GenerateSchema(ctx, entries)
	if err != nil {
		return nil, err
	}
	out.Text = render.Render(s)
	return out, nil
}
