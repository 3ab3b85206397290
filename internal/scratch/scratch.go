// Package scratch type-checks collected declaration fragments and inline
// type expressions in a throwaway package.
package scratch

import (
	"context"
	"fmt"
	"go/parser"
	"go/token"
	"go/types"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/apinni/apinni/internal/gotypes"
	"github.com/apinni/apinni/internal/loader"
	"github.com/apinni/apinni/internal/resolver"
	"github.com/apinni/apinni/internal/typedesc"
	"github.com/apinni/apinni/internal/typeindex"
)

// PackagePath is the import path of every scratch package.
const PackagePath = "apinni.local/scratch"

const packageName = "scratch"

// Context is one scratch package. It is discarded with Close.
type Context struct {
	index    *typeindex.Index
	pkg      *loader.Package
	adapter  *gotypes.Adapter
	comments gotypes.Comments
	inline   []string
	errors   []error
	logger   *zap.Logger
}

// Factory returns a resolver.ScratchFactory building contexts over ix.
func Factory(ix *typeindex.Index, logger *zap.Logger) resolver.ScratchFactory {
	return func(ctx context.Context, collected, inline []string) (resolver.Scratch, error) {
		return New(ctx, ix, collected, inline, logger)
	}
}

// New type-checks the collected fragments and one alias per inline
// expression. Type errors are logged and never abort the context; an inline
// expression that does not parse evaluates to nothing.
func New(ctx context.Context, ix *typeindex.Index, collected, inline []string, logger *zap.Logger) (*Context, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c := &Context{
		index:    ix,
		comments: make(gotypes.Comments),
		inline:   make([]string, len(inline)),
		logger:   logger,
	}

	var files []loader.File
	for i, frag := range collected {
		files = append(files, loader.File{
			Name:   fmt.Sprintf("%s/fragment_%d.go", PackagePath, i),
			Source: []byte("package " + packageName + "\n\n" + frag),
		})
	}

	for i, expr := range inline {
		name := typedesc.ScratchPrefix + strconv.Itoa(i)
		src, err := c.inlineSource(name, expr)
		if err != nil {
			logger.Debug("skipping inline expression", zap.String("expr", expr), zap.Error(err))
			continue
		}
		c.inline[i] = name
		files = append(files, loader.File{
			Name:   fmt.Sprintf("%s/inline_%d.go", PackagePath, i),
			Source: []byte(src),
		})
	}

	prog := ix.Program()
	pkg, err := loader.Check(prog.Fset, PackagePath, files, prog.Importer(), func(err error) {
		c.errors = append(c.errors, err)
	})
	if err != nil {
		return nil, fmt.Errorf("scratch: %w", err)
	}
	for _, e := range c.errors {
		logger.Debug("scratch type error", zap.Error(e))
	}

	c.pkg = pkg
	for _, f := range pkg.Files {
		c.comments.AddFile(f)
	}
	c.adapter = gotypes.New(c)
	return c, nil
}

func (c *Context) inlineSource(name, expr string) (string, error) {
	rewritten, imports, err := c.index.RewriteExpr(expr)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString("package " + packageName + "\n\n")
	if len(imports) > 0 {
		names := make([]string, 0, len(imports))
		for n := range imports {
			names = append(names, n)
		}
		sort.Strings(names)
		b.WriteString("import (\n")
		for _, n := range names {
			fmt.Fprintf(&b, "\t%s %q\n", n, imports[n])
		}
		b.WriteString(")\n\n")
	}
	fmt.Fprintf(&b, "type %s = %s\n", name, rewritten)

	if _, err := parser.ParseFile(token.NewFileSet(), "", b.String(), parser.SkipObjectResolution); err != nil {
		return "", err
	}
	return b.String(), nil
}

// Errors returns the type errors reported while checking the context.
func (c *Context) Errors() []error {
	return c.errors
}

// Inline implements resolver.Scratch.
func (c *Context) Inline(index int) (typedesc.Descriptor, typedesc.Node) {
	if index < 0 || index >= len(c.inline) || c.inline[index] == "" || c.pkg == nil || c.pkg.Types == nil {
		return nil, nil
	}
	obj := c.pkg.Types.Scope().Lookup(c.inline[index])
	if obj == nil {
		return nil, nil
	}
	return c.adapter.Describe(obj.Type()), nil
}

// Model implements resolver.Scratch. A name declared more than once and used
// without qualification is an error; an unknown name evaluates to any.
func (c *Context) Model(name string) (typedesc.Descriptor, typedesc.Node, error) {
	d, err := c.index.Resolve(name)
	if err != nil {
		return nil, nil, err
	}
	if d == nil {
		return typedesc.Unknown(name), nil, nil
	}
	if c.pkg != nil && c.pkg.Types != nil {
		if obj := c.pkg.Types.Scope().Lookup(d.Qualified); obj != nil {
			typ, node := c.adapter.DescribeObject(obj)
			return typ, node, nil
		}
	}
	c.logger.Debug("model not collected, using package declaration", zap.String("model", name))
	typ, node := c.index.Adapter().DescribeObject(d.Obj)
	return typ, node, nil
}

// Close implements resolver.Scratch.
func (c *Context) Close() {
	c.pkg = nil
	c.inline = nil
	c.comments = nil
}

// QualifiedName implements gotypes.Universe.
func (c *Context) QualifiedName(obj types.Object) string {
	if c.pkg != nil && obj.Pkg() == c.pkg.Types {
		return obj.Name()
	}
	return c.index.QualifiedName(obj)
}

// Declaration implements gotypes.Universe.
func (c *Context) Declaration(obj types.Object) typedesc.Node {
	if node := c.comments.At(obj.Pos()); node != nil {
		return node
	}
	return c.index.Declaration(obj)
}

// IsLocal implements gotypes.Universe.
func (c *Context) IsLocal(pkg *types.Package) bool {
	return (c.pkg != nil && pkg == c.pkg.Types) || c.index.IsLocal(pkg)
}
