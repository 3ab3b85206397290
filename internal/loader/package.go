// Package loader loads and type-checks Go packages for the generator.
package loader

import (
	"fmt"
	"go/ast"
	"go/importer"
	"go/parser"
	"go/token"
	"go/types"
	"os"
	"sort"
	"sync"
)

// Package is one type-checked package with its syntax.
type Package struct {
	Path      string
	Name      string
	Fset      *token.FileSet
	Files     []*ast.File
	FileNames []string
	Types     *types.Package
	Info      *types.Info

	mu      sync.Mutex
	sources map[string][]byte
}

// Source returns the content of file, reading it from disk on first use
// when the package was not built from memory.
func (p *Package) Source(file *ast.File) ([]byte, error) {
	name := p.Fset.File(file.Pos()).Name()

	p.mu.Lock()
	defer p.mu.Unlock()

	if src, ok := p.sources[name]; ok {
		return src, nil
	}
	src, err := os.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", name, err)
	}
	if p.sources == nil {
		p.sources = make(map[string][]byte)
	}
	p.sources[name] = src
	return src, nil
}

// NewInfo returns a types.Info recording everything the index and the
// adapter need.
func NewInfo() *types.Info {
	return &types.Info{
		Types: make(map[ast.Expr]types.TypeAndValue),
		Defs:  make(map[*ast.Ident]types.Object),
		Uses:  make(map[*ast.Ident]types.Object),
	}
}

// File is one in-memory source file.
type File struct {
	Name   string
	Source []byte
}

// Check parses and type-checks in-memory files as the package path. Type
// errors are reported to onError and never abort the check; the returned
// error is non-nil only when a file cannot be parsed.
func Check(fset *token.FileSet, path string, files []File, imp types.Importer, onError func(error)) (*Package, error) {
	pkg := &Package{
		Path:    path,
		Fset:    fset,
		Info:    NewInfo(),
		sources: make(map[string][]byte, len(files)),
	}

	for _, f := range files {
		parsed, err := parser.ParseFile(fset, f.Name, f.Source, parser.ParseComments)
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", f.Name, err)
		}
		pkg.Files = append(pkg.Files, parsed)
		pkg.FileNames = append(pkg.FileNames, f.Name)
		pkg.sources[f.Name] = f.Source
	}
	if len(pkg.Files) > 0 {
		pkg.Name = pkg.Files[0].Name.Name
	}

	if imp == nil {
		imp = importer.ForCompiler(fset, "source", nil)
	}
	conf := types.Config{
		Importer: imp,
		Error: func(err error) {
			if onError != nil {
				onError(err)
			}
		},
	}
	// The first type error is also returned; it is already reported.
	pkg.Types, _ = conf.Check(path, fset, pkg.Files, pkg.Info)
	return pkg, nil
}

// Program is the result of one load: the requested packages and every
// package reachable from them.
type Program struct {
	Fset     *token.FileSet
	Packages []*Package

	reachable map[string]*types.Package
	fallback  types.Importer
}

// NewProgram creates a program over roots. deps lists additional packages
// that can be imported but are not indexed.
func NewProgram(fset *token.FileSet, roots []*Package, deps ...*types.Package) *Program {
	sort.Slice(roots, func(i, j int) bool { return roots[i].Path < roots[j].Path })

	prog := &Program{
		Fset:      fset,
		Packages:  roots,
		reachable: make(map[string]*types.Package),
	}
	for _, d := range deps {
		if d != nil {
			prog.reachable[d.Path()] = d
		}
	}
	for _, p := range roots {
		if p.Types != nil {
			prog.addReachable(p.Types)
		}
	}
	return prog
}

func (p *Program) addReachable(pkg *types.Package) {
	if _, ok := p.reachable[pkg.Path()]; ok {
		return
	}
	p.reachable[pkg.Path()] = pkg
	for _, imp := range pkg.Imports() {
		p.addReachable(imp)
	}
}

// Package returns the root package with the given import path.
func (p *Program) Package(path string) *Package {
	for _, pkg := range p.Packages {
		if pkg.Path == path {
			return pkg
		}
	}
	return nil
}

// Importer resolves imports against the loaded packages first and falls
// back to type-checking from source.
func (p *Program) Importer() types.Importer {
	return importerFunc(func(path string) (*types.Package, error) {
		if pkg, ok := p.reachable[path]; ok {
			return pkg, nil
		}
		if p.fallback == nil {
			p.fallback = importer.ForCompiler(p.Fset, "source", nil)
		}
		pkg, err := p.fallback.Import(path)
		if err != nil {
			return nil, err
		}
		p.reachable[path] = pkg
		return pkg, nil
	})
}

type importerFunc func(path string) (*types.Package, error)

func (f importerFunc) Import(path string) (*types.Package, error) { return f(path) }
