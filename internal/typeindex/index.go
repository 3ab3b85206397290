// Package typeindex indexes every named declaration of the loaded packages,
// assigns unique qualified names to duplicated names and extracts
// self-contained source fragments of declarations.
package typeindex

import (
	"errors"
	"fmt"
	"go/ast"
	"go/token"
	"go/types"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/apinni/apinni/internal/gotypes"
	"github.com/apinni/apinni/internal/loader"
	"github.com/apinni/apinni/internal/typedesc"
)

// DeclKind distinguishes indexed type and variable declarations.
type DeclKind int

const (
	TypeDecl DeclKind = iota
	VarDecl
)

// Decl is one indexed declaration.
type Decl struct {
	Name      string
	Qualified string
	Kind      DeclKind
	Obj       types.Object
	Pkg       *loader.Package
	File      *ast.File

	gen   *ast.GenDecl
	typ   *ast.TypeSpec
	value *ast.ValueSpec
	ident *ast.Ident
}

// Position returns the file position of the declared name.
func (d *Decl) Position() token.Position {
	return d.Pkg.Fset.Position(d.ident.Pos())
}

func (d *Decl) String() string {
	return d.Pkg.Path + "." + d.Name
}

// AmbiguityError reports a name shared by several declarations that was
// used without qualification.
type AmbiguityError struct {
	Name       string
	Candidates []string
}

func (e *AmbiguityError) Error() string {
	return fmt.Sprintf("ambiguous type name %q: use one of %s", e.Name, strings.Join(e.Candidates, ", "))
}

// IsAmbiguity reports whether err is or wraps an AmbiguityError.
func IsAmbiguity(err error) bool {
	var amb *AmbiguityError
	return errors.As(err, &amb)
}

// Index is the named-type index of one program. It is read-only once built.
type Index struct {
	prog     *loader.Program
	decls    []*Decl
	byName   map[string][]*Decl
	byQual   map[string]*Decl
	byObj    map[types.Object]*Decl
	local    map[*types.Package]*loader.Package
	comments gotypes.Comments
	adapter  *gotypes.Adapter
	logger   *zap.Logger
}

// Build indexes every non-generated, non-test file of the program packages.
func Build(prog *loader.Program, logger *zap.Logger) (*Index, error) {
	if prog == nil {
		return nil, errors.New("typeindex: nil program")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	ix := &Index{
		prog:     prog,
		byName:   make(map[string][]*Decl),
		byQual:   make(map[string]*Decl),
		byObj:    make(map[types.Object]*Decl),
		local:    make(map[*types.Package]*loader.Package),
		comments: make(gotypes.Comments),
		logger:   logger,
	}

	type fileRef struct {
		pkg  *loader.Package
		file *ast.File
		name string
	}
	var files []fileRef
	for _, pkg := range prog.Packages {
		if pkg.Types == nil || pkg.Info == nil {
			continue
		}
		ix.local[pkg.Types] = pkg
		for i, f := range pkg.Files {
			ix.comments.AddFile(f)
			name := pkg.FileNames[i]
			if strings.HasSuffix(name, "_test.go") || ast.IsGenerated(f) {
				continue
			}
			files = append(files, fileRef{pkg: pkg, file: f, name: name})
		}
	}
	sort.SliceStable(files, func(i, j int) bool {
		if files[i].pkg.Path != files[j].pkg.Path {
			return files[i].pkg.Path < files[j].pkg.Path
		}
		return files[i].name < files[j].name
	})

	for _, f := range files {
		ix.indexTypes(f.pkg, f.file)
	}
	for _, f := range files {
		ix.indexVars(f.pkg, f.file)
	}
	ix.qualify()
	ix.adapter = gotypes.New(ix)

	logger.Debug("type index built", zap.Int("declarations", len(ix.decls)), zap.Int("names", len(ix.byName)))
	return ix, nil
}

func (ix *Index) indexTypes(pkg *loader.Package, file *ast.File) {
	for _, decl := range file.Decls {
		gen, ok := decl.(*ast.GenDecl)
		if !ok || gen.Tok != token.TYPE {
			continue
		}
		for _, spec := range gen.Specs {
			ts := spec.(*ast.TypeSpec)
			obj := pkg.Info.Defs[ts.Name]
			if obj == nil || ts.Name.Name == "_" {
				continue
			}
			ix.add(&Decl{
				Name:  ts.Name.Name,
				Kind:  TypeDecl,
				Obj:   obj,
				Pkg:   pkg,
				File:  file,
				gen:   gen,
				typ:   ts,
				ident: ts.Name,
			})
		}
	}
}

// indexVars records package-level variables declared with an indexed type.
func (ix *Index) indexVars(pkg *loader.Package, file *ast.File) {
	for _, decl := range file.Decls {
		gen, ok := decl.(*ast.GenDecl)
		if !ok || gen.Tok != token.VAR {
			continue
		}
		for _, spec := range gen.Specs {
			vs := spec.(*ast.ValueSpec)
			if vs.Type == nil {
				continue
			}
			for _, name := range vs.Names {
				obj := pkg.Info.Defs[name]
				if obj == nil || name.Name == "_" || !ix.refersToIndexed(obj.Type()) {
					continue
				}
				ix.add(&Decl{
					Name:  name.Name,
					Kind:  VarDecl,
					Obj:   obj,
					Pkg:   pkg,
					File:  file,
					gen:   gen,
					value: vs,
					ident: name,
				})
			}
		}
	}
}

func (ix *Index) refersToIndexed(t types.Type) bool {
	for {
		switch x := t.(type) {
		case *types.Pointer:
			t = x.Elem()
			continue
		case *types.Alias:
			_, ok := ix.byObj[x.Obj()]
			return ok
		case *types.Named:
			_, ok := ix.byObj[x.Origin().Obj()]
			return ok
		}
		return false
	}
}

func (ix *Index) add(d *Decl) {
	ix.decls = append(ix.decls, d)
	ix.byName[d.Name] = append(ix.byName[d.Name], d)
	ix.byObj[d.Obj] = d
}

// qualify assigns Name_1…Name_N to names declared more than once, in
// encounter order.
func (ix *Index) qualify() {
	for _, d := range ix.decls {
		d.Qualified = d.Name
	}
	for name, decls := range ix.byName {
		if len(decls) < 2 {
			continue
		}
		for i, d := range decls {
			d.Qualified = name + "_" + strconv.Itoa(i+1)
		}
	}
	for _, d := range ix.decls {
		ix.byQual[d.Qualified] = d
	}
}

// Decls returns every indexed declaration in encounter order.
func (ix *Index) Decls() []*Decl {
	return ix.decls
}

// Program returns the indexed program.
func (ix *Index) Program() *loader.Program {
	return ix.prog
}

// Adapter returns the go/types adapter naming types through the index.
func (ix *Index) Adapter() *gotypes.Adapter {
	return ix.adapter
}

// QualifiedName implements gotypes.Universe.
func (ix *Index) QualifiedName(obj types.Object) string {
	if d, ok := ix.byObj[obj]; ok {
		return d.Qualified
	}
	return obj.Name()
}

// Declaration implements gotypes.Universe.
func (ix *Index) Declaration(obj types.Object) typedesc.Node {
	return ix.comments.At(obj.Pos())
}

// IsLocal implements gotypes.Universe.
func (ix *Index) IsLocal(pkg *types.Package) bool {
	_, ok := ix.local[pkg]
	return ok
}

// Resolve returns the declaration a name denotes. Accepted forms are Name,
// pkg.Name and the qualified Name_N. A bare name declared more than once is
// an AmbiguityError; an unknown name returns nil.
func (ix *Index) Resolve(name string) (*Decl, error) {
	if pkgName, bare, ok := strings.Cut(name, "."); ok {
		var found []*Decl
		for _, d := range ix.byName[bare] {
			if d.Pkg.Name == pkgName || strings.HasSuffix(d.Pkg.Path, "/"+pkgName) || d.Pkg.Path == pkgName {
				found = append(found, d)
			}
		}
		switch len(found) {
		case 0:
			return nil, nil
		case 1:
			return found[0], nil
		}
		return nil, ambiguity(name, found)
	}

	switch decls := ix.byName[name]; len(decls) {
	case 0:
	case 1:
		return decls[0], nil
	default:
		return nil, ambiguity(name, decls)
	}

	if d, ok := ix.byQual[name]; ok {
		return d, nil
	}
	return nil, nil
}

func ambiguity(name string, decls []*Decl) *AmbiguityError {
	err := &AmbiguityError{Name: name}
	for _, d := range decls {
		err.Candidates = append(err.Candidates, fmt.Sprintf("%s (%s)", d.Qualified, d.Position()))
	}
	return err
}

// Resolved is a descriptor and its declaration node.
type Resolved struct {
	Name string
	Type typedesc.Descriptor
	Node typedesc.Node
	Decl *Decl
}

// LookupNode resolves names to descriptors. Unknown names yield a
// placeholder that converts to any; ambiguous names abort the lookup.
func (ix *Index) LookupNode(names []string) ([]Resolved, error) {
	out := make([]Resolved, 0, len(names))
	for _, name := range names {
		d, err := ix.Resolve(name)
		if err != nil {
			return nil, err
		}
		if d == nil {
			ix.logger.Debug("type not found", zap.String("name", name))
			out = append(out, Resolved{Name: name, Type: typedesc.Unknown(name)})
			continue
		}
		typ, node := ix.adapter.DescribeObject(d.Obj)
		out = append(out, Resolved{Name: name, Type: typ, Node: node, Decl: d})
	}
	return out, nil
}
