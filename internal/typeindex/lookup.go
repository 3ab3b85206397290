package typeindex

import (
	"fmt"
	"go/ast"
	"go/constant"
	"go/parser"
	"go/token"
	"go/types"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// EnumPrefix starts the names of re-emitted enum constants.
const EnumPrefix = "_apinniEnum_"

var identToken = regexp.MustCompile(`[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?`)

// Tokens returns the identifiers and qualified identifiers referenced by a
// type expression. Struct field names are not references.
func Tokens(expr string) []string {
	parsed, err := parser.ParseExpr(expr)
	if err != nil {
		return identToken.FindAllString(expr, -1)
	}
	var out []string
	var visit func(n ast.Node) bool
	visit = func(n ast.Node) bool {
		switch x := n.(type) {
		case *ast.Field:
			ast.Inspect(x.Type, visit)
			return false
		case *ast.SelectorExpr:
			if id, ok := x.X.(*ast.Ident); ok {
				out = append(out, id.Name+"."+x.Sel.Name)
				return false
			}
		case *ast.Ident:
			out = append(out, x.Name)
		}
		return true
	}
	ast.Inspect(parsed, visit)
	return out
}

// Lookup returns self-contained source fragments for every declaration the
// expressions reference, followed by everything those declarations reference
// in turn. Each declaration is emitted once, under its qualified name.
func (ix *Index) Lookup(exprs []string) ([]string, error) {
	var queue []*Decl
	seen := make(map[*Decl]bool)
	enqueue := func(d *Decl) {
		if d != nil && !seen[d] {
			seen[d] = true
			queue = append(queue, d)
		}
	}

	for _, expr := range exprs {
		for _, tok := range Tokens(expr) {
			d, err := ix.Resolve(tok)
			if err != nil {
				return nil, err
			}
			enqueue(d)
		}
	}

	var fragments []string
	for len(queue) > 0 {
		d := queue[0]
		queue = queue[1:]

		frag, deps, err := ix.fragment(d)
		if err != nil {
			ix.logger.Warn("failed to extract declaration", zap.String("decl", d.String()), zap.Error(err))
			continue
		}
		fragments = append(fragments, frag)
		for _, dep := range deps {
			enqueue(dep)
		}
	}
	return fragments, nil
}

// RewriteExpr rewrites the indexed names of a type expression to their
// qualified form and returns the imports its remaining selectors need,
// keyed by package name.
func (ix *Index) RewriteExpr(expr string) (string, map[string]string, error) {
	parsed, err := parser.ParseExpr(expr)
	if err != nil {
		return "", nil, fmt.Errorf("invalid type expression %q: %w", expr, err)
	}

	var edits []edit
	imports := make(map[string]string)
	var firstErr error

	var visit func(n ast.Node) bool
	visit = func(n ast.Node) bool {
		switch x := n.(type) {
		case *ast.Field:
			ast.Inspect(x.Type, visit)
			return false
		case *ast.SelectorExpr:
			id, ok := x.X.(*ast.Ident)
			if !ok {
				return true
			}
			d, err := ix.Resolve(id.Name + "." + x.Sel.Name)
			if err != nil && firstErr == nil {
				firstErr = err
			}
			if d != nil {
				edits = append(edits, edit{int(x.Pos()) - 1, int(x.End()) - 1, d.Qualified})
			} else if path := ix.importPath(id.Name); path != "" {
				imports[id.Name] = path
			}
			return false
		case *ast.Ident:
			d, err := ix.Resolve(x.Name)
			if err != nil && firstErr == nil {
				firstErr = err
			}
			if d != nil && d.Qualified != x.Name {
				edits = append(edits, edit{int(x.Pos()) - 1, int(x.End()) - 1, d.Qualified})
			}
		}
		return true
	}
	ast.Inspect(parsed, visit)

	if firstErr != nil {
		return "", nil, firstErr
	}
	return applyEdits([]byte(expr), 0, edits), imports, nil
}

// importPath guesses the import path of a package referenced by name from
// the imports of the loaded packages.
func (ix *Index) importPath(name string) string {
	var candidates []string
	for _, pkg := range ix.prog.Packages {
		if pkg.Types == nil {
			continue
		}
		if pkg.Types.Name() == name {
			candidates = append(candidates, pkg.Path)
		}
		for _, imp := range pkg.Types.Imports() {
			if imp.Name() == name {
				candidates = append(candidates, imp.Path())
			}
		}
	}
	if len(candidates) == 0 {
		return wellKnownImports[name]
	}
	sort.Strings(candidates)
	return candidates[0]
}

var wellKnownImports = map[string]string{
	"time":    "time",
	"json":    "encoding/json",
	"big":     "math/big",
	"netip":   "net/netip",
	"url":     "net/url",
	"context": "context",
}

type edit struct {
	start, end int
	text       string
}

func applyEdits(src []byte, base int, edits []edit) string {
	sort.Slice(edits, func(i, j int) bool { return edits[i].start < edits[j].start })
	var b strings.Builder
	pos := base
	for _, e := range edits {
		if e.start < pos {
			continue
		}
		b.Write(src[pos-base : e.start-base])
		b.WriteString(e.text)
		pos = e.end
	}
	b.Write(src[pos-base:])
	return b.String()
}

// fragment renders d as a standalone declaration of the scratch package.
func (ix *Index) fragment(d *Decl) (string, []*Decl, error) {
	src, err := d.Pkg.Source(d.File)
	if err != nil {
		return "", nil, err
	}
	tf := d.Pkg.Fset.File(d.File.Pos())
	off := func(p token.Pos) int { return tf.Offset(p) }

	var (
		start, end int
		roots      []ast.Node
		doc        *ast.CommentGroup
	)
	switch d.Kind {
	case TypeDecl:
		start, end = off(d.typ.Pos()), off(d.typ.End())
		if d.typ.TypeParams != nil {
			roots = append(roots, d.typ.TypeParams)
		}
		roots = append(roots, d.typ.Type)
		doc = d.typ.Doc
	case VarDecl:
		start, end = off(d.value.Type.Pos()), off(d.value.Type.End())
		roots = append(roots, d.value.Type)
		doc = d.value.Doc
	}
	if doc == nil && len(d.gen.Specs) == 1 {
		doc = d.gen.Doc
	}

	imports := make(map[string]string)
	var deps []*Decl
	var edits []edit
	if d.Kind == TypeDecl {
		edits = append(edits, edit{off(d.ident.Pos()), off(d.ident.End()), d.Qualified})
	}

	info := d.Pkg.Info
	var visit func(n ast.Node) bool
	visit = func(n ast.Node) bool {
		switch x := n.(type) {
		case *ast.SelectorExpr:
			id, ok := x.X.(*ast.Ident)
			if !ok {
				return true
			}
			pn, ok := info.Uses[id].(*types.PkgName)
			if !ok {
				return true
			}
			if ref, ok := ix.byObj[info.Uses[x.Sel]]; ok {
				edits = append(edits, edit{off(x.Pos()), off(x.End()), ref.Qualified})
				deps = append(deps, ref)
			} else {
				imports[id.Name] = pn.Imported().Path()
			}
			return false
		case *ast.Ident:
			obj := info.Uses[x]
			if obj == nil {
				return true
			}
			if ref, ok := ix.byObj[obj]; ok {
				if ref.Qualified != x.Name {
					edits = append(edits, edit{off(x.Pos()), off(x.End()), ref.Qualified})
				}
				if ref != d {
					deps = append(deps, ref)
				}
				return true
			}
			if obj.Pkg() == d.Pkg.Types && obj.Parent() == d.Pkg.Types.Scope() && obj.Exported() {
				edits = append(edits, edit{off(x.Pos()), off(x.End()), d.Pkg.Name + "." + x.Name})
				imports[d.Pkg.Name] = d.Pkg.Path
			}
		}
		return true
	}
	for _, root := range roots {
		ast.Inspect(root, visit)
	}

	var b strings.Builder
	if len(imports) > 0 {
		names := make([]string, 0, len(imports))
		for name := range imports {
			names = append(names, name)
		}
		sort.Strings(names)
		b.WriteString("import (\n")
		for _, name := range names {
			fmt.Fprintf(&b, "\t%s %q\n", name, imports[name])
		}
		b.WriteString(")\n\n")
	}
	if doc != nil {
		b.Write(src[off(doc.Pos()):off(doc.End())])
		b.WriteString("\n")
	}

	body := applyEdits(src[start:end], start, edits)
	switch d.Kind {
	case TypeDecl:
		b.WriteString("type " + body + "\n")
		b.WriteString(ix.enumConstants(d))
		b.WriteString(marshalerStubs(d))
	case VarDecl:
		b.WriteString("var " + d.Qualified + " " + body + "\n")
	}
	return b.String(), deps, nil
}

// enumConstants re-emits the constants of an enum-like type under private
// names so the scratch package sees the same members.
func (ix *Index) enumConstants(d *Decl) string {
	named, ok := d.Obj.Type().(*types.Named)
	if !ok {
		return ""
	}
	if _, basic := named.Underlying().(*types.Basic); !basic {
		return ""
	}

	scope := d.Pkg.Types.Scope()
	var consts []*types.Const
	for _, name := range scope.Names() {
		if c, ok := scope.Lookup(name).(*types.Const); ok && types.Identical(c.Type(), named) {
			consts = append(consts, c)
		}
	}
	if len(consts) == 0 {
		return ""
	}
	sort.Slice(consts, func(i, j int) bool { return consts[i].Pos() < consts[j].Pos() })

	var b strings.Builder
	b.WriteString("\nconst (\n")
	for i, c := range consts {
		fmt.Fprintf(&b, "\t%s%s_%d %s = %s\n", EnumPrefix, d.Qualified, i, d.Qualified, constantText(c.Val()))
	}
	b.WriteString(")\n")
	return b.String()
}

// marshalerMethods are the methods that change how a type encodes.
var marshalerMethods = map[string]bool{
	"MarshalJSON": true,
	"MarshalText": true,
}

// marshalerStubs re-declares the marshaling methods of d with empty bodies so
// the scratch package encodes the type the same way its package does.
func marshalerStubs(d *Decl) string {
	tn, ok := d.Obj.(*types.TypeName)
	if !ok || tn.IsAlias() {
		return ""
	}
	named, ok := tn.Type().(*types.Named)
	if !ok || types.IsInterface(named) {
		return ""
	}

	recv := d.Qualified
	if n := named.TypeParams().Len(); n > 0 {
		blanks := make([]string, n)
		for i := range blanks {
			blanks[i] = "_"
		}
		recv += "[" + strings.Join(blanks, ", ") + "]"
	}

	var b strings.Builder
	for i := 0; i < named.NumMethods(); i++ {
		m := named.Method(i)
		if !marshalerMethods[m.Name()] {
			continue
		}
		sig := m.Type().(*types.Signature)
		if sig.Params().Len() != 0 || sig.Results().Len() != 2 {
			continue
		}
		r := recv
		if _, ptr := sig.Recv().Type().(*types.Pointer); ptr {
			r = "*" + r
		}
		fmt.Fprintf(&b, "\nfunc (%s) %s() ([]byte, error) { return nil, nil }\n", r, m.Name())
	}
	return b.String()
}

func constantText(v constant.Value) string {
	if v.Kind() == constant.Float {
		f, _ := constant.Float64Val(v)
		return strconv.FormatFloat(f, 'g', -1, 64)
	}
	return v.ExactString()
}
