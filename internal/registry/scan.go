package registry

import (
	"context"
	"go/ast"
	"go/token"
	"go/types"
	"strings"

	"go.uber.org/zap"

	"github.com/apinni/apinni/internal/loader"
	"github.com/apinni/apinni/internal/typeindex"
)

// skippedParams are handler parameters that never carry the request body.
var skippedParams = map[string]bool{
	"context.Context":         true,
	"*net/http.Request":       true,
	"net/http.ResponseWriter": true,
}

// Scan registers every annotated type and method of the indexed program
// into reg. Malformed directives are reported to reg and skipped.
func Scan(ctx context.Context, ix *typeindex.Index, reg *Registry, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &scanner{ix: ix, reg: reg, logger: logger}

	for _, pkg := range ix.Program().Packages {
		if err := ctx.Err(); err != nil {
			return err
		}
		if pkg.Types == nil || pkg.Info == nil {
			continue
		}
		for i, f := range pkg.Files {
			if strings.HasSuffix(pkg.FileNames[i], "_test.go") || ast.IsGenerated(f) {
				continue
			}
			s.scanFile(pkg, f)
		}
	}

	logger.Debug("registry scanned",
		zap.Int("controllers", len(reg.Controllers())),
		zap.Int("methods", len(reg.Methods())),
		zap.Int("diagnostics", len(reg.Diagnostics())))
	return nil
}

type scanner struct {
	ix     *typeindex.Index
	reg    *Registry
	logger *zap.Logger
}

func (s *scanner) scanFile(pkg *loader.Package, f *ast.File) {
	for _, decl := range f.Decls {
		switch d := decl.(type) {
		case *ast.GenDecl:
			if d.Tok != token.TYPE {
				continue
			}
			for _, spec := range d.Specs {
				ts := spec.(*ast.TypeSpec)
				doc := ts.Doc
				if doc == nil && len(d.Specs) == 1 {
					doc = d.Doc
				}
				s.scanType(pkg, ts, doc)
			}
		case *ast.FuncDecl:
			if d.Recv != nil && len(d.Recv.List) == 1 {
				s.scanMethod(pkg, d)
			}
		}
	}
}

func (s *scanner) scanType(pkg *loader.Package, ts *ast.TypeSpec, doc *ast.CommentGroup) {
	directives := directivesOf(doc)
	if len(directives) == 0 {
		return
	}

	c := Controller{Target: pkg.Path + "." + ts.Name.Name}
	for _, d := range directives {
		if err := applyController(&c, d); err != nil {
			s.report(pkg, ts.Pos(), d, err)
		}
	}
	s.reg.RegisterController(c)
}

func (s *scanner) scanMethod(pkg *loader.Package, fn *ast.FuncDecl) {
	directives := directivesOf(fn.Doc)
	if len(directives) == 0 {
		return
	}
	recv := receiverName(fn.Recv.List[0].Type)
	if recv == "" {
		return
	}

	m := Method{Target: pkg.Path + "." + recv, Name: fn.Name.Name}
	for _, d := range directives {
		if err := applyMethod(&m, d); err != nil {
			s.report(pkg, fn.Pos(), d, err)
		}
	}

	if obj, ok := pkg.Info.Defs[fn.Name].(*types.Func); ok {
		s.signatureDefaults(&m, obj)
	}
	s.reg.RegisterMethod(m)
}

// signatureDefaults fills the request and the 200 response of m from the
// handler signature when no directive set them.
func (s *scanner) signatureDefaults(m *Method, fn *types.Func) {
	sig, ok := fn.Type().(*types.Signature)
	if !ok {
		return
	}
	adapter := s.ix.Adapter()
	node := s.ix.Declaration(fn)

	if m.Request == nil {
		var vars []*types.Var
		params := sig.Params()
		for i := 0; i < params.Len(); i++ {
			if !skippedParams[types.TypeString(params.At(i).Type(), nil)] {
				vars = append(vars, params.At(i))
			}
		}
		switch len(vars) {
		case 0:
		case 1:
			m.Request = &TypeRef{Type: adapter.Describe(deref(vars[0].Type())), Node: node}
		default:
			variadic := sig.Variadic() && vars[len(vars)-1] == params.At(params.Len()-1)
			m.Request = &TypeRef{Type: adapter.DescribeTuple(types.NewTuple(vars...), variadic), Node: node}
		}
	}

	if _, ok := m.Responses[200]; !ok {
		results := sig.Results()
		errType := types.Universe.Lookup("error").Type()
		for i := 0; i < results.Len(); i++ {
			t := results.At(i).Type()
			if types.Identical(t, errType) {
				continue
			}
			if m.Responses == nil {
				m.Responses = make(map[int]*TypeRef)
			}
			m.Responses[200] = &TypeRef{Type: adapter.Describe(deref(t)), Node: node}
			break
		}
	}
}

func (s *scanner) report(pkg *loader.Package, pos token.Pos, d Directive, err error) {
	derr := &DirectiveError{
		Pos:       pkg.Fset.Position(pos).String(),
		Directive: d.Name,
		Msg:       err.Error(),
	}
	s.logger.Warn("invalid directive", zap.Error(derr))
	s.reg.Report(derr)
}

func directivesOf(doc *ast.CommentGroup) []Directive {
	if doc == nil {
		return nil
	}
	lines := make([]string, 0, len(doc.List))
	for _, c := range doc.List {
		lines = append(lines, c.Text)
	}
	return ParseDirectives(lines)
}

func receiverName(expr ast.Expr) string {
	for {
		switch x := expr.(type) {
		case *ast.StarExpr:
			expr = x.X
		case *ast.ParenExpr:
			expr = x.X
		case *ast.IndexExpr:
			expr = x.X
		case *ast.IndexListExpr:
			expr = x.X
		case *ast.Ident:
			return x.Name
		default:
			return ""
		}
	}
}

func deref(t types.Type) types.Type {
	if p, ok := t.(*types.Pointer); ok {
		return p.Elem()
	}
	return t
}
