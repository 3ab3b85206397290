package gotypes

import (
	"go/ast"
	"go/token"
	"strings"

	"github.com/apinni/apinni/internal/typedesc"
)

// Comments maps the position of a declared name to the comment blocks
// attached to its declaration. Positions are those go/types reports for the
// declared object, so the map can be queried with types.Object.Pos.
type Comments map[token.Pos]typedesc.Comments

// AddFile records every type, field, value and function declaration of f.
func (c Comments) AddFile(f *ast.File) {
	for _, decl := range f.Decls {
		switch d := decl.(type) {
		case *ast.GenDecl:
			single := len(d.Specs) == 1
			for _, spec := range d.Specs {
				switch s := spec.(type) {
				case *ast.TypeSpec:
					doc := s.Doc
					if doc == nil && single {
						doc = d.Doc
					}
					c.add(s.Name.Pos(), doc, s.Comment)
					c.addFields(s.Type)
				case *ast.ValueSpec:
					doc := s.Doc
					if doc == nil && single {
						doc = d.Doc
					}
					for _, name := range s.Names {
						c.add(name.Pos(), doc, s.Comment)
					}
				}
			}
		case *ast.FuncDecl:
			c.add(d.Name.Pos(), d.Doc, nil)
		}
	}
}

// At returns the declaration node recorded at pos, or nil.
func (c Comments) At(pos token.Pos) typedesc.Node {
	if blocks, ok := c[pos]; ok {
		return blocks
	}
	return nil
}

func (c Comments) addFields(expr ast.Expr) {
	ast.Inspect(expr, func(n ast.Node) bool {
		st, ok := n.(*ast.StructType)
		if !ok {
			return true
		}
		for _, field := range st.Fields.List {
			if len(field.Names) == 0 {
				if id := embeddedIdent(field.Type); id != nil {
					c.add(id.Pos(), field.Doc, field.Comment)
				}
				continue
			}
			for _, name := range field.Names {
				c.add(name.Pos(), field.Doc, field.Comment)
			}
		}
		return true
	})
}

func (c Comments) add(pos token.Pos, groups ...*ast.CommentGroup) {
	var blocks typedesc.Comments
	for _, g := range groups {
		if g == nil {
			continue
		}
		if text := strings.TrimSpace(g.Text()); text != "" {
			blocks = append(blocks, text)
		}
	}
	if len(blocks) > 0 {
		c[pos] = blocks
	}
}

func embeddedIdent(expr ast.Expr) *ast.Ident {
	switch e := expr.(type) {
	case *ast.Ident:
		return e
	case *ast.StarExpr:
		return embeddedIdent(e.X)
	case *ast.SelectorExpr:
		return e.Sel
	case *ast.IndexExpr:
		return embeddedIdent(e.X)
	case *ast.IndexListExpr:
		return embeddedIdent(e.X)
	}
	return nil
}
