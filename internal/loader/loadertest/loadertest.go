// Package loadertest type-checks in-memory packages for tests.
package loadertest

import (
	"fmt"
	"go/importer"
	"go/token"
	"go/types"
	"path"
	"sort"
	"strings"
	"testing"

	"github.com/apinni/apinni/internal/loader"
)

// Program type-checks files keyed by "<import path>/<file name>" and returns
// a program over every package. Packages may import each other and the
// standard library. Type errors fail the test.
func Program(t testing.TB, files map[string]string) *loader.Program {
	t.Helper()

	byPkg := make(map[string][]loader.File)
	for name, src := range files {
		dir := path.Dir(name)
		byPkg[dir] = append(byPkg[dir], loader.File{Name: name, Source: []byte(src)})
	}
	for _, fs := range byPkg {
		sort.Slice(fs, func(i, j int) bool { return fs[i].Name < fs[j].Name })
	}

	b := &builder{
		t:       t,
		fset:    token.NewFileSet(),
		sources: byPkg,
		checked: make(map[string]*loader.Package),
	}
	b.std = importer.ForCompiler(b.fset, "source", nil)

	paths := make([]string, 0, len(byPkg))
	for p := range byPkg {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	var roots []*loader.Package
	for _, p := range paths {
		pkg, err := b.check(p)
		if err != nil {
			t.Fatalf("loadertest: %v", err)
		}
		roots = append(roots, pkg)
	}
	return loader.NewProgram(b.fset, roots)
}

type builder struct {
	t       testing.TB
	fset    *token.FileSet
	sources map[string][]loader.File
	checked map[string]*loader.Package
	std     types.Importer
}

func (b *builder) Import(p string) (*types.Package, error) {
	if _, ok := b.sources[p]; ok {
		pkg, err := b.check(p)
		if err != nil {
			return nil, err
		}
		return pkg.Types, nil
	}
	return b.std.Import(p)
}

func (b *builder) check(p string) (*loader.Package, error) {
	if pkg, ok := b.checked[p]; ok {
		return pkg, nil
	}
	var errs []string
	pkg, err := loader.Check(b.fset, p, b.sources[p], b, func(err error) {
		errs = append(errs, err.Error())
	})
	if err != nil {
		return nil, err
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("type errors in %s:\n%s", p, strings.Join(errs, "\n"))
	}
	b.checked[p] = pkg
	return pkg, nil
}
