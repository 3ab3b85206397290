package loader

import (
	"context"
	"go/token"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheck(t *testing.T) {
	fset := token.NewFileSet()
	var errs []error
	pkg, err := Check(fset, "example.com/app/models", []File{
		{Name: "models.go", Source: []byte("package models\n\ntype User struct{ ID string }\n\nvar broken int = \"x\"\n")},
	}, nil, func(err error) { errs = append(errs, err) })
	require.NoError(t, err)

	assert.Equal(t, "models", pkg.Name)
	require.NotNil(t, pkg.Types)
	assert.NotNil(t, pkg.Types.Scope().Lookup("User"))
	assert.Len(t, errs, 1)

	src, err := pkg.Source(pkg.Files[0])
	require.NoError(t, err)
	assert.Contains(t, string(src), "type User struct")

	_, err = Check(fset, "example.com/bad", []File{{Name: "bad.go", Source: []byte("package")}}, nil, nil)
	assert.Error(t, err)
}

func TestProgram(t *testing.T) {
	fset := token.NewFileSet()
	models, err := Check(fset, "example.com/app/models", []File{
		{Name: "models.go", Source: []byte("package models\n\ntype User struct{}\n")},
	}, nil, nil)
	require.NoError(t, err)

	prog := NewProgram(fset, []*Package{models})
	assert.Same(t, models, prog.Package("example.com/app/models"))
	assert.Nil(t, prog.Package("example.com/app/other"))

	imported, err := prog.Importer().Import("example.com/app/models")
	require.NoError(t, err)
	assert.Same(t, models.Types, imported)

	strs, err := prog.Importer().Import("strings")
	require.NoError(t, err)
	assert.Equal(t, "strings", strs.Name())
}

func TestLoader_Load(t *testing.T) {
	if testing.Short() {
		t.Skip("runs go list")
	}

	dir := t.TempDir()
	write := func(name, content string) {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	}
	write("go.mod", "module example.com/app\n\ngo 1.21\n")
	write("handlers/handlers.go", "package handlers\n\nimport \"example.com/app/models\"\n\ntype Users struct{ Last models.User }\n")
	write("handlers/handlers_gen.go", "package handlers\n\ntype Generated struct{}\n")
	write("models/models.go", "package models\n\ntype User struct{ ID string }\n")
	write("legacy/legacy.go", "package legacy\n\ntype Old struct{}\n")

	l := New(dir, []string{"*_gen.go", "example.com/app/legacy"}, nil)
	ctx := context.Background()

	prog, err := l.Load(ctx, "./...")
	require.NoError(t, err)

	var paths []string
	for _, p := range prog.Packages {
		paths = append(paths, p.Path)
	}
	assert.Equal(t, []string{"example.com/app/handlers", "example.com/app/models"}, paths)

	handlers := prog.Package("example.com/app/handlers")
	require.NotNil(t, handlers)
	require.Len(t, handlers.FileNames, 1)
	assert.Equal(t, "handlers.go", filepath.Base(handlers.FileNames[0]))

	src, err := handlers.Source(handlers.Files[0])
	require.NoError(t, err)
	assert.Contains(t, string(src), "type Users struct")

	again, err := l.Load(ctx, "./...")
	require.NoError(t, err)
	assert.Same(t, prog, again)

	l.Invalidate()
	fresh, err := l.Load(ctx, "./...")
	require.NoError(t, err)
	assert.NotSame(t, prog, fresh)
}
