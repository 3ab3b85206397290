package commands

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/apinni/apinni/internal/cli/config"
	"github.com/apinni/apinni/internal/generator"
	"github.com/apinni/apinni/internal/loader"
	"github.com/apinni/apinni/internal/loader/loadertest"
)

const handlers = `package handlers

import "context"

type User struct {
	ID string ` + "`json:\"id\"`" + `
}

//apinni:controller /users
type Users struct{}

//apinni:endpoint GET /:id
func (u *Users) Get(ctx context.Context, id string) (*User, error) {
	return nil, nil
}

//apinni:controller /admin
//apinni:domain admin
type Admin struct{}

//apinni:endpoint DELETE /users/:id
func (a *Admin) Remove(ctx context.Context, id string) error {
	return nil
}
`

type programLoader struct {
	prog *loader.Program
}

func (l programLoader) Load(ctx context.Context, patterns ...string) (*loader.Program, error) {
	return l.prog, nil
}

func stubPackages(t *testing.T) {
	t.Helper()
	prog := loadertest.Program(t, map[string]string{"example.com/app/handlers/handlers.go": handlers})
	prev := newLoader
	newLoader = func(string, []string, *zap.Logger) generator.ProgramLoader {
		return programLoader{prog: prog}
	}
	t.Cleanup(func() { newLoader = prev })
}

func run(t *testing.T, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := NewRootCommand()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(append(args, "--no-color"))
	err = cmd.ExecuteContext(context.Background())
	return out.String(), errOut.String(), err
}

func TestNewRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	assert.Equal(t, "apinni", cmd.Use)
	assert.NotEmpty(t, cmd.Long)

	var names []string
	for _, c := range cmd.Commands() {
		names = append(names, c.Name())
	}
	for _, want := range []string{"version", "init", "generate", "watch", "check", "inspect", "completion"} {
		assert.Contains(t, names, want)
	}
}

func TestVersionCommand(t *testing.T) {
	prev := Version
	Version = "1.2.3"
	t.Cleanup(func() { Version = prev })

	out, _, err := run(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "Apinni version: 1.2.3\n")
	assert.Contains(t, out, "Go version:")
}

func TestGenerateCommand(t *testing.T) {
	stubPackages(t)
	dir := t.TempDir()

	out, stderr, err := run(t, "generate", "--dir", dir, "--output", "types", "--openapi")
	require.NoError(t, err, stderr)
	assert.Contains(t, out, "DOMAIN")
	assert.Contains(t, out, "api-types.d.ts, api-openapi.json")
	assert.Contains(t, out, "Wrote 4 file(s)")
	assert.FileExists(t, filepath.Join(dir, "types", "api-types.d.ts"))
	assert.FileExists(t, filepath.Join(dir, "types", "admin-openapi.json"))

	out, _, err = run(t, "generate", "--dir", dir, "--output", "types", "--openapi")
	require.NoError(t, err)
	assert.Contains(t, out, "Everything up to date")
}

func TestGenerateCommand_Filter(t *testing.T) {
	stubPackages(t)
	dir := t.TempDir()

	_, _, err := run(t, "generate", "--dir", dir, "--filter", `domain == "admin"`)
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(dir, "admin-types.d.ts"))
	assert.NoFileExists(t, filepath.Join(dir, "api-types.d.ts"))

	_, _, err = run(t, "generate", "--dir", dir, "--filter", "method +")
	assert.Error(t, err)
}

func TestGenerateCommand_ConfigError(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "apinni.yaml"), []byte("cache:\n  driver: mongo\n"), 0644))

	_, stderr, err := run(t, "generate", "--dir", dir)
	require.Error(t, err)
	assert.Contains(t, stderr, "CONFIGURATION ERROR")
	assert.Contains(t, stderr, "apinni init")
}

func TestCheckCommand(t *testing.T) {
	stubPackages(t)
	dir := t.TempDir()

	_, _, err := run(t, "generate", "--dir", dir, "--no-cache")
	require.NoError(t, err)

	out, _, err := run(t, "check", "--dir", dir, "--no-cache")
	require.NoError(t, err)
	assert.Contains(t, out, "up to date")

	typesFile := filepath.Join(dir, "api-types.d.ts")
	require.NoError(t, os.WriteFile(typesFile, []byte("// stale\n"), 0644))
	require.NoError(t, os.Remove(filepath.Join(dir, "admin-types.d.ts")))

	out, stderr, err := run(t, "check", "--dir", dir, "--no-cache")
	assert.ErrorIs(t, err, generator.ErrStale)
	assert.Contains(t, out, "--- "+typesFile+"\n")
	assert.Contains(t, out, "-// stale\n")
	assert.Contains(t, out, "missing "+filepath.Join(dir, "admin-types.d.ts"))
	assert.Contains(t, stderr, "OUT OF DATE: 2 generated file(s) differ")
}

func TestInspectCommand(t *testing.T) {
	stubPackages(t)

	out, stderr, err := run(t, "inspect", "--dir", t.TempDir(), "User", "Usr")
	require.NoError(t, err)
	assert.Contains(t, out, "export type User = {")
	assert.Contains(t, stderr, "TYPE NOT FOUND: Usr")
	assert.Contains(t, stderr, "Did you mean: User")

	_, _, err = run(t, "inspect")
	assert.Error(t, err)
}

func TestInitCommand(t *testing.T) {
	dir := t.TempDir()

	out, _, err := run(t, "init", "--yes", "--dir", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "Created "+filepath.Join(dir, config.FileName))

	cfg, err := config.Load(dir, "")
	require.NoError(t, err)
	assert.Equal(t, config.Default().Cache, cfg.Cache)
	assert.Equal(t, "api", cfg.DefaultDomain)

	_, _, err = run(t, "init", "--yes", "--dir", dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")

	_, _, err = run(t, "init", "--yes", "--force", "--dir", dir)
	assert.NoError(t, err)
}

func TestCompletionCommand(t *testing.T) {
	out, _, err := run(t, "completion", "bash")
	require.NoError(t, err)
	assert.Contains(t, out, "apinni")
}

func TestReloadingBuilder(t *testing.T) {
	stubPackages(t)
	dir := t.TempDir()

	cfg, err := config.Load(dir, "")
	require.NoError(t, err)
	var stderr bytes.Buffer
	env := &environment{config: cfg, logger: zap.NewNop(), noColor: true, stdout: &bytes.Buffer{}, stderr: &stderr}

	b, err := newReloadingBuilder(env, func(*config.Config) error { return nil })
	require.NoError(t, err)
	first := b.current()

	res, err := b.Run(context.Background())
	require.NoError(t, err)
	assert.Len(t, res.Written, 2)

	require.NoError(t, os.WriteFile(filepath.Join(dir, config.FileName), []byte("openapi: true\n"), 0644))
	b.reload()
	assert.NotSame(t, first, b.current())
	assert.True(t, b.current().Config().OpenAPI)

	require.NoError(t, os.WriteFile(filepath.Join(dir, config.FileName), []byte("cache:\n  driver: mongo\n"), 0644))
	second := b.current()
	b.reload()
	assert.Same(t, second, b.current())
	assert.Contains(t, stderr.String(), "CONFIGURATION ERROR")
}
