package loader

import (
	"context"
	"fmt"
	"go/token"
	"go/types"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/tools/go/packages"
)

const loadMode = packages.NeedName |
	packages.NeedFiles |
	packages.NeedCompiledGoFiles |
	packages.NeedImports |
	packages.NeedDeps |
	packages.NeedTypes |
	packages.NeedTypesSizes |
	packages.NeedSyntax |
	packages.NeedTypesInfo

// Loader loads packages matching a set of patterns and caches the result
// until Invalidate is called.
type Loader struct {
	dir     string
	exclude []string
	logger  *zap.Logger

	mu    sync.Mutex
	cache map[string]*Program
}

// New creates a loader rooted at dir. exclude holds glob patterns matched
// against import paths and file paths.
func New(dir string, exclude []string, logger *zap.Logger) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{
		dir:     dir,
		exclude: exclude,
		logger:  logger,
		cache:   make(map[string]*Program),
	}
}

// Load loads the packages matching patterns. Package errors are logged and
// the partially checked packages are kept.
func (l *Loader) Load(ctx context.Context, patterns ...string) (*Program, error) {
	key := strings.Join(patterns, "\x00")

	l.mu.Lock()
	defer l.mu.Unlock()

	if prog, ok := l.cache[key]; ok {
		return prog, nil
	}

	fset := token.NewFileSet()
	cfg := &packages.Config{
		Mode:    loadMode,
		Context: ctx,
		Dir:     l.dir,
		Fset:    fset,
		Tests:   false,
	}

	pkgs, err := packages.Load(cfg, patterns...)
	if err != nil {
		return nil, fmt.Errorf("failed to load packages %v: %w", patterns, err)
	}
	if len(pkgs) == 0 {
		return nil, fmt.Errorf("no packages match %v", patterns)
	}

	var roots []*Package
	for _, p := range pkgs {
		for _, e := range p.Errors {
			l.logger.Warn("package error", zap.String("package", p.PkgPath), zap.String("error", e.Error()))
		}
		if p.Types == nil || l.excluded(p.PkgPath) {
			continue
		}
		roots = append(roots, l.convert(p))
	}

	var deps []*types.Package
	packages.Visit(pkgs, nil, func(p *packages.Package) {
		if p.Types != nil {
			deps = append(deps, p.Types)
		}
	})

	prog := NewProgram(fset, roots, deps...)
	l.cache[key] = prog
	l.logger.Debug("packages loaded", zap.Strings("patterns", patterns), zap.Int("packages", len(roots)))
	return prog, nil
}

// Invalidate drops every cached program.
func (l *Loader) Invalidate() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cache = make(map[string]*Program)
}

func (l *Loader) convert(p *packages.Package) *Package {
	pkg := &Package{
		Path:  p.PkgPath,
		Name:  p.Name,
		Fset:  p.Fset,
		Types: p.Types,
		Info:  p.TypesInfo,
	}
	for i, f := range p.Syntax {
		name := p.Fset.File(f.Pos()).Name()
		if i < len(p.CompiledGoFiles) {
			name = p.CompiledGoFiles[i]
		}
		if l.excluded(name) {
			continue
		}
		pkg.Files = append(pkg.Files, f)
		pkg.FileNames = append(pkg.FileNames, name)
	}
	return pkg
}

func (l *Loader) excluded(name string) bool {
	for _, pattern := range l.exclude {
		if ok, _ := filepath.Match(pattern, name); ok {
			return true
		}
		if ok, _ := filepath.Match(pattern, filepath.Base(name)); ok {
			return true
		}
	}
	return false
}
