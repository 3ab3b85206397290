// Package generator runs generation passes: it loads the annotated
// packages, resolves the types of every endpoint and writes one TypeScript
// declaration file per domain.
package generator

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/apinni/apinni/internal/cache"
	"github.com/apinni/apinni/internal/loader"
	"github.com/apinni/apinni/internal/openapi"
	"github.com/apinni/apinni/internal/registry"
	"github.com/apinni/apinni/internal/render"
	"github.com/apinni/apinni/internal/resolver"
	"github.com/apinni/apinni/internal/schema"
	"github.com/apinni/apinni/internal/scratch"
	"github.com/apinni/apinni/internal/typeindex"
)

// Config holds the settings of a generator.
type Config struct {
	Dir           string        `json:"dir"`
	Patterns      []string      `json:"patterns"`
	Exclude       []string      `json:"exclude"`
	Output        string        `json:"output"`
	SchemaFiles   bool          `json:"schema_files"`
	OpenAPI       bool          `json:"openapi"`
	Filter        string        `json:"filter"`
	DefaultDomain string        `json:"default_domain"`
	CacheTTL      time.Duration `json:"-"`
}

// ProgramLoader loads the packages matching a set of patterns.
type ProgramLoader interface {
	Load(ctx context.Context, patterns ...string) (*loader.Program, error)
}

// Option configures a Generator.
type Option func(*Generator)

// WithCache stores pass outputs in c.
func WithCache(c cache.Cache) Option {
	return func(g *Generator) { g.cache = c }
}

// WithLoader replaces the package loader.
func WithLoader(l ProgramLoader) Option {
	return func(g *Generator) { g.loader = l }
}

// WithVersion sets the tool version mixed into pass fingerprints.
func WithVersion(v string) Option {
	return func(g *Generator) { g.version = v }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(g *Generator) { g.logger = l }
}

// WithOpenAPI sets the metadata of generated OpenAPI documents.
func WithOpenAPI(c openapi.Config) Option {
	return func(g *Generator) { g.openapi = c }
}

// File is one generated output file. Name is relative to the output
// directory.
type File struct {
	Name    string `json:"name"`
	Content string `json:"content"`
}

// DomainOutput is the generated output of one domain.
type DomainOutput struct {
	Domain    string         `json:"domain"`
	Endpoints []EndpointData `json:"endpoints"`
	// Schema is only set on passes that were not served from the cache.
	Schema     *schema.Schema  `json:"-"`
	Types      string          `json:"types"`
	SchemaJSON json.RawMessage `json:"schemaJSON"`
	Files      []File          `json:"files"`
}

// Result describes one pass.
type Result struct {
	PassID      uuid.UUID
	Fingerprint string
	Cached      bool
	Domains     []*DomainOutput
	Written     []string
	Diagnostics []error
	Elapsed     time.Duration
}

// Domain returns the output of domain, or nil.
func (r *Result) Domain(domain string) *DomainOutput {
	for _, d := range r.Domains {
		if d.Domain == domain {
			return d
		}
	}
	return nil
}

// Generator runs generation passes. Passes are serialized.
type Generator struct {
	mu      sync.Mutex
	config  Config
	loader  ProgramLoader
	cache   cache.Cache
	filter  *Filter
	version string
	openapi openapi.Config
	logger  *zap.Logger
}

// New creates a generator.
func New(config Config, opts ...Option) (*Generator, error) {
	if len(config.Patterns) == 0 {
		config.Patterns = []string{"./..."}
	}
	if config.Output == "" {
		config.Output = "."
	}
	if config.DefaultDomain == "" {
		config.DefaultDomain = registry.DefaultDomain
	}

	g := &Generator{config: config, version: "dev"}
	for _, opt := range opts {
		opt(g)
	}
	if g.logger == nil {
		g.logger = zap.NewNop()
	}
	if g.loader == nil {
		g.loader = loader.New(config.Dir, config.Exclude, g.logger)
	}

	filter, err := CompileFilter(config.Filter)
	if err != nil {
		return nil, err
	}
	g.filter = filter
	return g, nil
}

// Config returns the effective configuration.
func (g *Generator) Config() Config {
	return g.config
}

// Invalidate drops cached packages of the loader, if it keeps any.
func (g *Generator) Invalidate() {
	if inv, ok := g.loader.(interface{ Invalidate() }); ok {
		inv.Invalidate()
	}
}

// Build runs one pass without writing files.
func (g *Generator) Build(ctx context.Context) (*Result, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.build(ctx)
}

// Run runs one pass and writes every output file that differs from the
// file on disk. Nothing is written when any domain fails.
func (g *Generator) Run(ctx context.Context) (*Result, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	res, err := g.build(ctx)
	if err != nil {
		return nil, err
	}
	for _, d := range res.Domains {
		for _, f := range d.Files {
			path := filepath.Join(g.config.Output, f.Name)
			written, err := writeIfChanged(path, []byte(f.Content))
			if err != nil {
				return res, err
			}
			if written {
				res.Written = append(res.Written, path)
				g.logger.Debug("wrote file", zap.String("file", path))
			}
		}
	}
	return res, nil
}

func (g *Generator) build(ctx context.Context) (*Result, error) {
	start := time.Now()
	res := &Result{PassID: uuid.New()}
	logger := g.logger.With(zap.String("pass", res.PassID.String()))

	prog, err := g.loader.Load(ctx, g.config.Patterns...)
	if err != nil {
		return nil, fmt.Errorf("load packages: %w", err)
	}

	res.Fingerprint = g.fingerprint(prog)
	if domains, ok := g.cached(ctx, res.Fingerprint, logger); ok {
		res.Cached = true
		res.Domains = domains
		res.Elapsed = time.Since(start)
		logger.Info("pass served from cache", zap.Duration("elapsed", res.Elapsed))
		return res, nil
	}

	ix, err := typeindex.Build(prog, logger)
	if err != nil {
		return nil, fmt.Errorf("index types: %w", err)
	}

	reg := registry.New()
	if err := registry.Scan(ctx, ix, reg, logger); err != nil {
		return nil, err
	}
	dropped := reg.FilterEnabled()
	endpoints := reg.Prepared()
	res.Diagnostics = reg.Diagnostics()
	logger.Debug("endpoints prepared", zap.Int("endpoints", len(endpoints)), zap.Int("dropped", dropped))

	for i := range endpoints {
		if endpoints[i].Query == nil && len(endpoints[i].QueryParams) > 0 {
			endpoints[i].Query = &registry.TypeRef{Inline: QueryParamsExpr(endpoints[i].QueryParams)}
		}
	}

	collected, err := ix.Lookup(expressions(endpoints))
	if err != nil {
		return nil, fmt.Errorf("resolve types: %w", err)
	}
	rs := resolver.New(scratch.Factory(ix, logger), logger)
	rs.StoreCollected(collected)

	domains, err := partition(endpoints, g.config.DefaultDomain, g.filter)
	if err != nil {
		return nil, err
	}
	for _, d := range domains {
		out, err := g.buildDomain(ctx, rs, d)
		if err != nil {
			return nil, fmt.Errorf("domain %s: %w", d.domain, err)
		}
		res.Domains = append(res.Domains, out)
		logger.Debug("domain generated", zap.String("domain", d.domain), zap.Int("endpoints", len(d.endpoints)))
	}

	g.store(ctx, res.Fingerprint, res.Domains, logger)
	res.Elapsed = time.Since(start)
	logger.Info("pass complete", zap.Int("domains", len(res.Domains)), zap.Duration("elapsed", res.Elapsed))
	return res, nil
}

type schemaFile struct {
	Endpoints []EndpointData `json:"endpoints"`
	Schema    *schema.Schema `json:"schema"`
}

func (g *Generator) buildDomain(ctx context.Context, res *resolver.Resolver, d *domainEndpoints) (*DomainOutput, error) {
	var entries []resolver.Entry
	seen := make(map[string]bool)
	add := func(name string, ref *registry.TypeRef) string {
		if ref == nil {
			return ""
		}
		if ref.Name != "" {
			name = ref.Name
		}
		if !seen[name] {
			seen[name] = true
			entries = append(entries, resolver.Entry{
				Name:   name,
				Model:  ref.Model,
				Inline: ref.Inline,
				Type:   ref.Type,
				Node:   ref.Node,
			})
		}
		return name
	}

	data := make([]EndpointData, 0, len(d.endpoints))
	for i := range d.endpoints {
		e := &d.endpoints[i]
		base := TransformToName(e.Method, e.Path)
		ed := EndpointData{Name: base, Path: e.Path, Method: e.Method}
		ed.Query = add(QueryName(base), e.Query)
		ed.Request = add(RequestName(base), e.Request)
		for _, status := range e.Statuses() {
			if name := add(ResponseName(base, status), e.Responses[status]); name != "" {
				if ed.Responses == nil {
					ed.Responses = make(map[int]string)
				}
				ed.Responses[status] = name
			}
		}
		data = append(data, ed)
	}

	s, err := res.GenerateSchema(ctx, entries)
	if err != nil {
		return nil, err
	}
	for i := range data {
		data[i].Query = mapped(s, data[i].Query)
		data[i].Request = mapped(s, data[i].Request)
		for status, name := range data[i].Responses {
			data[i].Responses[status] = mapped(s, name)
		}
	}

	schemaJSON, err := schema.Encode(schemaFile{Endpoints: data, Schema: s})
	if err != nil {
		return nil, fmt.Errorf("encode schema: %w", err)
	}
	out := &DomainOutput{
		Domain:     d.domain,
		Endpoints:  data,
		Schema:     s,
		Types:      Assemble(d.domain, render.Render(s), data),
		SchemaJSON: schemaJSON,
	}
	out.Files = append(out.Files, File{Name: d.domain + "-types.d.ts", Content: out.Types})
	if g.config.SchemaFiles {
		out.Files = append(out.Files, File{Name: d.domain + "-schema.json", Content: string(schemaJSON) + "\n"})
	}
	if g.config.OpenAPI {
		doc, err := g.openAPIDocument(d, data, s)
		if err != nil {
			return nil, err
		}
		out.Files = append(out.Files, File{Name: d.domain + "-openapi.json", Content: string(doc) + "\n"})
	}
	return out, nil
}

func (g *Generator) openAPIDocument(d *domainEndpoints, data []EndpointData, s *schema.Schema) ([]byte, error) {
	ops := make([]openapi.Operation, len(data))
	for i, ed := range data {
		ops[i] = openapi.Operation{
			ID:        ed.Name,
			Method:    ed.Method,
			Path:      ed.Path,
			Summary:   d.endpoints[i].Handler,
			Query:     ed.Query,
			Request:   ed.Request,
			Responses: ed.Responses,
		}
	}
	config := g.openapi
	if config.Title == "" {
		config.Title = d.domain + " API"
	}
	return openapi.NewGenerator(config).Generate(d.domain, ops, s)
}

// QueryParamsExpr returns a struct expression with one optional string
// field per query parameter name.
func QueryParamsExpr(params []string) string {
	var b strings.Builder
	b.WriteString("struct {")
	for i, p := range params {
		if i > 0 {
			b.WriteString(";")
		}
		fmt.Fprintf(&b, " P%d string %s", i, strconv.Quote(`json:"`+p+`,omitempty"`))
	}
	b.WriteString(" }")
	return b.String()
}

// expressions returns the model names and inline expressions endpoints
// refer to.
func expressions(endpoints []registry.Endpoint) []string {
	var out []string
	add := func(ref *registry.TypeRef) {
		if ref != nil && ref.Type == nil && ref.Expr() != "" {
			out = append(out, ref.Expr())
		}
	}
	for i := range endpoints {
		e := &endpoints[i]
		add(e.Query)
		add(e.Request)
		for _, status := range e.Statuses() {
			add(e.Responses[status])
		}
	}
	return out
}

func mapped(s *schema.Schema, name string) string {
	if name == "" {
		return ""
	}
	return s.Mapped(name)
}

func writeIfChanged(path string, content []byte) (bool, error) {
	if current, err := os.ReadFile(path); err == nil && bytes.Equal(current, content) {
		return false, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return false, fmt.Errorf("failed to create output directory: %w", err)
	}
	if err := os.WriteFile(path, content, 0644); err != nil {
		return false, fmt.Errorf("failed to write %s: %w", path, err)
	}
	return true, nil
}

// fingerprint hashes the sources of prog, the configuration and the tool
// version. It returns "" when a source is unavailable.
func (g *Generator) fingerprint(prog *loader.Program) string {
	if g.cache == nil {
		return ""
	}
	hasher := cache.NewFileHasher()
	files := make(map[string]string)
	for _, pkg := range prog.Packages {
		for i, f := range pkg.Files {
			src, err := pkg.Source(f)
			if err != nil {
				g.logger.Debug("source unavailable, caching disabled for this pass", zap.Error(err))
				return ""
			}
			files[pkg.FileNames[i]] = hasher.HashContent(src)
		}
	}
	config, err := json.Marshal(g.config)
	if err != nil {
		return ""
	}
	return cache.Fingerprint(g.version, config, files)
}

func cacheKey(fingerprint string) string {
	return "pass:" + fingerprint
}

func (g *Generator) cached(ctx context.Context, fingerprint string, logger *zap.Logger) ([]*DomainOutput, bool) {
	if g.cache == nil || fingerprint == "" {
		return nil, false
	}
	data, err := g.cache.Get(ctx, cacheKey(fingerprint))
	if err != nil {
		if !cache.IsCacheMiss(err) {
			logger.Warn("cache read failed", zap.Error(err))
		}
		return nil, false
	}
	var domains []*DomainOutput
	if err := json.Unmarshal(data, &domains); err != nil {
		logger.Warn("discarding unreadable cache entry", zap.Error(err))
		_ = g.cache.Delete(ctx, cacheKey(fingerprint))
		return nil, false
	}
	return domains, true
}

func (g *Generator) store(ctx context.Context, fingerprint string, domains []*DomainOutput, logger *zap.Logger) {
	if g.cache == nil || fingerprint == "" {
		return
	}
	data, err := json.Marshal(domains)
	if err != nil {
		logger.Warn("cache encode failed", zap.Error(err))
		return
	}
	if err := g.cache.Set(ctx, cacheKey(fingerprint), data, g.config.CacheTTL); err != nil {
		logger.Warn("cache write failed", zap.Error(err))
	}
}

// IsAmbiguity reports whether err was caused by a type name that matches
// more than one declaration.
func IsAmbiguity(err error) bool {
	var amb *typeindex.AmbiguityError
	return errors.As(err, &amb)
}
