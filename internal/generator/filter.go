package generator

import (
	"fmt"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/apinni/apinni/internal/registry"
)

// FilterEnv is the environment endpoint filter expressions run against.
type FilterEnv struct {
	Method     string `expr:"method"`
	Path       string `expr:"path"`
	Domain     string `expr:"domain"`
	Handler    string `expr:"handler"`
	Controller string `expr:"controller"`
}

// Filter selects endpoints with a boolean expression such as
// `method != "DELETE" && !(path startsWith "/internal")`.
type Filter struct {
	source  string
	program *vm.Program
}

// CompileFilter compiles source. An empty source selects everything.
func CompileFilter(source string) (*Filter, error) {
	if source == "" {
		return nil, nil
	}
	program, err := expr.Compile(source, expr.Env(FilterEnv{}), expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("invalid filter %q: %w", source, err)
	}
	return &Filter{source: source, program: program}, nil
}

// Match reports whether e is kept in domain. A nil filter keeps everything.
func (f *Filter) Match(e *registry.Endpoint, domain string) (bool, error) {
	if f == nil {
		return true, nil
	}
	out, err := vm.Run(f.program, FilterEnv{
		Method:     e.Method,
		Path:       e.Path,
		Domain:     domain,
		Handler:    e.Handler,
		Controller: e.Controller,
	})
	if err != nil {
		return false, fmt.Errorf("filter %q: %w", f.source, err)
	}
	keep, _ := out.(bool)
	return keep, nil
}

// domainEndpoints is the endpoint list of one domain.
type domainEndpoints struct {
	domain    string
	endpoints []registry.Endpoint
}

// partition assigns endpoints to their domains in order of first
// appearance. Endpoints disabled in a domain, or rejected by the filter,
// are left out of it.
func partition(endpoints []registry.Endpoint, fallback string, f *Filter) ([]*domainEndpoints, error) {
	var out []*domainEndpoints
	byDomain := make(map[string]*domainEndpoints)
	for i := range endpoints {
		e := &endpoints[i]
		for _, domain := range e.DomainList(fallback) {
			if !e.EnabledIn(domain) {
				continue
			}
			keep, err := f.Match(e, domain)
			if err != nil {
				return nil, err
			}
			if !keep {
				continue
			}
			d, ok := byDomain[domain]
			if !ok {
				d = &domainEndpoints{domain: domain}
				byDomain[domain] = d
				out = append(out, d)
			}
			d.endpoints = append(d.endpoints, *e)
		}
	}
	return out, nil
}
