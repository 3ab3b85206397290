// Package registry records annotated controllers and handler methods and
// merges them into endpoint records.
package registry

import (
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/apinni/apinni/internal/typedesc"
)

// DefaultDomain is the domain of a controller without a domain directive.
const DefaultDomain = "api"

// AllDomains is the disabled-map key matching every domain.
const AllDomains = "*"

var modelName = regexp.MustCompile(`^[A-Za-z_]\w*(\.[A-Za-z_]\w*)?$`)

// TypeRef is the type attached to a request, query or response. Exactly one
// of Model, Inline or Type is set.
type TypeRef struct {
	// Name overrides the generated entry name.
	Name string

	Model  string
	Inline string

	Type typedesc.Descriptor
	Node typedesc.Node
}

// ParseTypeRef classifies expr as a model reference or an inline type
// expression.
func ParseTypeRef(expr, name string) *TypeRef {
	expr = strings.TrimSpace(expr)
	if modelName.MatchString(expr) {
		return &TypeRef{Name: name, Model: expr}
	}
	return &TypeRef{Name: name, Inline: expr}
}

// Expr returns the model name or inline expression of r.
func (r *TypeRef) Expr() string {
	if r.Model != "" {
		return r.Model
	}
	return r.Inline
}

// Controller is the metadata of an annotated type.
type Controller struct {
	Target         string
	Path           string
	Domains        []string
	Disabled       map[string]bool
	DisabledReason string
}

// Method is the metadata of an annotated handler method.
type Method struct {
	Target string
	Name   string

	HTTPMethod  string
	Path        string
	Request     *TypeRef
	Query       *TypeRef
	QueryParams []string
	Responses   map[int]*TypeRef

	Disabled       map[string]bool
	DisabledReason string
}

// Endpoint is a method merged with its controller.
type Endpoint struct {
	Controller string
	Handler    string

	Method string
	Path   string

	Domains        []string
	Disabled       map[string]bool
	DisabledReason string

	Request     *TypeRef
	Query       *TypeRef
	QueryParams []string
	Responses   map[int]*TypeRef
}

// Statuses returns the response status codes of e in ascending order.
func (e *Endpoint) Statuses() []int {
	out := make([]int, 0, len(e.Responses))
	for status := range e.Responses {
		out = append(out, status)
	}
	sort.Ints(out)
	return out
}

// DomainList returns the domains of e, or the default domain.
func (e *Endpoint) DomainList(fallback string) []string {
	if len(e.Domains) > 0 {
		return e.Domains
	}
	if fallback == "" {
		fallback = DefaultDomain
	}
	return []string{fallback}
}

// EnabledIn reports whether e is generated for domain. An explicit entry for
// the domain wins over the wildcard.
func (e *Endpoint) EnabledIn(domain string) bool {
	if disabled, ok := e.Disabled[domain]; ok {
		return !disabled
	}
	return !e.Disabled[AllDomains]
}

// Registry holds the metadata registered during one pass. It is safe for
// concurrent use.
type Registry struct {
	mu          sync.RWMutex
	controllers []*Controller
	methods     []*Method
	diagnostics []error
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{}
}

// RegisterController merges c into the controller registered for c.Target.
// Zero fields of c leave the registered values unchanged.
func (r *Registry) RegisterController(c Controller) {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing := r.controller(c.Target)
	if existing == nil {
		cp := c
		cp.Disabled = copyMap(c.Disabled)
		r.controllers = append(r.controllers, &cp)
		return
	}
	if c.Path != "" {
		existing.Path = c.Path
	}
	if c.Domains != nil {
		existing.Domains = append([]string(nil), c.Domains...)
	}
	if c.Disabled != nil {
		existing.Disabled = copyMap(c.Disabled)
	}
	if c.DisabledReason != "" {
		existing.DisabledReason = c.DisabledReason
	}
}

// RegisterMethod merges m into the method registered for m.Target and
// m.Name. Responses merge by status; other zero fields leave the registered
// values unchanged.
func (r *Registry) RegisterMethod(m Method) {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing := r.method(m.Target, m.Name)
	if existing == nil {
		existing = &Method{Target: m.Target, Name: m.Name}
		r.methods = append(r.methods, existing)
	}
	if m.HTTPMethod != "" {
		existing.HTTPMethod = strings.ToUpper(m.HTTPMethod)
	}
	if m.Path != "" {
		existing.Path = m.Path
	}
	if m.Request != nil {
		existing.Request = m.Request
	}
	if m.Query != nil {
		existing.Query = m.Query
	}
	if m.QueryParams != nil {
		existing.QueryParams = append([]string(nil), m.QueryParams...)
	}
	for status, ref := range m.Responses {
		if existing.Responses == nil {
			existing.Responses = make(map[int]*TypeRef)
		}
		existing.Responses[status] = ref
	}
	if m.Disabled != nil {
		existing.Disabled = copyMap(m.Disabled)
	}
	if m.DisabledReason != "" {
		existing.DisabledReason = m.DisabledReason
	}
}

// Unregister removes the controller target and all of its methods.
func (r *Registry) Unregister(target string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	controllers := r.controllers[:0]
	for _, c := range r.controllers {
		if c.Target != target {
			controllers = append(controllers, c)
		}
	}
	r.controllers = controllers

	methods := r.methods[:0]
	for _, m := range r.methods {
		if m.Target != target {
			methods = append(methods, m)
		}
	}
	r.methods = methods
}

// FilterEnabled drops methods that declare no endpoint and methods disabled
// in every domain. It returns the number of dropped methods.
func (r *Registry) FilterEnabled() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	kept := r.methods[:0]
	dropped := 0
	for _, m := range r.methods {
		disabled, _ := mergeDisabled(r.controller(m.Target), m)
		if m.HTTPMethod == "" || disabledEverywhere(disabled) {
			dropped++
			continue
		}
		kept = append(kept, m)
	}
	r.methods = kept
	return dropped
}

// Controllers returns copies of the registered controllers in registration
// order.
func (r *Registry) Controllers() []Controller {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Controller, len(r.controllers))
	for i, c := range r.controllers {
		out[i] = *c
	}
	return out
}

// Methods returns copies of the registered methods in registration order.
func (r *Registry) Methods() []Method {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Method, len(r.methods))
	for i, m := range r.methods {
		out[i] = *m
	}
	return out
}

// Report records a problem found while registering. Reports never stop a
// pass.
func (r *Registry) Report(err error) {
	r.mu.Lock()
	r.diagnostics = append(r.diagnostics, err)
	r.mu.Unlock()
}

// Diagnostics returns the reported problems.
func (r *Registry) Diagnostics() []error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]error(nil), r.diagnostics...)
}

// Prepared merges every method with its controller, in registration order.
func (r *Registry) Prepared() []Endpoint {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Endpoint, 0, len(r.methods))
	for _, m := range r.methods {
		c := r.controller(m.Target)
		e := Endpoint{
			Controller:  m.Target,
			Handler:     m.Name,
			Method:      m.HTTPMethod,
			Request:     m.Request,
			Query:       m.Query,
			QueryParams: m.QueryParams,
			Responses:   m.Responses,
		}
		base := ""
		if c != nil {
			base = c.Path
			e.Domains = c.Domains
		}
		e.Path = JoinPath(base, m.Path)

		if disabled, reason := mergeDisabled(c, m); len(disabled) > 0 {
			e.Disabled = disabled
			e.DisabledReason = reason
		}
		out = append(out, e)
	}
	return out
}

func (r *Registry) controller(target string) *Controller {
	for _, c := range r.controllers {
		if c.Target == target {
			return c
		}
	}
	return nil
}

func (r *Registry) method(target, name string) *Method {
	for _, m := range r.methods {
		if m.Target == target && m.Name == name {
			return m
		}
	}
	return nil
}

// mergeDisabled combines the disabled maps of a controller and one of its
// methods. A method map carrying the wildcard replaces the controller map.
func mergeDisabled(c *Controller, m *Method) (map[string]bool, string) {
	merged := make(map[string]bool)
	reason := m.DisabledReason
	if c != nil {
		for k, v := range c.Disabled {
			merged[k] = v
		}
		if reason == "" {
			reason = c.DisabledReason
		}
	}
	if _, ok := m.Disabled[AllDomains]; ok {
		merged = make(map[string]bool)
	}
	for k, v := range m.Disabled {
		merged[k] = v
	}
	return merged, reason
}

func disabledEverywhere(disabled map[string]bool) bool {
	if !disabled[AllDomains] {
		return false
	}
	for _, v := range disabled {
		if !v {
			return false
		}
	}
	return true
}

var pathParam = regexp.MustCompile(`:([A-Za-z0-9_]+)`)

// JoinPath joins a controller path and a method path and renames repeated
// parameters: /:id/:id becomes /:id/:id_1.
func JoinPath(base, p string) string {
	lead := strings.HasPrefix(base, "/") || (base == "" && strings.HasPrefix(p, "/"))

	var parts []string
	for _, s := range []string{base, p} {
		if s = strings.Trim(s, "/"); s != "" {
			parts = append(parts, s)
		}
	}
	joined := path.Join(parts...)
	if lead {
		joined = "/" + joined
	}

	seen := make(map[string]int)
	return pathParam.ReplaceAllStringFunc(joined, func(match string) string {
		name := match[1:]
		n, ok := seen[name]
		if !ok {
			seen[name] = 0
			return match
		}
		seen[name] = n + 1
		return ":" + name + "_" + strconv.Itoa(n+1)
	})
}

func copyMap(m map[string]bool) map[string]bool {
	if m == nil {
		return nil
	}
	out := make(map[string]bool, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
