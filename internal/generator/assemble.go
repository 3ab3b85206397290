package generator

import (
	_ "embed"
	"sort"
	"strconv"
	"strings"
)

//go:embed templates/proxy.d.ts
var proxyTypes string

//go:embed templates/utility.d.ts
var utilityTypes string

// EndpointData is one endpoint with the final names of its types.
type EndpointData struct {
	Name      string         `json:"name"`
	Path      string         `json:"path"`
	Method    string         `json:"method"`
	Query     string         `json:"query,omitempty"`
	Request   string         `json:"request,omitempty"`
	Responses map[int]string `json:"responses,omitempty"`
}

type methodEntry struct {
	method string
	data   EndpointData
}

type pathEntry struct {
	path    string
	methods []methodEntry
}

// buildAPIStructure groups endpoints by path in order of first appearance.
// A later endpoint with the same path and method replaces the earlier one.
func buildAPIStructure(endpoints []EndpointData) []*pathEntry {
	var out []*pathEntry
	byPath := make(map[string]*pathEntry)
	for _, e := range endpoints {
		if e.Method == "" {
			continue
		}
		p, ok := byPath[e.Path]
		if !ok {
			p = &pathEntry{path: e.Path}
			byPath[e.Path] = p
			out = append(out, p)
		}
		method := strings.ToUpper(e.Method)
		replaced := false
		for i := range p.methods {
			if p.methods[i].method == method {
				p.methods[i].data = e
				replaced = true
			}
		}
		if !replaced {
			p.methods = append(p.methods, methodEntry{method: method, data: e})
		}
	}
	return out
}

func indent(level int) string {
	return strings.Repeat("  ", level)
}

func orNever(name string) string {
	if name == "" {
		return "never"
	}
	return name
}

func structureString(structure []*pathEntry) string {
	var b strings.Builder
	b.WriteString("{\n")
	for _, p := range structure {
		b.WriteString(indent(1) + "[" + strconv.Quote(p.path) + "]: {\n")
		for _, m := range p.methods {
			b.WriteString(indent(2) + m.method + ": {\n")
			b.WriteString(indent(3) + "query: " + orNever(m.data.Query) + ";\n")
			b.WriteString(indent(3) + "request: " + orNever(m.data.Request) + ";\n")
			if len(m.data.Responses) == 0 {
				b.WriteString(indent(3) + "responses: never;\n")
			} else {
				b.WriteString(indent(3) + "responses: {\n")
				statuses := make([]int, 0, len(m.data.Responses))
				for status := range m.data.Responses {
					statuses = append(statuses, status)
				}
				sort.Ints(statuses)
				for _, status := range statuses {
					b.WriteString(indent(4) + strconv.Itoa(status) + ": " + orNever(m.data.Responses[status]) + ";\n")
				}
				b.WriteString(indent(3) + "};\n")
			}
			b.WriteString(indent(2) + "};\n")
		}
		b.WriteString(indent(1) + "};\n")
	}
	b.WriteString("}")
	return b.String()
}

// Assemble builds the declaration file of a domain from its rendered type
// definitions and endpoints.
func Assemble(domain, definitions string, endpoints []EndpointData) string {
	var methods []string
	seen := make(map[string]bool)
	for _, e := range endpoints {
		m := strings.ToUpper(e.Method)
		if m != "" && !seen[m] {
			seen[m] = true
			methods = append(methods, "'"+m+"'")
		}
	}

	var b strings.Builder
	b.WriteString("// Auto-generated API types for domain: " + domain + "\n\n")
	b.WriteString(definitions + "\n\n")
	if len(methods) > 0 {
		b.WriteString("export type ApiMethod = " + strings.Join(methods, " | ") + ";\n\n")
	} else {
		b.WriteString("export type ApiMethod = never;\n\n")
	}
	b.WriteString(strings.TrimRight(proxyTypes, "\n") + "\n\n")
	b.WriteString("export type Api = BuildApi<" + structureString(buildAPIStructure(endpoints)) + ">;\n\n")
	b.WriteString(utilityTypes)
	return b.String()
}
