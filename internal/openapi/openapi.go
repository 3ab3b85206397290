// Package openapi emits an OpenAPI 3 document for the endpoints and schema
// of one domain.
package openapi

import (
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"github.com/goccy/go-json"

	"github.com/apinni/apinni/internal/schema"
)

// Version is the OpenAPI version of generated documents.
const Version = "3.0.3"

const componentPrefix = "#/components/schemas/"

var pathParam = regexp.MustCompile(`:([A-Za-z0-9_]+)`)

// Config holds the document metadata.
type Config struct {
	Title       string
	Version     string
	Description string
	ServerURLs  []string
}

// Operation is one endpoint with the schema entry names of its types.
type Operation struct {
	ID        string
	Method    string
	Path      string
	Summary   string
	Query     string
	Request   string
	Responses map[int]string
}

// Generator generates OpenAPI 3.0 specifications
type Generator struct {
	config Config
}

// NewGenerator creates a generator.
func NewGenerator(config Config) *Generator {
	if config.Version == "" {
		config.Version = "0.0.0"
	}
	return &Generator{config: config}
}

// Generate returns the indented JSON document of a domain.
func (g *Generator) Generate(domain string, ops []Operation, s *schema.Schema) ([]byte, error) {
	data, err := json.MarshalIndent(g.Spec(domain, ops, s), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal OpenAPI spec: %w", err)
	}
	return data, nil
}

// Spec returns the document as a JSON-ready map.
func (g *Generator) Spec(domain string, ops []Operation, s *schema.Schema) map[string]interface{} {
	title := g.config.Title
	if title == "" {
		title = domain
	}
	info := map[string]interface{}{
		"title":   title,
		"version": g.config.Version,
	}
	if g.config.Description != "" {
		info["description"] = g.config.Description
	}

	spec := map[string]interface{}{
		"openapi":    Version,
		"info":       info,
		"paths":      g.createPaths(ops, s),
		"components": g.createComponents(s),
	}
	if len(g.config.ServerURLs) > 0 {
		servers := make([]map[string]interface{}, 0, len(g.config.ServerURLs))
		for _, url := range g.config.ServerURLs {
			servers = append(servers, map[string]interface{}{"url": url})
		}
		spec["servers"] = servers
	}
	return spec
}

// Path converts :param segments to {param}.
func Path(p string) string {
	return pathParam.ReplaceAllString(p, "{$1}")
}

func (g *Generator) createPaths(ops []Operation, s *schema.Schema) map[string]interface{} {
	paths := make(map[string]interface{})
	for _, op := range ops {
		if op.Method == "" {
			continue
		}
		key := Path(op.Path)
		item, ok := paths[key].(map[string]interface{})
		if !ok {
			item = make(map[string]interface{})
			paths[key] = item
		}
		item[strings.ToLower(op.Method)] = g.createOperation(op, s)
	}
	return paths
}

func (g *Generator) createOperation(op Operation, s *schema.Schema) map[string]interface{} {
	operation := map[string]interface{}{
		"responses": g.createResponses(op.Responses),
	}
	if op.ID != "" {
		operation["operationId"] = op.ID
	}
	if op.Summary != "" {
		operation["summary"] = op.Summary
	}

	params := g.createParameters(op, s)
	if len(params) > 0 {
		operation["parameters"] = params
	}
	if op.Request != "" {
		operation["requestBody"] = map[string]interface{}{
			"required": true,
			"content": map[string]interface{}{
				"application/json": map[string]interface{}{
					"schema": ref(op.Request),
				},
			},
		}
	}
	return operation
}

func (g *Generator) createParameters(op Operation, s *schema.Schema) []map[string]interface{} {
	var params []map[string]interface{}
	for _, m := range pathParam.FindAllStringSubmatch(op.Path, -1) {
		params = append(params, map[string]interface{}{
			"name":     m[1],
			"in":       "path",
			"required": true,
			"schema":   map[string]interface{}{"type": "string"},
		})
	}
	if op.Query == "" {
		return params
	}

	query := resolve(s, op.Query)
	if query == nil || query.Kind != schema.KindObject || len(query.Properties) == 0 {
		return append(params, map[string]interface{}{
			"name":    "query",
			"in":      "query",
			"style":   "form",
			"explode": true,
			"schema":  ref(op.Query),
		})
	}
	for _, p := range query.Properties {
		param := map[string]interface{}{
			"name":     p.Name,
			"in":       "query",
			"required": query.IsRequired(p.Name),
			"schema":   Schema(p.Type),
		}
		if desc := description(p.Type.Docs); desc != "" {
			param["description"] = desc
		}
		params = append(params, param)
	}
	return params
}

func (g *Generator) createResponses(responses map[int]string) map[string]interface{} {
	out := make(map[string]interface{})
	for status, name := range responses {
		text := http.StatusText(status)
		if text == "" {
			text = "Response"
		}
		response := map[string]interface{}{"description": text}
		if name != "" {
			response["content"] = map[string]interface{}{
				"application/json": map[string]interface{}{
					"schema": ref(name),
				},
			}
		}
		out[strconv.Itoa(status)] = response
	}
	if len(out) == 0 {
		out["default"] = map[string]interface{}{"description": "No content"}
	}
	return out
}

func (g *Generator) createComponents(s *schema.Schema) map[string]interface{} {
	schemas := make(map[string]interface{})
	add := func(name string, n *schema.Node) {
		schemas[name] = Schema(n)
	}
	if s != nil {
		s.Refs.Each(add)
		s.Schema.Each(add)
	}
	return map[string]interface{}{"schemas": schemas}
}

// resolve follows top-level refs to the node a schema entry denotes.
func resolve(s *schema.Schema, name string) *schema.Node {
	if s == nil {
		return nil
	}
	n, _ := s.Schema.Get(name)
	for i := 0; n != nil && n.Kind == schema.KindRef && i < 16; i++ {
		next, ok := s.Refs.Get(n.Name)
		if !ok {
			next, _ = s.Schema.Get(n.Name)
		}
		n = next
	}
	return n
}

func ref(name string) map[string]interface{} {
	return map[string]interface{}{"$ref": componentPrefix + name}
}
