package registry

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/kballard/go-shellquote"

	"github.com/apinni/apinni/internal/docs"
)

// Directive names.
const (
	DirectiveController  = "controller"
	DirectiveDomain      = "domain"
	DirectiveDisabled    = "disabled"
	DirectiveEndpoint    = "endpoint"
	DirectiveRequest     = "request"
	DirectiveResponse    = "response"
	DirectiveQuery       = "query"
	DirectiveQueryParams = "query-params"
)

var (
	trailingName = regexp.MustCompile(`\s+name=("[^"]*"|'[^']*'|\S+)\s*$`)
	leadingCode  = regexp.MustCompile(`^(\d{3})[A-Za-z]*\s+(.+)$`)
	httpMethods  = map[string]bool{
		"GET": true, "POST": true, "PUT": true, "PATCH": true, "DELETE": true,
		"HEAD": true, "OPTIONS": true, "TRACE": true, "CONNECT": true,
	}
)

// Directive is one //apinni: comment line.
type Directive struct {
	Name string
	Args string
}

// DirectiveError reports a malformed directive.
type DirectiveError struct {
	Pos       string
	Directive string
	Msg       string
}

func (e *DirectiveError) Error() string {
	if e.Pos == "" {
		return fmt.Sprintf("apinni:%s: %s", e.Directive, e.Msg)
	}
	return fmt.Sprintf("%s: apinni:%s: %s", e.Pos, e.Directive, e.Msg)
}

// ParseDirectives returns the directives among raw comment lines, in order.
// Lines keep their comment markers.
func ParseDirectives(lines []string) []Directive {
	var out []Directive
	for _, line := range lines {
		text := strings.TrimPrefix(line, "//")
		if !strings.HasPrefix(text, docs.DirectivePrefix) {
			continue
		}
		text = strings.TrimPrefix(text, docs.DirectivePrefix)
		name, args, _ := strings.Cut(text, " ")
		out = append(out, Directive{Name: strings.TrimSpace(name), Args: strings.TrimSpace(args)})
	}
	return out
}

// applyController folds a type directive into c.
func applyController(c *Controller, d Directive) error {
	switch d.Name {
	case DirectiveController:
		args, err := shellquote.Split(d.Args)
		if err != nil {
			return err
		}
		if len(args) > 1 {
			return fmt.Errorf("expected one path, got %d arguments", len(args))
		}
		if len(args) == 1 {
			c.Path = args[0]
		}
		if c.Path == "" {
			c.Path = "/"
		}
	case DirectiveDomain:
		domains, err := splitList(d.Args)
		if err != nil {
			return err
		}
		if len(domains) == 0 {
			return fmt.Errorf("expected at least one domain")
		}
		c.Domains = append(c.Domains, domains...)
	case DirectiveDisabled:
		disabled, reason, err := parseDisabled(d.Args)
		if err != nil {
			return err
		}
		c.Disabled, c.DisabledReason = disabled, reason
	default:
		return fmt.Errorf("not allowed on a type")
	}
	return nil
}

// applyMethod folds a method directive into m.
func applyMethod(m *Method, d Directive) error {
	switch d.Name {
	case DirectiveEndpoint:
		args, err := shellquote.Split(d.Args)
		if err != nil {
			return err
		}
		if len(args) == 0 || len(args) > 2 {
			return fmt.Errorf("expected METHOD [path]")
		}
		method := strings.ToUpper(args[0])
		if !httpMethods[method] {
			return fmt.Errorf("unknown HTTP method %q", args[0])
		}
		m.HTTPMethod = method
		if len(args) == 2 {
			m.Path = args[1]
		}
	case DirectiveRequest:
		ref, err := parseRef(d.Args)
		if err != nil {
			return err
		}
		m.Request = ref
	case DirectiveQuery:
		ref, err := parseRef(d.Args)
		if err != nil {
			return err
		}
		m.Query = ref
	case DirectiveQueryParams:
		params, err := splitList(d.Args)
		if err != nil {
			return err
		}
		if len(params) == 0 {
			return fmt.Errorf("expected at least one parameter")
		}
		m.QueryParams = append(m.QueryParams, params...)
	case DirectiveResponse:
		status := 200
		args := d.Args
		if match := leadingCode.FindStringSubmatch(args); match != nil {
			status, _ = strconv.Atoi(match[1])
			args = match[2]
		}
		ref, err := parseRef(args)
		if err != nil {
			return err
		}
		if m.Responses == nil {
			m.Responses = make(map[int]*TypeRef)
		}
		m.Responses[status] = ref
	case DirectiveDisabled:
		disabled, reason, err := parseDisabled(d.Args)
		if err != nil {
			return err
		}
		m.Disabled, m.DisabledReason = disabled, reason
	default:
		return fmt.Errorf("not allowed on a method")
	}
	return nil
}

// parseRef reads "<expr> [name=X]". A quoted expression is unquoted.
func parseRef(args string) (*TypeRef, error) {
	name := ""
	if match := trailingName.FindStringSubmatchIndex(args); match != nil {
		unquoted, err := shellquote.Split(args[match[2]:match[3]])
		if err != nil {
			return nil, err
		}
		if len(unquoted) == 1 {
			name = unquoted[0]
		}
		args = args[:match[0]]
	}

	expr := strings.TrimSpace(args)
	if strings.HasPrefix(expr, `"`) || strings.HasPrefix(expr, `'`) {
		unquoted, err := shellquote.Split(expr)
		if err != nil {
			return nil, err
		}
		if len(unquoted) != 1 {
			return nil, fmt.Errorf("expected one quoted type expression")
		}
		expr = unquoted[0]
	}
	if expr == "" {
		return nil, fmt.Errorf("missing type")
	}
	return ParseTypeRef(expr, name), nil
}

// parseDisabled reads `[reason="…"] [dom|!dom|*…]`. Without domains every
// domain is disabled; with only negated domains every other domain is.
func parseDisabled(args string) (map[string]bool, string, error) {
	fields, err := shellquote.Split(args)
	if err != nil {
		return nil, "", err
	}

	disabled := make(map[string]bool)
	reason := ""
	positive := false
	for _, f := range fields {
		switch {
		case strings.HasPrefix(f, "reason="):
			reason = strings.TrimPrefix(f, "reason=")
		case strings.HasPrefix(f, "!"):
			disabled[f[1:]] = false
		default:
			for _, dom := range strings.Split(f, ",") {
				if dom != "" {
					disabled[dom] = true
					positive = true
				}
			}
		}
	}
	if !positive {
		if _, ok := disabled[AllDomains]; !ok {
			disabled[AllDomains] = true
		}
	}
	return disabled, reason, nil
}

func splitList(args string) ([]string, error) {
	fields, err := shellquote.Split(args)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, f := range fields {
		for _, part := range strings.Split(f, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out, nil
}
