package generator

import (
	"regexp"
	"strconv"
	"strings"
)

var segmentSplit = regexp.MustCompile(`[-_]`)

// TransformToName derives a type name prefix from an endpoint:
// GET /users/:id becomes GetUsersById.
func TransformToName(method, path string) string {
	cleaned := strings.Trim(path, "/")
	cleaned, _, _ = strings.Cut(cleaned, "?")

	var b strings.Builder
	b.WriteString(capitalize(strings.ToLower(method)))
	for _, part := range strings.Split(cleaned, "/") {
		for _, seg := range segmentSplit.Split(part, -1) {
			if strings.HasPrefix(seg, ":") {
				seg = "By" + capitalize(seg[1:])
			}
			b.WriteString(capitalize(seg))
		}
	}
	return b.String()
}

// QueryName is the entry name of an endpoint query.
func QueryName(base string) string { return base + "Query" }

// RequestName is the entry name of an endpoint request body.
func RequestName(base string) string { return base + "Request" }

// ResponseName is the entry name of one endpoint response.
func ResponseName(base string, status int) string { return base + strconv.Itoa(status) + "Response" }

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
