package typeindex

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apinni/apinni/internal/loader/loadertest"
	"github.com/apinni/apinni/internal/typedesc"
)

var sources = map[string]string{
	"example.com/app/models/models.go": `package models

import "time"

// User is an account.
type User struct {
	// ID is the identifier.
	ID      string    ` + "`json:\"id\"`" + `
	Group   *Group    ` + "`json:\"group,omitempty\"`" + `
	Created time.Time ` + "`json:\"created\"`" + `
	Status  Status    ` + "`json:\"status\"`" + `
}

type Group struct {
	Name string ` + "`json:\"name\"`" + `
}

type Status string

const (
	StatusActive   Status = "active"
	StatusDisabled Status = "disabled"
)

type Entity struct {
	ID int ` + "`json:\"id\"`" + `
}

var DefaultUser User
`,
	"example.com/app/models/models_gen.go": `// Code generated by tool. DO NOT EDIT.

package models

type Generated struct{}
`,
	"example.com/app/billing/billing.go": `package billing

import "example.com/app/models"

type Entity struct {
	Amount float64 ` + "`json:\"amount\"`" + `
	Owner  models.User ` + "`json:\"owner\"`" + `
}
`,
}

func build(t *testing.T) *Index {
	t.Helper()
	ix, err := Build(loadertest.Program(t, sources), nil)
	require.NoError(t, err)
	return ix
}

func TestBuild_QualifiesDuplicates(t *testing.T) {
	ix := build(t)

	first, err := ix.Resolve("Entity_1")
	require.NoError(t, err)
	require.NotNil(t, first)
	assert.Equal(t, "example.com/app/billing", first.Pkg.Path)

	second, err := ix.Resolve("models.Entity")
	require.NoError(t, err)
	require.NotNil(t, second)
	assert.Equal(t, "Entity_2", second.Qualified)

	user, err := ix.Resolve("User")
	require.NoError(t, err)
	assert.Equal(t, "User", user.Qualified)

	v, err := ix.Resolve("DefaultUser")
	require.NoError(t, err)
	require.NotNil(t, v)
	assert.Equal(t, VarDecl, v.Kind)

	generated, err := ix.Resolve("Generated")
	require.NoError(t, err)
	assert.Nil(t, generated)
}

func TestResolve_Ambiguity(t *testing.T) {
	ix := build(t)

	_, err := ix.Resolve("Entity")

	require.Error(t, err)
	var amb *AmbiguityError
	require.ErrorAs(t, err, &amb)
	assert.Equal(t, "Entity", amb.Name)
	assert.Len(t, amb.Candidates, 2)
	assert.True(t, IsAmbiguity(err))
}

func TestLookupNode(t *testing.T) {
	ix := build(t)

	t.Run("ambiguous name", func(t *testing.T) {
		_, err := ix.LookupNode([]string{"User", "Entity"})
		assert.True(t, IsAmbiguity(err))
	})

	t.Run("unknown name", func(t *testing.T) {
		got, err := ix.LookupNode([]string{"User", "Missing"})
		require.NoError(t, err)
		require.Len(t, got, 2)

		assert.Equal(t, "User", got[0].Type.SymbolName())
		assert.Equal(t, typedesc.Comments{"User is an account."}, got[0].Node)
		assert.True(t, got[1].Type.Is(typedesc.Any))
		assert.Nil(t, got[1].Decl)
	})
}

func TestLookup_Closure(t *testing.T) {
	ix := build(t)

	frags, err := ix.Lookup([]string{"[]User"})
	require.NoError(t, err)
	require.Len(t, frags, 3)

	assert.Contains(t, frags[0], "// User is an account.\ntype User struct")
	assert.Contains(t, frags[0], "time \"time\"")
	assert.Contains(t, frags[0], "// ID is the identifier.")
	assert.Contains(t, frags[1], "type Group struct")
	assert.Contains(t, frags[2], "type Status string")
	assert.Contains(t, frags[2], EnumPrefix+`Status_0 Status = "active"`)
	assert.Contains(t, frags[2], EnumPrefix+`Status_1 Status = "disabled"`)
}

func TestLookup_RewritesQualifiedReferences(t *testing.T) {
	ix := build(t)

	frags, err := ix.Lookup([]string{"Entity_1"})
	require.NoError(t, err)
	require.NotEmpty(t, frags)

	assert.Contains(t, frags[0], "type Entity_1 struct")
	assert.Contains(t, frags[0], "Owner  User")
	assert.NotContains(t, frags[0], "models.User")
	assert.NotContains(t, frags[0], "import")

	var names []string
	for _, f := range frags {
		for _, line := range strings.Split(f, "\n") {
			if strings.HasPrefix(line, "type ") {
				names = append(names, strings.Fields(line)[1])
			}
		}
	}
	assert.Equal(t, []string{"Entity_1", "User", "Group", "Status"}, names)
}

func TestLookup_AmbiguousExpression(t *testing.T) {
	ix := build(t)

	_, err := ix.Lookup([]string{"map[string]Entity"})

	assert.True(t, IsAmbiguity(err))
}

func TestTokens(t *testing.T) {
	tests := []struct {
		expr string
		want []string
	}{
		{"User", []string{"User"}},
		{"[]models.User", []string{"models.User"}},
		{"map[string]Entity_2", []string{"string", "Entity_2"}},
		{"struct{ Items []User; N int }", []string{"User", "int"}},
		{"not ] valid", []string{"not", "valid"}},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			assert.Equal(t, tt.want, Tokens(tt.expr))
		})
	}
}

func TestRewriteExpr(t *testing.T) {
	ix := build(t)

	got, imports, err := ix.RewriteExpr("map[string][]models.Entity")
	require.NoError(t, err)
	assert.Equal(t, "map[string][]Entity_2", got)
	assert.Empty(t, imports)

	got, imports, err = ix.RewriteExpr("struct{ At time.Time; U User }")
	require.NoError(t, err)
	assert.Equal(t, "struct{ At time.Time; U User }", got)
	assert.Equal(t, map[string]string{"time": "time"}, imports)
}

func TestLookup_MarshalerStubs(t *testing.T) {
	ix, err := Build(loadertest.Program(t, map[string]string{
		"example.com/app/wire/wire.go": `package wire

type Stamp struct{ sec int64 }

func (s Stamp) MarshalText() ([]byte, error) { return nil, nil }
func (s Stamp) String() string { return "" }

type Raw struct{ data []byte }

func (r *Raw) MarshalJSON() ([]byte, error) { return r.data, nil }

type Box[K comparable, V any] struct{ m map[K]V }

func (b Box[K, V]) MarshalJSON() ([]byte, error) { return nil, nil }

type Plain struct{}
`,
	}), nil)
	require.NoError(t, err)

	tests := []struct {
		expr    string
		want    string
		without string
	}{
		{"Stamp", "func (Stamp) MarshalText() ([]byte, error) { return nil, nil }", "String()"},
		{"Raw", "func (*Raw) MarshalJSON() ([]byte, error) { return nil, nil }", "MarshalText"},
		{"Box", "func (Box[_, _]) MarshalJSON() ([]byte, error) { return nil, nil }", "MarshalText"},
		{"Plain", "type Plain struct{}", "func"},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			frags, err := ix.Lookup([]string{tt.expr})
			require.NoError(t, err)
			require.Len(t, frags, 1)

			assert.Contains(t, frags[0], tt.want)
			assert.NotContains(t, frags[0], tt.without)
		})
	}
}
