package gotypes_test

import (
	"go/types"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apinni/apinni/internal/engine"
	"github.com/apinni/apinni/internal/loader/loadertest"
	"github.com/apinni/apinni/internal/schema"
	"github.com/apinni/apinni/internal/typedesc"
	"github.com/apinni/apinni/internal/typeindex"
)

const apiSource = `package api

import (
	"context"
	"encoding/json"
	"time"
)

type Status string

const (
	Active  Status = "active"
	Blocked Status = "blocked"
)

type Kind int

type Base struct {
	ID string ` + "`json:\"id\"`" + `
}

// User is an account.
type User struct {
	Base
	// Name is the display name.
	// @example "ada"
	Name     string          ` + "`json:\"name\"`" + `
	Email    *string         ` + "`json:\"email,omitempty\"`" + `
	Manager  *User           ` + "`json:\"manager\"`" + `
	Status   Status          ` + "`json:\"status\"`" + `
	Kind     Kind            ` + "`json:\"kind\"`" + `
	Tags     []string        ` + "`json:\"tags\"`" + `
	Avatar   []byte          ` + "`json:\"avatar\"`" + `
	Attrs    map[string]int  ` + "`json:\"attrs\"`" + `
	Point    [2]float64      ` + "`json:\"point\"`" + `
	Created  time.Time       ` + "`json:\"created\"`" + `
	Timeout  time.Duration   ` + "`json:\"timeout\"`" + `
	Extra    json.RawMessage ` + "`json:\"extra\"`" + `
	Updates  chan int        ` + "`json:\"-\"`" + `
	Renamed  bool            ` + "`json:\"is_active\"`" + `
	password string
}

type Page[T any] struct {
	Items []T ` + "`json:\"items\"`" + `
	Total int ` + "`json:\"total\"`" + `
}

type Users = []User

type UserPage = Page[User]

func Handle(ctx context.Context, id string, tags ...string) (*User, error) {
	return nil, nil
}
`

func setup(t *testing.T) (*typeindex.Index, *types.Package) {
	t.Helper()
	prog := loadertest.Program(t, map[string]string{"example.com/api/api.go": apiSource})
	ix, err := typeindex.Build(prog, nil)
	require.NoError(t, err)
	return ix, prog.Package("example.com/api").Types
}

func convert(ix *typeindex.Index, t types.Type) (*schema.Node, *schema.Table) {
	refs := engine.NewReferences()
	node := engine.New(refs, nil).Convert(engine.Input{Type: ix.Adapter().Describe(t), Context: "Test"})
	return node, refs.Table("Test")
}

func TestDescribe_Struct(t *testing.T) {
	ix, pkg := setup(t)

	got, refs := convert(ix, pkg.Scope().Lookup("User").Type())
	assert.Equal(t, schema.Ref("User"), got)
	assert.Equal(t, []string{"User", "Base", "Status"}, refs.Keys())

	user, _ := refs.Get("User")
	require.NotNil(t, user)
	require.Equal(t, schema.KindIntersection, user.Kind)
	require.Len(t, user.AllOf, 2)
	assert.Equal(t, schema.Ref("Base"), user.AllOf[0])
	assert.Equal(t, "User is an account.", user.Global)

	own := user.AllOf[1]
	require.Equal(t, schema.KindObject, own.Kind)

	names := make([]string, 0, len(own.Properties))
	for _, p := range own.Properties {
		names = append(names, p.Name)
	}
	assert.Equal(t, []string{
		"name", "email", "manager", "status", "kind", "tags", "avatar",
		"attrs", "point", "created", "timeout", "extra", "is_active",
	}, names)
	assert.False(t, own.IsRequired("email"))
	assert.True(t, own.IsRequired("manager"))

	name := own.Property("name")
	assert.Equal(t, schema.KindString, name.Kind)
	assert.Equal(t, "Name is the display name.", name.Global)
	assert.Equal(t, `"ada"`, name.Example)

	tests := []struct {
		prop string
		want *schema.Node
	}{
		{"email", schema.String()},
		{"manager", schema.Union(schema.Ref("User"), schema.Null())},
		{"status", schema.Ref("Status")},
		{"kind", schema.Number()},
		{"tags", schema.Array(schema.String())},
		{"avatar", schema.String()},
		{"attrs", &schema.Node{Kind: schema.KindObject, IndexedProperties: schema.Number()}},
		{"point", schema.Tuple(schema.Slot{Type: schema.Number()}, schema.Slot{Type: schema.Number()})},
		{"created", schema.String()},
		{"timeout", schema.Number()},
		{"extra", schema.Any()},
		{"is_active", schema.Boolean()},
	}
	for _, tt := range tests {
		t.Run(tt.prop, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, own.Property(tt.prop)); diff != "" {
				t.Errorf("property %s mismatch (-want +got):\n%s", tt.prop, diff)
			}
		})
	}

	status, _ := refs.Get("Status")
	assert.Equal(t, []any{"active", "blocked"}, status.Values)
}

func TestDescribe_Aliases(t *testing.T) {
	ix, pkg := setup(t)

	got, refs := convert(ix, pkg.Scope().Lookup("Users").Type())
	assert.Equal(t, schema.Ref("Users"), got)
	users, _ := refs.Get("Users")
	assert.Equal(t, schema.Array(schema.Ref("User")), users)

	got, refs = convert(ix, pkg.Scope().Lookup("UserPage").Type())
	require.Equal(t, schema.KindObject, got.Kind)
	assert.Equal(t, schema.Array(schema.Ref("User")), got.Property("items"))
	assert.Equal(t, schema.Number(), got.Property("total"))
	assert.True(t, refs.Has("User"))
	assert.False(t, refs.Has("Page"))
}

func TestDescribeTuple(t *testing.T) {
	ix, pkg := setup(t)

	sig := pkg.Scope().Lookup("Handle").Type().(*types.Signature)
	d := ix.Adapter().DescribeTuple(sig.Params(), sig.Variadic())
	require.True(t, d.Is(typedesc.Tuple))

	refs := engine.NewReferences()
	got := engine.New(refs, nil).Convert(engine.Input{Type: d})

	want := schema.Tuple(
		schema.Slot{Type: schema.Any(), Name: "ctx"},
		schema.Slot{Type: schema.String(), Name: "id"},
		schema.Slot{Type: schema.String(), Name: "tags", Rest: true},
	)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("tuple mismatch (-want +got):\n%s", diff)
	}
}

func TestDescribe_StringOption(t *testing.T) {
	prog := loadertest.Program(t, map[string]string{"example.com/wire/wire.go": `package wire

type Level int

type Stamp int64

func (s Stamp) MarshalText() ([]byte, error) { return nil, nil }

type Wire struct {
	Count  int      ` + "`json:\"count,string\"`" + `
	Ratio  *float64 ` + "`json:\"ratio,string\"`" + `
	Flag   *bool    ` + "`json:\"flag,string,omitempty\"`" + `
	Label  string   ` + "`json:\"label,string\"`" + `
	Level  Level    ` + "`json:\"level,string\"`" + `
	Stamp  Stamp    ` + "`json:\"stamp,string\"`" + `
	Sizes  []int    ` + "`json:\"sizes,string\"`" + `
	Plain  int      ` + "`json:\"plain\"`" + `
}
`})
	ix, err := typeindex.Build(prog, nil)
	require.NoError(t, err)

	got, refs := convert(ix, prog.Package("example.com/wire").Types.Scope().Lookup("Wire").Type())
	assert.Equal(t, schema.Ref("Wire"), got)

	wire, _ := refs.Get("Wire")
	require.NotNil(t, wire)

	tests := []struct {
		prop string
		want *schema.Node
	}{
		{"count", schema.String()},
		{"ratio", schema.Union(schema.String(), schema.Null())},
		{"flag", schema.String()},
		{"label", schema.String()},
		{"level", schema.String()},
		{"stamp", schema.String()},
		{"sizes", schema.Array(schema.Number())},
		{"plain", schema.Number()},
	}
	for _, tt := range tests {
		t.Run(tt.prop, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, wire.Property(tt.prop)); diff != "" {
				t.Errorf("property %s mismatch (-want +got):\n%s", tt.prop, diff)
			}
		})
	}
	assert.False(t, wire.IsRequired("flag"))
}
