package registry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apinni/apinni/internal/engine"
	"github.com/apinni/apinni/internal/loader/loadertest"
	"github.com/apinni/apinni/internal/schema"
	"github.com/apinni/apinni/internal/typedesc"
	"github.com/apinni/apinni/internal/typeindex"
)

const handlers = `package handlers

import (
	"context"
	"net/http"
)

type User struct {
	ID string ` + "`json:\"id\"`" + `
}

type CreateUser struct {
	Name string ` + "`json:\"name\"`" + `
}

// Users serves accounts.
//
//apinni:controller /users
//apinni:domain admin
type Users struct{}

// Get returns one user.
//
//apinni:endpoint GET /:id
//apinni:response 404 struct{ Message string }
func (u *Users) Get(ctx context.Context, id string) (*User, error) {
	return nil, nil
}

//apinni:endpoint POST /
func (u *Users) Create(ctx context.Context, body *CreateUser) (User, error) {
	return User{}, nil
}

//apinni:endpoint GET /search
//apinni:query-params q limit
//apinni:request CreateUser name=SearchBody
//apinni:response []User
func (u *Users) Search(w http.ResponseWriter, r *http.Request) {}

//apinni:endpoint FETCH /broken
func (u *Users) Broken() {}

func (u *Users) Helper() {}

//apinni:disabled reason="internal"
type Internal struct{}

//apinni:endpoint GET /internal/stats
func (Internal) Stats(ctx context.Context) (map[string]int, error) {
	return nil, nil
}
`

func scan(t *testing.T) (*Registry, *typeindex.Index) {
	t.Helper()
	prog := loadertest.Program(t, map[string]string{"example.com/app/handlers/handlers.go": handlers})
	ix, err := typeindex.Build(prog, nil)
	require.NoError(t, err)

	reg := New()
	require.NoError(t, Scan(context.Background(), ix, reg, nil))
	return reg, ix
}

func convert(ref *TypeRef) *schema.Node {
	return engine.New(engine.NewReferences(), nil).Convert(engine.Input{Type: ref.Type, Node: ref.Node, Context: "Test"})
}

func TestScan(t *testing.T) {
	reg, _ := scan(t)

	controllers := reg.Controllers()
	require.Len(t, controllers, 2)
	assert.Equal(t, Controller{
		Target:  "example.com/app/handlers.Users",
		Path:    "/users",
		Domains: []string{"admin"},
	}, controllers[0])
	assert.Equal(t, map[string]bool{"*": true}, controllers[1].Disabled)
	assert.Equal(t, "internal", controllers[1].DisabledReason)

	require.Len(t, reg.Diagnostics(), 1)
	assert.Contains(t, reg.Diagnostics()[0].Error(), `unknown HTTP method "FETCH"`)

	var names []string
	for _, m := range reg.Methods() {
		names = append(names, m.Name)
	}
	assert.Equal(t, []string{"Get", "Create", "Search", "Broken", "Stats"}, names)

	assert.Equal(t, 2, reg.FilterEnabled())

	endpoints := reg.Prepared()
	require.Len(t, endpoints, 3)
	assert.Equal(t, "/users/:id", endpoints[0].Path)
	assert.Equal(t, "/users", endpoints[1].Path)
	assert.Equal(t, "/users/search", endpoints[2].Path)
}

func TestScan_SignatureDefaults(t *testing.T) {
	reg, _ := scan(t)
	reg.FilterEnabled()
	endpoints := reg.Prepared()
	require.Len(t, endpoints, 3)

	get := endpoints[0]
	require.NotNil(t, get.Request)
	assert.Equal(t, schema.String(), convert(get.Request))
	assert.Equal(t, typedesc.Comments{"Get returns one user."}, get.Request.Node)
	require.Contains(t, get.Responses, 200)
	assert.Equal(t, schema.Ref("User"), convert(get.Responses[200]))
	require.Contains(t, get.Responses, 404)
	assert.Equal(t, "struct{ Message string }", get.Responses[404].Inline)

	create := endpoints[1]
	require.NotNil(t, create.Request)
	assert.Equal(t, schema.Ref("CreateUser"), convert(create.Request))
	assert.Equal(t, schema.Ref("User"), convert(create.Responses[200]))

	search := endpoints[2]
	assert.Equal(t, "CreateUser", search.Request.Model)
	assert.Equal(t, "SearchBody", search.Request.Name)
	assert.Equal(t, []string{"q", "limit"}, search.QueryParams)
	assert.Equal(t, "[]User", search.Responses[200].Inline)
}
