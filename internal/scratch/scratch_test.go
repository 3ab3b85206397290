package scratch

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apinni/apinni/internal/loader/loadertest"
	"github.com/apinni/apinni/internal/resolver"
	"github.com/apinni/apinni/internal/schema"
	"github.com/apinni/apinni/internal/typeindex"
)

var sources = map[string]string{
	"example.com/shop/orders/orders.go": `package orders

import "time"

// Order is a placed order.
type Order struct {
	ID      string    ` + "`json:\"id\"`" + `
	State   State     ` + "`json:\"state\"`" + `
	Placed  time.Time ` + "`json:\"placed\"`" + `
	Lines   []Line    ` + "`json:\"lines\"`" + `
}

type Line struct {
	SKU string ` + "`json:\"sku\"`" + `
	Qty int    ` + "`json:\"qty\"`" + `
}

type State int

const (
	Pending State = iota
	Shipped
)

type Entity struct {
	Code string ` + "`json:\"code\"`" + `
}
`,
	"example.com/shop/catalog/catalog.go": `package catalog

type Entity struct {
	Title string ` + "`json:\"title\"`" + `
}
`,
}

func setup(t *testing.T) *typeindex.Index {
	t.Helper()
	ix, err := typeindex.Build(loadertest.Program(t, sources), nil)
	require.NoError(t, err)
	return ix
}

func TestContext_InlineAndModel(t *testing.T) {
	ix := setup(t)
	inline := []string{"[]Order", "map[string]orders.Line", "time.Time", "][ broken"}

	collected, err := ix.Lookup(append([]string{"Order", "Entity_2"}, inline[:2]...))
	require.NoError(t, err)

	sc, err := New(context.Background(), ix, collected, inline, nil)
	require.NoError(t, err)
	defer sc.Close()
	assert.Empty(t, sc.Errors())

	d, _ := sc.Inline(0)
	require.NotNil(t, d)
	assert.Equal(t, "Order", d.Elem().SymbolName())

	d, _ = sc.Inline(1)
	require.NotNil(t, d)
	assert.Equal(t, "Line", d.IndexType().SymbolName())

	d, _ = sc.Inline(3)
	assert.Nil(t, d)

	model, node, err := sc.Model("Order")
	require.NoError(t, err)
	assert.Equal(t, "Order", model.SymbolName())
	require.NotNil(t, node)
	assert.Equal(t, []string{"Order is a placed order."}, node.Comments())

	_, _, err = sc.Model("Entity")
	assert.True(t, typeindex.IsAmbiguity(err))

	unknown, _, err := sc.Model("Nope")
	require.NoError(t, err)
	assert.Equal(t, "Nope", unknown.Text())
}

func TestFactory_GenerateSchema(t *testing.T) {
	ix := setup(t)
	entries := []resolver.Entry{
		{Name: "GetOrders200Response", Inline: "[]Order"},
		{Name: "Order", Model: "Order"},
		{Name: "When", Inline: "time.Time"},
		{Name: "Catalog", Model: "catalog.Entity"},
	}

	collected, err := ix.Lookup([]string{"[]Order", "Order", "time.Time", "catalog.Entity"})
	require.NoError(t, err)

	r := resolver.New(Factory(ix, nil), nil)
	r.StoreCollected(collected)

	out, err := r.GenerateSchema(context.Background(), entries)
	require.NoError(t, err)

	assert.Equal(t, []string{"GetOrders200Response", "Order_1", "When", "Catalog"}, out.Schema.Keys())
	assert.Equal(t, map[string]string{"Order": "Order_1"}, out.MappedReferences)

	list, _ := out.Schema.Get("GetOrders200Response")
	assert.Equal(t, schema.Array(schema.Ref("Order")), list)
	when, _ := out.Schema.Get("When")
	assert.Equal(t, schema.String(), when)
	catalog, _ := out.Schema.Get("Catalog")
	assert.Equal(t, schema.Ref("Entity_1"), catalog)

	order, _ := out.Refs.Get("Order")
	require.NotNil(t, order)
	assert.Equal(t, "Order is a placed order.", order.Global)
	assert.Equal(t, schema.Ref("State"), order.Property("state"))
	assert.Equal(t, schema.String(), order.Property("placed"))
	assert.Equal(t, schema.Array(schema.Ref("Line")), order.Property("lines"))

	state, _ := out.Refs.Get("State")
	require.NotNil(t, state)
	assert.Equal(t, []any{float64(0), float64(1)}, state.Values)
}

var marshalerSources = map[string]string{
	"example.com/feed/events/events.go": `package events

type Stamp struct {
	sec int64
}

func (s Stamp) MarshalText() ([]byte, error) { return nil, nil }

type Raw struct {
	data []byte
}

func (r *Raw) MarshalJSON() ([]byte, error) { return r.data, nil }

type Event struct {
	At      Stamp ` + "`json:\"at\"`" + `
	Payload Raw   ` + "`json:\"payload\"`" + `
	Name    string ` + "`json:\"name\"`" + `
}

type User struct {
	ID string ` + "`json:\"id\"`" + `
}

type Tree[T any] struct {
	Value T        ` + "`json:\"value\"`" + `
	Left  *Tree[T] ` + "`json:\"left,omitempty\"`" + `
	Right *Tree[T] ` + "`json:\"right,omitempty\"`" + `
}
`,
}

func TestFactory_ModelKeepsMarshalers(t *testing.T) {
	ix, err := typeindex.Build(loadertest.Program(t, marshalerSources), nil)
	require.NoError(t, err)

	collected, err := ix.Lookup([]string{"Event"})
	require.NoError(t, err)

	fromModel, err := func() (*schema.Schema, error) {
		r := resolver.New(Factory(ix, nil), nil)
		r.StoreCollected(collected)
		return r.GenerateSchema(context.Background(), []resolver.Entry{{Name: "Body", Model: "Event"}})
	}()
	require.NoError(t, err)

	decl, err := ix.Resolve("Event")
	require.NoError(t, err)
	require.NotNil(t, decl)
	typ, node := ix.Adapter().DescribeObject(decl.Obj)
	fromType, err := resolver.New(nil, nil).GenerateSchema(context.Background(), []resolver.Entry{{Name: "Body", Type: typ, Node: node}})
	require.NoError(t, err)

	assert.Equal(t, fromType, fromModel)

	event, _ := fromModel.Refs.Get("Event")
	require.NotNil(t, event)
	assert.Equal(t, schema.String(), event.Property("at"))
	assert.Equal(t, schema.Any(), event.Property("payload"))
	assert.False(t, fromModel.Refs.Has("Stamp"))
	assert.False(t, fromModel.Refs.Has("Raw"))
}

func TestFactory_RecursiveGeneric(t *testing.T) {
	ix, err := typeindex.Build(loadertest.Program(t, marshalerSources), nil)
	require.NoError(t, err)

	inline := "Tree[User]"
	collected, err := ix.Lookup([]string{inline})
	require.NoError(t, err)

	r := resolver.New(Factory(ix, nil), nil)
	r.StoreCollected(collected)
	out, err := r.GenerateSchema(context.Background(), []resolver.Entry{{Name: "Root", Inline: inline}})
	require.NoError(t, err)

	root, _ := out.Schema.Get("Root")
	assert.Equal(t, schema.Ref("Tree"), root)
	assert.Equal(t, []string{"User", "Tree"}, out.Refs.Keys())

	tree, _ := out.Refs.Get("Tree")
	require.NotNil(t, tree)
	assert.Equal(t, schema.Ref("User"), tree.Property("value"))
	assert.Equal(t, schema.Ref("Tree"), tree.Property("left"))
	assert.Equal(t, schema.Ref("Tree"), tree.Property("right"))
}
