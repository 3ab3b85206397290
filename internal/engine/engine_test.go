package engine

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apinni/apinni/internal/schema"
	"github.com/apinni/apinni/internal/typedesc"
	"github.com/apinni/apinni/internal/typedesc/fake"
)

func convert(t *testing.T, d typedesc.Descriptor) (*schema.Node, *schema.Table) {
	t.Helper()
	refs := NewReferences()
	e := New(refs, nil)
	node := e.Convert(Input{Type: d, Context: "Entry"})
	require.NotNil(t, node)
	return node, refs.Table("Entry")
}

func TestConvert_Primitives(t *testing.T) {
	tests := []struct {
		name string
		in   typedesc.Descriptor
		want *schema.Node
	}{
		{"any", fake.Any(), schema.Any()},
		{"never", fake.Never(), schema.Never()},
		{"undefined", fake.Undefined(), schema.Undefined()},
		{"null", fake.Null(), schema.Null()},
		{"string", fake.String(), schema.String()},
		{"template literal", &fake.Type{Shape: typedesc.TemplateLiteral}, schema.String()},
		{"number", fake.Number(), schema.Number()},
		{"boolean", fake.Boolean(), schema.Boolean()},
		{"string literal", fake.Lit("GET"), schema.StringConst("GET")},
		{"number literal", fake.Lit(3), schema.NumberConst(3)},
		{"boolean literal", fake.True(), schema.BooleanConst(true)},
		{"array", fake.Array(fake.String()), schema.Array(schema.String())},
		{"deferred", fake.Deferred(fake.Number()), schema.Number()},
		{"nil", nil, schema.Any()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, _ := convert(t, tt.in)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Convert() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestConvert_LiteralWithSymbolStaysInline(t *testing.T) {
	lit := fake.Named("Method", fake.Lit("POST"))

	got, refs := convert(t, lit)

	assert.Equal(t, schema.StringConst("POST"), got)
	assert.Equal(t, 0, refs.Len())
}

func TestConvert_UnionPolicy(t *testing.T) {
	tests := []struct {
		name string
		in   typedesc.Descriptor
		want *schema.Node
	}{
		{
			name: "optional member is dropped",
			in:   fake.Union(fake.String(), fake.Undefined()),
			want: schema.String(),
		},
		{
			name: "only undefined",
			in:   fake.Union(fake.Undefined()),
			want: schema.Undefined(),
		},
		{
			name: "true and false",
			in:   fake.Union(fake.True(), fake.False()),
			want: schema.Boolean(),
		},
		{
			name: "false and true",
			in:   fake.Union(fake.False(), fake.True(), fake.Undefined()),
			want: schema.Boolean(),
		},
		{
			name: "literals collapse to enum",
			in:   fake.Union(fake.Lit("a"), fake.Lit("b"), fake.Lit(1)),
			want: schema.Enum("a", "b", float64(1)),
		},
		{
			name: "mixed union keeps one boolean",
			in:   fake.Union(fake.String(), fake.True(), fake.Number(), fake.False()),
			want: schema.Union(schema.String(), schema.Boolean(), schema.Number()),
		},
		{
			name: "single boolean literal stays literal",
			in:   fake.Union(fake.String(), fake.True()),
			want: schema.Union(schema.String(), schema.BooleanConst(true)),
		},
		{
			name: "nullable",
			in:   fake.Union(fake.Number(), fake.Null()),
			want: schema.Union(schema.Number(), schema.Null()),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, _ := convert(t, tt.in)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Convert() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestConvert_OptionalEquivalence(t *testing.T) {
	plain, _ := convert(t, fake.Object(fake.Prop("name", fake.String())))
	optional, _ := convert(t, fake.Object(fake.OptProp("name", fake.Union(fake.String(), fake.Undefined()))))

	assert.Equal(t, plain.Property("name"), optional.Property("name"))
	assert.True(t, plain.IsRequired("name"))
	assert.False(t, optional.IsRequired("name"))
}

func TestConvert_Tuple(t *testing.T) {
	tuple := fake.Tuple(
		fake.Slot(fake.Number(), "width", false, false),
		fake.Slot(fake.Number(), "rest", false, true),
		fake.Slot(fake.String(), "", true, false),
	)

	got, _ := convert(t, tuple)

	want := schema.Tuple(
		schema.Slot{Type: schema.Number(), Name: "width"},
		schema.Slot{Type: schema.Number(), Name: "rest", Rest: true},
		schema.Slot{Type: schema.String(), Optional: true},
	)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Convert() mismatch (-want +got):\n%s", diff)
	}
}

func TestConvert_Object(t *testing.T) {
	obj := fake.Object(
		fake.Prop("id", fake.String()),
		fake.OptProp("age", fake.Number()),
		typedesc.Property{Name: "computed", Resolve: func(typedesc.Node) typedesc.Descriptor { return fake.Boolean() }},
		typedesc.Property{Name: "missing"},
	)
	obj.Index = fake.Number()

	got, _ := convert(t, obj)

	require.Equal(t, schema.KindObject, got.Kind)
	assert.Equal(t, []string{"id", "computed"}, got.Required)
	assert.Equal(t, schema.Boolean(), got.Property("computed"))
	assert.Nil(t, got.Property("missing"))
	assert.Len(t, got.Properties, 3)
	assert.Equal(t, schema.Number(), got.IndexedProperties)
}

func TestConvert_NamedTypeRegistersOnce(t *testing.T) {
	user := fake.Named("User", fake.Object(fake.Prop("id", fake.String())))
	pair := fake.Object(fake.Prop("a", user), fake.Prop("b", user))

	got, refs := convert(t, pair)

	assert.Equal(t, schema.Ref("User"), got.Property("a"))
	assert.Equal(t, schema.Ref("User"), got.Property("b"))
	assert.Equal(t, []string{"User"}, refs.Keys())

	body, ok := refs.Get("User")
	require.True(t, ok)
	assert.Equal(t, schema.String(), body.Property("id"))
}

func TestConvert_BuiltinNamesInline(t *testing.T) {
	ts := fake.Named("Time", fake.String())
	ts.Builtin = true

	got, refs := convert(t, ts)

	assert.Equal(t, schema.String(), got)
	assert.Equal(t, 0, refs.Len())
}

func TestConvert_ScratchNamesInline(t *testing.T) {
	scratch := fake.Aliased(typedesc.ScratchPrefix+"0", fake.Object(fake.Prop("id", fake.Number())))

	got, refs := convert(t, scratch)

	assert.Equal(t, schema.KindObject, got.Kind)
	assert.Equal(t, 0, refs.Len())
}

func TestConvert_SelfReference(t *testing.T) {
	node := fake.Named("Node", fake.Object())
	node.Props = []typedesc.Property{
		fake.Prop("value", fake.Number()),
		fake.OptProp("next", fake.Union(node, fake.Undefined())),
	}

	got, refs := convert(t, node)

	assert.Equal(t, schema.Ref("Node"), got)
	require.Equal(t, 1, refs.Len())

	body, _ := refs.Get("Node")
	require.NotNil(t, body)
	assert.Equal(t, schema.Ref("Node"), body.Property("next"))
}

func TestConvert_DepthCeiling(t *testing.T) {
	loop := fake.Object()
	loop.Props = []typedesc.Property{fake.Prop("next", loop)}

	refs := NewReferences()
	e := New(refs, nil)
	e.MaxDepth = 5

	got := e.Convert(Input{Type: loop, Context: "Loop"})

	depth := 0
	for got.Kind == schema.KindObject {
		got = got.Property("next")
		depth++
		require.LessOrEqual(t, depth, e.MaxDepth+1)
	}
	assert.Equal(t, schema.KindAny, got.Kind)
}

func TestConvert_GenericArgsRegistered(t *testing.T) {
	user := fake.Named("User", fake.Object(fake.Prop("id", fake.String())))
	page := fake.Aliased("Page", fake.Object(fake.Prop("items", fake.Array(user)), fake.Prop("total", fake.Number())))
	page.Args = []typedesc.Descriptor{user, fake.String()}

	got, refs := convert(t, page)

	require.Equal(t, schema.KindObject, got.Kind)
	assert.Equal(t, schema.Array(schema.Ref("User")), got.Property("items"))
	assert.Equal(t, []string{"User"}, refs.Keys())
}

func TestConvert_RecursiveGeneric(t *testing.T) {
	user := fake.Named("User", fake.Object(fake.Prop("id", fake.String())))
	list := fake.Aliased("List", fake.Object())
	list.Args = []typedesc.Descriptor{user}
	list.Props = []typedesc.Property{
		fake.Prop("value", user),
		fake.OptProp("next", fake.Union(list, fake.Undefined())),
	}

	got, refs := convert(t, list)

	assert.Equal(t, schema.Ref("List"), got)
	assert.Equal(t, []string{"User", "List"}, refs.Keys())

	body, _ := refs.Get("List")
	require.NotNil(t, body)
	assert.Equal(t, schema.Ref("User"), body.Property("value"))
	assert.Equal(t, schema.Ref("List"), body.Property("next"))
}

func TestConvert_RecursiveGenericBranches(t *testing.T) {
	user := fake.Named("User", fake.Object(fake.Prop("id", fake.String())))
	tree := fake.Aliased("Tree", fake.Object())
	tree.Args = []typedesc.Descriptor{user}
	tree.Props = []typedesc.Property{
		fake.Prop("value", user),
		fake.OptProp("left", fake.Union(tree, fake.Undefined())),
		fake.OptProp("right", fake.Union(tree, fake.Undefined())),
	}
	holder := fake.Object(
		fake.Prop("root", tree),
		fake.Prop("spare", tree),
	)

	got, refs := convert(t, holder)

	assert.Equal(t, schema.Ref("Tree"), got.Property("root"))
	assert.Equal(t, schema.Ref("Tree"), got.Property("spare"))
	assert.Equal(t, []string{"User", "Tree"}, refs.Keys())

	body, _ := refs.Get("Tree")
	require.NotNil(t, body)
	assert.Equal(t, schema.Ref("Tree"), body.Property("left"))
	assert.Equal(t, schema.Ref("Tree"), body.Property("right"))
}

func TestConvert_RecursiveGenericNameTaken(t *testing.T) {
	user := fake.Named("User", fake.Object(fake.Prop("id", fake.String())))
	list := fake.Aliased("List", fake.Object())
	list.Args = []typedesc.Descriptor{user}
	list.Props = []typedesc.Property{
		fake.OptProp("next", fake.Union(list, fake.Undefined())),
	}

	refs := NewReferences()
	e := New(refs, nil)
	refs.Table("Entry").Set("List", schema.String())

	got := e.Convert(Input{Type: list, Context: "Entry"})

	assert.Equal(t, schema.Ref("ListOfUser"), got)
	body, _ := refs.Table("Entry").Get("ListOfUser")
	require.NotNil(t, body)
	assert.Equal(t, schema.Ref("ListOfUser"), body.Property("next"))
}

func TestConvert_DocsMerged(t *testing.T) {
	owner := fake.Named("Owner", fake.Object(fake.Prop("name", fake.String())))
	user := fake.Documented(
		fake.Named("User", fake.Object(
			fake.DocProp("id", fake.String(), "@description The identifier\n@example \"42\""),
			fake.DocProp("owner", owner, "@deprecated use group"),
		)),
		"A user of the system.\n@deprecated",
	)

	_, refs := convert(t, user)

	body, _ := refs.Get("User")
	require.NotNil(t, body)
	assert.Equal(t, "A user of the system.", body.Global)
	assert.Equal(t, "true", body.Deprecated)

	id := body.Property("id")
	assert.Equal(t, schema.KindString, id.Kind)
	assert.Equal(t, "The identifier", id.Description)
	assert.Equal(t, `"42"`, id.Example)

	ownerRef := body.Property("owner")
	assert.Equal(t, schema.KindRef, ownerRef.Kind)
	assert.Equal(t, "use group", ownerRef.Deprecated)

	ownerBody, _ := refs.Get("Owner")
	assert.Empty(t, ownerBody.Deprecated)
}

func TestConvert_EnumDocs(t *testing.T) {
	status := fake.Documented(fake.Enum("Status", "active", "disabled"), "Account state.")

	got, refs := convert(t, status)

	assert.Equal(t, schema.Ref("Status"), got)
	body, _ := refs.Get("Status")
	require.NotNil(t, body)
	assert.Equal(t, []any{"active", "disabled"}, body.Values)
	assert.Equal(t, "Account state.", body.Global)
}

func TestReferences_MergeFirstWriterWins(t *testing.T) {
	refs := NewReferences()
	refs.Table("A").Set("User", schema.String())
	refs.Table("B").Set("User", schema.Number())
	refs.Table("B").Set("Group", schema.Boolean())
	refs.Table("C").Reserve("Pending")

	merged := refs.Merge()

	assert.Equal(t, []string{"User", "Group"}, merged.Keys())
	user, _ := merged.Get("User")
	assert.Equal(t, schema.String(), user)
	assert.Equal(t, []string{"A", "B", "C"}, refs.Contexts())
}
