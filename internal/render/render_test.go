package render

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/apinni/apinni/internal/schema"
)

func TestType(t *testing.T) {
	tests := []struct {
		name string
		node *schema.Node
		want string
	}{
		{"nil", nil, "any"},
		{"any", schema.Any(), "any"},
		{"ref", schema.Ref("User"), "User"},
		{"string", schema.String(), "string"},
		{"string const", schema.StringConst(`say "hi"`), `"say \"hi\""`},
		{"empty string const", schema.StringConst(""), `""`},
		{"control character const", schema.StringConst("bell\a"), `"bell\u0007"`},
		{"markup const", schema.StringConst("<a & b>"), `"<a & b>"`},
		{"unicode const", schema.StringConst("café"), `"café"`},
		{"enum control character", schema.Enum("tab\t", "\x01"), `"tab\t" | "\u0001"`},
		{"number const", schema.NumberConst(1.5), "1.5"},
		{"zero const", schema.NumberConst(0), "0"},
		{"boolean const", schema.BooleanConst(false), "false"},
		{"null", schema.Null(), "null"},
		{"undefined", schema.Undefined(), "undefined"},
		{"never", schema.Never(), "never"},
		{"array", schema.Array(schema.Number()), "number[]"},
		{"array of union", schema.Array(schema.Union(schema.String(), schema.Null())), "(string | null)[]"},
		{"enum", schema.Enum("a", float64(2), true), `"a" | 2 | true`},
		{
			name: "nested union",
			node: schema.Union(schema.String(), schema.Union(schema.Number(), schema.Null())),
			want: "string | (number | null)",
		},
		{
			name: "intersection",
			node: schema.Intersection(schema.Ref("Base"), schema.Union(schema.Ref("A"), schema.Ref("B"))),
			want: "Base &\n(A | B)",
		},
		{
			name: "tuple",
			node: schema.Tuple(
				schema.Slot{Type: schema.Number(), Name: "width"},
				schema.Slot{Type: schema.Number(), Name: "rest", Rest: true},
				schema.Slot{Type: schema.Number()},
			),
			want: "[width: number, ...rest: (number)[], number]",
		},
		{
			name: "unnamed optional slot",
			node: schema.Tuple(schema.Slot{Type: schema.String(), Optional: true}),
			want: "[string?]",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Type(tt.node, 0))
		})
	}
}

func TestType_Object(t *testing.T) {
	obj := schema.Object()
	obj.IndexedProperties = schema.Number()
	obj.AddProperty("id", schema.String(), true)
	obj.AddProperty("content-type", schema.String(), false)

	nested := schema.Object()
	nested.AddProperty("x", schema.Number(), true)
	obj.AddProperty("point", nested, true)

	want := "{\n" +
		"  [key: string]: number;\n" +
		"  id: string;\n" +
		"  \"content-type\"?: string;\n" +
		"  point: {\n" +
		"    x: number;\n" +
		"  };\n" +
		"}"
	assert.Equal(t, want, Type(obj, 0))
	assert.Equal(t, "{}", Type(schema.Object(), 0))

	escaped := schema.Object()
	escaped.AddProperty("bell\a", schema.String(), true)
	assert.Equal(t, "{\n  \"bell\\u0007\": string;\n}", Type(escaped, 0))
}

func TestType_PropertyDocs(t *testing.T) {
	id := schema.String()
	id.Description = "The identifier"
	id.Deprecated = "true"

	obj := schema.Object()
	obj.AddProperty("id", id, true)

	want := "{\n" +
		"  /**\n" +
		"   * @description The identifier\n" +
		"   * @deprecated\n" +
		"   */\n" +
		"  id: string;\n" +
		"}"
	assert.Equal(t, want, Type(obj, 0))
}

func TestRender(t *testing.T) {
	s := schema.New()

	user := schema.Object()
	user.AddProperty("name", schema.String(), true)
	user.Global = "A user.\nSecond line."
	user.Example = `{"name": "ada"}`
	s.Refs.Set("User", user)
	s.Schema.Set("GetUsers200Response", schema.Array(schema.Ref("User")))

	want := "/**\n" +
		" * A user.\n" +
		" * Second line.\n" +
		" * @example {\"name\": \"ada\"}\n" +
		" */\n" +
		"export type User = {\n" +
		"  name: string;\n" +
		"};\n" +
		"export type GetUsers200Response = User[];"

	got := Render(s)
	assert.Equal(t, want, got)
	assert.Equal(t, got, Render(s), "rendering is idempotent")
}

func TestRender_SkipsReservedNames(t *testing.T) {
	s := schema.New()
	s.Refs.Reserve("Pending")
	s.Schema.Set("Entry", schema.Number())

	assert.Equal(t, "export type Entry = number;", Render(s))
}
