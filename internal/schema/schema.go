package schema

// Schema is the result of one batch: top-level entries, the named
// definitions discovered while converting them, and the renames forced by
// collisions between the two.
type Schema struct {
	Schema           *Table            `json:"schema"`
	Refs             *Table            `json:"refs"`
	MappedReferences map[string]string `json:"mappedReferences"`
}

// New creates an empty schema
func New() *Schema {
	return &Schema{
		Schema:           NewTable(),
		Refs:             NewTable(),
		MappedReferences: make(map[string]string),
	}
}

// Mapped returns the final name of a top-level entry after collision
// resolution.
func (s *Schema) Mapped(name string) string {
	if mapped, ok := s.MappedReferences[name]; ok {
		return mapped
	}
	return name
}
