package engine

import "github.com/apinni/apinni/internal/schema"

// DefaultContext is the reference context used when a conversion names none.
const DefaultContext = "__default"

// References owns the reference tables of one batch, one table per
// reference context. It is not safe for concurrent use.
type References struct {
	order  []string
	tables map[string]*schema.Table

	// instances maps a recursive generic instantiation, keyed by context
	// and instance key, to the definition it was registered under.
	instances map[string]string
	// expanding holds the instantiations currently being converted inline.
	expanding map[string]*expansion
}

// expansion is one generic instantiation being converted inline. ref is set
// once the instantiation is met again inside its own expansion.
type expansion struct {
	ref string
}

// NewReferences creates an empty set of reference tables
func NewReferences() *References {
	return &References{
		tables:    make(map[string]*schema.Table),
		instances: make(map[string]string),
		expanding: make(map[string]*expansion),
	}
}

// Table returns the table of a context, creating it on first use.
func (r *References) Table(context string) *schema.Table {
	if t, ok := r.tables[context]; ok {
		return t
	}
	t := schema.NewTable()
	r.tables[context] = t
	r.order = append(r.order, context)
	return t
}

// Contexts returns the context names in creation order.
func (r *References) Contexts() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Merge flattens every table into one. Contexts are visited in creation
// order and the first definition of a name wins.
func (r *References) Merge() *schema.Table {
	merged := schema.NewTable()
	for _, ctx := range r.order {
		r.tables[ctx].Each(func(name string, node *schema.Node) {
			merged.SetIfAbsent(name, node)
		})
	}
	return merged
}
