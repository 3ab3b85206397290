package schema

// Table is an insertion-ordered map from definition name to node.
// A name may be reserved before its node is known so that recursive
// conversions observe it as already registered.
type Table struct {
	keys  []string
	nodes map[string]*Node
}

// NewTable creates an empty table
func NewTable() *Table {
	return &Table{nodes: make(map[string]*Node)}
}

// Has reports whether name is registered or reserved.
func (t *Table) Has(name string) bool {
	_, ok := t.nodes[name]
	return ok
}

// Get returns the node registered under name. Reserved names return nil, true.
func (t *Table) Get(name string) (*Node, bool) {
	n, ok := t.nodes[name]
	return n, ok
}

// Reserve registers name without a node. It is a no-op for known names.
func (t *Table) Reserve(name string) {
	if t.Has(name) {
		return
	}
	t.keys = append(t.keys, name)
	t.nodes[name] = nil
}

// Set registers node under name, keeping the position of an existing key.
func (t *Table) Set(name string, node *Node) {
	if !t.Has(name) {
		t.keys = append(t.keys, name)
	}
	t.nodes[name] = node
}

// SetIfAbsent registers node under name unless the name is already present.
func (t *Table) SetIfAbsent(name string, node *Node) bool {
	if t.Has(name) {
		return false
	}
	t.Set(name, node)
	return true
}

// Rename moves the node registered under from to to, keeping its position.
func (t *Table) Rename(from, to string) {
	node, ok := t.nodes[from]
	if !ok || from == to {
		return
	}
	delete(t.nodes, from)
	t.nodes[to] = node
	for i, k := range t.keys {
		if k == from {
			t.keys[i] = to
			break
		}
	}
}

// Delete removes name from the table.
func (t *Table) Delete(name string) {
	if !t.Has(name) {
		return
	}
	delete(t.nodes, name)
	for i, k := range t.keys {
		if k == name {
			t.keys = append(t.keys[:i], t.keys[i+1:]...)
			break
		}
	}
}

// Keys returns the names in insertion order.
func (t *Table) Keys() []string {
	out := make([]string, len(t.keys))
	copy(out, t.keys)
	return out
}

// Len returns the number of names.
func (t *Table) Len() int {
	return len(t.keys)
}

// Each calls fn for every entry with a node, in insertion order.
func (t *Table) Each(fn func(name string, node *Node)) {
	for _, k := range t.keys {
		if n := t.nodes[k]; n != nil {
			fn(k, n)
		}
	}
}
