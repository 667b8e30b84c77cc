package boundary

import "graft/internal/elab"

type entry struct {
	pair Pair
	text string
}

// Table records the conversion pairs generated in one environment,
// keyed by resolved type name. Elaboration within an environment is
// sequential, so the table is unsynchronized.
type Table struct {
	entries map[string]entry
}

// NewTable creates an empty pair table.
func NewTable() *Table {
	return &Table{entries: make(map[string]entry)}
}

// Lookup returns the pair recorded for a resolved type name.
func (t *Table) Lookup(resolved string) (Pair, bool) {
	e, ok := t.entries[resolved]
	return e.pair, ok
}

// Len returns the number of recorded types.
func (t *Table) Len() int {
	return len(t.entries)
}

var tableExt = elab.NewExt(func() *Table { return NewTable() })

// TableOf returns the environment's pair table, creating it on first use.
func TableOf(env *elab.Env) *Table {
	return tableExt.Get(env)
}
