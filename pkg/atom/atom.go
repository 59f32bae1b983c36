// Package atom interns property names and short strings into stable
// 32-bit integer ids (SPEC_FULL.md §3.3), so the compiler and VM can
// compare and hash names as plain integers instead of byte slices.
package atom

// Atom is a stable identifier for an interned name. Ids are assigned
// sequentially and never reused for the lifetime of the Table that
// produced them.
type Atom uint32

// Table interns strings into Atoms and resolves Atoms back to strings.
// Atom ids are stable for the Table's lifetime (§3.3); they participate
// directly in PropertyTable hash lookups (pkg/heap).
type Table struct {
	ids     map[string]Atom
	strings []string
}

// NewTable constructs an empty atom table.
func NewTable() *Table {
	return &Table{ids: make(map[string]Atom)}
}

// Intern returns s's atom, assigning it a fresh id on first use.
func (t *Table) Intern(s string) Atom {
	if id, ok := t.ids[s]; ok {
		return id
	}
	id := Atom(len(t.strings))
	t.strings = append(t.strings, s)
	t.ids[s] = id
	return id
}

// Lookup returns s's atom without interning it, reporting whether s has
// ever been interned.
func (t *Table) Lookup(s string) (Atom, bool) {
	id, ok := t.ids[s]
	return id, ok
}

// String resolves an atom back to its interned string. Panics on an id
// that was never produced by this table — a use of a foreign or
// corrupted atom id is an engine bug, not a recoverable condition.
func (t *Table) String(a Atom) string {
	return t.strings[a]
}

// Len returns the number of distinct interned names.
func (t *Table) Len() int {
	return len(t.strings)
}

// Well-known atoms the runtime and VM reference by name frequently
// enough to warrant fixed ids, interned eagerly when a Table is
// attached to a Context (pkg/context). Keeping them first in every
// fresh table makes their ids predictable across engine instances,
// which simplifies runtime bootstrap code that hard-codes them.
const (
	WellKnownLength = iota
	WellKnownPrototype
	WellKnownConstructor
	WellKnownName
	WellKnownMessage
	WellKnownValueOf
	WellKnownToString
	WellKnownCount
)

var wellKnownNames = [WellKnownCount]string{
	WellKnownLength:      "length",
	WellKnownPrototype:   "prototype",
	WellKnownConstructor: "constructor",
	WellKnownName:        "name",
	WellKnownMessage:     "message",
	WellKnownValueOf:     "valueOf",
	WellKnownToString:    "toString",
}

// InternWellKnown interns every well-known name into t, in order, and
// returns their atoms indexed by the WellKnown* constants above.
func (t *Table) InternWellKnown() [WellKnownCount]Atom {
	var out [WellKnownCount]Atom
	for i, name := range wellKnownNames {
		out[i] = t.Intern(name)
	}
	return out
}
