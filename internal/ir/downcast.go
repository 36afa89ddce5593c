package ir

import (
	"sort"

	"github.com/goccy/go-json"
)

// DowncastEntry is a shape a response object of some concrete type can be
// read as, provided Conditions hold.
type DowncastEntry struct {
	Path       ScopePath    `json:"path"`
	Conditions ConditionSet `json:"conditions,omitempty"`
}

// DowncastTable maps a runtime __typename to the shapes of one entity that
// apply to it, in derivation order.
type DowncastTable struct {
	entries map[string][]DowncastEntry
}

func BuildDowncastTable(root *Shape) *DowncastTable {
	t := &DowncastTable{entries: make(map[string][]DowncastEntry)}
	root.Walk(func(s *Shape) {
		for _, typename := range s.PossibleTypes {
			t.entries[typename] = append(t.entries[typename], DowncastEntry{Path: s.Path, Conditions: s.Conditions})
		}
	})
	return t
}

// Typenames lists the concrete types known to the table.
func (t *DowncastTable) Typenames() []string {
	names := make([]string, 0, len(t.entries))
	for name := range t.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (t *DowncastTable) Entries(typename string) []DowncastEntry {
	return t.entries[typename]
}

// Lookup returns the shapes an object of typename can be read as under the
// given variable values.
func (t *DowncastTable) Lookup(typename string, variables map[string]bool) []ScopePath {
	var out []ScopePath
	for _, e := range t.entries[typename] {
		if e.Conditions.Evaluate(variables) {
			out = append(out, e.Path)
		}
	}
	return out
}

func (t *DowncastTable) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.entries)
}
