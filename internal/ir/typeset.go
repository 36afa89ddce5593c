package ir

import (
	"sort"
	"sync"

	"github.com/hanpama/shapegen/internal/schema"
)

// TypeSet is a sorted, duplicate-free set of object type names.
type TypeSet []string

func NewTypeSet(names ...string) TypeSet {
	out := append(TypeSet(nil), names...)
	sort.Strings(out)
	n := 0
	for i, name := range out {
		if i > 0 && name == out[n-1] {
			continue
		}
		out[n] = name
		n++
	}
	return out[:n]
}

func (s TypeSet) Empty() bool { return len(s) == 0 }

func (s TypeSet) Contains(name string) bool {
	i := sort.SearchStrings(s, name)
	return i < len(s) && s[i] == name
}

func (s TypeSet) IsSubsetOf(o TypeSet) bool {
	if len(s) > len(o) {
		return false
	}
	j := 0
	for _, name := range s {
		for j < len(o) && o[j] < name {
			j++
		}
		if j == len(o) || o[j] != name {
			return false
		}
		j++
	}
	return true
}

func (s TypeSet) Equal(o TypeSet) bool {
	return len(s) == len(o) && s.IsSubsetOf(o)
}

func (s TypeSet) Intersect(o TypeSet) TypeSet {
	var out TypeSet
	i, j := 0, 0
	for i < len(s) && j < len(o) {
		switch {
		case s[i] == o[j]:
			out = append(out, s[i])
			i++
			j++
		case s[i] < o[j]:
			i++
		default:
			j++
		}
	}
	return out
}

func (s TypeSet) Overlaps(o TypeSet) bool {
	return !s.Intersect(o).Empty()
}

func (s TypeSet) Union(o TypeSet) TypeSet {
	return NewTypeSet(append(append([]string(nil), s...), o...)...)
}

// typeGraph memoizes possible-type sets of the schema. It is shared by every
// unit of a compile batch, so the cache is safe for concurrent use.
type typeGraph struct {
	schema *schema.Schema
	sets   sync.Map // type name -> TypeSet
}

func newTypeGraph(s *schema.Schema) *typeGraph {
	return &typeGraph{schema: s}
}

func (g *typeGraph) namedType(name string) *schema.Type {
	return g.schema.NamedType(name)
}

func (g *typeGraph) field(t *schema.Type, name string) *schema.Field {
	for _, f := range g.schema.Fields(t) {
		if f.Name == name {
			return f
		}
	}
	return nil
}

// classify applies a type condition to a scope whose possible types are
// enclosing and whose nearest declared type is parent. A declared subtype
// settles AlwaysTrue before any set comparison.
func (g *typeGraph) classify(parent *schema.Type, enclosing TypeSet, cond *schema.Type) (Classification, TypeSet) {
	if g.schema.IsSubtype(parent, cond) && enclosing.IsSubsetOf(g.possible(parent)) {
		return AlwaysTrue, enclosing
	}
	return Classify(enclosing, g.possible(cond))
}

func (g *typeGraph) possible(t *schema.Type) TypeSet {
	if t == nil {
		return nil
	}
	if v, ok := g.sets.Load(t.Name); ok {
		return v.(TypeSet)
	}
	types := g.schema.PossibleTypes(t)
	names := make([]string, 0, len(types))
	for _, pt := range types {
		names = append(names, pt.Name)
	}
	set := NewTypeSet(names...)
	v, _ := g.sets.LoadOrStore(t.Name, set)
	return v.(TypeSet)
}
