package ir

import (
	"github.com/hanpama/shapegen/internal/language"
	"github.com/hanpama/shapegen/internal/schema"
)

type EntityID int

// Entity is one object-valued position in the response tree. Every selection
// reaching the same position, through any fragment or scope, shares the
// Entity and its field table.
type Entity struct {
	ID     EntityID
	Parent *Entity
	// Path holds the response keys from the unit root.
	Path []string
	Type *schema.Type

	possible    TypeSet
	root        *ScopeNode
	fields      []*fieldEntry
	fieldIndex  map[string][]*fieldEntry
	spreads     []*spreadEntry
	spreadIndex map[string]*spreadEntry
}

func (e *Entity) PossibleTypes() TypeSet { return e.possible }
func (e *Entity) Root() *ScopeNode       { return e.root }

// FieldKeys lists the response keys of the field table in first-seen order.
func (e *Entity) FieldKeys() []string {
	var keys []string
	seen := make(map[string]bool, len(e.fields))
	for _, f := range e.fields {
		if !seen[f.responseKey] {
			seen[f.responseKey] = true
			keys = append(keys, f.responseKey)
		}
	}
	return keys
}

// fieldEntry is one field identity (response key, name, arguments) of an
// entity with every place it was selected.
type fieldEntry struct {
	responseKey  string
	name         string
	arguments    language.ArgumentList
	argumentsKey string
	typ          *GraphQLType
	child        *Entity
	occurrences  []*occurrence
}

type spreadEntry struct {
	name        string
	occurrences []*occurrence
}

// occurrence records the scope chain a field or spread was selected under.
type occurrence struct {
	chain      *scopeChain
	typ        *GraphQLType
	definition *schema.Field
	pos        *language.Position

	levels     []*ScopeNode
	conditions ConditionSet
}

func (o *occurrence) freeze() {
	o.levels = o.chain.levels()
	o.conditions = o.chain.conditions()
}

func (o *occurrence) node() *ScopeNode {
	return o.chain.node
}

// overlaps reports whether two occurrences of one entity can apply to the same
// response object.
func (o *occurrence) overlaps(chain *scopeChain) bool {
	for a, b := o.chain, chain; a != nil && b != nil; a, b = a.parent, b.parent {
		if !a.node.PossibleTypes().Overlaps(b.node.PossibleTypes()) {
			return false
		}
	}
	return true
}

func (e *Entity) addField(f *fieldSelection, chain *scopeChain) (*fieldEntry, error) {
	occ := &occurrence{chain: chain, typ: f.typ, definition: f.definition, pos: f.pos}
	candidates := e.fieldIndex[f.responseKey]
	for _, entry := range candidates {
		if entry.name != f.name || entry.argumentsKey != f.argumentsKey {
			continue
		}
		if !sameResponseShape(entry.typ, f.typ) {
			return nil, &SchemaMismatchError{
				Location:    locationOf(f.pos),
				ResponseKey: f.responseKey,
				Existing:    entry.typ.String(),
				Conflicting: f.typ.String(),
			}
		}
		entry.occurrences = append(entry.occurrences, occ)
		return entry, nil
	}
	for _, entry := range candidates {
		for _, other := range entry.occurrences {
			if other.overlaps(chain) {
				return nil, &ResponseKeyConflictError{
					Location:    locationOf(f.pos),
					ResponseKey: f.responseKey,
					Existing:    entry.name + entry.argumentsKey,
					Conflicting: f.name + f.argumentsKey,
				}
			}
		}
	}
	entry := &fieldEntry{
		responseKey:  f.responseKey,
		name:         f.name,
		arguments:    f.arguments,
		argumentsKey: f.argumentsKey,
		typ:          f.typ,
		occurrences:  []*occurrence{occ},
	}
	if e.fieldIndex == nil {
		e.fieldIndex = make(map[string][]*fieldEntry)
	}
	e.fieldIndex[f.responseKey] = append(candidates, entry)
	e.fields = append(e.fields, entry)
	return entry, nil
}

func (e *Entity) addSpread(name string, chain *scopeChain, pos *language.Position) {
	entry, ok := e.spreadIndex[name]
	if !ok {
		entry = &spreadEntry{name: name}
		if e.spreadIndex == nil {
			e.spreadIndex = make(map[string]*spreadEntry)
		}
		e.spreadIndex[name] = entry
		e.spreads = append(e.spreads, entry)
	}
	entry.occurrences = append(entry.occurrences, &occurrence{chain: chain, pos: pos})
}

type entityKey struct {
	parent       EntityID
	responseKey  string
	name         string
	argumentsKey string
}

// entityTracker hands out entities for one compilation unit. Lookups are
// idempotent per (parent, response key, field name, arguments).
type entityTracker struct {
	graph    *typeGraph
	entities []*Entity
	index    map[entityKey]*Entity
}

func newEntityTracker(graph *typeGraph) *entityTracker {
	return &entityTracker{graph: graph, index: make(map[entityKey]*Entity)}
}

func (t *entityTracker) root(typ *schema.Type) *Entity {
	return t.entity(nil, "", "", "", typ)
}

func (t *entityTracker) entity(parent *Entity, responseKey, name, argumentsKey string, typ *schema.Type) *Entity {
	key := entityKey{parent: -1, responseKey: responseKey, name: name, argumentsKey: argumentsKey}
	if parent != nil {
		key.parent = parent.ID
	}
	possible := t.graph.possible(typ)
	if e, ok := t.index[key]; ok {
		// covariant field definitions in different scopes widen the entity
		if !possible.IsSubsetOf(e.possible) {
			if e.possible.IsSubsetOf(possible) {
				e.Type = typ
			}
			e.possible = e.possible.Union(possible)
		}
		return e
	}
	e := &Entity{
		ID:       EntityID(len(t.entities)),
		Parent:   parent,
		Type:     typ,
		possible: possible,
	}
	if parent != nil {
		e.Path = append(append([]string(nil), parent.Path...), responseKey)
	}
	e.root = newRootScope(e)
	t.entities = append(t.entities, e)
	t.index[key] = e
	return e
}

// freeze caches scope data once merging is complete. Entities are read-only
// afterwards.
func (t *entityTracker) freeze() {
	for _, e := range t.entities {
		e.root.freeze()
	}
	for _, e := range t.entities {
		for _, f := range e.fields {
			for _, o := range f.occurrences {
				o.freeze()
			}
		}
		for _, s := range e.spreads {
			for _, o := range s.occurrences {
				o.freeze()
			}
		}
	}
}
