package ir

import (
	"strings"

	"github.com/goccy/go-json"

	"github.com/hanpama/shapegen/internal/language"
	"github.com/hanpama/shapegen/internal/schema"
)

// ScopePath names a shape from the root of its entity, e.g. AllAnimals.AsPet.
type ScopePath []string

func (p ScopePath) String() string { return strings.Join(p, ".") }

func (p ScopePath) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.String())
}

func (p ScopePath) Equal(o ScopePath) bool {
	if len(p) != len(o) {
		return false
	}
	for i := range p {
		if p[i] != o[i] {
			return false
		}
	}
	return true
}

func (p ScopePath) append(name string) ScopePath {
	return append(append(ScopePath(nil), p...), name)
}

// Shape is one typed view of a response position: the fields guaranteed (or
// conditionally present) for objects of PossibleTypes when Conditions hold.
type Shape struct {
	Name              string       `json:"name"`
	Path              ScopePath    `json:"path"`
	Entity            EntityID     `json:"entity"`
	ParentType        *schema.Type `json:"-"`
	PossibleTypes     TypeSet      `json:"possibleTypes"`
	Conditions        ConditionSet `json:"conditions,omitempty"`
	MergedOnly        bool         `json:"mergedOnly,omitempty"`
	Fields            []*FieldNode `json:"fields"`
	FragmentsIncluded []string     `json:"fragmentsIncluded,omitempty"`
	ChildShapes       []*Shape     `json:"childShapes,omitempty"`
	FulfilledScopes   []ScopePath  `json:"fulfilledScopes"`

	fieldIndex map[string]*FieldNode
}

func (s *Shape) MarshalJSON() ([]byte, error) {
	type shape Shape
	return json.Marshal(struct {
		ParentType string `json:"parentType"`
		*shape
	}{
		ParentType: s.ParentType.Name,
		shape:      (*shape)(s),
	})
}

func (s *Shape) Field(responseKey string) *FieldNode {
	return s.fieldIndex[responseKey]
}

// FieldKeys lists the response keys in field order.
func (s *Shape) FieldKeys() []string {
	keys := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		keys[i] = f.ResponseKey
	}
	return keys
}

func (s *Shape) Child(name string) *Shape {
	for _, c := range s.ChildShapes {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// Find descends through child shapes by local name.
func (s *Shape) Find(names ...string) *Shape {
	cur := s
	for _, name := range names {
		if cur = cur.Child(name); cur == nil {
			return nil
		}
	}
	return cur
}

func (s *Shape) Fulfills(path ScopePath) bool {
	for _, p := range s.FulfilledScopes {
		if p.Equal(path) {
			return true
		}
	}
	return false
}

// Walk visits s and its child shapes depth-first. Nested field selections are
// not visited.
func (s *Shape) Walk(fn func(*Shape)) {
	fn(s)
	for _, c := range s.ChildShapes {
		c.Walk(fn)
	}
}

func (s *Shape) addField(f *FieldNode) {
	if s.fieldIndex == nil {
		s.fieldIndex = make(map[string]*FieldNode)
	}
	s.fieldIndex[f.ResponseKey] = f
	s.Fields = append(s.Fields, f)
}

// signature summarizes the field and fragment content of s.
func (s *Shape) signature() string {
	var b strings.Builder
	for _, f := range s.Fields {
		b.WriteString(f.ResponseKey)
		if f.IsOptional() {
			b.WriteByte('?')
		}
		b.WriteByte(',')
	}
	b.WriteByte('|')
	b.WriteString(strings.Join(s.FragmentsIncluded, ","))
	return b.String()
}

type FieldNode struct {
	ResponseKey  string                `json:"responseKey"`
	Name         string                `json:"name"`
	Arguments    language.ArgumentList `json:"-"`
	ArgumentsKey string                `json:"arguments,omitempty"`
	// Type is the effective type in the enclosing shape: non-null is dropped
	// when the field is not always present.
	Type              *GraphQLType `json:"type"`
	SchemaType        *GraphQLType `json:"schemaType"`
	Inclusion         Inclusion    `json:"inclusion,omitempty"`
	IsDeprecated      bool         `json:"deprecated,omitempty"`
	DeprecationReason string       `json:"deprecationReason,omitempty"`
	Selection         *Shape       `json:"selection,omitempty"`
}

func (f *FieldNode) IsOptional() bool { return !f.Inclusion.IsUnconditional() }
