package ir

import (
	"github.com/goccy/go-json"

	"github.com/hanpama/shapegen/internal/schema"
)

// TypeKind tags the variants of GraphQLType.
type TypeKind int

const (
	KindEntity TypeKind = iota
	KindScalar
	KindEnum
	KindInputObject
	KindNonNull
	KindList
)

func (k TypeKind) String() string {
	switch k {
	case KindEntity:
		return "Entity"
	case KindScalar:
		return "Scalar"
	case KindEnum:
		return "Enum"
	case KindInputObject:
		return "InputObject"
	case KindNonNull:
		return "NonNull"
	case KindList:
		return "List"
	}
	return "Unknown"
}

// GraphQLType is a type reference resolved against the schema. Named kinds
// carry the schema type, wrapper kinds carry OfType.
type GraphQLType struct {
	Kind   TypeKind
	Named  *schema.Type
	OfType *GraphQLType
}

func (t *GraphQLType) IsNonNull() bool { return t != nil && t.Kind == KindNonNull }
func (t *GraphQLType) IsList() bool    { return t.Nullable().Kind == KindList }

// NamedType unwraps every list and non-null layer and returns the schema type.
func (t *GraphQLType) NamedType() *schema.Type {
	return t.InnermostType().Named
}

// InnermostType strips every list and non-null wrapper.
func (t *GraphQLType) InnermostType() *GraphQLType {
	cur := t
	for cur != nil && (cur.Kind == KindNonNull || cur.Kind == KindList) {
		cur = cur.OfType
	}
	return cur
}

// Nullable strips one outer non-null wrapper if present.
func (t *GraphQLType) Nullable() *GraphQLType {
	if t.IsNonNull() {
		return t.OfType
	}
	return t
}

// IsEntity reports whether the innermost type is an object, interface or union.
func (t *GraphQLType) IsEntity() bool {
	inner := t.InnermostType()
	return inner != nil && inner.Kind == KindEntity
}

func (t *GraphQLType) listDepth() int {
	depth := 0
	for cur := t; cur != nil; cur = cur.OfType {
		if cur.Kind == KindList {
			depth++
		}
	}
	return depth
}

func (t *GraphQLType) String() string {
	if t == nil {
		return ""
	}
	switch t.Kind {
	case KindNonNull:
		return t.OfType.String() + "!"
	case KindList:
		return "[" + t.OfType.String() + "]"
	}
	return t.Named.Name
}

func (t *GraphQLType) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

func newGraphQLType(g *typeGraph, ref *schema.TypeRef) (*GraphQLType, error) {
	switch ref.Kind {
	case schema.TypeRefKindNonNull:
		inner, err := newGraphQLType(g, ref.OfType)
		if err != nil {
			return nil, err
		}
		return &GraphQLType{Kind: KindNonNull, OfType: inner}, nil
	case schema.TypeRefKindList:
		inner, err := newGraphQLType(g, ref.OfType)
		if err != nil {
			return nil, err
		}
		return &GraphQLType{Kind: KindList, OfType: inner}, nil
	}
	named := g.namedType(ref.Named)
	if named == nil {
		return nil, &UnknownTypeError{TypeName: ref.Named}
	}
	var kind TypeKind
	switch named.Kind {
	case schema.TypeKindObject, schema.TypeKindInterface, schema.TypeKindUnion:
		kind = KindEntity
	case schema.TypeKindEnum:
		kind = KindEnum
	case schema.TypeKindInputObject:
		kind = KindInputObject
	default:
		kind = KindScalar
	}
	return &GraphQLType{Kind: kind, Named: named}, nil
}

// sameResponseShape reports whether two types for the same field identity can
// share one response value: equal wrapper structure ignoring nullability, and
// either both entities or the same leaf type.
func sameResponseShape(a, b *GraphQLType) bool {
	a, b = a.Nullable(), b.Nullable()
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case KindList:
		return sameResponseShape(a.OfType, b.OfType)
	case KindEntity:
		return true
	}
	return a.Named.Name == b.Named.Name
}

// narrower picks the more specific of two compatible types: non-null wins,
// then the entity type with fewer possible types.
func narrower(g *typeGraph, a, b *GraphQLType) *GraphQLType {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	case a.IsNonNull() && !b.IsNonNull():
		return a
	case b.IsNonNull() && !a.IsNonNull():
		return b
	}
	if a.IsEntity() && b.IsEntity() {
		pa, pb := g.possible(a.NamedType()), g.possible(b.NamedType())
		if len(pb) < len(pa) && pb.IsSubsetOf(pa) {
			return b
		}
	}
	return a
}

// wider picks the more general of two compatible types: nullable wins, then
// the entity type with more possible types.
func wider(g *typeGraph, a, b *GraphQLType) *GraphQLType {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	case a.IsNonNull() && !b.IsNonNull():
		return b
	case b.IsNonNull() && !a.IsNonNull():
		return a
	}
	if a.IsEntity() && b.IsEntity() {
		pa, pb := g.possible(a.NamedType()), g.possible(b.NamedType())
		if len(pb) > len(pa) && pa.IsSubsetOf(pb) {
			return b
		}
	}
	return a
}
