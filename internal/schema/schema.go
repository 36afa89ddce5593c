package schema

import (
	"sort"
	"sync"
)

// Schema represents the complete GraphQL schema
type Schema struct {
	QueryType        string
	MutationType     string
	SubscriptionType string
	Types            map[string]*Type // All named types keyed by name
	Directives       map[string]*Directive
	Description      string

	mu          sync.Mutex
	implementor map[string][]string // interface name -> sorted object names
}

// GetQueryType returns the root query type (may be nil if absent)
func (s *Schema) GetQueryType() *Type { return s.Types[s.QueryType] }

// GetMutationType returns the root mutation type (may be nil if absent)
func (s *Schema) GetMutationType() *Type { return s.Types[s.MutationType] }

// GetSubscriptionType returns the root subscription type (may be nil if absent)
func (s *Schema) GetSubscriptionType() *Type { return s.Types[s.SubscriptionType] }

// NamedType looks up a type by name. It returns nil for unknown names.
func (s *Schema) NamedType(name string) *Type { return s.Types[name] }

// PossibleTypes returns the object types a value of t can have at runtime,
// sorted by name. Objects are their own single possible type; leaf and input
// types have none.
func (s *Schema) PossibleTypes(t *Type) []*Type {
	if t == nil {
		return nil
	}
	var names []string
	switch t.Kind {
	case TypeKindObject:
		return []*Type{t}
	case TypeKindUnion:
		names = append(names, t.PossibleTypes...)
		sort.Strings(names)
	case TypeKindInterface:
		names = s.implementors(t.Name)
	default:
		return nil
	}
	out := make([]*Type, 0, len(names))
	for _, name := range names {
		if pt := s.Types[name]; pt != nil && pt.Kind == TypeKindObject {
			out = append(out, pt)
		}
	}
	return out
}

// IsSubtype reports whether every value of candidate is also a value of of:
// the types are equal, candidate is a member of the abstract type of, or
// candidate is an interface that declares of among its interfaces.
func (s *Schema) IsSubtype(candidate, of *Type) bool {
	if candidate == nil || of == nil {
		return false
	}
	if candidate.Name == of.Name {
		return true
	}
	switch of.Kind {
	case TypeKindUnion:
		if candidate.Kind != TypeKindObject {
			return false
		}
		for _, name := range of.PossibleTypes {
			if name == candidate.Name {
				return true
			}
		}
	case TypeKindInterface:
		for _, name := range candidate.Interfaces {
			if name == of.Name {
				return true
			}
		}
	}
	return false
}

// Fields returns the field table of an object or interface type.
func (s *Schema) Fields(of *Type) []*Field {
	if of == nil {
		return nil
	}
	return of.Fields
}

func (s *Schema) implementors(iface string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.implementor == nil {
		idx := make(map[string][]string)
		for _, t := range s.Types {
			if t.Kind != TypeKindObject {
				continue
			}
			for _, name := range t.Interfaces {
				idx[name] = append(idx[name], t.Name)
			}
		}
		for _, names := range idx {
			sort.Strings(names)
		}
		s.implementor = idx
	}
	return s.implementor[iface]
}

func (s *Schema) invalidate() {
	s.mu.Lock()
	s.implementor = nil
	s.mu.Unlock()
}

// Type is a named GraphQL type (object, interface, union, scalar, enum, input)
type Type struct {
	Name           string
	Kind           TypeKind
	Description    string
	Fields         []*Field      // For OBJECT and INTERFACE
	Interfaces     []string      // For OBJECT and INTERFACE (implemented/extended)
	PossibleTypes  []string      // For UNION
	EnumValues     []*EnumValue  // For ENUM
	InputFields    []*InputValue // For INPUT_OBJECT
	SpecifiedByURL *string
	OneOf          bool
}

// Field returns the field named name, or nil.
func (t *Type) Field(name string) *Field {
	for _, f := range t.Fields {
		if f.Name == name {
			return f
		}
	}
	return nil
}

// IsComposite reports whether selections can be made on the type.
func (t *Type) IsComposite() bool {
	return t.Kind == TypeKindObject || t.Kind == TypeKindInterface || t.Kind == TypeKindUnion
}

// IsAbstract reports whether the type is an interface or union.
func (t *Type) IsAbstract() bool {
	return t.Kind == TypeKindInterface || t.Kind == TypeKindUnion
}

// Field represents a field on an object or interface
type Field struct {
	Name              string
	Description       string
	Type              *TypeRef
	Arguments         []*InputValue
	IsDeprecated      bool
	DeprecationReason string
}

// TypeKind represents the kind of GraphQL type
type TypeKind string

const (
	TypeKindScalar      TypeKind = "SCALAR"
	TypeKindObject      TypeKind = "OBJECT"
	TypeKindInterface   TypeKind = "INTERFACE"
	TypeKindUnion       TypeKind = "UNION"
	TypeKindEnum        TypeKind = "ENUM"
	TypeKindInputObject TypeKind = "INPUT_OBJECT"
)

// TypeRef represents a reference to a type (can be wrapped)
type TypeRef struct {
	Kind   TypeRefKind
	OfType *TypeRef // For List and NonNull
	Named  string   // For named types
}

type TypeRefKind string

const (
	TypeRefKindNamed   TypeRefKind = "NAMED"
	TypeRefKindList    TypeRefKind = "LIST"
	TypeRefKindNonNull TypeRefKind = "NON_NULL"
)

// Helper functions for TypeRef
func (t *TypeRef) IsNonNull() bool {
	return t != nil && t.Kind == TypeRefKindNonNull
}

func (t *TypeRef) IsList() bool {
	if t.Kind == TypeRefKindList {
		return true
	}
	if t.Kind == TypeRefKindNonNull && t.OfType != nil {
		return t.OfType.Kind == TypeRefKindList
	}
	return false
}

func (t *TypeRef) Unwrap() *TypeRef {
	if t.Kind == TypeRefKindNonNull || t.Kind == TypeRefKindList {
		return t.OfType
	}
	return t
}

func (t *TypeRef) GetNamedType() string {
	current := t
	for current != nil {
		if current.Named != "" {
			return current.Named
		}
		current = current.OfType
	}
	return ""
}

// String renders the reference in GraphQL notation, e.g. [Animal!]!.
func (t *TypeRef) String() string {
	if t == nil {
		return ""
	}
	switch t.Kind {
	case TypeRefKindNonNull:
		return t.OfType.String() + "!"
	case TypeRefKindList:
		return "[" + t.OfType.String() + "]"
	}
	return t.Named
}

type EnumValue struct {
	Name              string
	Description       string
	IsDeprecated      bool
	DeprecationReason string
}

type InputValue struct {
	Name              string
	Description       string
	Type              *TypeRef
	DefaultValue      any
	IsDeprecated      bool
	DeprecationReason string
}

type Directive struct {
	Name         string
	Description  string
	Locations    []string
	Arguments    []*InputValue
	IsRepeatable bool
}

func NonNullType(t *TypeRef) *TypeRef { return &TypeRef{Kind: TypeRefKindNonNull, OfType: t} }
func ListType(t *TypeRef) *TypeRef    { return &TypeRef{Kind: TypeRefKindList, OfType: t} }
func NamedType(name string) *TypeRef  { return &TypeRef{Kind: TypeRefKindNamed, Named: name} }

// IsNonNull reports whether the type is wrapped with Non-Null.
func IsNonNull(t *TypeRef) bool { return t != nil && t.IsNonNull() }

// IsList reports whether the type is (or is wrapped by) a list type.
func IsList(t *TypeRef) bool { return t != nil && t.IsList() }

// GetNamedType returns the innermost named type for the given reference.
func GetNamedType(t *TypeRef) string { return t.GetNamedType() }
