package schema

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

const zooSDL = `
type Query {
  animals: [Animal!]!
  residents: [Resident]
}

interface Animal {
  species: String!
  friend(kind: String = "any"): Animal
}

interface Pet implements Animal {
  species: String!
  friend(kind: String = "any"): Animal
  name: String @deprecated(reason: "use nickname")
}

type Cat implements Animal & Pet {
  species: String!
  friend(kind: String = "any"): Animal
  name: String @deprecated(reason: "use nickname")
  isJellicle: Boolean!
}

type Dog implements Animal & Pet {
  species: String!
  friend(kind: String = "any"): Animal
  name: String @deprecated(reason: "use nickname")
}

type Snake implements Animal {
  species: String!
  friend(kind: String = "any"): Animal
}

type Keeper {
  name: String!
}

union Resident = Cat | Keeper
`

func mustBuild(t *testing.T) *Schema {
	t.Helper()
	s, err := BuildFromSDL(zooSDL)
	require.NoError(t, err, "failed to build schema")
	return s
}

func typeNames(types []*Type) []string {
	out := make([]string, 0, len(types))
	for _, t := range types {
		out = append(out, t.Name)
	}
	return out
}

func TestBuildFromSDL(t *testing.T) {
	s := mustBuild(t)

	require.Equal(t, "Query", s.QueryType)
	require.NotNil(t, s.GetQueryType())
	require.Nil(t, s.GetMutationType())
	require.Nil(t, s.NamedType("__Schema"), "introspection types are skipped")

	cat := s.NamedType("Cat")
	require.NotNil(t, cat)
	require.Equal(t, TypeKindObject, cat.Kind)
	require.Equal(t, []string{"Animal", "Pet"}, cat.Interfaces)

	name := cat.Field("name")
	require.NotNil(t, name)
	require.True(t, name.IsDeprecated)
	require.Equal(t, "use nickname", name.DeprecationReason)

	friend := cat.Field("friend")
	require.Len(t, friend.Arguments, 1)
	require.Equal(t, `"any"`, friend.Arguments[0].DefaultValue)
	require.Equal(t, "Animal", friend.Type.String())
	require.Equal(t, "[Animal!]!", s.GetQueryType().Field("animals").Type.String())
}

func TestPossibleTypes(t *testing.T) {
	s := mustBuild(t)

	for _, tc := range []struct {
		typ  string
		want []string
	}{
		{typ: "Animal", want: []string{"Cat", "Dog", "Snake"}},
		{typ: "Pet", want: []string{"Cat", "Dog"}},
		{typ: "Resident", want: []string{"Cat", "Keeper"}},
		{typ: "Cat", want: []string{"Cat"}},
		{typ: "String", want: []string{}},
	} {
		t.Run(tc.typ, func(t *testing.T) {
			got := typeNames(s.PossibleTypes(s.NamedType(tc.typ)))
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Errorf("possible types mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestPossibleTypesTracksAddedTypes(t *testing.T) {
	s := NewSchema("")
	iface := NewType("Node", TypeKindInterface, "").
		AddField(NewField("id", "", NonNullType(NamedType("ID"))))
	s.AddType(iface)
	require.Empty(t, s.PossibleTypes(iface))

	s.AddType(NewType("User", TypeKindObject, "").
		AddInterface("Node").
		AddField(NewField("id", "", NonNullType(NamedType("ID")))))
	require.Equal(t, []string{"User"}, typeNames(s.PossibleTypes(iface)))
}

func TestIsSubtype(t *testing.T) {
	s := mustBuild(t)
	typ := s.NamedType

	require.True(t, s.IsSubtype(typ("Cat"), typ("Cat")))
	require.True(t, s.IsSubtype(typ("Cat"), typ("Animal")))
	require.True(t, s.IsSubtype(typ("Pet"), typ("Animal")))
	require.True(t, s.IsSubtype(typ("Keeper"), typ("Resident")))
	require.False(t, s.IsSubtype(typ("Animal"), typ("Pet")))
	require.False(t, s.IsSubtype(typ("Snake"), typ("Pet")))
	require.False(t, s.IsSubtype(typ("Keeper"), typ("Animal")))
	require.False(t, s.IsSubtype(nil, typ("Animal")))
}

func TestNewSchemaRegistersBuiltins(t *testing.T) {
	s := NewSchema("")
	for _, name := range []string{"String", "Int", "Float", "Boolean", "ID"} {
		require.NotNil(t, s.NamedType(name), name)
		require.True(t, IsBuiltinScalar(name))
	}
	require.False(t, IsBuiltinScalar("DateTime"))
	require.Contains(t, s.Directives, "include")
	require.Contains(t, s.Directives, "skip")
	require.Equal(t, "String!", TypenameField.Type.String())
}
