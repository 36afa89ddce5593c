package language

import (
	"testing"

	"github.com/stretchr/testify/require"
)

const testSDL = `
type Query { pets: [Pet!]! }
interface Pet { name: String! }
type Dog implements Pet { name: String! barks: Boolean! }
`

func TestParseQueryFile(t *testing.T) {
	doc, err := ParseQueryFile("pets.graphql", "query Pets {\n  pets { name }\n}")
	require.NoError(t, err)
	require.Equal(t, "Pets", doc.Operations[0].Name)
	require.Equal(t, "pets.graphql", doc.Operations[0].Position.Src.Name)

	_, err = ParseQueryFile("broken.graphql", "query {")
	require.Error(t, err)
	var ge *Error
	require.ErrorAs(t, err, &ge)
	require.Equal(t, 1, ge.Locations[0].Line)
}

func TestMergeDocuments(t *testing.T) {
	a, err := ParseQueryFile("a.graphql", `query A { pets { ...Name } } fragment Name on Pet { name }`)
	require.NoError(t, err)
	b, err := ParseQueryFile("b.graphql", `query B { pets { name } }`)
	require.NoError(t, err)

	merged, err := MergeDocuments(a, nil, b)
	require.NoError(t, err)
	require.Len(t, merged.Operations, 2)
	require.Len(t, merged.Fragments, 1)

	dup, err := ParseQueryFile("c.graphql", `fragment Name on Pet { name }`)
	require.NoError(t, err)
	_, err = MergeDocuments(a, dup)
	require.EqualError(t, err, `fragment "Name" defined twice (a.graphql:1:30 and c.graphql:1:1)`)
}

func TestValidate(t *testing.T) {
	s, err := LoadSchema("schema.graphql", testSDL)
	require.NoError(t, err)

	require.Empty(t, Validate(s, `{ pets { ... on Dog { barks } } }`))
	errs := Validate(s, `{ pets { barks } }`)
	require.Len(t, errs, 1)
	require.Contains(t, errs[0].Message, `Cannot query field "barks" on type "Pet"`)

	doc, err := ParseQueryFile("q.graphql", `query Q { pets { ...Missing } }`)
	require.NoError(t, err)
	errs = ValidateDocument(s, doc)
	require.NotEmpty(t, errs)
	require.Contains(t, errs[0].Message, `Unknown fragment "Missing"`)

	loaded, errs := LoadQuery(s, `query Q { pets { name } }`)
	require.Empty(t, errs)
	require.Equal(t, "Q", loaded.Operations[0].Name)
}
