package ir

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFileSystemDiscovery(t *testing.T) {
	ctx := context.Background()
	disc, err := NewFileSystemDiscovery(ctx, filepath.Join("testdata", "documents"), "schema.graphql")
	require.NoError(t, err)

	metas, err := disc.ListMetadata(ctx)
	require.NoError(t, err)
	require.Len(t, metas, 2)
	require.Equal(t, &DocumentMetadata{ID: "animals.graphql", Name: "animals", FilePath: "animals.graphql"}, metas[0])
	require.Equal(t, &DocumentMetadata{ID: "nested/fragments.gql", Name: "fragments", FilePath: "nested/fragments.gql"}, metas[1])

	content, err := disc.ReadDocument(ctx, metas[1].ID)
	require.NoError(t, err)
	require.Contains(t, content, "fragment HeightParts on Height")

	_, err = disc.ReadDocument(ctx, "schema.graphql")
	require.EqualError(t, err, `document "schema.graphql" not found`)
}

func TestFileSystemDiscoveryMissingRoot(t *testing.T) {
	_, err := NewFileSystemDiscovery(context.Background(), filepath.Join("testdata", "missing"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "failed to walk root directory")
}

func TestLoadDir(t *testing.T) {
	doc, err := LoadDir(context.Background(), filepath.Join("testdata", "documents"), "schema.graphql")
	require.NoError(t, err)
	require.Len(t, doc.Operations, 1)
	require.Equal(t, "AllAnimals", doc.Operations[0].Name)
	require.Len(t, doc.Fragments, 2)
	require.Equal(t, "nested/fragments.gql", doc.Fragments[0].Position.Src.Name)
}

func TestInMemoryDiscovery(t *testing.T) {
	ctx := context.Background()
	disc := NewInMemoryDiscovery([]InMemoryDocument{
		{Name: "query", Content: `query Q { allAnimals { ...Parts } }`},
		{Name: "fragments", Content: `fragment Parts on Animal { species }`},
	})
	metas, err := disc.ListMetadata(ctx)
	require.NoError(t, err)
	require.Equal(t, "fragments.graphql", metas[0].FilePath)
	require.Equal(t, "query.graphql", metas[1].FilePath)

	doc, err := LoadDocuments(ctx, disc)
	require.NoError(t, err)
	res, err := Compile(ctx, animalSchema(t), doc)
	require.NoError(t, err)
	require.NoError(t, res.Err())
	require.Equal(t, []string{"species"}, selectionOf(t, mustUnit(t, res, "Q").Root, "allAnimals").FieldKeys())
}

func TestLoadDocumentsReportsFile(t *testing.T) {
	disc := NewInMemoryDiscovery([]InMemoryDocument{{Name: "broken", Content: `query Q { allAnimals { `}})
	_, err := LoadDocuments(context.Background(), disc)
	require.Error(t, err)
	require.Contains(t, err.Error(), "failed to parse broken.graphql")
}
