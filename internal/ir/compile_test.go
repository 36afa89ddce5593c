package ir

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/goccy/go-json"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/hanpama/shapegen/internal/eventbus"
	"github.com/hanpama/shapegen/internal/events"
	"github.com/hanpama/shapegen/internal/language"
	"github.com/hanpama/shapegen/internal/runid"
)

func loadAnimalDocuments(t *testing.T) *language.QueryDocument {
	t.Helper()
	doc, err := LoadDir(context.Background(), filepath.Join("testdata", "documents"), "schema.graphql")
	require.NoError(t, err)
	return doc
}

func TestCompileDeterministic(t *testing.T) {
	s := animalSchema(t)
	doc := loadAnimalDocuments(t)

	var outputs [][]byte
	for _, n := range []int{1, 4, 1} {
		res, err := Compile(context.Background(), s, doc, WithConcurrency(n))
		require.NoError(t, err)
		require.NoError(t, res.Err())
		out, err := json.MarshalIndent(res.Units, "", "  ")
		require.NoError(t, err)
		outputs = append(outputs, out)
	}
	require.Equal(t, string(outputs[0]), string(outputs[1]))
	require.Equal(t, string(outputs[0]), string(outputs[2]))
}

func TestCompileSnapshot(t *testing.T) {
	res, err := Compile(context.Background(), animalSchema(t), loadAnimalDocuments(t))
	require.NoError(t, err)
	actual, err := json.MarshalIndent(res.Units, "", "  ")
	require.NoError(t, err)

	snapshotPath := filepath.Join("testdata", "animals_snapshot.json")
	if _, err := os.Stat(snapshotPath); os.IsNotExist(err) {
		require.NoError(t, os.WriteFile(snapshotPath, actual, 0644), "failed to write snapshot file")
		t.Logf("Created snapshot file: %s", snapshotPath)
		return
	}
	expected, err := os.ReadFile(snapshotPath)
	require.NoError(t, err, "failed to read snapshot file")
	if diff := cmp.Diff(string(expected), string(actual)); diff != "" {
		t.Errorf("shape snapshot mismatch (-want +got):\n%s", diff)
	}
}

func TestCompileDocumentFromDirectory(t *testing.T) {
	res, err := Compile(context.Background(), animalSchema(t), loadAnimalDocuments(t))
	require.NoError(t, err)

	var names []string
	for _, u := range res.Units {
		names = append(names, string(u.Kind)+":"+u.Name)
	}
	require.Equal(t, []string{"operation:AllAnimals", "fragment:HeightParts", "fragment:PetDetails"}, names)

	animals := selectionOf(t, mustUnit(t, res, "AllAnimals").Root, "allAnimals")
	require.Equal(t, []string{"species", "height", "name", "owner", "bodyTemperature"}, animals.FieldKeys())
	require.True(t, animals.Field("height").IsOptional())
	require.Equal(t, "(on Cat|Dog|Fish)", animals.Field("name").Inclusion.String())
	require.Equal(t, "(on Bird|Cat|Dog)", animals.Field("bodyTemperature").Inclusion.String())
	require.Equal(t, "Int", animals.Field("bodyTemperature").Type.String())
	owner := selectionOf(t, animals, "owner")
	require.Equal(t, TypeSet{"Human"}, owner.PossibleTypes)
	require.False(t, owner.Field("firstName").IsOptional())
	require.Equal(t, []string{"HeightParts"}, animals.Field("height").Selection.FragmentsIncluded)
	require.Equal(t, []string{"AsPet", "AsWarmBlooded"}, childNames(animals))
	require.Equal(t, []string{"PetDetails"}, animals.Child("AsPet").FragmentsIncluded)
	require.Equal(t, "AllAnimals.AsPet.AsWarmBlooded", animals.Child("AsPet").Child("AsWarmBlooded").Path.String())
	require.Equal(t, []string{"firstName"}, selectionOf(t, animals.Child("AsPet"), "owner").FieldKeys())
}

func TestCompileWithUnits(t *testing.T) {
	res := compile(t, `
query A { allAnimals { ...Parts } }
query B { allAnimals { species } }
fragment Parts on Animal { species }
`, WithUnits("A"))
	require.Len(t, res.Units, 1)
	mustUnit(t, res, "A")
	require.Nil(t, res.Unit("B"))
	require.Nil(t, res.Unit("Parts"))
}

func TestCompileRejectsMissingInput(t *testing.T) {
	doc, err := language.ParseQuery(`{ allAnimals { species } }`)
	require.NoError(t, err)

	_, err = Compile(context.Background(), nil, doc)
	require.EqualError(t, err, "schema is nil")
	_, err = Compile(context.Background(), animalSchema(t), nil)
	require.EqualError(t, err, "document is nil")
}

func TestCompileCanceled(t *testing.T) {
	doc, err := language.ParseQuery(`{ allAnimals { species } }`)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = Compile(ctx, animalSchema(t), doc)
	require.ErrorIs(t, err, context.Canceled)
}

func TestCompileUsesRunID(t *testing.T) {
	doc, err := language.ParseQuery(`query Q { allAnimals { species } }`)
	require.NoError(t, err)
	ctx, id := runid.NewContext(context.Background())
	res, err := Compile(ctx, animalSchema(t), doc)
	require.NoError(t, err)
	require.Equal(t, id, res.RunID)

	other, err := Compile(context.Background(), animalSchema(t), doc)
	require.NoError(t, err)
	require.NotEmpty(t, other.RunID)
	require.NotEqual(t, id, other.RunID)
}

func TestFingerprint(t *testing.T) {
	parse := func(name, src string) *language.QueryDocument {
		doc, err := language.ParseQueryFile(name, src)
		require.NoError(t, err)
		return doc
	}
	a := Fingerprint(parse("a.graphql", `query Q { allAnimals { species } }`))
	require.Equal(t, a, Fingerprint(parse("a.graphql", `query Q { allAnimals { species } }`)))
	require.NotEqual(t, a, Fingerprint(parse("a.graphql", `query Q { allAnimals { height { feet } } }`)))
	require.NotEqual(t, a, Fingerprint(parse("b.graphql", `query Q { allAnimals { species } }`)))
}

func TestCompileEvents(t *testing.T) {
	bus := eventbus.New()
	eventbus.Use(bus)
	t.Cleanup(func() { eventbus.Use(nil) })

	var mu sync.Mutex
	var started []string
	finished := map[string]events.CompileFinish{}
	eventbus.Subscribe(func(ctx context.Context, e events.CompileStart) {
		mu.Lock()
		defer mu.Unlock()
		started = append(started, e.Kind+":"+e.Unit)
	})
	eventbus.Subscribe(func(ctx context.Context, e events.CompileFinish) {
		mu.Lock()
		defer mu.Unlock()
		finished[e.Unit] = e
	})

	res := compile(t, `
query Good { allAnimals { species ... on Pet { name } } }
query Bad { allAnimals { wings } }
`, WithConcurrency(1))

	require.Equal(t, []string{"operation:Good", "operation:Bad"}, started)
	require.Equal(t, 3, finished["Good"].Shapes)
	require.NoError(t, finished["Good"].Err)
	require.Equal(t, res.RunID, finished["Good"].RunID)
	require.Error(t, finished["Bad"].Err)
	require.Zero(t, finished["Bad"].Shapes)
}
