package ir

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hanpama/shapegen/internal/eventbus"
	"github.com/hanpama/shapegen/internal/events"
	"github.com/hanpama/shapegen/internal/language"
)

func TestFragmentCycle(t *testing.T) {
	res := compile(t, `
query Q { allAnimals { ...A } }
query Safe { allAnimals { ...C } }

fragment A on Animal { friend { ...B } }
fragment B on Animal { species ...A }
fragment C on Animal { species }
`)
	for _, tc := range []struct {
		unit  string
		cycle []string
	}{
		{unit: "Q", cycle: []string{"A", "B", "A"}},
		{unit: "A", cycle: []string{"A", "B", "A"}},
		{unit: "B", cycle: []string{"B", "A", "B"}},
	} {
		t.Run(tc.unit, func(t *testing.T) {
			var cycle *FragmentCycleError
			require.ErrorAs(t, unitErr(t, res, tc.unit), &cycle)
			require.Equal(t, tc.cycle, cycle.Cycle)
			require.Contains(t, cycle.Error(), "fragment cycle "+tc.cycle[0]+" -> ")
		})
	}
	mustUnit(t, res, "Safe")
	mustUnit(t, res, "C")
}

func TestSelfSpreadingFragment(t *testing.T) {
	res := compile(t, `fragment Loop on Animal { friend { ...Loop } }`)
	var cycle *FragmentCycleError
	require.ErrorAs(t, unitErr(t, res, "Loop"), &cycle)
	require.Equal(t, []string{"Loop", "Loop"}, cycle.Cycle)
	require.Equal(t, 1, cycle.Location.Line)
}

func TestFindFragmentCycles(t *testing.T) {
	doc, err := language.ParseQuery(`
fragment A on Animal { ...B ...D }
fragment B on Animal { ... on Pet { ...C } }
fragment C on Animal { friend { ...A } }
fragment D on Animal { species }
fragment E on Animal { ...D ...Unknown }
`)
	require.NoError(t, err)
	cycles := findFragmentCycles(doc.Fragments)
	require.Equal(t, map[string][]string{
		"A": {"A", "B", "C", "A"},
		"B": {"B", "C", "A", "B"},
		"C": {"C", "A", "B", "C"},
	}, cycles)
}

func TestFragmentCacheResolvesOnce(t *testing.T) {
	bus := eventbus.New()
	eventbus.Use(bus)
	t.Cleanup(func() { eventbus.Use(nil) })

	var mu sync.Mutex
	built := map[string]int{}
	eventbus.Subscribe(func(ctx context.Context, e events.FragmentBuilt) {
		mu.Lock()
		built[e.Name]++
		mu.Unlock()
	})

	src := `
fragment Shared on Animal { species height { feet } }
`
	for i := 0; i < 8; i++ {
		src += "query Q" + string(rune('A'+i)) + " { allAnimals { ...Shared } animal(id: 1) { ...Shared } }\n"
	}
	res := compile(t, src, WithConcurrency(4))
	require.NoError(t, res.Err())
	require.Len(t, res.Units, 9)
	require.Equal(t, map[string]int{"Shared": 1}, built)
}

func TestFragmentCacheMemoizesErrors(t *testing.T) {
	s := animalSchema(t)
	doc, err := language.ParseQuery(`fragment Broken on Animal { wings }`)
	require.NoError(t, err)
	graph := newTypeGraph(s)
	cache := newFragmentCache(graph, doc.Fragments, nopLogger())

	_, first := cache.get(context.Background(), "Broken", nil)
	_, second := cache.get(context.Background(), "Broken", nil)
	var unknown *UnknownFieldError
	require.ErrorAs(t, first, &unknown)
	require.Same(t, first, second)
}
