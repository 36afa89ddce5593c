package ir

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/hanpama/shapegen/internal/eventbus"
	"github.com/hanpama/shapegen/internal/events"
	"github.com/hanpama/shapegen/internal/language"
	"github.com/hanpama/shapegen/internal/schema"
)

type resolvedFragment struct {
	name          string
	typeCondition *schema.Type
	selectionSet  *selectionSet
	violations    []*Violation
}

type fragmentResult struct {
	frag *resolvedFragment
	err  error
}

// fragmentCache resolves each fragment of a document once and shares the
// result between every unit of the batch. Spreads nested in a fragment stay
// references and are looked up again when merged.
type fragmentCache struct {
	graph  *typeGraph
	logger *zap.Logger
	defs   map[string]*language.FragmentDefinition
	cycles map[string][]string

	group singleflight.Group
	mu    sync.RWMutex
	built map[string]fragmentResult
}

func newFragmentCache(graph *typeGraph, defs language.FragmentDefinitionList, logger *zap.Logger) *fragmentCache {
	c := &fragmentCache{
		graph:  graph,
		logger: logger,
		defs:   make(map[string]*language.FragmentDefinition, len(defs)),
		cycles: findFragmentCycles(defs),
		built:  make(map[string]fragmentResult),
	}
	for _, def := range defs {
		c.defs[def.Name] = def
	}
	return c
}

// get returns the resolved fragment. pos is the referencing spread, used for
// unknown fragments.
func (c *fragmentCache) get(ctx context.Context, name string, pos *language.Position) (*resolvedFragment, error) {
	def, ok := c.defs[name]
	if !ok {
		return nil, &UnknownFragmentError{Location: locationOf(pos), Name: name}
	}
	if cycle, ok := c.cycles[name]; ok {
		return nil, &FragmentCycleError{Location: locationOf(def.Position), Cycle: cycle}
	}
	if r, ok := c.lookup(name); ok {
		return r.frag, r.err
	}
	v, _, _ := c.group.Do(name, func() (any, error) {
		if r, ok := c.lookup(name); ok {
			return r, nil
		}
		start := time.Now()
		frag, err := c.resolve(def)
		r := fragmentResult{frag: frag, err: err}
		c.mu.Lock()
		c.built[name] = r
		c.mu.Unlock()

		elapsed := time.Since(start)
		eventbus.Publish(ctx, events.FragmentBuilt{Name: name, Err: err, Duration: elapsed})
		c.logger.Debug("fragment resolved",
			zap.String("fragment", name),
			zap.Duration("duration", elapsed),
			zap.Error(err),
		)
		return r, nil
	})
	r := v.(fragmentResult)
	return r.frag, r.err
}

func (c *fragmentCache) lookup(name string) (fragmentResult, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	r, ok := c.built[name]
	return r, ok
}

func (c *fragmentCache) resolve(def *language.FragmentDefinition) (*resolvedFragment, error) {
	typ := c.graph.namedType(def.TypeCondition)
	if typ == nil {
		return nil, &UnknownTypeError{Location: locationOf(def.Position), TypeName: def.TypeCondition}
	}
	r := &resolver{graph: c.graph}
	set, err := r.resolveSelectionSet(typ, def.SelectionSet)
	if err != nil {
		return nil, err
	}
	return &resolvedFragment{
		name:          def.Name,
		typeCondition: typ,
		selectionSet:  set,
		violations:    r.violations,
	}, nil
}

// findFragmentCycles walks the spread graph and returns, for every fragment on
// a cycle, the cycle starting and ending at that fragment.
func findFragmentCycles(defs language.FragmentDefinitionList) map[string][]string {
	edges := make(map[string][]string, len(defs))
	for _, def := range defs {
		edges[def.Name] = spreadNames(def.SelectionSet, nil, make(map[string]bool))
	}

	const (
		unvisited = iota
		visiting
		done
	)
	cycles := make(map[string][]string)
	state := make(map[string]int, len(defs))
	var stack []string
	var visit func(name string)
	visit = func(name string) {
		state[name] = visiting
		stack = append(stack, name)
		for _, next := range edges[name] {
			if _, defined := edges[next]; !defined {
				continue
			}
			switch state[next] {
			case unvisited:
				visit(next)
			case visiting:
				start := len(stack) - 1
				for stack[start] != next {
					start--
				}
				members := stack[start:]
				for i, member := range members {
					if _, seen := cycles[member]; seen {
						continue
					}
					cycle := append(append([]string(nil), members[i:]...), members[:i]...)
					cycles[member] = append(cycle, member)
				}
			}
		}
		stack = stack[:len(stack)-1]
		state[name] = done
	}
	for _, def := range defs {
		if state[def.Name] == unvisited {
			visit(def.Name)
		}
	}
	return cycles
}

func spreadNames(set language.SelectionSet, out []string, seen map[string]bool) []string {
	for _, sel := range set {
		switch sel := sel.(type) {
		case *language.Field:
			out = spreadNames(sel.SelectionSet, out, seen)
		case *language.InlineFragment:
			out = spreadNames(sel.SelectionSet, out, seen)
		case *language.FragmentSpread:
			if !seen[sel.Name] {
				seen[sel.Name] = true
				out = append(out, sel.Name)
			}
		}
	}
	return out
}
