package ir

import (
	"context"

	"go.uber.org/zap"

	"github.com/hanpama/shapegen/internal/language"
	"github.com/hanpama/shapegen/internal/schema"
)

// unitBuilder compiles one operation or fragment. It is not shared between
// goroutines; only the type graph and the fragment cache are.
type unitBuilder struct {
	ctx        context.Context
	graph      *typeGraph
	fragments  *fragmentCache
	tracker    *entityTracker
	logger     *zap.Logger
	violations []*Violation
}

func newUnitBuilder(ctx context.Context, graph *typeGraph, fragments *fragmentCache, logger *zap.Logger) *unitBuilder {
	return &unitBuilder{
		ctx:       ctx,
		graph:     graph,
		fragments: fragments,
		tracker:   newEntityTracker(graph),
		logger:    logger,
	}
}

func (b *unitBuilder) addViolation(vs ...*Violation) {
	b.violations = append(b.violations, vs...)
}

func (b *unitBuilder) deadBranch(v *Violation) {
	b.logger.Debug("dead branch dropped",
		zap.String("message", v.Message),
		zap.Int("line", v.Line),
		zap.Int("column", v.Column),
	)
	b.addViolation(v)
}

func (b *unitBuilder) buildOperation(op *language.OperationDefinition) (*Shape, error) {
	var root *schema.Type
	var rootName string
	switch op.Operation {
	case language.Mutation:
		rootName = b.graph.schema.MutationType
	case language.Subscription:
		rootName = b.graph.schema.SubscriptionType
	default:
		rootName = b.graph.schema.QueryType
	}
	if root = b.graph.namedType(rootName); root == nil {
		if rootName == "" {
			rootName = string(op.Operation)
		}
		return nil, &UnknownTypeError{Location: locationOf(op.Position), TypeName: rootName}
	}
	r := &resolver{graph: b.graph}
	set, err := r.resolveSelectionSet(root, op.SelectionSet)
	b.addViolation(r.violations...)
	if err != nil {
		return nil, err
	}
	return b.build(root, set, nil, "Data")
}

func (b *unitBuilder) buildFragment(name string) (*Shape, error) {
	frag, err := b.fragments.get(b.ctx, name, nil)
	if err != nil {
		return nil, err
	}
	b.addViolation(frag.violations...)
	return b.build(frag.typeCondition, frag.selectionSet, []string{name}, name)
}

func (b *unitBuilder) build(root *schema.Type, set *selectionSet, spreads []string, name string) (*Shape, error) {
	e := b.tracker.root(root)
	chain := (*scopeChain)(nil).push(e.root)
	if err := b.mergeSelectionSet(e, chain, set, spreads); err != nil {
		return nil, err
	}
	b.tracker.freeze()
	d := &deriver{graph: b.graph}
	return d.deriveEntity(e, shapeContext{}, name), nil
}
