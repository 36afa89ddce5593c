package ir

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hanpama/shapegen/internal/eventbus"
	"github.com/hanpama/shapegen/internal/events"
	"github.com/hanpama/shapegen/internal/language"
	"github.com/hanpama/shapegen/internal/runid"
	"github.com/hanpama/shapegen/internal/schema"
)

type UnitKind string

const (
	UnitOperation UnitKind = "operation"
	UnitFragment  UnitKind = "fragment"
)

// Unit is the compiled form of one operation or fragment. A unit with a
// fatal error has no Root.
type Unit struct {
	Name          string       `json:"name"`
	Kind          UnitKind     `json:"kind"`
	OperationType string       `json:"operationType,omitempty"`
	Root          *Shape       `json:"root,omitempty"`
	Diagnostics   []*Violation `json:"diagnostics,omitempty"`
	Error         string       `json:"error,omitempty"`
	Err           error        `json:"-"`
}

// Result holds the units of a compile batch in document order: operations
// first, then fragments.
type Result struct {
	RunID       string  `json:"runId"`
	Fingerprint uint64  `json:"fingerprint"`
	Units       []*Unit `json:"units"`
}

func (r *Result) Unit(name string) *Unit {
	for _, u := range r.Units {
		if u.Name == name {
			return u
		}
	}
	return nil
}

// Err aggregates the fatal errors of every unit.
func (r *Result) Err() error {
	var errs *multierror.Error
	for _, u := range r.Units {
		if u.Err != nil {
			errs = multierror.Append(errs, fmt.Errorf("%s %s: %w", u.Kind, u.Name, u.Err))
		}
	}
	return errs.ErrorOrNil()
}

// Diagnostics lists the diagnostics of every unit in unit order.
func (r *Result) Diagnostics() []*Violation {
	var out []*Violation
	for _, u := range r.Units {
		out = append(out, u.Diagnostics...)
	}
	return out
}

type options struct {
	logger      *zap.Logger
	concurrency int
	units       map[string]bool
}

type Option func(*options)

func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithConcurrency bounds the number of units compiled in parallel.
func WithConcurrency(n int) Option {
	return func(o *options) { o.concurrency = n }
}

// WithUnits restricts compilation to the named operations and fragments.
func WithUnits(names ...string) Option {
	return func(o *options) {
		o.units = make(map[string]bool, len(names))
		for _, name := range names {
			o.units[name] = true
		}
	}
}

type unitSpec struct {
	name      string
	kind      UnitKind
	operation *language.OperationDefinition
}

// Compile derives the shape tree of every operation and fragment of doc. A
// fatal error in one unit is recorded on that unit and does not affect the
// others; the returned error is reserved for invalid input and cancellation.
func Compile(ctx context.Context, s *schema.Schema, doc *language.QueryDocument, opts ...Option) (*Result, error) {
	if s == nil {
		return nil, fmt.Errorf("schema is nil")
	}
	if doc == nil {
		return nil, fmt.Errorf("document is nil")
	}
	o := options{logger: zap.NewNop(), concurrency: runtime.GOMAXPROCS(0)}
	for _, opt := range opts {
		opt(&o)
	}
	if o.concurrency < 1 {
		o.concurrency = 1
	}

	ctx, rid := runid.Ensure(ctx)
	logger := o.logger.With(zap.String("run_id", rid))
	graph := newTypeGraph(s)
	fragments := newFragmentCache(graph, doc.Fragments, logger)

	var specs []unitSpec
	for _, op := range doc.Operations {
		specs = append(specs, unitSpec{name: op.Name, kind: UnitOperation, operation: op})
	}
	for _, frag := range doc.Fragments {
		specs = append(specs, unitSpec{name: frag.Name, kind: UnitFragment})
	}
	if o.units != nil {
		filtered := specs[:0]
		for _, spec := range specs {
			if o.units[spec.name] {
				filtered = append(filtered, spec)
			}
		}
		specs = filtered
	}

	result := &Result{
		RunID:       rid,
		Fingerprint: Fingerprint(doc),
		Units:       make([]*Unit, len(specs)),
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.concurrency)
	for i, spec := range specs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			result.Units[i] = compileUnit(gctx, rid, graph, fragments, logger, spec)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return result, nil
}

func compileUnit(ctx context.Context, rid string, graph *typeGraph, fragments *fragmentCache, logger *zap.Logger, spec unitSpec) *Unit {
	start := time.Now()
	eventbus.Publish(ctx, events.CompileStart{RunID: rid, Unit: spec.name, Kind: string(spec.kind)})

	b := newUnitBuilder(ctx, graph, fragments, logger.With(zap.String("unit", spec.name)))
	u := &Unit{Name: spec.name, Kind: spec.kind}
	var err error
	if spec.operation != nil {
		u.OperationType = string(spec.operation.Operation)
		u.Root, err = b.buildOperation(spec.operation)
	} else {
		u.Root, err = b.buildFragment(spec.name)
	}
	u.Diagnostics = b.violations
	if err != nil {
		u.Root = nil
		u.Err = err
		u.Error = err.Error()
	}

	shapes := 0
	if u.Root != nil {
		shapes = countShapes(u.Root)
	}
	elapsed := time.Since(start)
	eventbus.Publish(ctx, events.CompileFinish{
		RunID:       rid,
		Unit:        spec.name,
		Kind:        string(spec.kind),
		Shapes:      shapes,
		Diagnostics: len(u.Diagnostics),
		Err:         err,
		Duration:    elapsed,
	})
	if err != nil {
		b.logger.Warn("unit failed", zap.Error(err), zap.Duration("duration", elapsed))
	} else {
		b.logger.Debug("unit compiled",
			zap.Int("shapes", shapes),
			zap.Int("diagnostics", len(u.Diagnostics)),
			zap.Duration("duration", elapsed),
		)
	}
	return u
}

// countShapes counts s, its child shapes and the shapes of nested selections.
func countShapes(s *Shape) int {
	n := 0
	s.Walk(func(c *Shape) {
		n++
		for _, f := range c.Fields {
			if f.Selection != nil {
				n += countShapes(f.Selection)
			}
		}
	})
	return n
}

// Fingerprint hashes the sources of every definition in doc. Documents parsed
// from the same sources share a fingerprint.
func Fingerprint(doc *language.QueryDocument) uint64 {
	h := xxhash.New()
	seen := make(map[*language.Source]bool)
	write := func(pos *language.Position) {
		if pos == nil || pos.Src == nil || seen[pos.Src] {
			return
		}
		seen[pos.Src] = true
		_, _ = h.WriteString(pos.Src.Name)
		_, _ = h.WriteString("\x00")
		_, _ = h.WriteString(pos.Src.Input)
	}
	for _, op := range doc.Operations {
		write(op.Position)
	}
	for _, frag := range doc.Fragments {
		write(frag.Position)
	}
	return h.Sum64()
}
