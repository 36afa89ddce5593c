package otel

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/semconv/v1.17.0"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"

	"github.com/hanpama/shapegen/internal/eventbus"
	"github.com/hanpama/shapegen/internal/events"
	"github.com/hanpama/shapegen/internal/runid"
)

// Setup configures OpenTelemetry and attaches eventbus subscribers.
// If endpoint is empty, no telemetry is configured.
func Setup(endpoint, service string) (func(context.Context) error, error) {
	if endpoint == "" {
		return func(context.Context) error { return nil }, nil
	}
	exp, err := otlptracegrpc.New(context.Background(),
		otlptracegrpc.WithEndpoint(endpoint),
		otlptracegrpc.WithDialOption(grpc.WithInsecure()))
	if err != nil {
		return nil, err
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(service),
		)),
	)
	otel.SetTracerProvider(tp)

	unregister := Register(tp.Tracer("shapegen"))
	return func(ctx context.Context) error {
		unregister()
		return tp.Shutdown(ctx)
	}, nil
}

// Register subscribes span handlers for compile and HTTP events on the
// global bus and returns a function removing them.
func Register(tracer trace.Tracer) (unregister func()) {
	s := &subscriber{tracer: tracer}
	return s.register()
}

type unitKey struct {
	rid  string
	unit string
	kind string
}

type subscriber struct {
	tracer    trace.Tracer
	httpSpans sync.Map // rid -> trace.Span
	unitSpans sync.Map // unitKey -> trace.Span
}

// parent returns ctx carrying the HTTP span of rid when one is open.
func (s *subscriber) parent(ctx context.Context, rid string) context.Context {
	if v, ok := s.httpSpans.Load(rid); ok {
		return trace.ContextWithSpan(ctx, v.(trace.Span))
	}
	return ctx
}

func (s *subscriber) register() func() {
	unsubscribers := []func(){
		eventbus.Subscribe(func(ctx context.Context, e events.HTTPStart) {
			rid, _ := runid.FromContext(ctx)
			_, span := s.tracer.Start(ctx, "http.request")
			span.SetAttributes(
				semconv.HTTPMethodKey.String(e.Request.Method),
				attribute.String("http.target", e.Request.URL.Path),
				attribute.String("shapegen.run_id", rid),
			)
			s.httpSpans.Store(rid, span)
		}),

		eventbus.Subscribe(func(ctx context.Context, e events.HTTPFinish) {
			rid, _ := runid.FromContext(ctx)
			v, ok := s.httpSpans.LoadAndDelete(rid)
			if !ok {
				return
			}
			span := v.(trace.Span)
			span.SetAttributes(
				semconv.HTTPStatusCodeKey.Int(e.Status),
				attribute.Bool("shapegen.cache_hit", e.CacheHit),
			)
			if e.Status >= 500 {
				span.SetStatus(codes.Error, "")
			}
			span.End()
		}),

		eventbus.Subscribe(func(ctx context.Context, e events.CompileStart) {
			_, span := s.tracer.Start(s.parent(ctx, e.RunID), "shapegen.compile_unit")
			span.SetAttributes(
				attribute.String("shapegen.run_id", e.RunID),
				attribute.String("shapegen.unit.name", e.Unit),
				attribute.String("shapegen.unit.kind", e.Kind),
			)
			s.unitSpans.Store(unitKey{rid: e.RunID, unit: e.Unit, kind: e.Kind}, span)
		}),

		eventbus.Subscribe(func(ctx context.Context, e events.CompileFinish) {
			v, ok := s.unitSpans.LoadAndDelete(unitKey{rid: e.RunID, unit: e.Unit, kind: e.Kind})
			if !ok {
				return
			}
			span := v.(trace.Span)
			span.SetAttributes(
				attribute.Int("shapegen.shapes", e.Shapes),
				attribute.Int("shapegen.diagnostics", e.Diagnostics),
			)
			if e.Err != nil {
				span.RecordError(e.Err)
				span.SetStatus(codes.Error, e.Err.Error())
			}
			span.End()
		}),

		eventbus.Subscribe(func(ctx context.Context, e events.FragmentBuilt) {
			rid, _ := runid.FromContext(ctx)
			span := trace.SpanFromContext(s.parent(ctx, rid))
			span.AddEvent("fragment.built", trace.WithAttributes(
				attribute.String("shapegen.fragment", e.Name),
				attribute.Int64("shapegen.duration_us", e.Duration.Microseconds()),
				attribute.Bool("shapegen.failed", e.Err != nil),
			))
		}),
	}
	return func() {
		for _, unsubscribe := range unsubscribers {
			unsubscribe()
		}
	}
}
