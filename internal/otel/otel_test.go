package otel

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/hanpama/shapegen/internal/eventbus"
	"github.com/hanpama/shapegen/internal/events"
	"github.com/hanpama/shapegen/internal/runid"
)

func setupRecorder(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	eventbus.Use(eventbus.New())
	t.Cleanup(func() { eventbus.Use(nil) })
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	t.Cleanup(Register(tp.Tracer("test")))
	return sr
}

func spanByName(t *testing.T, spans []sdktrace.ReadOnlySpan, name string) sdktrace.ReadOnlySpan {
	t.Helper()
	for _, s := range spans {
		if s.Name() == name {
			return s
		}
	}
	t.Fatalf("span %s not recorded", name)
	return nil
}

func attr(s sdktrace.ReadOnlySpan, key string) attribute.Value {
	for _, kv := range s.Attributes() {
		if string(kv.Key) == key {
			return kv.Value
		}
	}
	return attribute.Value{}
}

func TestCompileSpansNestUnderRequest(t *testing.T) {
	sr := setupRecorder(t)
	ctx, rid := runid.NewContext(context.Background())
	req := httptest.NewRequest("POST", "/compile", nil)

	eventbus.Publish(ctx, events.HTTPStart{Request: req})
	eventbus.Publish(ctx, events.CompileStart{RunID: rid, Unit: "Q", Kind: "operation"})
	eventbus.Publish(ctx, events.FragmentBuilt{Name: "Parts"})
	eventbus.Publish(ctx, events.CompileFinish{RunID: rid, Unit: "Q", Kind: "operation", Shapes: 3})
	eventbus.Publish(ctx, events.HTTPFinish{Request: req, Status: 200})

	spans := sr.Ended()
	require.Len(t, spans, 2)
	httpSpan := spanByName(t, spans, "http.request")
	unitSpan := spanByName(t, spans, "shapegen.compile_unit")

	require.Equal(t, httpSpan.SpanContext().SpanID(), unitSpan.Parent().SpanID())
	require.Equal(t, "Q", attr(unitSpan, "shapegen.unit.name").AsString())
	require.Equal(t, int64(3), attr(unitSpan, "shapegen.shapes").AsInt64())
	require.Equal(t, rid, attr(httpSpan, "shapegen.run_id").AsString())
	require.Len(t, httpSpan.Events(), 1)
	require.Equal(t, "fragment.built", httpSpan.Events()[0].Name)
}

func TestFailedUnitMarksSpan(t *testing.T) {
	sr := setupRecorder(t)
	ctx, rid := runid.NewContext(context.Background())

	eventbus.Publish(ctx, events.CompileStart{RunID: rid, Unit: "F", Kind: "fragment"})
	eventbus.Publish(ctx, events.CompileFinish{RunID: rid, Unit: "F", Kind: "fragment", Err: errors.New("fragment cycle F -> F")})

	spans := sr.Ended()
	require.Len(t, spans, 1)
	require.False(t, spans[0].Parent().IsValid())
	require.Equal(t, codes.Error, spans[0].Status().Code)
	require.Equal(t, "fragment cycle F -> F", spans[0].Status().Description)
}

func TestUnregister(t *testing.T) {
	eventbus.Use(eventbus.New())
	t.Cleanup(func() { eventbus.Use(nil) })
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))

	Register(tp.Tracer("test"))()
	require.Zero(t, eventbus.Subscribers[events.CompileStart](eventbus.Current()))

	ctx, rid := runid.NewContext(context.Background())
	eventbus.Publish(ctx, events.CompileStart{RunID: rid, Unit: "Q", Kind: "operation"})
	eventbus.Publish(ctx, events.CompileFinish{RunID: rid, Unit: "Q", Kind: "operation"})
	require.Empty(t, sr.Ended())
}

func TestSetupWithoutEndpoint(t *testing.T) {
	shutdown, err := Setup("", "shapegen")
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))
}
