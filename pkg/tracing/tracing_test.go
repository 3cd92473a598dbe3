package tracing

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

type recordingExporter struct {
	mu        sync.Mutex
	spans     []sdktrace.ReadOnlySpan
	durations []float64
}

func (r *recordingExporter) Export(span sdktrace.ReadOnlySpan, seconds float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.spans = append(r.spans, span)
	r.durations = append(r.durations, seconds)
}

func (r *recordingExporter) snapshot() ([]sdktrace.ReadOnlySpan, []float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]sdktrace.ReadOnlySpan(nil), r.spans...), append([]float64(nil), r.durations...)
}

type panickyExporter struct{}

func (panickyExporter) Export(span sdktrace.ReadOnlySpan, seconds float64) {
	panic("exporter failure")
}

func TestExportOnSpanEnd(t *testing.T) {
	shutdown := Init("converge-test")
	defer shutdown(context.Background())

	rec := &recordingExporter{}
	RegisterExporter(rec)
	defer RegisterExporter(nil)

	_, end := StartSpan(context.Background(), "agent.decide")
	time.Sleep(10 * time.Millisecond)
	end()

	spans, durations := rec.snapshot()
	require.Len(t, spans, 1)
	assert.Equal(t, "agent.decide", spans[0].Name())
	assert.GreaterOrEqual(t, durations[0], 0.01)
}

func TestNestedSpansShareTrace(t *testing.T) {
	shutdown := Init("converge-test")
	defer shutdown(context.Background())

	rec := &recordingExporter{}
	RegisterExporter(rec)
	defer RegisterExporter(nil)

	ctx, endParent := StartSpan(context.Background(), "executor.execute")
	_, endChild := StartSpan(ctx, "tool.invoke")
	endChild()
	endParent()

	spans, _ := rec.snapshot()
	require.Len(t, spans, 2)

	// The child ends first. It must belong to the parent's trace.
	child, parent := spans[0], spans[1]
	assert.Equal(t, "tool.invoke", child.Name())
	assert.Equal(t, parent.SpanContext().TraceID(), child.SpanContext().TraceID())
	assert.Equal(t, parent.SpanContext().SpanID(), child.Parent().SpanID())
}

func TestRegisterNilExporterStopsExports(t *testing.T) {
	shutdown := Init("converge-test")
	defer shutdown(context.Background())

	rec := &recordingExporter{}
	RegisterExporter(rec)
	_, end := StartSpan(context.Background(), "first")
	end()

	RegisterExporter(nil)
	_, end = StartSpan(context.Background(), "second")
	end()

	spans, _ := rec.snapshot()
	assert.Len(t, spans, 1)
}

func TestPanickyExporterDoesNotCrashSpanEnd(t *testing.T) {
	shutdown := Init("converge-test")
	defer shutdown(context.Background())

	RegisterExporter(panickyExporter{})
	defer RegisterExporter(nil)

	assert.NotPanics(t, func() {
		_, end := StartSpan(context.Background(), "agent.decide")
		end()
	})
}

func TestStartSpanWithoutExporter(t *testing.T) {
	RegisterExporter(nil)
	assert.NotPanics(t, func() {
		_, end := StartSpan(context.Background(), "agent.decide")
		end()
	})
}
