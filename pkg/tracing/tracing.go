package tracing

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"

	"github.com/convergeframework/converge/pkg/log"
)

const instrumentationName = "converge"

// DurationExporter receives every finished span together with its duration
// in seconds. Implementations must be safe for concurrent calls.
type DurationExporter interface {
	Export(span sdktrace.ReadOnlySpan, seconds float64)
}

var (
	exporterMu sync.RWMutex
	exporter   DurationExporter
)

// RegisterExporter sets the exporter invoked on span end. Pass nil to
// clear it.
func RegisterExporter(e DurationExporter) {
	exporterMu.Lock()
	defer exporterMu.Unlock()
	exporter = e
}

func registeredExporter() DurationExporter {
	exporterMu.RLock()
	defer exporterMu.RUnlock()
	return exporter
}

// durationProcessor bridges span completion to the registered exporter.
type durationProcessor struct{}

func (durationProcessor) OnStart(parent context.Context, s sdktrace.ReadWriteSpan) {}

func (durationProcessor) OnEnd(s sdktrace.ReadOnlySpan) {
	e := registeredExporter()
	if e == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			logger := log.WithComponent("tracing")
			logger.Debug().Interface("panic", r).Msg("Span exporter panicked")
		}
	}()
	e.Export(s, s.EndTime().Sub(s.StartTime()).Seconds())
}

func (durationProcessor) Shutdown(ctx context.Context) error   { return nil }
func (durationProcessor) ForceFlush(ctx context.Context) error { return nil }

// Init installs a global TracerProvider whose spans feed the registered
// DurationExporter on completion. It returns a shutdown function.
func Init(serviceName string) func(context.Context) error {
	res := resource.NewSchemaless(
		attribute.String("service.name", serviceName),
	)
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithSpanProcessor(durationProcessor{}),
	)
	otel.SetTracerProvider(tp)
	return tp.Shutdown
}

// Tracer returns the converge tracer from the global provider.
func Tracer() trace.Tracer {
	return otel.Tracer(instrumentationName)
}

// StartSpan begins a span and returns the derived context plus an end
// function. Safe to call before Init; spans are then non-recording.
func StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, func()) {
	ctx, span := Tracer().Start(ctx, name, trace.WithAttributes(attrs...))
	return ctx, func() { span.End() }
}
