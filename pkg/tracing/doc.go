/*
Package tracing wires OpenTelemetry spans to a pluggable duration exporter.

Init installs a global TracerProvider with a span processor that, when any
span ends, hands the span and its duration in seconds to the registered
DurationExporter. The runtime opens spans around agent decisions
(agent.decide) and decision execution (executor.execute); anything
implementing DurationExporter can consume them, from a metrics collector to
a test recorder.

# Usage

	shutdown := tracing.Init("converge")
	defer shutdown(ctx)

	tracing.RegisterExporter(myExporter)

	ctx, end := tracing.StartSpan(ctx, "agent.decide")
	defer end()
*/
package tracing
