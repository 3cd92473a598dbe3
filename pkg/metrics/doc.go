/*
Package metrics collects operational counters and gauges for agents and
exposes them to Prometheus.

Each agent runtime owns a Collector. The collector keeps plain numeric
counters and gauges for cheap snapshots, and mirrors every metric into a
private Prometheus registry labelled with the agent's fingerprint. A shared
Server scrapes any number of collectors on one address.

# Architecture

	┌──────────────────── METRICS PIPELINE ────────────────────┐
	│                                                          │
	│  Runtime / Executor                                      │
	│    Inc("messages_received", 1)                           │
	│    Gauge("pending_tasks", 4)                             │
	│    Observe("decide_duration_seconds", 0.02)              │
	│          │                                               │
	│  ┌───────▼──────────────┐                                │
	│  │ Collector (per agent)│                                │
	│  │  counts / gauges     │──── Snapshot() / RenderText()  │
	│  │  private registry    │                                │
	│  └───────┬──────────────┘                                │
	│          │ Gather                                        │
	│  ┌───────▼──────────────┐                                │
	│  │ Server               │  /metrics  (Prometheus text)   │
	│  │  promhttp + health   │  /health   /live               │
	│  └──────────────────────┘                                │
	└──────────────────────────────────────────────────────────┘

# Core Components

  - Collector: per-agent counters, gauges, histograms; Snapshot and
    Prometheus text rendering
  - Server: promhttp endpoint over one or more collectors, plus health
    and liveness handlers
  - HealthChecker: component health aggregation behind /health
  - Timer: elapsed-time helper for histogram observations

# Usage

	c := metrics.NewCollector(id.Fingerprint())
	c.Inc(metrics.CounterMessagesReceived, 1)

	srv := metrics.NewServer("0.0.0.0:9090", c)
	if err := srv.Start(); err != nil {
		return err
	}
	defer srv.Stop(ctx)
*/
package metrics
