package metrics

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Standard metric names maintained by the runtime and executor.
const (
	CounterMessagesReceived  = "messages_received"
	CounterMessagesSent      = "messages_sent"
	CounterDecisionsExecuted = "decisions_executed"
	CounterToolsInvoked      = "tools_invoked"

	GaugePendingTasks = "pending_tasks"
)

const namespace = "converge"

// Collector aggregates operational counters and gauges for one agent.
// Metrics are mirrored into a private Prometheus registry so several
// collectors can coexist in a process, each labelled with its agent.
type Collector struct {
	agentID    string
	registry   *prometheus.Registry
	registerer prometheus.Registerer

	mu         sync.Mutex
	counts     map[string]int64
	gaugeVals  map[string]float64
	counters   map[string]prometheus.Counter
	gauges     map[string]prometheus.Gauge
	histograms map[string]prometheus.Histogram
}

// Snapshot is a point-in-time copy of a collector's counters and gauges.
type Snapshot struct {
	Counters map[string]int64   `json:"counters"`
	Gauges   map[string]float64 `json:"gauges"`
}

// NewCollector creates a collector. A non-empty agentID becomes a constant
// "agent" label on every metric in the Prometheus registry.
func NewCollector(agentID string) *Collector {
	registry := prometheus.NewRegistry()
	registerer := prometheus.Registerer(registry)
	if agentID != "" {
		registerer = prometheus.WrapRegistererWith(prometheus.Labels{"agent": agentID}, registry)
	}
	return &Collector{
		agentID:    agentID,
		registry:   registry,
		registerer: registerer,
		counts:     make(map[string]int64),
		gaugeVals:  make(map[string]float64),
		counters:   make(map[string]prometheus.Counter),
		gauges:     make(map[string]prometheus.Gauge),
		histograms: make(map[string]prometheus.Histogram),
	}
}

// Inc adds delta to a named counter, creating it on first use. The
// Prometheus name is converge_<name>_total.
func (c *Collector) Inc(name string, delta int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.counts[name] += delta
	ctr, ok := c.counters[name]
	if !ok {
		ctr = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      name + "_total",
			Help:      "Counter " + name,
		})
		c.registerer.MustRegister(ctr)
		c.counters[name] = ctr
	}
	ctr.Add(float64(delta))
}

// Gauge sets a named gauge. The Prometheus name is converge_<name>.
func (c *Collector) Gauge(name string, value float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.gaugeVals[name] = value
	g, ok := c.gauges[name]
	if !ok {
		g = prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      name,
			Help:      "Gauge " + name,
		})
		c.registerer.MustRegister(g)
		c.gauges[name] = g
	}
	g.Set(value)
}

// Observe records a duration or size sample into a named histogram. The
// Prometheus name is converge_<name>. Histograms appear only in the
// registry, not in snapshots.
func (c *Collector) Observe(name string, value float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	h, ok := c.histograms[name]
	if !ok {
		h = prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      name,
			Help:      "Histogram " + name,
			Buckets:   prometheus.DefBuckets,
		})
		c.registerer.MustRegister(h)
		c.histograms[name] = h
	}
	h.Observe(value)
}

// Count returns the current value of a counter.
func (c *Collector) Count(name string) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counts[name]
}

// Snapshot copies the current counters and gauges.
func (c *Collector) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap := Snapshot{
		Counters: make(map[string]int64, len(c.counts)),
		Gauges:   make(map[string]float64, len(c.gaugeVals)),
	}
	for name, v := range c.counts {
		snap.Counters[name] = v
	}
	for name, v := range c.gaugeVals {
		snap.Gauges[name] = v
	}
	return snap
}

// RenderText renders counters and gauges in Prometheus text exposition
// format, names sorted for stable output.
func (c *Collector) RenderText() string {
	snap := c.Snapshot()

	var b strings.Builder
	names := make([]string, 0, len(snap.Counters))
	for name := range snap.Counters {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		full := namespace + "_" + name + "_total"
		fmt.Fprintf(&b, "# TYPE %s counter\n%s %d\n", full, full, snap.Counters[name])
	}

	names = names[:0]
	for name := range snap.Gauges {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		full := namespace + "_" + name
		fmt.Fprintf(&b, "# TYPE %s gauge\n%s %g\n", full, full, snap.Gauges[name])
	}
	return b.String()
}

// Registry exposes the collector's Prometheus registry for scraping.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}
