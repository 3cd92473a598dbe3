package framework

import (
	"time"

	"github.com/convergeframework/converge/pkg/message"
	"github.com/convergeframework/converge/pkg/metrics"
	"github.com/convergeframework/converge/pkg/runtime"
	"github.com/convergeframework/converge/pkg/store"
	"github.com/convergeframework/converge/pkg/transport"
)

// SwarmConfig defines the configuration for an in-process test swarm.
type SwarmConfig struct {
	// Agents is the number of agent runtimes to create.
	Agents int
	// PoolID, when set, names a pool the swarm creates and every agent joins.
	PoolID string
	// Capabilities is advertised by every agent in the swarm.
	Capabilities []string
	// Topics is subscribed to by every agent in the swarm.
	Topics []message.Topic
	// Verified shares an identity registry across the swarm; listeners then
	// drop messages from senders outside it.
	Verified bool
	// TaskStore backs the shared TaskManager. Defaults to an in-memory store.
	TaskStore store.Store
	// PoolStore backs the shared PoolManager. Defaults to an in-memory store.
	PoolStore store.Store
	// DiscoveryStore, when set, runs a discovery service the agents register
	// with on start.
	DiscoveryStore store.Store
	// CheckpointStore, when set, makes runtimes write liveness checkpoints
	// every CheckpointInterval.
	CheckpointStore    store.Store
	CheckpointInterval time.Duration
}

// AgentNode is one agent runtime in a test swarm.
type AgentNode struct {
	// ID is the agent's identity fingerprint.
	ID string
	// Agent is the scripted agent driven by the runtime.
	Agent *ScriptedAgent
	// Runtime is the runtime loop hosting the agent.
	Runtime *runtime.Runtime
	// Transport is the node's handle on the swarm's message fabric.
	Transport *transport.LocalTransport
	// Metrics is the node's counter collector.
	Metrics *metrics.Collector
}

// TestingT is an interface matching testing.T.
type TestingT interface {
	Logf(format string, args ...any)
	Errorf(format string, args ...any)
	Fatalf(format string, args ...any)
	FailNow()
	Failed() bool
	Name() string
	Helper()
}
