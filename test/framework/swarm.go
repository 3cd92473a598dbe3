package framework

import (
	"context"
	"fmt"
	"time"

	"github.com/convergeframework/converge/pkg/coordination"
	"github.com/convergeframework/converge/pkg/discovery"
	"github.com/convergeframework/converge/pkg/identity"
	"github.com/convergeframework/converge/pkg/metrics"
	"github.com/convergeframework/converge/pkg/runtime"
	"github.com/convergeframework/converge/pkg/store"
	"github.com/convergeframework/converge/pkg/transport"
	"github.com/convergeframework/converge/pkg/types"
)

// stopTimeout bounds how long Stop waits for runtimes to drain.
const stopTimeout = 10 * time.Second

// Swarm is a set of in-process agent runtimes wired to one message fabric
// and shared coordination managers. It is the unit most end-to-end tests
// build their topology from.
type Swarm struct {
	// Config is the swarm configuration.
	Config *SwarmConfig
	// Nodes contains every agent runtime in creation order.
	Nodes []*AgentNode
	// Tasks is the task manager shared by all agents.
	Tasks *coordination.TaskManager
	// Pools is the pool manager shared by all agents.
	Pools *coordination.PoolManager
	// Identities is the shared identity registry, nil unless Verified.
	Identities *identity.Registry
	// Discovery is the discovery service, nil unless a store was configured.
	Discovery *discovery.Service
	// Registry is the message fabric connecting the agents and the driver.
	Registry *transport.LocalRegistry

	driver *Driver
	ctx    context.Context
	cancel context.CancelFunc
}

// NewSwarm builds a swarm from the config: shared managers, one identity,
// transport, collector, and runtime per agent, a pool joined by everyone
// when PoolID is set, and a driver handle for the test itself. Call Start
// to run it.
func NewSwarm(config *SwarmConfig) (*Swarm, error) {
	if config.Agents < 1 {
		return nil, fmt.Errorf("swarm needs at least one agent, got %d", config.Agents)
	}

	taskStore := config.TaskStore
	if taskStore == nil {
		taskStore = store.NewMemoryStore()
	}
	poolStore := config.PoolStore
	if poolStore == nil {
		poolStore = store.NewMemoryStore()
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Swarm{
		Config:   config,
		Tasks:    coordination.NewTaskManager(taskStore),
		Pools:    coordination.NewPoolManager(poolStore),
		Registry: transport.NewLocalRegistry(),
		ctx:      ctx,
		cancel:   cancel,
	}

	if config.Verified {
		s.Identities = identity.NewRegistry()
	}
	if config.DiscoveryStore != nil {
		svc, err := discovery.NewService(ctx, config.DiscoveryStore)
		if err != nil {
			cancel()
			return nil, fmt.Errorf("failed to start discovery service: %w", err)
		}
		s.Discovery = svc
	}
	if config.PoolID != "" {
		if _, err := s.Pools.CreatePool(ctx, types.PoolSpec{ID: config.PoolID}); err != nil {
			cancel()
			return nil, fmt.Errorf("failed to create pool %s: %w", config.PoolID, err)
		}
	}

	for i := 0; i < config.Agents; i++ {
		id, err := identity.Generate()
		if err != nil {
			cancel()
			return nil, fmt.Errorf("failed to generate identity: %w", err)
		}
		agent := NewScriptedAgent(id, config.Capabilities, config.Topics)
		if s.Identities != nil {
			s.Identities.Register(id)
		}

		tp := transport.NewLocalTransportWithRegistry(agent.ID(), s.Registry)
		col := metrics.NewCollector(agent.ID())

		rt, err := runtime.NewRuntime(agent, runtime.Options{
			Transport:          tp,
			Tasks:              s.Tasks,
			Pools:              s.Pools,
			Identities:         s.Identities,
			Discovery:          s.Discovery,
			Checkpoints:        config.CheckpointStore,
			CheckpointInterval: config.CheckpointInterval,
			Metrics:            col,
		})
		if err != nil {
			cancel()
			return nil, err
		}

		if config.PoolID != "" {
			joined, err := s.Pools.JoinPool(ctx, agent.ID(), config.PoolID)
			if err != nil {
				cancel()
				return nil, err
			}
			if !joined {
				cancel()
				return nil, fmt.Errorf("agent %s was not admitted to pool %s", agent.ID(), config.PoolID)
			}
		}

		s.Nodes = append(s.Nodes, &AgentNode{
			ID:        agent.ID(),
			Agent:     agent,
			Runtime:   rt,
			Transport: tp,
			Metrics:   col,
		})
	}

	s.driver = newDriver(s.Registry)
	return s, nil
}

// Start runs the driver and every agent runtime. A node that fails to start
// stops the ones already running.
func (s *Swarm) Start() error {
	if err := s.driver.start(s.ctx); err != nil {
		return err
	}
	for i, node := range s.Nodes {
		if err := node.Runtime.Start(s.ctx); err != nil {
			for _, prev := range s.Nodes[:i] {
				_ = prev.Runtime.Stop(s.ctx)
			}
			_ = s.driver.stop(s.ctx)
			return fmt.Errorf("failed to start agent %s: %w", node.ID, err)
		}
	}
	return nil
}

// Stop shuts down every runtime and the driver. Stopping an already-stopped
// swarm is a no-op, so it is safe to defer.
func (s *Swarm) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()

	var firstErr error
	for _, node := range s.Nodes {
		if err := node.Runtime.Stop(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	_ = s.driver.stop(ctx)
	s.cancel()
	return firstErr
}

// Node returns the i-th agent node.
func (s *Swarm) Node(i int) *AgentNode {
	return s.Nodes[i]
}

// Driver returns the test's handle on the swarm's message fabric.
func (s *Swarm) Driver() *Driver {
	return s.driver
}
