package runtime

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/convergeframework/converge/pkg/coordination"
	"github.com/convergeframework/converge/pkg/discovery"
	"github.com/convergeframework/converge/pkg/identity"
	"github.com/convergeframework/converge/pkg/log"
	"github.com/convergeframework/converge/pkg/message"
	"github.com/convergeframework/converge/pkg/metrics"
	"github.com/convergeframework/converge/pkg/replay"
	"github.com/convergeframework/converge/pkg/store"
	"github.com/convergeframework/converge/pkg/tracing"
	"github.com/convergeframework/converge/pkg/transport"
	"github.com/convergeframework/converge/pkg/types"
)

const (
	// loopWait bounds how long the main loop sleeps between wakeups.
	loopWait = time.Second

	// receiveBackoff is the pause after a transport receive error.
	receiveBackoff = time.Second
)

// Options wires an agent runtime. Transport is required; everything else is
// optional and disables the corresponding behavior when absent.
type Options struct {
	Transport transport.Transport

	Tasks *coordination.TaskManager
	Pools *coordination.PoolManager

	// Identities switches the listener to verified receive: messages from
	// unknown senders or with bad signatures are dropped.
	Identities *identity.Registry

	// Discovery registers the agent on start and unregisters on stop.
	// Descriptor overrides the record built from the agent.
	Discovery  *discovery.Service
	Descriptor *types.AgentDescriptor

	// Checkpoints enables periodic liveness records under
	// "checkpoint:<agent id>" every CheckpointInterval.
	Checkpoints        store.Store
	CheckpointInterval time.Duration

	Metrics *metrics.Collector
	Replay  *replay.Log

	// Executor overrides the default StandardExecutor built from the
	// options above. Set it to wire protocols, tools, or safety policies.
	Executor Executor

	// Inbox overrides the default unbounded inbox.
	Inbox *Inbox

	// PollBatch caps how many messages each loop iteration drains.
	PollBatch int
}

// Runtime drives an agent: it listens on the transport, batches messages
// and claimable tasks, and runs the agent's decisions through the executor.
type Runtime struct {
	agent     Agent
	opts      Options
	inbox     *Inbox
	scheduler *Scheduler
	executor  Executor

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	// lastActivity is touched only from the loop goroutine.
	lastActivity time.Time

	logger zerolog.Logger
}

// NewRuntime creates a runtime for the agent. When no executor is supplied,
// a StandardExecutor is built from the options.
func NewRuntime(agent Agent, opts Options) (*Runtime, error) {
	if agent == nil {
		return nil, fmt.Errorf("runtime requires an agent")
	}
	if opts.Transport == nil {
		return nil, fmt.Errorf("runtime requires a transport")
	}

	inbox := opts.Inbox
	if inbox == nil {
		inbox = NewInbox(0, false)
	}
	executor := opts.Executor
	if executor == nil {
		executor = NewStandardExecutor(ExecutorConfig{
			AgentID:   agent.ID(),
			Identity:  agent.Identity(),
			Transport: opts.Transport,
			Tasks:     opts.Tasks,
			Pools:     opts.Pools,
			Metrics:   opts.Metrics,
			Replay:    opts.Replay,
		})
	}

	return &Runtime{
		agent:     agent,
		opts:      opts,
		inbox:     inbox,
		scheduler: NewScheduler(),
		executor:  executor,
		logger:    log.WithComponent("runtime").With().Str("agent_id", agent.ID()).Logger(),
	}, nil
}

// Running reports whether the runtime has been started and not yet stopped.
func (r *Runtime) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

// Inbox returns the runtime's inbox.
func (r *Runtime) Inbox() *Inbox {
	return r.inbox
}

// Start runs the agent's start hook, starts the transport, registers with
// discovery, and spawns the listener and loop goroutines. Starting a
// running runtime is a no-op.
func (r *Runtime) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return nil
	}
	r.running = true
	r.mu.Unlock()

	if err := r.agent.OnStart(ctx); err != nil {
		r.setRunning(false)
		return fmt.Errorf("agent start hook failed: %w", err)
	}

	if err := r.opts.Transport.Start(ctx); err != nil {
		r.setRunning(false)
		return fmt.Errorf("failed to start transport: %w", err)
	}

	if r.opts.Discovery != nil {
		if err := r.opts.Discovery.Register(ctx, r.descriptor()); err != nil {
			r.opts.Transport.Stop(ctx)
			r.setRunning(false)
			return fmt.Errorf("failed to register with discovery: %w", err)
		}
	}

	runCtx, cancel := context.WithCancel(context.Background())
	r.mu.Lock()
	r.cancel = cancel
	r.mu.Unlock()
	r.lastActivity = time.Now()

	r.wg.Add(2)
	go r.listen(runCtx)
	go r.run(runCtx)

	r.logger.Info().Msg("Agent runtime started")
	return nil
}

// Stop shuts the runtime down: it wakes the loop, cancels both goroutines,
// waits for them, stops the transport, unregisters from discovery, and runs
// the agent's stop hook. Stopping a stopped runtime is a no-op.
func (r *Runtime) Stop(ctx context.Context) error {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return nil
	}
	r.running = false
	cancel := r.cancel
	r.cancel = nil
	r.mu.Unlock()

	r.scheduler.Notify()
	if cancel != nil {
		cancel()
	}

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	if err := r.opts.Transport.Stop(ctx); err != nil {
		return fmt.Errorf("failed to stop transport: %w", err)
	}

	if r.opts.Discovery != nil {
		if err := r.opts.Discovery.Unregister(ctx, r.agent.ID()); err != nil {
			r.logger.Warn().Err(err).Msg("Failed to unregister from discovery")
		}
	}

	if err := r.agent.OnStop(ctx); err != nil {
		return fmt.Errorf("agent stop hook failed: %w", err)
	}

	r.logger.Info().Msg("Agent runtime stopped")
	return nil
}

func (r *Runtime) setRunning(v bool) {
	r.mu.Lock()
	r.running = v
	r.mu.Unlock()
}

// descriptor returns the discovery record for the agent, building one from
// the agent's id, topics, capabilities, and public key unless the options
// carry an explicit descriptor.
func (r *Runtime) descriptor() types.AgentDescriptor {
	if r.opts.Descriptor != nil {
		return *r.opts.Descriptor
	}
	desc := types.AgentDescriptor{
		ID:     r.agent.ID(),
		Topics: r.agent.Topics(),
	}
	for _, name := range r.agent.Capabilities() {
		desc.Capabilities = append(desc.Capabilities, types.CapabilityFromName(name))
	}
	if id := r.agent.Identity(); id != nil {
		desc.PublicKey = id.PublicKey()
	}
	return desc
}

// listen receives from the transport and feeds the inbox until cancelled.
// Receive errors are logged and retried after a short backoff.
func (r *Runtime) listen(ctx context.Context) {
	defer r.wg.Done()

	for {
		msg, err := r.receive(ctx)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			r.logger.Warn().Err(err).Msg("Error receiving message")
			select {
			case <-time.After(receiveBackoff):
			case <-ctx.Done():
				return
			}
			continue
		}
		if msg == nil {
			// Dropped by signature verification.
			continue
		}

		if r.opts.Metrics != nil {
			r.opts.Metrics.Inc(metrics.CounterMessagesReceived, 1)
		}
		if r.opts.Replay != nil {
			r.opts.Replay.RecordMessage(msg)
		}
		r.inbox.Push(ctx, msg)
		r.scheduler.Notify()
	}
}

func (r *Runtime) receive(ctx context.Context) (*message.Message, error) {
	if r.opts.Identities != nil {
		return r.opts.Transport.ReceiveVerified(ctx, r.opts.Identities)
	}
	return r.opts.Transport.Receive(ctx)
}

// run is the main loop: wait for work, drain the inbox, list claimable
// tasks, and hand both to the agent.
func (r *Runtime) run(ctx context.Context) {
	defer r.wg.Done()

	var nextCheckpoint time.Time
	if r.opts.Checkpoints != nil && r.opts.CheckpointInterval > 0 {
		nextCheckpoint = time.Now().Add(r.opts.CheckpointInterval)
	}

	for {
		r.scheduler.WaitForWork(ctx, loopWait)
		if ctx.Err() != nil || !r.Running() {
			return
		}

		msgs := r.inbox.Poll(r.opts.PollBatch)
		tasks := r.pendingTasks(ctx)
		if r.opts.Metrics != nil {
			r.opts.Metrics.Gauge(metrics.GaugePendingTasks, float64(len(tasks)))
		}

		if len(msgs) > 0 || len(tasks) > 0 {
			r.agent.OnTick(ctx, msgs, tasks)

			decideCtx, endDecide := tracing.StartSpan(ctx, "agent.decide")
			decisions, err := r.agent.Decide(decideCtx, msgs, tasks)
			endDecide()

			if err != nil {
				r.logger.Error().Err(err).Msg("Agent decide failed")
			} else if len(decisions) > 0 {
				execCtx, endExec := tracing.StartSpan(ctx, "executor.execute")
				r.executor.Execute(execCtx, decisions)
				endExec()
			}
			r.lastActivity = time.Now()
		}

		if !nextCheckpoint.IsZero() && !time.Now().Before(nextCheckpoint) {
			r.writeCheckpoint(ctx)
			nextCheckpoint = time.Now().Add(r.opts.CheckpointInterval)
		}
	}
}

// pendingTasks lists tasks the agent could claim. With both managers
// present the listing is filtered by the agent's pools and capabilities.
func (r *Runtime) pendingTasks(ctx context.Context) []*types.Task {
	if r.opts.Tasks == nil {
		return nil
	}

	var (
		tasks []*types.Task
		err   error
	)
	if r.opts.Pools != nil {
		var pools []string
		pools, err = r.opts.Pools.GetPoolsForAgent(ctx, r.agent.ID())
		if err == nil {
			tasks, err = r.opts.Tasks.ListPendingForAgent(ctx, r.agent.ID(), pools, r.agent.Capabilities())
		}
	} else {
		tasks, err = r.opts.Tasks.ListPending(ctx)
	}
	if err != nil {
		r.logger.Warn().Err(err).Msg("Failed to list pending tasks")
		return nil
	}
	return tasks
}
