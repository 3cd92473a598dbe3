/*
Package runtime drives agents: it owns the listen/decide/execute loop that
turns incoming messages and claimable tasks into executed decisions.

The runtime is deliberately thin. Agents implement the Agent interface
(Decide is the only method that usually matters); the StandardExecutor
knows how to act on every built-in decision kind; the runtime just moves
batches between them and keeps the loop alive.

# Architecture

	┌───────────────────── AGENT RUNTIME ───────────────────────┐
	│                                                            │
	│   transport ──► listener goroutine                         │
	│                   │  verify · count · record               │
	│                   ▼                                        │
	│                 Inbox (bounded, drop or block)             │
	│                   │          Scheduler.Notify              │
	│                   ▼              │                         │
	│                 main loop ◄──────┘                         │
	│                   │  WaitForWork(1s)                       │
	│                   ▼                                        │
	│   poll inbox + list claimable tasks                        │
	│                   │                                        │
	│                   ▼                                        │
	│   Agent.OnTick ─► Agent.Decide ─► Executor.Execute         │
	│                                     │                      │
	│                                     ▼                      │
	│   transport / managers / protocols / tools                 │
	│                                                            │
	│   every CheckpointInterval: checkpoint:<agent id>          │
	└────────────────────────────────────────────────────────────┘

# Core Components

  - Agent / BaseAgent: the behavior contract and its no-op defaults
  - Runtime: lifecycle (Start/Stop), listener and loop goroutines,
    discovery registration, periodic checkpoints
  - Scheduler: one-shot wakeup latch between listener and loop
  - Inbox: bounded message queue with drop-or-block overflow policy
  - StandardExecutor: dispatches decision batches to managers,
    coordination protocols, the transport, and tools
  - ToolRegistry: named tools for InvokeTool decisions

# Usage

	rt, err := runtime.NewRuntime(agent, runtime.Options{
		Transport: tr,
		Tasks:     taskManager,
		Pools:     poolManager,
		Metrics:   collector,
	})
	if err != nil {
		return err
	}
	if err := rt.Start(ctx); err != nil {
		return err
	}
	defer rt.Stop(ctx)
*/
package runtime
