package framework

import (
	"context"
	"fmt"
	"time"

	"github.com/convergeframework/converge/pkg/coordination"
	"github.com/convergeframework/converge/pkg/discovery"
	"github.com/convergeframework/converge/pkg/message"
	"github.com/convergeframework/converge/pkg/types"
)

// Waiter provides utilities for waiting on conditions with timeouts.
type Waiter struct {
	timeout  time.Duration
	interval time.Duration
}

// NewWaiter creates a new Waiter with the given timeout and polling interval.
func NewWaiter(timeout, interval time.Duration) *Waiter {
	return &Waiter{
		timeout:  timeout,
		interval: interval,
	}
}

// DefaultWaiter returns a waiter tuned for in-process swarms (10s timeout,
// 50ms interval).
func DefaultWaiter() *Waiter {
	return NewWaiter(10*time.Second, 50*time.Millisecond)
}

// WaitFor waits for a condition to become true.
func (w *Waiter) WaitFor(ctx context.Context, condition func() bool, description string) error {
	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	// Check immediately
	if condition() {
		return nil
	}

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("timeout waiting for: %s (timeout: %v)", description, w.timeout)
		case <-ticker.C:
			if condition() {
				return nil
			}
		}
	}
}

// WaitForTaskState waits for a task to reach a lifecycle state.
func (w *Waiter) WaitForTaskState(ctx context.Context, tasks *coordination.TaskManager, taskID string, state types.TaskState) error {
	return w.WaitFor(ctx, func() bool {
		task, err := tasks.Get(ctx, taskID)
		if err != nil || task == nil {
			return false
		}
		return task.State == state
	}, fmt.Sprintf("task %s to reach state %s", taskID, state))
}

// WaitForMessage waits for an agent to have received a message matching the
// predicate.
func (w *Waiter) WaitForMessage(ctx context.Context, agent *ScriptedAgent, match func(*message.Message) bool, description string) error {
	return w.WaitFor(ctx, func() bool {
		return agent.FindReceived(match) != nil
	}, description)
}

// WaitForMessageCount waits for an agent to have received at least count
// messages.
func (w *Waiter) WaitForMessageCount(ctx context.Context, agent *ScriptedAgent, count int) error {
	return w.WaitFor(ctx, func() bool {
		return agent.ReceivedCount() >= count
	}, fmt.Sprintf("agent to receive %d messages", count))
}

// WaitForRegistered waits for an agent to appear in the discovery service.
func (w *Waiter) WaitForRegistered(ctx context.Context, disc *discovery.Service, agentID string) error {
	return w.WaitFor(ctx, func() bool {
		_, ok := disc.Get(agentID)
		return ok
	}, fmt.Sprintf("agent %s to register with discovery", agentID))
}
