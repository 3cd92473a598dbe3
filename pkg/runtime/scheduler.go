package runtime

import (
	"context"
	"time"
)

// Scheduler is a one-shot wakeup latch between the listener and the main
// loop. Notify sets the latch; WaitForWork consumes it. Any number of
// notifies between two waits collapse into a single wakeup.
type Scheduler struct {
	work chan struct{}
}

// NewScheduler creates an unset scheduler.
func NewScheduler() *Scheduler {
	return &Scheduler{work: make(chan struct{}, 1)}
}

// Notify sets the latch. Non-blocking: notifying an already set latch is a
// no-op.
func (s *Scheduler) Notify() {
	select {
	case s.work <- struct{}{}:
	default:
	}
}

// WaitForWork blocks until the latch is set, the timeout elapses, or ctx is
// done. It returns true only when woken by Notify, clearing the latch.
func (s *Scheduler) WaitForWork(ctx context.Context, timeout time.Duration) bool {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-s.work:
		return true
	case <-timer.C:
		return false
	case <-ctx.Done():
		return false
	}
}
