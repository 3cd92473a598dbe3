package reconciler

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/convergeframework/converge/pkg/coordination"
	"github.com/convergeframework/converge/pkg/log"
)

// DefaultInterval is the sweep cadence used when none is configured.
const DefaultInterval = 10 * time.Second

// Reconciler returns expired task claims to the pending state so surviving
// agents can pick them up. It covers the gap left by agents that claimed a
// task and then stopped without reporting.
type Reconciler struct {
	tasks    *coordination.TaskManager
	interval time.Duration
	stopCh   chan struct{}
	logger   zerolog.Logger
}

// NewReconciler creates a reconciler over a task manager. An interval of
// zero selects DefaultInterval.
func NewReconciler(tasks *coordination.TaskManager, interval time.Duration) *Reconciler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Reconciler{
		tasks:    tasks,
		interval: interval,
		stopCh:   make(chan struct{}),
		logger:   log.WithComponent("reconciler"),
	}
}

// Start begins the reconciliation loop.
func (r *Reconciler) Start() {
	go r.run()
}

// Stop stops the reconciler. It must be called at most once.
func (r *Reconciler) Stop() {
	close(r.stopCh)
}

// run is the main reconciliation loop.
func (r *Reconciler) run() {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := r.reconcile(context.Background()); err != nil {
				r.logger.Error().Err(err).Msg("Reconciliation cycle failed")
			}
		case <-r.stopCh:
			return
		}
	}
}

// reconcile performs one reconciliation cycle.
func (r *Reconciler) reconcile(ctx context.Context) error {
	released, err := r.tasks.ReleaseExpiredClaims(ctx, time.Now())
	if err != nil {
		return err
	}
	if len(released) > 0 {
		r.logger.Info().
			Int("released", len(released)).
			Strs("task_ids", released).
			Msg("Released expired claims")
	}
	return nil
}
