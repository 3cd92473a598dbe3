package coordination

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/convergeframework/converge/pkg/log"
	"github.com/convergeframework/converge/pkg/store"
	"github.com/convergeframework/converge/pkg/types"
)

// TaskManager owns the task state machine. All transitions run under one
// mutex so no two claimants can both observe PENDING. Every transition is
// mirrored to the store (when present) under "task:<id>".
type TaskManager struct {
	mu      sync.Mutex
	tasks   map[string]*types.Task
	pending map[string]struct{}
	store   store.Store
	now     func() time.Time
	logger  zerolog.Logger
}

// NewTaskManager creates a task manager over an optional store.
func NewTaskManager(st store.Store) *TaskManager {
	return &TaskManager{
		tasks:   map[string]*types.Task{},
		pending: map[string]struct{}{},
		store:   st,
		now:     time.Now,
		logger:  log.WithComponent("taskmanager"),
	}
}

// Submit registers a task and marks it pending.
func (m *TaskManager) Submit(ctx context.Context, t *types.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if t.State == "" {
		t.State = types.TaskStatePending
	}
	m.tasks[t.ID] = t
	if t.State == types.TaskStatePending {
		m.pending[t.ID] = struct{}{}
	}
	if err := m.persist(ctx, t); err != nil {
		return err
	}
	m.logger.Debug().Str("task_id", t.ID).Msg("Task submitted")
	return nil
}

// Claim atomically assigns a pending task to an agent. It returns true only
// when the task exists and was PENDING at the moment of the check.
func (m *TaskManager) Claim(ctx context.Context, agentID, taskID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, err := m.load(ctx, taskID)
	if err != nil {
		return false, err
	}
	if t == nil || t.State != types.TaskStatePending {
		return false, nil
	}

	t.State = types.TaskStateAssigned
	t.AssignedTo = agentID
	t.ClaimedAt = m.now()
	delete(m.pending, t.ID)
	if err := m.persist(ctx, t); err != nil {
		return false, err
	}
	m.logger.Debug().Str("task_id", taskID).Str("agent_id", agentID).Msg("Task claimed")
	return true, nil
}

// Report completes a task with a result. Reporting an unknown task is
// silently ignored; reporting a task assigned to a different agent is an
// error; terminal tasks reject further reports.
func (m *TaskManager) Report(ctx context.Context, agentID, taskID string, result any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, err := m.load(ctx, taskID)
	if err != nil {
		return err
	}
	if t == nil {
		return nil
	}
	if t.State.Terminal() {
		return fmt.Errorf("task %s is already %s", taskID, t.State)
	}
	if t.AssignedTo != agentID {
		return fmt.Errorf("agent %s is not assigned to task %s", agentID, taskID)
	}

	t.State = types.TaskStateCompleted
	t.Result = result
	delete(m.pending, t.ID)
	if err := m.persist(ctx, t); err != nil {
		return err
	}
	m.logger.Debug().Str("task_id", taskID).Str("agent_id", agentID).Msg("Task completed")
	return nil
}

// Fail moves an assigned or running task to FAILED with the given result.
// When agentID is non-empty the task must be assigned to that agent. It
// returns whether the transition happened.
func (m *TaskManager) Fail(ctx context.Context, taskID string, result any, agentID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, err := m.load(ctx, taskID)
	if err != nil {
		return false, err
	}
	if t == nil {
		return false, nil
	}
	if t.State != types.TaskStateAssigned && t.State != types.TaskStateRunning {
		return false, nil
	}
	if agentID != "" && t.AssignedTo != agentID {
		return false, fmt.Errorf("agent %s is not assigned to task %s", agentID, taskID)
	}

	t.State = types.TaskStateFailed
	t.Result = result
	delete(m.pending, t.ID)
	if err := m.persist(ctx, t); err != nil {
		return false, err
	}
	m.logger.Debug().Str("task_id", taskID).Msg("Task failed")
	return true, nil
}

// Cancel aborts any non-terminal task. It returns false for unknown or
// already terminal tasks.
func (m *TaskManager) Cancel(ctx context.Context, taskID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, err := m.load(ctx, taskID)
	if err != nil {
		return false, err
	}
	if t == nil || t.State.Terminal() {
		return false, nil
	}

	t.State = types.TaskStateCancelled
	delete(m.pending, t.ID)
	if err := m.persist(ctx, t); err != nil {
		return false, err
	}
	m.logger.Debug().Str("task_id", taskID).Msg("Task cancelled")
	return true, nil
}

// Get returns a task by ID, loading it from the store on a cache miss.
// Unknown tasks return (nil, nil).
func (m *TaskManager) Get(ctx context.Context, taskID string) (*types.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.load(ctx, taskID)
}

// ListPending returns all pending tasks, including tasks that only exist in
// the store (so a manager constructed over an existing store picks up where
// its predecessor stopped). Results are sorted by task ID.
func (m *TaskManager) ListPending(ctx context.Context) ([]*types.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.loadStored(ctx); err != nil {
		return nil, err
	}

	out := make([]*types.Task, 0, len(m.pending))
	for id := range m.pending {
		out = append(out, m.tasks[id])
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// ListPendingForAgent filters pending tasks by pool membership and agent
// capabilities. A nil poolIDs or capabilities slice disables that predicate.
func (m *TaskManager) ListPendingForAgent(ctx context.Context, agentID string, poolIDs []string, capabilities []string) ([]*types.Task, error) {
	all, err := m.ListPending(ctx)
	if err != nil {
		return nil, err
	}

	var pools map[string]struct{}
	if poolIDs != nil {
		pools = make(map[string]struct{}, len(poolIDs))
		for _, id := range poolIDs {
			pools[id] = struct{}{}
		}
	}
	var caps map[string]struct{}
	if capabilities != nil {
		caps = make(map[string]struct{}, len(capabilities))
		for _, c := range capabilities {
			caps[c] = struct{}{}
		}
	}

	var out []*types.Task
	for _, t := range all {
		if pools != nil && t.PoolID != "" {
			if _, ok := pools[t.PoolID]; !ok {
				continue
			}
		}
		if caps != nil && len(t.RequiredCapabilities) > 0 {
			ok := true
			for _, need := range t.RequiredCapabilities {
				if _, have := caps[need]; !have {
					ok = false
					break
				}
			}
			if !ok {
				continue
			}
		}
		out = append(out, t)
	}
	return out, nil
}

// ReleaseExpiredClaims returns assigned tasks whose claim lease has lapsed
// to PENDING and reports their IDs. Tasks without a "claim_ttl_sec"
// constraint never expire.
func (m *TaskManager) ReleaseExpiredClaims(ctx context.Context, now time.Time) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.loadStored(ctx); err != nil {
		return nil, err
	}

	var released []string
	for _, t := range m.tasks {
		if t.State != types.TaskStateAssigned {
			continue
		}
		ttl, ok := t.ClaimTTL()
		if !ok || t.ClaimedAt.IsZero() {
			continue
		}
		if now.Sub(t.ClaimedAt) < ttl {
			continue
		}

		t.State = types.TaskStatePending
		t.AssignedTo = ""
		t.ClaimedAt = time.Time{}
		m.pending[t.ID] = struct{}{}
		if err := m.persist(ctx, t); err != nil {
			return released, err
		}
		m.logger.Debug().Str("task_id", t.ID).Msg("Claim expired, task released")
		released = append(released, t.ID)
	}
	sort.Strings(released)
	return released, nil
}

// load fetches a task from memory, falling back to the store. A task loaded
// in PENDING re-enters the pending index. Callers hold the mutex.
func (m *TaskManager) load(ctx context.Context, taskID string) (*types.Task, error) {
	if t, ok := m.tasks[taskID]; ok {
		return t, nil
	}
	if m.store == nil {
		return nil, nil
	}

	value, err := m.store.Get(ctx, taskKeyPrefix+taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to load task %s: %w", taskID, err)
	}
	if value == nil {
		return nil, nil
	}
	t, err := decodeTask(value)
	if err != nil {
		return nil, err
	}

	m.tasks[t.ID] = t
	if t.State == types.TaskStatePending {
		m.pending[t.ID] = struct{}{}
	}
	return t, nil
}

// loadStored materializes every store-resident task that is not yet cached.
// Callers hold the mutex.
func (m *TaskManager) loadStored(ctx context.Context) error {
	if m.store == nil {
		return nil
	}
	keys, err := m.store.List(ctx, taskKeyPrefix)
	if err != nil {
		return fmt.Errorf("failed to list tasks: %w", err)
	}
	for _, key := range keys {
		id := key[len(taskKeyPrefix):]
		if _, ok := m.tasks[id]; ok {
			continue
		}
		if _, err := m.load(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

func (m *TaskManager) persist(ctx context.Context, t *types.Task) error {
	if m.store == nil {
		return nil
	}
	value, err := encodeTask(t)
	if err != nil {
		return fmt.Errorf("failed to encode task %s: %w", t.ID, err)
	}
	if err := m.store.Put(ctx, taskKeyPrefix+t.ID, value); err != nil {
		return fmt.Errorf("failed to persist task %s: %w", t.ID, err)
	}
	return nil
}
