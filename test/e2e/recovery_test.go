package e2e

import (
	"context"
	"testing"
	"time"

	"github.com/convergeframework/converge/test/framework"

	"github.com/convergeframework/converge/pkg/coordination"
	"github.com/convergeframework/converge/pkg/identity"
	"github.com/convergeframework/converge/pkg/runtime"
	"github.com/convergeframework/converge/pkg/store"
	"github.com/convergeframework/converge/pkg/transport"
	"github.com/convergeframework/converge/pkg/types"
)

// TestRestartRecovery persists a task and a pool through a filesystem store,
// rebuilds the managers as a fresh process would, and has a new runtime with
// the original identity finish the task.
func TestRestartRecovery(t *testing.T) {
	ctx := context.Background()
	assert := framework.NewAssertions(t)
	dir := t.TempDir()

	agentIdentity, err := identity.Generate()
	if err != nil {
		t.Fatalf("Failed to generate identity: %v", err)
	}
	agentID := agentIdentity.Fingerprint()

	// First lifetime: submit work and register pool membership.
	before, err := store.NewFileStore(dir)
	if err != nil {
		t.Fatalf("Failed to open file store: %v", err)
	}

	tasksBefore := coordination.NewTaskManager(before)
	poolsBefore := coordination.NewPoolManager(before)

	if _, err := poolsBefore.CreatePool(ctx, types.PoolSpec{ID: "recovery-pool"}); err != nil {
		t.Fatalf("Failed to create pool: %v", err)
	}
	joined, err := poolsBefore.JoinPool(ctx, agentID, "recovery-pool")
	assert.NoError(err, "Failed to join pool")
	assert.True(joined, "Agent should have been admitted")

	task := types.NewTask()
	task.PoolID = "recovery-pool"
	task.Objective["goal"] = "survive a restart"
	if err := tasksBefore.Submit(ctx, task); err != nil {
		t.Fatalf("Failed to submit task: %v", err)
	}
	if err := before.Close(); err != nil {
		t.Fatalf("Failed to close store: %v", err)
	}

	// Second lifetime: fresh managers over the same directory.
	after, err := store.NewFileStore(dir)
	if err != nil {
		t.Fatalf("Failed to reopen file store: %v", err)
	}
	defer after.Close()

	tasks := coordination.NewTaskManager(after)
	pools := coordination.NewPoolManager(after)

	assert.PoolMember(pools, "recovery-pool", agentID)

	recovered, err := tasks.Get(ctx, task.ID)
	assert.NoError(err, "Failed to load task after restart")
	if recovered == nil {
		t.Fatalf("Task %s did not survive the restart", task.ID)
	}
	assert.Equal(types.TaskStatePending, recovered.State, "Task state changed across restart")
	assert.Equal("recovery-pool", recovered.PoolID, "Task pool changed across restart")

	// A new runtime with the original identity resumes the work.
	agent := framework.NewScriptedAgent(agentIdentity, nil, nil)
	agent.Script(claimAndReport(map[string]any{"status": "done"}))

	rt, err := runtime.NewRuntime(agent, runtime.Options{
		Transport: transport.NewLocalTransportWithRegistry(agentID, transport.NewLocalRegistry()),
		Tasks:     tasks,
		Pools:     pools,
	})
	if err != nil {
		t.Fatalf("Failed to build runtime: %v", err)
	}
	if err := rt.Start(ctx); err != nil {
		t.Fatalf("Failed to start runtime: %v", err)
	}
	defer func() { _ = rt.Stop(ctx) }()

	waiter := framework.NewWaiter(5*time.Second, 50*time.Millisecond)
	if err := waiter.WaitForTaskState(ctx, tasks, task.ID, types.TaskStateCompleted); err != nil {
		t.Fatalf("Task was not resumed after restart: %v", err)
	}
	assert.TaskResult(tasks, task.ID, map[string]any{"status": "done"})
}
