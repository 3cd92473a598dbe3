package e2e

import (
	"context"
	"testing"
	"time"

	"github.com/convergeframework/converge/test/framework"

	"github.com/convergeframework/converge/pkg/store"
	"github.com/convergeframework/converge/pkg/types"
)

// TestSwarmDrainsBacklog runs five pooled agents against a backlog of tasks
// and checks that every task completes, every assignment lands on a swarm
// member, and the executors actually did the work.
func TestSwarmDrainsBacklog(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping load test in short mode")
	}

	const backlog = 20

	swarm, err := framework.NewSwarm(&framework.SwarmConfig{
		Agents:         5,
		PoolID:         "workers",
		Capabilities:   []string{"compute"},
		DiscoveryStore: store.NewMemoryStore(),
	})
	if err != nil {
		t.Fatalf("Failed to create swarm: %v", err)
	}
	defer func() { _ = swarm.Stop() }()

	ctx := context.Background()
	result := map[string]any{"status": "done"}
	for _, node := range swarm.Nodes {
		node.Agent.Script(claimAndReport(result))
	}

	if err := swarm.Start(); err != nil {
		t.Fatalf("Failed to start swarm: %v", err)
	}

	waiter := framework.DefaultWaiter()
	for _, node := range swarm.Nodes {
		if err := waiter.WaitForRegistered(ctx, swarm.Discovery, node.ID); err != nil {
			t.Fatalf("Agent did not register: %v", err)
		}
	}

	members := make(map[string]struct{}, len(swarm.Nodes))
	for _, node := range swarm.Nodes {
		members[node.ID] = struct{}{}
	}

	taskIDs := make([]string, 0, backlog)
	for i := 0; i < backlog; i++ {
		task := types.NewTask()
		task.PoolID = "workers"
		task.RequiredCapabilities = []string{"compute"}
		if err := swarm.Tasks.Submit(ctx, task); err != nil {
			t.Fatalf("Failed to submit task %d: %v", i, err)
		}
		taskIDs = append(taskIDs, task.ID)
	}

	drain := framework.NewWaiter(15*time.Second, 50*time.Millisecond)
	for _, id := range taskIDs {
		if err := drain.WaitForTaskState(ctx, swarm.Tasks, id, types.TaskStateCompleted); err != nil {
			t.Fatalf("Backlog did not drain: %v", err)
		}
	}

	assert := framework.NewAssertions(t)
	for _, id := range taskIDs {
		task, err := swarm.Tasks.Get(ctx, id)
		assert.NoError(err, "Failed to get task")
		assert.TaskResult(swarm.Tasks, id, result)
		if _, ok := members[task.AssignedTo]; !ok {
			t.Errorf("Task %s assigned to %s, not a swarm member", id, task.AssignedTo)
		}
	}

	// Every completion is one executed claim plus one executed report.
	var executed int64
	for _, node := range swarm.Nodes {
		executed += node.Metrics.Count("decisions_executed")
	}
	if executed < 2*backlog {
		t.Errorf("Executors ran %d decisions, expected at least %d", executed, 2*backlog)
	}
}
