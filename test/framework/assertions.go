package framework

import (
	"context"
	"reflect"

	"github.com/convergeframework/converge/pkg/coordination"
	"github.com/convergeframework/converge/pkg/types"
)

// Assertions provides test assertion helpers over the coordination managers.
type Assertions struct {
	t TestingT
}

// NewAssertions creates a new Assertions instance.
func NewAssertions(t TestingT) *Assertions {
	return &Assertions{t: t}
}

// TaskState asserts that a task is in the given lifecycle state.
func (a *Assertions) TaskState(tasks *coordination.TaskManager, taskID string, state types.TaskState) {
	a.t.Helper()

	task, err := tasks.Get(context.Background(), taskID)
	if err != nil {
		a.t.Fatalf("Failed to get task %s: %v", taskID, err)
	}
	if task == nil {
		a.t.Fatalf("Task %s not found", taskID)
	}
	if task.State != state {
		a.t.Fatalf("Task %s is in state %s, expected %s", taskID, task.State, state)
	}
}

// TaskResult asserts that a task carries the given result.
func (a *Assertions) TaskResult(tasks *coordination.TaskManager, taskID string, expected any) {
	a.t.Helper()

	task, err := tasks.Get(context.Background(), taskID)
	if err != nil {
		a.t.Fatalf("Failed to get task %s: %v", taskID, err)
	}
	if task == nil {
		a.t.Fatalf("Task %s not found", taskID)
	}
	if !reflect.DeepEqual(task.Result, expected) {
		a.t.Fatalf("Task %s has result %v, expected %v", taskID, task.Result, expected)
	}
}

// PoolMember asserts that an agent belongs to a pool.
func (a *Assertions) PoolMember(pools *coordination.PoolManager, poolID, agentID string) {
	a.t.Helper()

	p, err := pools.GetPool(context.Background(), poolID)
	if err != nil {
		a.t.Fatalf("Failed to get pool %s: %v", poolID, err)
	}
	if p == nil {
		a.t.Fatalf("Pool %s not found", poolID)
	}
	if !p.HasAgent(agentID) {
		a.t.Fatalf("Agent %s is not a member of pool %s", agentID, poolID)
	}
}

// NotPoolMember asserts that an agent does not belong to a pool.
func (a *Assertions) NotPoolMember(pools *coordination.PoolManager, poolID, agentID string) {
	a.t.Helper()

	p, err := pools.GetPool(context.Background(), poolID)
	if err != nil {
		a.t.Fatalf("Failed to get pool %s: %v", poolID, err)
	}
	if p == nil {
		a.t.Fatalf("Pool %s not found", poolID)
	}
	if p.HasAgent(agentID) {
		a.t.Fatalf("Agent %s is a member of pool %s, expected it not to be", agentID, poolID)
	}
}

// NoError asserts that the error is nil.
func (a *Assertions) NoError(err error, msg string) {
	a.t.Helper()

	if err != nil {
		a.t.Fatalf("%s: %v", msg, err)
	}
}

// True asserts that a condition is true.
func (a *Assertions) True(condition bool, msg string) {
	a.t.Helper()

	if !condition {
		a.t.Fatalf("%s: expected true, got false", msg)
	}
}

// False asserts that a condition is false.
func (a *Assertions) False(condition bool, msg string) {
	a.t.Helper()

	if condition {
		a.t.Fatalf("%s: expected false, got true", msg)
	}
}

// Equal asserts that two values are equal.
func (a *Assertions) Equal(expected, actual any, msg string) {
	a.t.Helper()

	if !reflect.DeepEqual(expected, actual) {
		a.t.Fatalf("%s: expected %v, got %v", msg, expected, actual)
	}
}
