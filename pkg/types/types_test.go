package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/convergeframework/converge/pkg/message"
	"github.com/convergeframework/converge/pkg/policy"
)

func TestTaskStateTerminal(t *testing.T) {
	assert.False(t, TaskStatePending.Terminal())
	assert.False(t, TaskStateAssigned.Terminal())
	assert.False(t, TaskStateRunning.Terminal())
	assert.True(t, TaskStateCompleted.Terminal())
	assert.True(t, TaskStateFailed.Terminal())
	assert.True(t, TaskStateCancelled.Terminal())
}

func TestNewTask(t *testing.T) {
	task := NewTask()

	assert.NotEmpty(t, task.ID)
	assert.Equal(t, TaskStatePending, task.State)
	assert.Equal(t, "default", task.Evaluator)
	assert.NotNil(t, task.Constraints)

	other := NewTask()
	assert.NotEqual(t, task.ID, other.ID)
}

func TestTaskClaimTTL(t *testing.T) {
	task := NewTask()

	_, ok := task.ClaimTTL()
	assert.False(t, ok)

	task.Constraints["claim_ttl_sec"] = 0.1
	ttl, ok := task.ClaimTTL()
	require.True(t, ok)
	assert.Equal(t, 100*time.Millisecond, ttl)

	// Integer-typed values work too.
	task.Constraints["claim_ttl_sec"] = int64(30)
	ttl, ok = task.ClaimTTL()
	require.True(t, ok)
	assert.Equal(t, 30*time.Second, ttl)

	task.Constraints["claim_ttl_sec"] = "not a number"
	_, ok = task.ClaimTTL()
	assert.False(t, ok)
}

func TestNewPool(t *testing.T) {
	pool := NewPool(PoolSpec{
		ID:     "workers",
		Topics: []message.Topic{message.NewTopic("tasks", nil)},
	})

	assert.Equal(t, "workers", pool.ID)
	assert.Empty(t, pool.AgentIDs())

	generated := NewPool(PoolSpec{})
	assert.NotEmpty(t, generated.ID)
}

func TestPoolMembership(t *testing.T) {
	pool := NewPool(PoolSpec{ID: "workers"})

	pool.AddAgent("agent-2")
	pool.AddAgent("agent-1")
	pool.AddAgent("agent-1")

	assert.True(t, pool.HasAgent("agent-1"))
	assert.False(t, pool.HasAgent("agent-3"))
	assert.Equal(t, []string{"agent-1", "agent-2"}, pool.AgentIDs())

	pool.RemoveAgent("agent-1")
	pool.RemoveAgent("agent-1")
	assert.Equal(t, []string{"agent-2"}, pool.AgentIDs())
}

func TestPoolSpecPolicies(t *testing.T) {
	pool := NewPool(PoolSpec{
		ID:             "gated",
		Admission:      policy.NewWhitelistAdmission([]string{"agent-1"}),
		Trust:          policy.NewTrustModel(),
		TrustThreshold: 0.3,
	})

	assert.True(t, pool.Admission.CanAdmit("agent-1", policy.JoinContext{}))
	assert.False(t, pool.Admission.CanAdmit("agent-2", policy.JoinContext{}))
	assert.Equal(t, 0.3, pool.TrustThreshold)
}

func TestCapabilityHelpers(t *testing.T) {
	c := CapabilityFromName("review")
	assert.Equal(t, "review", c.Name)
	assert.Equal(t, "1.0", c.Version)

	names := CapabilityNames([]Capability{c, {Name: "translate"}})
	assert.Equal(t, []string{"review", "translate"}, names)
}

func TestAsFloat(t *testing.T) {
	cases := []struct {
		in   any
		want float64
		ok   bool
	}{
		{0.25, 0.25, true},
		{float32(1.5), 1.5, true},
		{3, 3, true},
		{int64(7), 7, true},
		{uint8(9), 9, true},
		{"12", 0, false},
		{nil, 0, false},
	}
	for _, c := range cases {
		got, ok := AsFloat(c.in)
		assert.Equal(t, c.ok, ok, "input %#v", c.in)
		if ok {
			assert.Equal(t, c.want, got, "input %#v", c.in)
		}
	}
}

func TestDecisionKinds(t *testing.T) {
	decisions := []Decision{
		SendMessage{},
		SubmitTask{},
		ClaimTask{},
		ReportTask{},
		JoinPool{},
		LeavePool{},
		CreatePool{},
		SubmitBid{},
		Vote{},
		Propose{},
		AcceptProposal{},
		RejectProposal{},
		Delegate{},
		RevokeDelegation{},
		InvokeTool{},
	}

	seen := map[string]bool{}
	for _, d := range decisions {
		kind := d.Kind()
		assert.NotEmpty(t, kind)
		assert.False(t, seen[kind], "duplicate kind %s", kind)
		seen[kind] = true
	}
	assert.Equal(t, "SendMessage", SendMessage{}.Kind())
	assert.Equal(t, "InvokeTool", InvokeTool{}.Kind())
}
