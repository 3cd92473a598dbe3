package runtime

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/convergeframework/converge/pkg/coordination"
	"github.com/convergeframework/converge/pkg/identity"
	"github.com/convergeframework/converge/pkg/message"
	"github.com/convergeframework/converge/pkg/metrics"
	"github.com/convergeframework/converge/pkg/policy"
	"github.com/convergeframework/converge/pkg/replay"
	"github.com/convergeframework/converge/pkg/store"
	"github.com/convergeframework/converge/pkg/types"
)

// captureTransport records sent messages instead of delivering them.
type captureTransport struct {
	mu   sync.Mutex
	sent []*message.Message
}

func (c *captureTransport) Start(ctx context.Context) error { return nil }
func (c *captureTransport) Stop(ctx context.Context) error  { return nil }

func (c *captureTransport) Send(ctx context.Context, msg *message.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, msg)
	return nil
}

func (c *captureTransport) Receive(ctx context.Context) (*message.Message, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func (c *captureTransport) ReceiveVerified(ctx context.Context, registry *identity.Registry) (*message.Message, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func (c *captureTransport) sentMessages() []*message.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*message.Message(nil), c.sent...)
}

func TestExecuteSendMessageSignsUnsigned(t *testing.T) {
	id, err := identity.Generate()
	require.NoError(t, err)

	tp := &captureTransport{}
	col := metrics.NewCollector(id.Fingerprint())
	rl := replay.NewLog()
	exec := NewStandardExecutor(ExecutorConfig{
		AgentID:   id.Fingerprint(),
		Identity:  id,
		Transport: tp,
		Metrics:   col,
		Replay:    rl,
	})

	msg := message.New(id.Fingerprint())
	msg.Payload["kind"] = "ping"
	exec.Execute(context.Background(), []types.Decision{types.SendMessage{Message: msg}})

	sent := tp.sentMessages()
	require.Len(t, sent, 1)
	assert.NotEmpty(t, sent[0].Signature)
	assert.True(t, sent[0].Verify(id.PublicKey()))

	assert.Equal(t, 1, rl.Len())
	assert.Equal(t, int64(1), col.Count(metrics.CounterMessagesSent))
	assert.Equal(t, int64(1), col.Count(metrics.CounterDecisionsExecuted))
}

func TestExecuteSendMessageKeepsExistingSignature(t *testing.T) {
	id, err := identity.Generate()
	require.NoError(t, err)

	msg := message.New(id.Fingerprint())
	signed, err := msg.Sign(id)
	require.NoError(t, err)

	tp := &captureTransport{}
	exec := NewStandardExecutor(ExecutorConfig{
		AgentID:   id.Fingerprint(),
		Identity:  id,
		Transport: tp,
	})
	exec.Execute(context.Background(), []types.Decision{types.SendMessage{Message: signed}})

	sent := tp.sentMessages()
	require.Len(t, sent, 1)
	assert.Equal(t, signed.Signature, sent[0].Signature)
}

func TestActionPolicyBlocksDecision(t *testing.T) {
	ctx := context.Background()
	tm := coordination.NewTaskManager(store.NewMemoryStore())
	col := metrics.NewCollector("agent-1")
	exec := NewStandardExecutor(ExecutorConfig{
		AgentID: "agent-1",
		Tasks:   tm,
		Actions: policy.NewActionPolicy([]string{types.KindSendMessage}),
		Metrics: col,
	})

	exec.Execute(ctx, []types.Decision{types.SubmitTask{Task: types.NewTask()}})

	pending, err := tm.ListPending(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)
	assert.Equal(t, int64(0), col.Count(metrics.CounterDecisionsExecuted))
}

func TestResourceLimitsRejectOversizedSubmit(t *testing.T) {
	ctx := context.Background()
	tm := coordination.NewTaskManager(store.NewMemoryStore())
	limits := policy.DefaultResourceLimits()
	col := metrics.NewCollector("agent-1")
	exec := NewStandardExecutor(ExecutorConfig{
		AgentID: "agent-1",
		Tasks:   tm,
		Limits:  &limits,
		Metrics: col,
	})

	greedy := types.NewTask()
	greedy.Constraints["cpu"] = 2.0
	exec.Execute(ctx, []types.Decision{types.SubmitTask{Task: greedy}})

	modest := types.NewTask()
	modest.Constraints["max_cpu_tokens"] = 0.5
	modest.Constraints["memory_mb"] = 256
	exec.Execute(ctx, []types.Decision{types.SubmitTask{Task: modest}})

	pending, err := tm.ListPending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, modest.ID, pending[0].ID)
	assert.Equal(t, int64(1), col.Count(metrics.CounterDecisionsExecuted))
}

func TestResourceLimitsRejectOversizedClaim(t *testing.T) {
	ctx := context.Background()
	tm := coordination.NewTaskManager(store.NewMemoryStore())

	task := types.NewTask()
	task.Constraints["memory_mb"] = 1024
	require.NoError(t, tm.Submit(ctx, task))

	limits := policy.DefaultResourceLimits()
	exec := NewStandardExecutor(ExecutorConfig{
		AgentID: "agent-1",
		Tasks:   tm,
		Limits:  &limits,
	})
	exec.Execute(ctx, []types.Decision{types.ClaimTask{TaskID: task.ID}})

	got, err := tm.Get(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, types.TaskStatePending, got.State)
}

func TestExecuteClaimAndReport(t *testing.T) {
	ctx := context.Background()
	tm := coordination.NewTaskManager(store.NewMemoryStore())

	task := types.NewTask()
	require.NoError(t, tm.Submit(ctx, task))

	exec := NewStandardExecutor(ExecutorConfig{AgentID: "agent-1", Tasks: tm})
	exec.Execute(ctx, []types.Decision{
		types.ClaimTask{TaskID: task.ID},
		types.ReportTask{TaskID: task.ID, Result: map[string]any{"status": "done"}},
	})

	got, err := tm.Get(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, types.TaskStateCompleted, got.State)
	assert.Equal(t, map[string]any{"status": "done"}, got.Result)
}

func TestExecutePoolDecisions(t *testing.T) {
	ctx := context.Background()
	pm := coordination.NewPoolManager(store.NewMemoryStore())
	exec := NewStandardExecutor(ExecutorConfig{AgentID: "agent-1", Pools: pm})

	exec.Execute(ctx, []types.Decision{
		types.CreatePool{Spec: types.PoolSpec{ID: "reviewers"}},
		types.JoinPool{PoolID: "reviewers"},
	})

	pool, err := pm.GetPool(ctx, "reviewers")
	require.NoError(t, err)
	require.NotNil(t, pool)
	assert.True(t, pool.HasAgent("agent-1"))

	exec.Execute(ctx, []types.Decision{types.LeavePool{PoolID: "reviewers"}})

	pool, err = pm.GetPool(ctx, "reviewers")
	require.NoError(t, err)
	assert.False(t, pool.HasAgent("agent-1"))
}

func TestExecuteSubmitBid(t *testing.T) {
	auction := coordination.NewBiddingProtocol("english")
	exec := NewStandardExecutor(ExecutorConfig{
		AgentID: "agent-1",
		Bidding: map[string]*coordination.BiddingProtocol{"auction-1": auction},
	})

	exec.Execute(context.Background(), []types.Decision{
		types.SubmitBid{AuctionID: "auction-1", Amount: 5.0, Content: "offer"},
		types.SubmitBid{AuctionID: "unknown", Amount: 1.0},
	})

	bid, ok := auction.BidFrom("agent-1")
	require.True(t, ok)
	assert.Equal(t, 5.0, bid.Amount)
}

func TestExecuteVote(t *testing.T) {
	ledger := coordination.NewVoteLedger()
	exec := NewStandardExecutor(ExecutorConfig{AgentID: "agent-1", Votes: ledger})

	exec.Execute(context.Background(), []types.Decision{
		types.Vote{VoteID: "release", Option: "ship"},
	})

	entries := ledger.Entries("release")
	require.Len(t, entries, 1)
	assert.Equal(t, "agent-1", entries[0].AgentID)
	assert.Equal(t, "ship", entries[0].Option)
}

func TestExecuteNegotiationDecisions(t *testing.T) {
	proto := coordination.NewNegotiationProtocol()
	sessionID := proto.CreateSession("agent-2", []string{"agent-2", "agent-1"}, "initial offer")

	exec := NewStandardExecutor(ExecutorConfig{AgentID: "agent-1", Negotiation: proto})
	exec.Execute(context.Background(), []types.Decision{
		types.Propose{SessionID: sessionID, Content: "counter offer"},
	})

	session, ok := proto.GetSession(sessionID)
	require.True(t, ok)
	assert.Equal(t, coordination.NegotiationCountered, session.State)
	assert.Equal(t, "counter offer", session.CurrentProposal.Content)

	exec.Execute(context.Background(), []types.Decision{
		types.AcceptProposal{SessionID: sessionID},
	})

	session, ok = proto.GetSession(sessionID)
	require.True(t, ok)
	assert.Equal(t, coordination.NegotiationAccepted, session.State)
}

func TestExecuteDelegationDecisions(t *testing.T) {
	proto := coordination.NewDelegationProtocol()
	exec := NewStandardExecutor(ExecutorConfig{AgentID: "agent-1", Delegation: proto})

	exec.Execute(context.Background(), []types.Decision{
		types.Delegate{DelegateeID: "agent-2", Scope: []string{"deploy"}},
	})

	active := proto.ActiveFor("agent-2")
	require.Len(t, active, 1)
	assert.Equal(t, "agent-1", active[0].DelegatorID)

	exec.Execute(context.Background(), []types.Decision{
		types.RevokeDelegation{DelegationID: active[0].ID},
	})
	assert.Empty(t, proto.ActiveFor("agent-2"))
}

func TestExecuteInvokeTool(t *testing.T) {
	reg := NewToolRegistry()
	var got map[string]any
	reg.Register(ToolFunc{ToolName: "search", Fn: func(ctx context.Context, params map[string]any) (any, error) {
		got = params
		return "ok", nil
	}})

	col := metrics.NewCollector("agent-1")
	exec := NewStandardExecutor(ExecutorConfig{AgentID: "agent-1", Tools: reg, Metrics: col})
	exec.Execute(context.Background(), []types.Decision{
		types.InvokeTool{Name: "search", Params: map[string]any{"query": "go"}},
	})

	assert.Equal(t, map[string]any{"query": "go"}, got)
	assert.Equal(t, int64(1), col.Count(metrics.CounterToolsInvoked))
}

func TestInvokeToolHonorsAllowlist(t *testing.T) {
	reg := NewToolRegistry()
	ran := false
	reg.Register(ToolFunc{ToolName: "shell", Fn: func(ctx context.Context, params map[string]any) (any, error) {
		ran = true
		return nil, nil
	}})

	col := metrics.NewCollector("agent-1")
	exec := NewStandardExecutor(ExecutorConfig{
		AgentID:       "agent-1",
		Tools:         reg,
		ToolAllowlist: []string{"search"},
		Metrics:       col,
	})
	exec.Execute(context.Background(), []types.Decision{
		types.InvokeTool{Name: "shell"},
	})

	assert.False(t, ran)
	assert.Equal(t, int64(0), col.Count(metrics.CounterToolsInvoked))
	assert.Equal(t, int64(1), col.Count(metrics.CounterDecisionsExecuted))
}

func TestInvokeToolTimeout(t *testing.T) {
	reg := NewToolRegistry()
	reg.Register(ToolFunc{ToolName: "slow", Fn: func(ctx context.Context, params map[string]any) (any, error) {
		select {
		case <-time.After(5 * time.Second):
			return nil, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}})

	col := metrics.NewCollector("agent-1")
	exec := NewStandardExecutor(ExecutorConfig{
		AgentID:     "agent-1",
		Tools:       reg,
		ToolTimeout: 50 * time.Millisecond,
		Metrics:     col,
	})

	start := time.Now()
	exec.Execute(context.Background(), []types.Decision{types.InvokeTool{Name: "slow"}})

	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, int64(0), col.Count(metrics.CounterToolsInvoked))
}

func TestInvokeToolFailureDoesNotCount(t *testing.T) {
	reg := NewToolRegistry()
	reg.Register(ToolFunc{ToolName: "flaky", Fn: func(ctx context.Context, params map[string]any) (any, error) {
		return nil, errors.New("backend unavailable")
	}})

	col := metrics.NewCollector("agent-1")
	exec := NewStandardExecutor(ExecutorConfig{AgentID: "agent-1", Tools: reg, Metrics: col})
	exec.Execute(context.Background(), []types.Decision{types.InvokeTool{Name: "flaky"}})

	assert.Equal(t, int64(0), col.Count(metrics.CounterToolsInvoked))
	assert.Equal(t, int64(1), col.Count(metrics.CounterDecisionsExecuted))
}

type escalate struct {
	Reason string
}

func (escalate) Kind() string { return "Escalate" }

func TestCustomHandlerDispatch(t *testing.T) {
	var handled types.Decision
	exec := NewStandardExecutor(ExecutorConfig{
		AgentID: "agent-1",
		Handlers: map[string]DecisionHandler{
			"Escalate": func(ctx context.Context, d types.Decision) error {
				handled = d
				return nil
			},
		},
	})

	exec.Execute(context.Background(), []types.Decision{escalate{Reason: "stuck"}})

	require.NotNil(t, handled)
	assert.Equal(t, escalate{Reason: "stuck"}, handled)
}

func TestUnknownDecisionIsSkipped(t *testing.T) {
	col := metrics.NewCollector("agent-1")
	exec := NewStandardExecutor(ExecutorConfig{AgentID: "agent-1", Metrics: col})

	exec.Execute(context.Background(), []types.Decision{escalate{Reason: "nobody home"}})

	assert.Equal(t, int64(1), col.Count(metrics.CounterDecisionsExecuted))
}

func TestBatchContinuesPastFailingDecision(t *testing.T) {
	ctx := context.Background()
	tm := coordination.NewTaskManager(store.NewMemoryStore())
	exec := NewStandardExecutor(ExecutorConfig{AgentID: "agent-1", Tasks: tm})

	good := types.NewTask()
	exec.Execute(ctx, []types.Decision{
		types.SubmitTask{Task: nil},
		types.SubmitTask{Task: good},
	})

	pending, err := tm.ListPending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, good.ID, pending[0].ID)
}
