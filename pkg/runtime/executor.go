package runtime

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/convergeframework/converge/pkg/coordination"
	"github.com/convergeframework/converge/pkg/identity"
	"github.com/convergeframework/converge/pkg/log"
	"github.com/convergeframework/converge/pkg/metrics"
	"github.com/convergeframework/converge/pkg/policy"
	"github.com/convergeframework/converge/pkg/replay"
	"github.com/convergeframework/converge/pkg/transport"
	"github.com/convergeframework/converge/pkg/types"
)

// Executor runs the decisions an agent returns from Decide.
type Executor interface {
	Execute(ctx context.Context, decisions []types.Decision)
}

// DecisionHandler executes a custom decision variant. Register handlers by
// kind in ExecutorConfig.Handlers to extend the closed built-in set.
type DecisionHandler func(ctx context.Context, decision types.Decision) error

// ExecutorConfig wires the collaborators the standard executor acts on.
// Everything beyond AgentID is optional; decisions whose collaborator is
// absent are skipped with a warning.
type ExecutorConfig struct {
	AgentID  string
	Identity *identity.Identity

	Transport transport.Transport
	Tasks     *coordination.TaskManager
	Pools     *coordination.PoolManager

	// Bidding maps auction IDs to their protocol instance.
	Bidding     map[string]*coordination.BiddingProtocol
	Negotiation *coordination.NegotiationProtocol
	Delegation  *coordination.DelegationProtocol
	Votes       *coordination.VoteLedger

	// Actions restricts which decision kinds may run; Limits bounds the
	// resources SubmitTask and ClaimTask may request.
	Actions *policy.ActionPolicy
	Limits  *policy.ResourceLimits

	Metrics *metrics.Collector
	Replay  *replay.Log

	Tools         *ToolRegistry
	ToolAllowlist []string
	ToolTimeout   time.Duration

	Handlers map[string]DecisionHandler
}

// StandardExecutor dispatches decision batches to managers, protocols, the
// transport, and tools. Per-decision failures are logged and the batch
// continues.
type StandardExecutor struct {
	cfg       ExecutorConfig
	allowlist map[string]struct{}
	logger    zerolog.Logger
}

// NewStandardExecutor creates an executor from a config.
func NewStandardExecutor(cfg ExecutorConfig) *StandardExecutor {
	var allowlist map[string]struct{}
	if cfg.ToolAllowlist != nil {
		allowlist = make(map[string]struct{}, len(cfg.ToolAllowlist))
		for _, name := range cfg.ToolAllowlist {
			allowlist[name] = struct{}{}
		}
	}
	return &StandardExecutor{
		cfg:       cfg,
		allowlist: allowlist,
		logger:    log.WithComponent("executor").With().Str("agent_id", cfg.AgentID).Logger(),
	}
}

// Execute runs each decision in order. The safety policy is checked first;
// rejected decisions are dropped with a warning and do not count as
// executed.
func (e *StandardExecutor) Execute(ctx context.Context, decisions []types.Decision) {
	for _, decision := range decisions {
		if !e.permitted(ctx, decision) {
			continue
		}
		if e.cfg.Metrics != nil {
			e.cfg.Metrics.Inc(metrics.CounterDecisionsExecuted, 1)
		}
		if err := e.dispatch(ctx, decision); err != nil {
			e.logger.Error().
				Err(err).
				Str("kind", decision.Kind()).
				Msg("Error executing decision")
		}
	}
}

// permitted applies the action policy and, for task decisions, the resource
// limits.
func (e *StandardExecutor) permitted(ctx context.Context, decision types.Decision) bool {
	if e.cfg.Actions != nil && !e.cfg.Actions.IsAllowed(decision.Kind()) {
		e.logger.Warn().
			Str("kind", decision.Kind()).
			Msg("Decision not allowed by action policy")
		return false
	}
	if e.cfg.Limits == nil {
		return true
	}

	var constraints map[string]any
	switch d := decision.(type) {
	case types.SubmitTask:
		if d.Task != nil {
			constraints = d.Task.Constraints
		}
	case types.ClaimTask:
		if e.cfg.Tasks != nil {
			if t, err := e.cfg.Tasks.Get(ctx, d.TaskID); err == nil && t != nil {
				constraints = t.Constraints
			}
		}
	default:
		return true
	}

	cpu, mem := requestedResources(constraints)
	if !policy.ValidateSafety(*e.cfg.Limits, cpu, mem) {
		e.logger.Warn().
			Float64("cpu", cpu).
			Int("memory_mb", mem).
			Msg("Task resource request exceeds limits")
		return false
	}
	return true
}

// requestedResources reads the CPU and memory a task asks for from its
// constraints. Either the short or the long key spelling is accepted.
func requestedResources(constraints map[string]any) (float64, int) {
	var cpu float64
	var mem int
	for _, key := range []string{"cpu", "max_cpu_tokens"} {
		if v, ok := constraints[key]; ok {
			if f, fok := types.AsFloat(v); fok {
				cpu = f
			}
			break
		}
	}
	for _, key := range []string{"memory_mb", "max_memory_mb"} {
		if v, ok := constraints[key]; ok {
			if f, fok := types.AsFloat(v); fok {
				mem = int(f)
			}
			break
		}
	}
	return cpu, mem
}

func (e *StandardExecutor) dispatch(ctx context.Context, decision types.Decision) error {
	switch d := decision.(type) {
	case types.SendMessage:
		return e.sendMessage(ctx, d)

	case types.SubmitTask:
		if e.cfg.Tasks == nil {
			e.logger.Warn().Msg("SubmitTask ignored: no task manager configured")
			return nil
		}
		if d.Task == nil {
			return fmt.Errorf("submit task: nil task")
		}
		e.logger.Debug().Str("task_id", d.Task.ID).Msg("Executing SubmitTask")
		return e.cfg.Tasks.Submit(ctx, d.Task)

	case types.ClaimTask:
		if e.cfg.Tasks == nil {
			e.logger.Warn().Msg("ClaimTask ignored: no task manager configured")
			return nil
		}
		e.logger.Debug().Str("task_id", d.TaskID).Msg("Executing ClaimTask")
		ok, err := e.cfg.Tasks.Claim(ctx, e.cfg.AgentID, d.TaskID)
		if err != nil {
			return err
		}
		if !ok {
			e.logger.Warn().Str("task_id", d.TaskID).Msg("Failed to claim task")
		}
		return nil

	case types.ReportTask:
		if e.cfg.Tasks == nil {
			e.logger.Warn().Msg("ReportTask ignored: no task manager configured")
			return nil
		}
		e.logger.Debug().Str("task_id", d.TaskID).Msg("Executing ReportTask")
		return e.cfg.Tasks.Report(ctx, e.cfg.AgentID, d.TaskID, d.Result)

	case types.JoinPool:
		if e.cfg.Pools == nil {
			e.logger.Warn().Msg("JoinPool ignored: no pool manager configured")
			return nil
		}
		e.logger.Debug().Str("pool_id", d.PoolID).Msg("Executing JoinPool")
		_, err := e.cfg.Pools.JoinPool(ctx, e.cfg.AgentID, d.PoolID)
		return err

	case types.LeavePool:
		if e.cfg.Pools == nil {
			e.logger.Warn().Msg("LeavePool ignored: no pool manager configured")
			return nil
		}
		e.logger.Debug().Str("pool_id", d.PoolID).Msg("Executing LeavePool")
		return e.cfg.Pools.LeavePool(ctx, e.cfg.AgentID, d.PoolID)

	case types.CreatePool:
		if e.cfg.Pools == nil {
			e.logger.Warn().Msg("CreatePool ignored: no pool manager configured")
			return nil
		}
		e.logger.Debug().Str("pool_id", d.Spec.ID).Msg("Executing CreatePool")
		_, err := e.cfg.Pools.CreatePool(ctx, d.Spec)
		return err

	case types.SubmitBid:
		proto := e.cfg.Bidding[d.AuctionID]
		if proto == nil {
			e.logger.Warn().Str("auction_id", d.AuctionID).Msg("No bidding protocol for auction")
			return nil
		}
		e.logger.Debug().Str("auction_id", d.AuctionID).Msg("Executing SubmitBid")
		proto.SubmitBid(e.cfg.AgentID, d.Amount, d.Content)
		return nil

	case types.Vote:
		if e.cfg.Votes == nil {
			e.logger.Warn().Msg("Vote ignored: no vote ledger configured")
			return nil
		}
		e.logger.Debug().Str("vote_id", d.VoteID).Msg("Executing Vote")
		e.cfg.Votes.Cast(d.VoteID, e.cfg.AgentID, d.Option)
		return nil

	case types.Propose:
		if e.cfg.Negotiation == nil {
			e.logger.Warn().Msg("Propose ignored: no negotiation protocol configured")
			return nil
		}
		e.logger.Debug().Str("session_id", d.SessionID).Msg("Executing Propose")
		e.cfg.Negotiation.Propose(d.SessionID, e.cfg.AgentID, d.Content)
		return nil

	case types.AcceptProposal:
		if e.cfg.Negotiation == nil {
			e.logger.Warn().Msg("AcceptProposal ignored: no negotiation protocol configured")
			return nil
		}
		e.logger.Debug().Str("session_id", d.SessionID).Msg("Executing AcceptProposal")
		e.cfg.Negotiation.Accept(d.SessionID, e.cfg.AgentID)
		return nil

	case types.RejectProposal:
		if e.cfg.Negotiation == nil {
			e.logger.Warn().Msg("RejectProposal ignored: no negotiation protocol configured")
			return nil
		}
		e.logger.Debug().Str("session_id", d.SessionID).Msg("Executing RejectProposal")
		e.cfg.Negotiation.Reject(d.SessionID, e.cfg.AgentID)
		return nil

	case types.Delegate:
		if e.cfg.Delegation == nil {
			e.logger.Warn().Msg("Delegate ignored: no delegation protocol configured")
			return nil
		}
		e.logger.Debug().Str("delegatee_id", d.DelegateeID).Msg("Executing Delegate")
		e.cfg.Delegation.Delegate(e.cfg.AgentID, d.DelegateeID, d.Scope)
		return nil

	case types.RevokeDelegation:
		if e.cfg.Delegation == nil {
			e.logger.Warn().Msg("RevokeDelegation ignored: no delegation protocol configured")
			return nil
		}
		e.logger.Debug().Str("delegation_id", d.DelegationID).Msg("Executing RevokeDelegation")
		e.cfg.Delegation.Revoke(d.DelegationID)
		return nil

	case types.InvokeTool:
		return e.invokeTool(ctx, d)

	default:
		if handler, ok := e.cfg.Handlers[decision.Kind()]; ok {
			return handler(ctx, decision)
		}
		e.logger.Warn().Str("kind", decision.Kind()).Msg("Unknown decision type")
		return nil
	}
}

// sendMessage signs the message when it carries no signature, sends it, and
// records it.
func (e *StandardExecutor) sendMessage(ctx context.Context, d types.SendMessage) error {
	if e.cfg.Transport == nil {
		e.logger.Warn().Msg("SendMessage ignored: no transport configured")
		return nil
	}
	if d.Message == nil {
		return fmt.Errorf("send message: nil message")
	}

	msg := d.Message
	if len(msg.Signature) == 0 && e.cfg.Identity != nil && e.cfg.Identity.CanSign() {
		signed, err := msg.Sign(e.cfg.Identity)
		if err != nil {
			return fmt.Errorf("failed to sign outgoing message: %w", err)
		}
		msg = signed
	}

	e.logger.Debug().Str("message_id", msg.ID).Msg("Executing SendMessage")
	if err := e.cfg.Transport.Send(ctx, msg); err != nil {
		return err
	}
	if e.cfg.Replay != nil {
		e.cfg.Replay.RecordMessage(msg)
	}
	if e.cfg.Metrics != nil {
		e.cfg.Metrics.Inc(metrics.CounterMessagesSent, 1)
	}
	return nil
}

// invokeTool resolves and runs a tool. Failures and timeouts are logged,
// not returned: tools_invoked counts successful runs only.
func (e *StandardExecutor) invokeTool(ctx context.Context, d types.InvokeTool) error {
	if e.cfg.Tools == nil {
		e.logger.Warn().Msg("InvokeTool ignored: no tool registry configured")
		return nil
	}
	if e.allowlist != nil {
		if _, ok := e.allowlist[d.Name]; !ok {
			e.logger.Warn().Str("tool", d.Name).Msg("InvokeTool skipped: tool not in allowlist")
			return nil
		}
	}
	tool, ok := e.cfg.Tools.Get(d.Name)
	if !ok {
		e.logger.Warn().Str("tool", d.Name).Msg("Tool not found")
		return nil
	}

	e.logger.Debug().Str("tool", d.Name).Msg("Executing InvokeTool")
	if err := e.runTool(ctx, tool, d.Params); err != nil {
		e.logger.Error().Err(err).Str("tool", d.Name).Msg("Tool invocation failed")
		return nil
	}
	if e.cfg.Metrics != nil {
		e.cfg.Metrics.Inc(metrics.CounterToolsInvoked, 1)
	}
	return nil
}

// runTool executes the tool, off the loop goroutine when a timeout is set.
// The tool result is discarded; agents report results through ReportTask.
func (e *StandardExecutor) runTool(ctx context.Context, tool Tool, params map[string]any) error {
	if e.cfg.ToolTimeout <= 0 {
		_, err := tool.Run(ctx, params)
		return err
	}

	toolCtx, cancel := context.WithTimeout(ctx, e.cfg.ToolTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		_, err := tool.Run(toolCtx, params)
		done <- err
	}()

	select {
	case err := <-done:
		return err
	case <-toolCtx.Done():
		return fmt.Errorf("tool timed out after %s", e.cfg.ToolTimeout)
	}
}
