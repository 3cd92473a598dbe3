package types

import (
	"github.com/convergeframework/converge/pkg/message"
)

// Decision kind names, as checked by policy.ActionPolicy allowlists and used
// to route custom handlers.
const (
	KindSendMessage      = "SendMessage"
	KindSubmitTask       = "SubmitTask"
	KindClaimTask        = "ClaimTask"
	KindReportTask       = "ReportTask"
	KindJoinPool         = "JoinPool"
	KindLeavePool        = "LeavePool"
	KindCreatePool       = "CreatePool"
	KindSubmitBid        = "SubmitBid"
	KindVote             = "Vote"
	KindPropose          = "Propose"
	KindAcceptProposal   = "AcceptProposal"
	KindRejectProposal   = "RejectProposal"
	KindDelegate         = "Delegate"
	KindRevokeDelegation = "RevokeDelegation"
	KindInvokeTool       = "InvokeTool"
)

// Decision is a tagged value emitted by an agent instructing the executor to
// perform an action. The built-in variants form a closed set; anything else
// is dispatched through the executor's custom handlers by kind.
type Decision interface {
	Kind() string
}

// SendMessage sends a message over the transport, signing it first when it
// carries no signature.
type SendMessage struct {
	Message *message.Message
}

func (SendMessage) Kind() string { return KindSendMessage }

// SubmitTask submits a task to the task manager.
type SubmitTask struct {
	Task *Task
}

func (SubmitTask) Kind() string { return KindSubmitTask }

// ClaimTask claims a pending task for the executing agent.
type ClaimTask struct {
	TaskID string
}

func (ClaimTask) Kind() string { return KindClaimTask }

// ReportTask reports the result of a task assigned to the executing agent.
type ReportTask struct {
	TaskID string
	Result any
}

func (ReportTask) Kind() string { return KindReportTask }

// JoinPool joins the executing agent to a pool.
type JoinPool struct {
	PoolID string
}

func (JoinPool) Kind() string { return KindJoinPool }

// LeavePool removes the executing agent from a pool.
type LeavePool struct {
	PoolID string
}

func (LeavePool) Kind() string { return KindLeavePool }

// CreatePool creates a pool from a spec.
type CreatePool struct {
	Spec PoolSpec
}

func (CreatePool) Kind() string { return KindCreatePool }

// SubmitBid submits a bid to a running auction.
type SubmitBid struct {
	AuctionID string
	Amount    float64
	Content   any
}

func (SubmitBid) Kind() string { return KindSubmitBid }

// Vote appends the agent's ballot for an option under a vote ID.
type Vote struct {
	VoteID string
	Option any
}

func (Vote) Kind() string { return KindVote }

// Propose makes a proposal (or counter-proposal) in a negotiation session.
type Propose struct {
	SessionID string
	Content   any
}

func (Propose) Kind() string { return KindPropose }

// AcceptProposal accepts the current proposal of a negotiation session.
type AcceptProposal struct {
	SessionID string
}

func (AcceptProposal) Kind() string { return KindAcceptProposal }

// RejectProposal rejects the current proposal and closes the session.
type RejectProposal struct {
	SessionID string
}

func (RejectProposal) Kind() string { return KindRejectProposal }

// Delegate grants authority over a scope to another agent.
type Delegate struct {
	DelegateeID string
	Scope       []string
}

func (Delegate) Kind() string { return KindDelegate }

// RevokeDelegation revokes a previously granted delegation.
type RevokeDelegation struct {
	DelegationID string
}

func (RevokeDelegation) Kind() string { return KindRevokeDelegation }

// InvokeTool runs a registered tool with the given parameters.
type InvokeTool struct {
	Name   string
	Params map[string]any
}

func (InvokeTool) Kind() string { return KindInvokeTool }
