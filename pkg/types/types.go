package types

import (
	"crypto/ed25519"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/convergeframework/converge/pkg/message"
	"github.com/convergeframework/converge/pkg/policy"
)

// AgentState represents the operational state of an agent
type AgentState string

const (
	AgentStateIdle    AgentState = "idle"
	AgentStateBusy    AgentState = "busy"
	AgentStateOffline AgentState = "offline"
	AgentStateError   AgentState = "error"
)

// TaskState represents the lifecycle state of a task
type TaskState string

const (
	TaskStatePending   TaskState = "pending"
	TaskStateAssigned  TaskState = "assigned"
	TaskStateRunning   TaskState = "running"
	TaskStateCompleted TaskState = "completed"
	TaskStateFailed    TaskState = "failed"
	TaskStateCancelled TaskState = "cancelled"
)

// Terminal reports whether the state admits no further transitions.
func (s TaskState) Terminal() bool {
	return s == TaskStateCompleted || s == TaskStateFailed || s == TaskStateCancelled
}

// Task is a unit of work with a formal state machine. Lifecycle is owned by
// the TaskManager: created by Submit, transitioned by Claim, Report, Fail,
// Cancel and ReleaseExpiredClaims.
type Task struct {
	ID          string
	Objective   map[string]any
	Inputs      map[string]any
	Outputs     map[string]any
	Constraints map[string]any
	Evaluator   string
	State       TaskState

	AssignedTo string
	ClaimedAt  time.Time
	Result     any

	PoolID               string
	Topic                string
	RequiredCapabilities []string
}

// NewTask creates a pending task with a fresh ID and the default evaluator.
func NewTask() *Task {
	return &Task{
		ID:          uuid.NewString(),
		Objective:   map[string]any{},
		Inputs:      map[string]any{},
		Constraints: map[string]any{},
		Evaluator:   "default",
		State:       TaskStatePending,
	}
}

// ClaimTTL returns the claim lease duration from constraints
// ("claim_ttl_sec", seconds) and whether one is set.
func (t *Task) ClaimTTL() (time.Duration, bool) {
	v, ok := t.Constraints["claim_ttl_sec"]
	if !ok {
		return 0, false
	}
	sec, ok := AsFloat(v)
	if !ok {
		return 0, false
	}
	return time.Duration(sec * float64(time.Second)), true
}

// Pool is a scoped sub-network of agents organized around shared topics.
// Membership is a set; mutation goes through the PoolManager.
type Pool struct {
	ID             string
	Topics         []message.Topic
	Agents         map[string]struct{}
	Admission      policy.AdmissionPolicy
	Governance     policy.GovernanceModel
	Trust          *policy.TrustModel
	TrustThreshold float64
}

// PoolSpec describes a pool to be created by the PoolManager.
type PoolSpec struct {
	ID             string
	Topics         []message.Topic
	Admission      policy.AdmissionPolicy
	Governance     policy.GovernanceModel
	Trust          *policy.TrustModel
	TrustThreshold float64
}

// NewPool creates an empty pool from a spec, generating an ID if absent.
func NewPool(spec PoolSpec) *Pool {
	id := spec.ID
	if id == "" {
		id = uuid.NewString()
	}
	return &Pool{
		ID:             id,
		Topics:         spec.Topics,
		Agents:         map[string]struct{}{},
		Admission:      spec.Admission,
		Governance:     spec.Governance,
		Trust:          spec.Trust,
		TrustThreshold: spec.TrustThreshold,
	}
}

// AddAgent adds an agent to the pool.
func (p *Pool) AddAgent(agentID string) {
	if p.Agents == nil {
		p.Agents = map[string]struct{}{}
	}
	p.Agents[agentID] = struct{}{}
}

// RemoveAgent removes an agent from the pool. Removing a non-member is a no-op.
func (p *Pool) RemoveAgent(agentID string) {
	delete(p.Agents, agentID)
}

// HasAgent reports pool membership.
func (p *Pool) HasAgent(agentID string) bool {
	_, ok := p.Agents[agentID]
	return ok
}

// AgentIDs returns the members in sorted order.
func (p *Pool) AgentIDs() []string {
	ids := make([]string, 0, len(p.Agents))
	for id := range p.Agents {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Capability defines a specific ability an agent possesses.
type Capability struct {
	Name        string
	Version     string
	Description string
	Constraints map[string]any
	Costs       map[string]float64
	LatencyMS   int
}

// CapabilityFromName builds a minimal capability from a bare name. Kept for
// agents that declare capabilities as plain strings.
func CapabilityFromName(name string) Capability {
	return Capability{Name: name, Version: "1.0"}
}

// CapabilityNames extracts the name set from a capability list.
func CapabilityNames(caps []Capability) []string {
	names := make([]string, 0, len(caps))
	for _, c := range caps {
		names = append(names, c.Name)
	}
	return names
}

// AgentDescriptor is the exported record an agent registers with the
// DiscoveryService. PublicKey, when present, lets peers verify message
// signatures (feed it into an identity.Registry).
type AgentDescriptor struct {
	ID           string
	Topics       []message.Topic
	Capabilities []Capability
	PublicKey    ed25519.PublicKey
}

// AsFloat coerces the numeric types that survive JSON and msgpack decoding.
func AsFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	default:
		return 0, false
	}
}
