package policy

import (
	"sync"
)

// JoinContext carries the metadata an admission policy sees when an agent
// asks to join a pool. Topics are canonical topic strings. Token is only set
// on join paths that carry a credential; the plain PoolManager join path
// leaves it empty.
type JoinContext struct {
	PoolID         string
	ExistingAgents []string
	Topics         []string
	Token          string
}

// AdmissionPolicy decides whether an agent may join a pool.
type AdmissionPolicy interface {
	CanAdmit(agentID string, ctx JoinContext) bool
}

// OpenAdmission admits every agent.
type OpenAdmission struct{}

func (OpenAdmission) CanAdmit(string, JoinContext) bool { return true }

// WhitelistAdmission admits only agents present in a fixed whitelist.
type WhitelistAdmission struct {
	allowed map[string]struct{}
}

// NewWhitelistAdmission builds a whitelist policy from the given agent IDs.
func NewWhitelistAdmission(agentIDs []string) *WhitelistAdmission {
	allowed := make(map[string]struct{}, len(agentIDs))
	for _, id := range agentIDs {
		allowed[id] = struct{}{}
	}
	return &WhitelistAdmission{allowed: allowed}
}

func (w *WhitelistAdmission) CanAdmit(agentID string, _ JoinContext) bool {
	_, ok := w.allowed[agentID]
	return ok
}

// TokenAdmission admits agents whose join context carries the required token.
type TokenAdmission struct {
	required string
}

// NewTokenAdmission builds a token policy with the given shared secret.
func NewTokenAdmission(token string) *TokenAdmission {
	return &TokenAdmission{required: token}
}

func (t *TokenAdmission) CanAdmit(_ string, ctx JoinContext) bool {
	return ctx.Token == t.required
}

// defaultTrust is the neutral score assumed for unknown agents.
const defaultTrust = 0.5

// TrustModel tracks trust scores for agents. Scores are clamped to [0, 1];
// unknown agents score the neutral default.
type TrustModel struct {
	mu     sync.RWMutex
	scores map[string]float64
}

// NewTrustModel creates an empty trust model.
func NewTrustModel() *TrustModel {
	return &TrustModel{scores: map[string]float64{}}
}

// UpdateTrust applies a delta to an agent's score and returns the new value.
func (m *TrustModel) UpdateTrust(agentID string, delta float64) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.scores[agentID]
	if !ok {
		current = defaultTrust
	}
	next := current + delta
	if next < 0 {
		next = 0
	}
	if next > 1 {
		next = 1
	}
	m.scores[agentID] = next
	return next
}

// GetTrust returns the agent's score, or the neutral default when unknown.
func (m *TrustModel) GetTrust(agentID string) float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if score, ok := m.scores[agentID]; ok {
		return score
	}
	return defaultTrust
}

// ActionPolicy restricts which decision kinds an executor may run. A nil
// allowlist permits everything.
type ActionPolicy struct {
	allowed map[string]struct{}
}

// NewActionPolicy builds an allowlist policy. An empty or nil list means
// permissive.
func NewActionPolicy(allowedKinds []string) *ActionPolicy {
	if len(allowedKinds) == 0 {
		return &ActionPolicy{}
	}
	allowed := make(map[string]struct{}, len(allowedKinds))
	for _, kind := range allowedKinds {
		allowed[kind] = struct{}{}
	}
	return &ActionPolicy{allowed: allowed}
}

// IsAllowed reports whether the decision kind may execute.
func (p *ActionPolicy) IsAllowed(kind string) bool {
	if p == nil || p.allowed == nil {
		return true
	}
	_, ok := p.allowed[kind]
	return ok
}

// ResourceLimits bounds the resources a task may request.
type ResourceLimits struct {
	MaxCPUTokens       float64
	MaxMemoryMB        int
	MaxNetworkRequests int
}

// DefaultResourceLimits returns the standard bounds.
func DefaultResourceLimits() ResourceLimits {
	return ResourceLimits{
		MaxCPUTokens:       1.0,
		MaxMemoryMB:        512,
		MaxNetworkRequests: 100,
	}
}

// ValidateSafety reports whether a resource request fits within limits.
func ValidateSafety(limits ResourceLimits, requestedCPU float64, requestedMemMB int) bool {
	if requestedCPU > limits.MaxCPUTokens {
		return false
	}
	return requestedMemMB <= limits.MaxMemoryMB
}
