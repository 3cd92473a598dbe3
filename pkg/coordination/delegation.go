package coordination

import (
	"sync"

	"github.com/google/uuid"
)

// Delegation kinds.
const (
	DelegationDirect = "direct"
	DelegationPooled = "pooled"
)

// Delegation is a grant of authority from one agent to another over a set
// of scopes.
type Delegation struct {
	ID          string
	DelegatorID string
	DelegateeID string
	Scope       []string
	Active      bool
}

// DelegationProtocol tracks delegation mandates between agents.
type DelegationProtocol struct {
	mu          sync.Mutex
	delegations map[string]*Delegation
}

// NewDelegationProtocol creates an empty protocol.
func NewDelegationProtocol() *DelegationProtocol {
	return &DelegationProtocol{delegations: map[string]*Delegation{}}
}

// Delegate records a new active delegation and returns its ID.
func (d *DelegationProtocol) Delegate(delegatorID, delegateeID string, scope []string) string {
	d.mu.Lock()
	defer d.mu.Unlock()

	del := &Delegation{
		ID:          uuid.NewString(),
		DelegatorID: delegatorID,
		DelegateeID: delegateeID,
		Scope:       append([]string(nil), scope...),
		Active:      true,
	}
	d.delegations[del.ID] = del
	return del.ID
}

// Revoke deactivates a delegation. It returns false when the ID is unknown.
func (d *DelegationProtocol) Revoke(delegationID string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	del, ok := d.delegations[delegationID]
	if !ok {
		return false
	}
	del.Active = false
	return true
}

// Get returns a delegation by ID.
func (d *DelegationProtocol) Get(delegationID string) (*Delegation, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	del, ok := d.delegations[delegationID]
	return del, ok
}

// ActiveFor returns the active delegations granted to an agent.
func (d *DelegationProtocol) ActiveFor(delegateeID string) []*Delegation {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []*Delegation
	for _, del := range d.delegations {
		if del.Active && del.DelegateeID == delegateeID {
			out = append(out, del)
		}
	}
	return out
}
