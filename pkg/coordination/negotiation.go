package coordination

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Negotiation session states.
type NegotiationState string

const (
	NegotiationProposed  NegotiationState = "proposed"
	NegotiationCountered NegotiationState = "countered"
	NegotiationAccepted  NegotiationState = "accepted"
	NegotiationRejected  NegotiationState = "rejected"
	NegotiationClosed    NegotiationState = "closed"
)

// closed reports whether a session accepts further proposals.
func (s NegotiationState) closed() bool {
	return s == NegotiationAccepted || s == NegotiationRejected || s == NegotiationClosed
}

// Proposal is one offer within a negotiation session.
type Proposal struct {
	ID         string
	ProposerID string
	Content    any
	Timestamp  time.Time
}

// NegotiationSession tracks one negotiation between agents. The initiator
// is always the first participant.
type NegotiationSession struct {
	ID              string
	Participants    []string
	History         []Proposal
	State           NegotiationState
	CurrentProposal *Proposal
}

func (s *NegotiationSession) isParticipant(agentID string) bool {
	for _, p := range s.Participants {
		if p == agentID {
			return true
		}
	}
	return false
}

// NegotiationProtocol manages negotiation sessions and their state
// transitions. All methods are safe for concurrent use.
type NegotiationProtocol struct {
	mu       sync.Mutex
	sessions map[string]*NegotiationSession
}

// NewNegotiationProtocol creates an empty protocol.
func NewNegotiationProtocol() *NegotiationProtocol {
	return &NegotiationProtocol{sessions: map[string]*NegotiationSession{}}
}

// CreateSession starts a negotiation with an initial proposal from the
// initiator and returns the session ID.
func (n *NegotiationProtocol) CreateSession(initiatorID string, participants []string, initialProposal any) string {
	n.mu.Lock()
	defer n.mu.Unlock()

	session := &NegotiationSession{
		ID:           uuid.NewString(),
		Participants: append([]string{initiatorID}, participants...),
		State:        NegotiationProposed,
	}
	proposal := Proposal{
		ID:         uuid.NewString(),
		ProposerID: initiatorID,
		Content:    initialProposal,
		Timestamp:  time.Now(),
	}
	session.History = append(session.History, proposal)
	session.CurrentProposal = &proposal

	n.sessions[session.ID] = session
	return session.ID
}

// Propose adds a counter-proposal. It returns false for unknown sessions,
// non-participants, and sessions that have already concluded.
func (n *NegotiationProtocol) Propose(sessionID, agentID string, content any) bool {
	n.mu.Lock()
	defer n.mu.Unlock()

	session, ok := n.sessions[sessionID]
	if !ok || session.State.closed() {
		return false
	}
	if !session.isParticipant(agentID) {
		return false
	}

	proposal := Proposal{
		ID:         uuid.NewString(),
		ProposerID: agentID,
		Content:    content,
		Timestamp:  time.Now(),
	}
	session.History = append(session.History, proposal)
	session.CurrentProposal = &proposal
	session.State = NegotiationCountered
	return true
}

// Accept marks the current proposal accepted. It returns false for unknown
// sessions, sessions with no proposal on the table, and non-participants.
func (n *NegotiationProtocol) Accept(sessionID, agentID string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()

	session, ok := n.sessions[sessionID]
	if !ok || session.CurrentProposal == nil {
		return false
	}
	if !session.isParticipant(agentID) {
		return false
	}

	session.State = NegotiationAccepted
	return true
}

// Reject rejects the current proposal and concludes the session. It returns
// false for unknown sessions and non-participants.
func (n *NegotiationProtocol) Reject(sessionID, agentID string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()

	session, ok := n.sessions[sessionID]
	if !ok {
		return false
	}
	if !session.isParticipant(agentID) {
		return false
	}

	session.State = NegotiationRejected
	return true
}

// GetSession returns a session by ID.
func (n *NegotiationProtocol) GetSession(sessionID string) (*NegotiationSession, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	session, ok := n.sessions[sessionID]
	return session, ok
}
