package runtime

import (
	"context"

	"github.com/convergeframework/converge/pkg/identity"
	"github.com/convergeframework/converge/pkg/message"
	"github.com/convergeframework/converge/pkg/types"
)

// Agent is the behavior contract the runtime drives. An agent's ID is its
// identity fingerprint; the runtime delivers batches of messages and
// claimable tasks and executes whatever decisions Decide returns.
type Agent interface {
	// ID returns the agent's identifier, normally the identity fingerprint.
	ID() string

	// Identity returns the agent's signing identity.
	Identity() *identity.Identity

	// Capabilities returns the capability names the agent advertises.
	Capabilities() []string

	// Topics returns the topics the agent subscribes to.
	Topics() []message.Topic

	// OnStart runs before the transport starts. Returning an error aborts
	// runtime startup.
	OnStart(ctx context.Context) error

	// OnStop runs during shutdown, after the transport has stopped.
	OnStop(ctx context.Context) error

	// OnTick runs once per loop iteration that has work, before Decide.
	OnTick(ctx context.Context, msgs []*message.Message, tasks []*types.Task)

	// Decide maps the pending messages and tasks to decisions for the
	// executor. An error skips execution for this iteration.
	Decide(ctx context.Context, msgs []*message.Message, tasks []*types.Task) ([]types.Decision, error)
}

// BaseAgent carries an identity and provides no-op lifecycle defaults.
// Embed it and override Decide (and whatever else the agent needs).
type BaseAgent struct {
	identity     *identity.Identity
	capabilities []string
	topics       []message.Topic
}

// NewBaseAgent creates a base agent around an identity.
func NewBaseAgent(id *identity.Identity, capabilities []string, topics []message.Topic) *BaseAgent {
	return &BaseAgent{
		identity:     id,
		capabilities: capabilities,
		topics:       topics,
	}
}

// ID returns the identity fingerprint.
func (a *BaseAgent) ID() string {
	return a.identity.Fingerprint()
}

// Identity returns the agent's signing identity.
func (a *BaseAgent) Identity() *identity.Identity {
	return a.identity
}

// Capabilities returns the advertised capability names.
func (a *BaseAgent) Capabilities() []string {
	return a.capabilities
}

// Topics returns the subscribed topics.
func (a *BaseAgent) Topics() []message.Topic {
	return a.topics
}

// OnStart is a no-op.
func (a *BaseAgent) OnStart(ctx context.Context) error { return nil }

// OnStop is a no-op.
func (a *BaseAgent) OnStop(ctx context.Context) error { return nil }

// OnTick is a no-op.
func (a *BaseAgent) OnTick(ctx context.Context, msgs []*message.Message, tasks []*types.Task) {}

// Decide returns no decisions.
func (a *BaseAgent) Decide(ctx context.Context, msgs []*message.Message, tasks []*types.Task) ([]types.Decision, error) {
	return nil, nil
}

// SignMessage signs a message with the agent's identity.
func (a *BaseAgent) SignMessage(msg *message.Message) (*message.Message, error) {
	return msg.Sign(a.identity)
}
