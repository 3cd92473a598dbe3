package transport

import (
	"context"
	"sync"

	"github.com/convergeframework/converge/pkg/identity"
	"github.com/convergeframework/converge/pkg/log"
	"github.com/convergeframework/converge/pkg/message"
	"github.com/rs/zerolog"
)

// localQueueSize bounds each agent's in-process delivery queue.
const localQueueSize = 256

// LocalRegistry connects LocalTransports within one process. It maps agent
// fingerprints to delivery queues and tracks topic namespace subscriptions
// for topic-based routing.
type LocalRegistry struct {
	mu            sync.Mutex
	queues        map[string]chan *message.Message
	subscriptions map[string]map[string]struct{}
}

// NewLocalRegistry creates an empty registry.
func NewLocalRegistry() *LocalRegistry {
	return &LocalRegistry{
		queues:        make(map[string]chan *message.Message),
		subscriptions: make(map[string]map[string]struct{}),
	}
}

var (
	defaultMu       sync.Mutex
	defaultRegistry = NewLocalRegistry()
)

// DefaultRegistry returns the process-wide registry used by transports
// built with NewLocalTransport.
func DefaultRegistry() *LocalRegistry {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	return defaultRegistry
}

// ResetDefault replaces the process-wide registry with a fresh one. Tests
// call this to isolate themselves from earlier registrations.
func ResetDefault() {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	defaultRegistry = NewLocalRegistry()
}

// Register attaches an agent's delivery queue.
func (r *LocalRegistry) Register(agentID string, queue chan *message.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.queues[agentID] = queue
}

// Unregister removes an agent's queue and subscriptions.
func (r *LocalRegistry) Unregister(agentID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.queues, agentID)
	delete(r.subscriptions, agentID)
}

// Subscribe adds a topic namespace subscription for an agent.
func (r *LocalRegistry) Subscribe(agentID, namespace string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	subs, ok := r.subscriptions[agentID]
	if !ok {
		subs = make(map[string]struct{})
		r.subscriptions[agentID] = subs
	}
	subs[namespace] = struct{}{}
}

// Unsubscribe removes a topic namespace subscription.
func (r *LocalRegistry) Unsubscribe(agentID, namespace string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if subs, ok := r.subscriptions[agentID]; ok {
		delete(subs, namespace)
	}
}

// Clear drops every queue and subscription.
func (r *LocalRegistry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.queues = make(map[string]chan *message.Message)
	r.subscriptions = make(map[string]map[string]struct{})
}

func (r *LocalRegistry) queue(agentID string) (chan *message.Message, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	q, ok := r.queues[agentID]
	return q, ok
}

func (r *LocalRegistry) agents() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.queues))
	for id := range r.queues {
		ids = append(ids, id)
	}
	return ids
}

// subscribersFor returns the agents subscribed to any of the namespaces.
func (r *LocalRegistry) subscribersFor(namespaces []string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var ids []string
	for agentID, subs := range r.subscriptions {
		for _, ns := range namespaces {
			if _, ok := subs[ns]; ok {
				ids = append(ids, agentID)
				break
			}
		}
	}
	return ids
}

// LocalTransport delivers messages between agents in the same process
// through a shared LocalRegistry.
//
// Routing on Send: a recipient routes point-to-point, even back to the
// sender. Otherwise topics route to the union of namespace subscribers,
// falling back to broadcast when nobody subscribes. A message with neither
// recipient nor topics broadcasts. Broadcasts skip the sender.
type LocalTransport struct {
	agentID  string
	registry *LocalRegistry
	queue    chan *message.Message

	mu      sync.Mutex
	started bool

	logger zerolog.Logger
}

// NewLocalTransport creates a transport wired to the process-wide registry.
func NewLocalTransport(agentID string) *LocalTransport {
	return NewLocalTransportWithRegistry(agentID, DefaultRegistry())
}

// NewLocalTransportWithRegistry creates a transport on an explicit
// registry. Tests use this to build isolated topologies.
func NewLocalTransportWithRegistry(agentID string, registry *LocalRegistry) *LocalTransport {
	return &LocalTransport{
		agentID:  agentID,
		registry: registry,
		queue:    make(chan *message.Message, localQueueSize),
		logger:   log.WithComponent("transport.local"),
	}
}

// Start registers the transport's queue with the registry.
func (t *LocalTransport) Start(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.registry.Register(t.agentID, t.queue)
	t.started = true
	return nil
}

// Stop unregisters the transport. Queued messages are discarded with it.
func (t *LocalTransport) Stop(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.registry.Unregister(t.agentID)
	t.started = false
	return nil
}

// Subscribe registers interest in a topic namespace.
func (t *LocalTransport) Subscribe(namespace string) {
	t.registry.Subscribe(t.agentID, namespace)
}

// Unsubscribe drops interest in a topic namespace.
func (t *LocalTransport) Unsubscribe(namespace string) {
	t.registry.Unsubscribe(t.agentID, namespace)
}

// Send routes the message per the rules documented on LocalTransport.
func (t *LocalTransport) Send(ctx context.Context, msg *message.Message) error {
	if !t.isStarted() {
		return ErrNotStarted
	}

	var targets []string
	switch {
	case msg.Recipient != "":
		targets = []string{msg.Recipient}
	case len(msg.Topics) > 0:
		namespaces := make([]string, len(msg.Topics))
		for i, topic := range msg.Topics {
			namespaces[i] = topic.Namespace
		}
		targets = t.registry.subscribersFor(namespaces)
		if len(targets) == 0 {
			targets = t.registry.agents()
		}
	default:
		targets = t.registry.agents()
	}

	for _, agentID := range targets {
		if agentID == t.agentID && msg.Recipient == "" {
			continue
		}
		q, ok := t.registry.queue(agentID)
		if !ok {
			continue
		}
		select {
		case q <- msg:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Receive blocks until a message arrives or ctx is done.
func (t *LocalTransport) Receive(ctx context.Context) (*message.Message, error) {
	if !t.isStarted() {
		return nil, ErrNotStarted
	}
	select {
	case msg := <-t.queue:
		return msg, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// ReceiveVerified receives and checks the signature. Unverifiable messages
// return (nil, nil).
func (t *LocalTransport) ReceiveVerified(ctx context.Context, registry *identity.Registry) (*message.Message, error) {
	msg, err := t.Receive(ctx)
	if err != nil {
		return nil, err
	}
	return verifyReceived(msg, registry, t.logger), nil
}

func (t *LocalTransport) isStarted() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.started
}
