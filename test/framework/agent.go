package framework

import (
	"context"
	"sync"

	"github.com/convergeframework/converge/pkg/identity"
	"github.com/convergeframework/converge/pkg/message"
	"github.com/convergeframework/converge/pkg/runtime"
	"github.com/convergeframework/converge/pkg/types"
)

// DecideFunc maps a batch of messages and claimable tasks to decisions.
type DecideFunc func(ctx context.Context, msgs []*message.Message, tasks []*types.Task) ([]types.Decision, error)

// ScriptedAgent is a programmable agent for tests. It records every message
// the runtime delivers and forwards each batch to the scripted decide
// function, which can be swapped mid-test.
type ScriptedAgent struct {
	*runtime.BaseAgent

	mu       sync.Mutex
	decide   DecideFunc
	received []*message.Message
}

// NewScriptedAgent creates a scripted agent around an identity. With no
// script installed it decides nothing.
func NewScriptedAgent(id *identity.Identity, capabilities []string, topics []message.Topic) *ScriptedAgent {
	return &ScriptedAgent{
		BaseAgent: runtime.NewBaseAgent(id, capabilities, topics),
	}
}

// Script installs the decide function. Passing nil reverts to deciding
// nothing.
func (a *ScriptedAgent) Script(decide DecideFunc) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.decide = decide
}

// Decide records the delivered messages and runs the installed script.
func (a *ScriptedAgent) Decide(ctx context.Context, msgs []*message.Message, tasks []*types.Task) ([]types.Decision, error) {
	a.mu.Lock()
	a.received = append(a.received, msgs...)
	decide := a.decide
	a.mu.Unlock()

	if decide == nil {
		return nil, nil
	}
	return decide(ctx, msgs, tasks)
}

// Received returns a copy of every message delivered so far.
func (a *ScriptedAgent) Received() []*message.Message {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]*message.Message(nil), a.received...)
}

// ReceivedCount returns how many messages have been delivered.
func (a *ScriptedAgent) ReceivedCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.received)
}

// FindReceived returns the first delivered message matching the predicate,
// or nil.
func (a *ScriptedAgent) FindReceived(match func(*message.Message) bool) *message.Message {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, m := range a.received {
		if match(m) {
			return m
		}
	}
	return nil
}
