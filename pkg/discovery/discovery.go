package discovery

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"github.com/convergeframework/converge/pkg/log"
	"github.com/convergeframework/converge/pkg/message"
	"github.com/convergeframework/converge/pkg/store"
	"github.com/convergeframework/converge/pkg/types"
)

// keyPrefix namespaces descriptor records in the store.
const keyPrefix = "discovery:agent:"

// Query selects agents by topic overlap and capability coverage. Empty
// fields disable their predicate.
type Query struct {
	Topics       []message.Topic
	Capabilities []string
}

// Service holds the descriptors agents register on startup. With a store
// attached, descriptors survive restarts: the constructor eagerly loads
// everything under "discovery:agent:".
type Service struct {
	mu          sync.RWMutex
	descriptors map[string]types.AgentDescriptor
	store       store.Store
	logger      zerolog.Logger
}

// NewService creates a discovery service. The store may be nil for purely
// in-memory operation. Malformed persisted records are skipped.
func NewService(ctx context.Context, st store.Store) (*Service, error) {
	s := &Service{
		descriptors: map[string]types.AgentDescriptor{},
		store:       st,
		logger:      log.WithComponent("discovery"),
	}
	if st == nil {
		return s, nil
	}

	keys, err := st.List(ctx, keyPrefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list discovery records: %w", err)
	}
	for _, key := range keys {
		value, err := st.Get(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("failed to load discovery record %s: %w", key, err)
		}
		desc, err := decodeDescriptor(value)
		if err != nil {
			s.logger.Debug().Str("key", key).Err(err).Msg("Skipping malformed discovery record")
			continue
		}
		s.descriptors[desc.ID] = desc
	}
	return s, nil
}

// Register adds a descriptor and persists it when a store is attached.
func (s *Service) Register(ctx context.Context, desc types.AgentDescriptor) error {
	s.mu.Lock()
	s.descriptors[desc.ID] = desc
	s.mu.Unlock()

	if s.store == nil {
		return nil
	}
	value, err := encodeDescriptor(desc)
	if err != nil {
		return fmt.Errorf("failed to encode descriptor for %s: %w", desc.ID, err)
	}
	if err := s.store.Put(ctx, keyPrefix+desc.ID, value); err != nil {
		return fmt.Errorf("failed to persist descriptor for %s: %w", desc.ID, err)
	}
	s.logger.Debug().Str("agent_id", desc.ID).Msg("Agent registered")
	return nil
}

// Unregister removes a descriptor from memory and the store. Unknown agents
// are a no-op.
func (s *Service) Unregister(ctx context.Context, agentID string) error {
	s.mu.Lock()
	delete(s.descriptors, agentID)
	s.mu.Unlock()

	if s.store == nil {
		return nil
	}
	if err := s.store.Delete(ctx, keyPrefix+agentID); err != nil {
		return fmt.Errorf("failed to delete descriptor for %s: %w", agentID, err)
	}
	return nil
}

// Get returns a registered descriptor.
func (s *Service) Get(agentID string) (types.AgentDescriptor, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	desc, ok := s.descriptors[agentID]
	return desc, ok
}

// Query filters the registered agents. Results are sorted by agent ID.
func (s *Service) Query(q Query) []types.AgentDescriptor {
	s.mu.RLock()
	candidates := make([]types.AgentDescriptor, 0, len(s.descriptors))
	for _, desc := range s.descriptors {
		candidates = append(candidates, desc)
	}
	s.mu.RUnlock()

	sort.Slice(candidates, func(i, j int) bool { return candidates[i].ID < candidates[j].ID })
	return Filter(q, candidates)
}

// Filter applies a query to an explicit candidate list, preserving order.
func Filter(q Query, candidates []types.AgentDescriptor) []types.AgentDescriptor {
	var results []types.AgentDescriptor
	for _, desc := range candidates {
		if Matches(q, desc) {
			results = append(results, desc)
		}
	}
	return results
}

// Matches reports whether a descriptor satisfies a query: a non-empty topic
// filter needs a non-empty intersection of canonical topic strings, and a
// non-empty capability filter must be a subset of the agent's capability
// names.
func Matches(q Query, desc types.AgentDescriptor) bool {
	if len(q.Topics) > 0 {
		agentTopics := make(map[string]struct{}, len(desc.Topics))
		for _, t := range desc.Topics {
			agentTopics[t.Canonical()] = struct{}{}
		}
		found := false
		for _, t := range q.Topics {
			if _, ok := agentTopics[t.Canonical()]; ok {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	if len(q.Capabilities) > 0 {
		agentCaps := make(map[string]struct{}, len(desc.Capabilities))
		for _, c := range desc.Capabilities {
			agentCaps[c.Name] = struct{}{}
		}
		for _, want := range q.Capabilities {
			if _, ok := agentCaps[want]; !ok {
				return false
			}
		}
	}
	return true
}
