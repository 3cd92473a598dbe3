package coordination

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"github.com/convergeframework/converge/pkg/log"
	"github.com/convergeframework/converge/pkg/message"
	"github.com/convergeframework/converge/pkg/policy"
	"github.com/convergeframework/converge/pkg/store"
	"github.com/convergeframework/converge/pkg/types"
)

// PoolManager owns pool membership. Pools are cached in memory and mirrored
// to the store under "pool:<id>" on every mutation. Admission, governance,
// and trust policies live only on the in-memory pool; pools materialized
// from the store admit openly until policies are re-attached.
type PoolManager struct {
	mu     sync.Mutex
	pools  map[string]*types.Pool
	store  store.Store
	logger zerolog.Logger
}

// NewPoolManager creates a pool manager over an optional store.
func NewPoolManager(st store.Store) *PoolManager {
	return &PoolManager{
		pools:  map[string]*types.Pool{},
		store:  st,
		logger: log.WithComponent("poolmanager"),
	}
}

// CreatePool builds a pool from a spec, caches it, and persists it.
// Creating a pool with an existing ID replaces it.
func (m *PoolManager) CreatePool(ctx context.Context, spec types.PoolSpec) (*types.Pool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p := types.NewPool(spec)
	m.pools[p.ID] = p
	if err := m.persist(ctx, p); err != nil {
		return nil, err
	}
	m.logger.Debug().Str("pool_id", p.ID).Msg("Pool created")
	return p, nil
}

// JoinPool admits an agent into a pool. It returns false when the pool is
// unknown, the admission policy rejects, or the agent's trust score is
// below the pool's threshold.
func (m *PoolManager) JoinPool(ctx context.Context, agentID, poolID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, err := m.resolve(ctx, poolID)
	if err != nil {
		return false, err
	}
	if p == nil {
		return false, nil
	}

	if p.Admission != nil {
		joinCtx := policy.JoinContext{
			PoolID:         p.ID,
			ExistingAgents: p.AgentIDs(),
			Topics:         message.CanonicalStrings(p.Topics),
		}
		if !p.Admission.CanAdmit(agentID, joinCtx) {
			m.logger.Debug().Str("pool_id", poolID).Str("agent_id", agentID).Msg("Admission rejected")
			return false, nil
		}
	}
	if p.Trust != nil && p.Trust.GetTrust(agentID) < p.TrustThreshold {
		m.logger.Debug().Str("pool_id", poolID).Str("agent_id", agentID).Msg("Trust below threshold")
		return false, nil
	}

	p.AddAgent(agentID)
	if err := m.persist(ctx, p); err != nil {
		return false, err
	}
	m.logger.Debug().Str("pool_id", poolID).Str("agent_id", agentID).Msg("Agent joined pool")
	return true, nil
}

// LeavePool removes an agent from a pool. Leaving an unknown pool or a pool
// the agent is not in is a no-op.
func (m *PoolManager) LeavePool(ctx context.Context, agentID, poolID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, err := m.resolve(ctx, poolID)
	if err != nil {
		return err
	}
	if p == nil || !p.HasAgent(agentID) {
		return nil
	}

	p.RemoveAgent(agentID)
	if err := m.persist(ctx, p); err != nil {
		return err
	}
	m.logger.Debug().Str("pool_id", poolID).Str("agent_id", agentID).Msg("Agent left pool")
	return nil
}

// GetPool returns a pool by ID, loading it from the store on a cache miss.
// Unknown pools return (nil, nil).
func (m *PoolManager) GetPool(ctx context.Context, poolID string) (*types.Pool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.resolve(ctx, poolID)
}

// GetPoolsForAgent returns the sorted IDs of every pool the agent belongs
// to, merging in-memory membership with pools persisted in the store.
func (m *PoolManager) GetPoolsForAgent(ctx context.Context, agentID string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ids := map[string]struct{}{}
	for id, p := range m.pools {
		if p.HasAgent(agentID) {
			ids[id] = struct{}{}
		}
	}

	if m.store != nil {
		keys, err := m.store.List(ctx, poolKeyPrefix)
		if err != nil {
			return nil, fmt.Errorf("failed to list pools: %w", err)
		}
		for _, key := range keys {
			id := key[len(poolKeyPrefix):]
			if _, cached := m.pools[id]; cached {
				continue
			}
			p, err := m.resolve(ctx, id)
			if err != nil {
				return nil, err
			}
			if p != nil && p.HasAgent(agentID) {
				ids[id] = struct{}{}
			}
		}
	}

	out := make([]string, 0, len(ids))
	for id := range ids {
		out = append(out, id)
	}
	sort.Strings(out)
	return out, nil
}

// resolve fetches a pool from memory, falling back to the store. Callers
// hold the mutex.
func (m *PoolManager) resolve(ctx context.Context, poolID string) (*types.Pool, error) {
	if p, ok := m.pools[poolID]; ok {
		return p, nil
	}
	if m.store == nil {
		return nil, nil
	}

	value, err := m.store.Get(ctx, poolKeyPrefix+poolID)
	if err != nil {
		return nil, fmt.Errorf("failed to load pool %s: %w", poolID, err)
	}
	if value == nil {
		return nil, nil
	}
	p, err := decodePool(value)
	if err != nil {
		return nil, err
	}
	m.pools[p.ID] = p
	return p, nil
}

func (m *PoolManager) persist(ctx context.Context, p *types.Pool) error {
	if m.store == nil {
		return nil
	}
	value, err := encodePool(p)
	if err != nil {
		return fmt.Errorf("failed to encode pool %s: %w", p.ID, err)
	}
	if err := m.store.Put(ctx, poolKeyPrefix+p.ID, value); err != nil {
		return fmt.Errorf("failed to persist pool %s: %w", p.ID, err)
	}
	return nil
}
