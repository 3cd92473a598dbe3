package coordination

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/convergeframework/converge/pkg/message"
	"github.com/convergeframework/converge/pkg/types"
)

// Store key prefixes.
const (
	taskKeyPrefix = "task:"
	poolKeyPrefix = "pool:"
)

const (
	taskSchemaVersion = 1
	poolSchemaVersion = 1
)

// taskRecord is the persisted form of a Task. ClaimedAt is wall-clock
// RFC 3339 so claim-lease expiry stays meaningful across process restarts.
type taskRecord struct {
	SchemaVersion        int            `json:"schema_version"`
	ID                   string         `json:"id"`
	Objective            map[string]any `json:"objective,omitempty"`
	Inputs               map[string]any `json:"inputs,omitempty"`
	Outputs              map[string]any `json:"outputs,omitempty"`
	Constraints          map[string]any `json:"constraints,omitempty"`
	Evaluator            string         `json:"evaluator,omitempty"`
	State                string         `json:"state"`
	AssignedTo           string         `json:"assigned_to,omitempty"`
	ClaimedAt            string         `json:"claimed_at,omitempty"`
	Result               any            `json:"result,omitempty"`
	PoolID               string         `json:"pool_id,omitempty"`
	Topic                string         `json:"topic,omitempty"`
	RequiredCapabilities []string       `json:"required_capabilities,omitempty"`
}

func encodeTask(t *types.Task) ([]byte, error) {
	rec := taskRecord{
		SchemaVersion:        taskSchemaVersion,
		ID:                   t.ID,
		Objective:            t.Objective,
		Inputs:               t.Inputs,
		Outputs:              t.Outputs,
		Constraints:          t.Constraints,
		Evaluator:            t.Evaluator,
		State:                string(t.State),
		AssignedTo:           t.AssignedTo,
		Result:               t.Result,
		PoolID:               t.PoolID,
		Topic:                t.Topic,
		RequiredCapabilities: t.RequiredCapabilities,
	}
	if !t.ClaimedAt.IsZero() {
		rec.ClaimedAt = t.ClaimedAt.Format(time.RFC3339Nano)
	}
	return json.Marshal(rec)
}

func decodeTask(data []byte) (*types.Task, error) {
	var rec taskRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("invalid task record: %w", err)
	}
	if rec.ID == "" {
		return nil, fmt.Errorf("task record missing id")
	}

	t := &types.Task{
		ID:                   rec.ID,
		Objective:            rec.Objective,
		Inputs:               rec.Inputs,
		Outputs:              rec.Outputs,
		Constraints:          rec.Constraints,
		Evaluator:            rec.Evaluator,
		State:                types.TaskState(rec.State),
		AssignedTo:           rec.AssignedTo,
		Result:               rec.Result,
		PoolID:               rec.PoolID,
		Topic:                rec.Topic,
		RequiredCapabilities: rec.RequiredCapabilities,
	}
	if t.Constraints == nil {
		t.Constraints = map[string]any{}
	}
	if rec.ClaimedAt != "" {
		claimedAt, err := time.Parse(time.RFC3339Nano, rec.ClaimedAt)
		if err != nil {
			return nil, fmt.Errorf("invalid task record claimed_at: %w", err)
		}
		t.ClaimedAt = claimedAt
	}
	return t, nil
}

// poolRecord is the persisted form of a Pool. Only structural state is
// stored; admission, governance, and trust policies are process-local and
// must be re-attached on restart. A pool materialized from the store alone
// therefore admits openly.
type poolRecord struct {
	SchemaVersion  int      `json:"schema_version"`
	ID             string   `json:"id"`
	Topics         []string `json:"topics,omitempty"`
	Agents         []string `json:"agents,omitempty"`
	TrustThreshold float64  `json:"trust_threshold,omitempty"`
}

func encodePool(p *types.Pool) ([]byte, error) {
	return json.Marshal(poolRecord{
		SchemaVersion:  poolSchemaVersion,
		ID:             p.ID,
		Topics:         message.CanonicalStrings(p.Topics),
		Agents:         p.AgentIDs(),
		TrustThreshold: p.TrustThreshold,
	})
}

func decodePool(data []byte) (*types.Pool, error) {
	var rec poolRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("invalid pool record: %w", err)
	}
	if rec.ID == "" {
		return nil, fmt.Errorf("pool record missing id")
	}

	p := types.NewPool(types.PoolSpec{ID: rec.ID, TrustThreshold: rec.TrustThreshold})
	for _, s := range rec.Topics {
		t, err := message.ParseTopic(s)
		if err != nil {
			return nil, err
		}
		p.Topics = append(p.Topics, t)
	}
	for _, agentID := range rec.Agents {
		p.AddAgent(agentID)
	}
	return p, nil
}
