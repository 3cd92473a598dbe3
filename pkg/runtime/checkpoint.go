package runtime

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/convergeframework/converge/pkg/store"
)

const (
	checkpointKeyPrefix     = "checkpoint:"
	checkpointSchemaVersion = 1
)

// Checkpoint is the periodic liveness record the runtime writes to the
// checkpoint store. LastActivityTS is Unix seconds of the last loop
// iteration that had work.
type Checkpoint struct {
	LastActivityTS float64 `json:"last_activity_ts"`
	SchemaVersion  int     `json:"schema_version"`
}

// LoadCheckpoint reads an agent's checkpoint record. A missing checkpoint
// returns (nil, nil).
func LoadCheckpoint(ctx context.Context, st store.Store, agentID string) (*Checkpoint, error) {
	data, err := st.Get(ctx, checkpointKeyPrefix+agentID)
	if err != nil || data == nil {
		return nil, err
	}
	var cp Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, fmt.Errorf("failed to decode checkpoint for %s: %w", agentID, err)
	}
	return &cp, nil
}

func (r *Runtime) writeCheckpoint(ctx context.Context) {
	cp := Checkpoint{
		LastActivityTS: float64(r.lastActivity.UnixNano()) / float64(time.Second),
		SchemaVersion:  checkpointSchemaVersion,
	}
	data, err := json.Marshal(cp)
	if err != nil {
		r.logger.Warn().Err(err).Msg("Failed to encode checkpoint")
		return
	}
	if err := r.opts.Checkpoints.Put(ctx, checkpointKeyPrefix+r.agent.ID(), data); err != nil {
		r.logger.Warn().Err(err).Msg("Failed to write checkpoint")
	}
}
