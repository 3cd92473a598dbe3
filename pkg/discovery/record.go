package discovery

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/convergeframework/converge/pkg/message"
	"github.com/convergeframework/converge/pkg/types"
)

// descriptorRecord is the persisted form of an AgentDescriptor. Topics are
// canonical strings and the public key is base64. The schema version guards
// future layout changes.
type descriptorRecord struct {
	SchemaVersion int               `json:"schema_version"`
	ID            string            `json:"id"`
	Topics        []string          `json:"topics,omitempty"`
	Capabilities  []json.RawMessage `json:"capabilities,omitempty"`
	PublicKey     string            `json:"public_key,omitempty"`
}

type capabilityRecord struct {
	Name        string             `json:"name"`
	Version     string             `json:"version,omitempty"`
	Description string             `json:"description,omitempty"`
	Constraints map[string]any     `json:"constraints,omitempty"`
	Costs       map[string]float64 `json:"costs,omitempty"`
	LatencyMS   int                `json:"latency_ms,omitempty"`
}

const descriptorSchemaVersion = 1

func encodeDescriptor(desc types.AgentDescriptor) ([]byte, error) {
	rec := descriptorRecord{
		SchemaVersion: descriptorSchemaVersion,
		ID:            desc.ID,
		Topics:        message.CanonicalStrings(desc.Topics),
	}
	for _, c := range desc.Capabilities {
		raw, err := json.Marshal(capabilityRecord{
			Name:        c.Name,
			Version:     c.Version,
			Description: c.Description,
			Constraints: c.Constraints,
			Costs:       c.Costs,
			LatencyMS:   c.LatencyMS,
		})
		if err != nil {
			return nil, err
		}
		rec.Capabilities = append(rec.Capabilities, raw)
	}
	if len(desc.PublicKey) > 0 {
		rec.PublicKey = base64.StdEncoding.EncodeToString(desc.PublicKey)
	}
	return json.Marshal(rec)
}

func decodeDescriptor(data []byte) (types.AgentDescriptor, error) {
	var rec descriptorRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return types.AgentDescriptor{}, fmt.Errorf("invalid descriptor record: %w", err)
	}
	if rec.ID == "" {
		return types.AgentDescriptor{}, fmt.Errorf("descriptor record missing id")
	}

	desc := types.AgentDescriptor{ID: rec.ID}
	for _, s := range rec.Topics {
		t, err := message.ParseTopic(s)
		if err != nil {
			return types.AgentDescriptor{}, err
		}
		desc.Topics = append(desc.Topics, t)
	}
	for _, raw := range rec.Capabilities {
		c, err := decodeCapability(raw)
		if err != nil {
			return types.AgentDescriptor{}, err
		}
		desc.Capabilities = append(desc.Capabilities, c)
	}
	if rec.PublicKey != "" {
		pub, err := base64.StdEncoding.DecodeString(rec.PublicKey)
		if err != nil {
			return types.AgentDescriptor{}, fmt.Errorf("invalid public key encoding: %w", err)
		}
		desc.PublicKey = pub
	}
	return desc, nil
}

// decodeCapability accepts either a capability object or, for records
// written by agents that declare capabilities as bare strings, a plain name.
func decodeCapability(raw json.RawMessage) (types.Capability, error) {
	var name string
	if err := json.Unmarshal(raw, &name); err == nil {
		return types.CapabilityFromName(name), nil
	}
	var rec capabilityRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return types.Capability{}, fmt.Errorf("invalid capability record: %w", err)
	}
	version := rec.Version
	if version == "" {
		version = "1.0"
	}
	return types.Capability{
		Name:        rec.Name,
		Version:     version,
		Description: rec.Description,
		Constraints: rec.Constraints,
		Costs:       rec.Costs,
		LatencyMS:   rec.LatencyMS,
	}, nil
}
