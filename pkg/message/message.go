package message

import (
	"crypto/ed25519"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/convergeframework/converge/pkg/crypto"
	"github.com/convergeframework/converge/pkg/identity"
)

// encryptedField marks a payload as encrypted.
const encryptedField = "_encrypted"

// Message is the envelope agents exchange. Sender and Recipient are identity
// fingerprints; Recipient empty means broadcast or topic delivery. Timestamp
// is Unix seconds with fractional precision. Messages are value objects:
// Sign, EncryptPayload, and DecryptPayload return modified copies.
type Message struct {
	ID        string
	Sender    string
	Recipient string
	Topics    []Topic
	Payload   map[string]any
	TaskID    string
	Timestamp float64
	Signature []byte
}

// New creates a message from the given sender with a fresh ID and the
// current timestamp.
func New(sender string) *Message {
	u := uuid.New()
	return &Message{
		ID:        hex.EncodeToString(u[:]),
		Sender:    sender,
		Payload:   map[string]any{},
		Timestamp: float64(time.Now().UnixNano()) / float64(time.Second),
	}
}

// Time returns the timestamp as a time.Time.
func (m *Message) Time() time.Time {
	sec := int64(m.Timestamp)
	nsec := int64((m.Timestamp - float64(sec)) * float64(time.Second))
	return time.Unix(sec, nsec)
}

// Clone returns a shallow copy with its own topics slice and payload map.
func (m *Message) Clone() *Message {
	out := *m
	if m.Topics != nil {
		out.Topics = append([]Topic(nil), m.Topics...)
	}
	if m.Payload != nil {
		out.Payload = make(map[string]any, len(m.Payload))
		for k, v := range m.Payload {
			out.Payload[k] = v
		}
	}
	if m.Signature != nil {
		out.Signature = append([]byte(nil), m.Signature...)
	}
	return &out
}

// Sign returns a copy of the message signed by the given identity. The
// sender is replaced with the identity's fingerprint so that the signature
// always covers the fingerprint it can be verified against.
func (m *Message) Sign(id *identity.Identity) (*Message, error) {
	signed := m.Clone()
	signed.Sender = id.Fingerprint()
	signed.Signature = nil

	digest, err := SigningBytes(signed)
	if err != nil {
		return nil, fmt.Errorf("failed to encode message for signing: %w", err)
	}
	sig, err := id.Sign(digest)
	if err != nil {
		return nil, err
	}
	signed.Signature = sig
	return signed, nil
}

// Verify checks the message signature against a public key. It returns
// false for unsigned messages and on any encoding or signature failure.
func (m *Message) Verify(pub ed25519.PublicKey) bool {
	if len(m.Signature) == 0 {
		return false
	}
	digest, err := SigningBytes(m)
	if err != nil {
		return false
	}
	return identity.Verify(pub, digest, m.Signature)
}

// EncryptPayload returns a copy whose payload is replaced by
// {"_encrypted": base64(nonce||ciphertext)} under AES-256-GCM. The plaintext
// is the JSON encoding of the payload, which Go renders with sorted map keys.
func (m *Message) EncryptPayload(key []byte) (*Message, error) {
	plaintext, err := json.Marshal(m.Payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode payload: %w", err)
	}
	sealed, err := crypto.Seal(key, plaintext)
	if err != nil {
		return nil, err
	}

	out := m.Clone()
	out.Payload = map[string]any{
		encryptedField: base64.StdEncoding.EncodeToString(sealed),
	}
	return out, nil
}

// DecryptPayload reverses EncryptPayload. A message without an encrypted
// payload is returned unchanged.
func (m *Message) DecryptPayload(key []byte) (*Message, error) {
	raw, ok := m.Payload[encryptedField]
	if !ok {
		return m, nil
	}
	encoded, ok := raw.(string)
	if !ok {
		return nil, fmt.Errorf("encrypted payload is not a string")
	}
	sealed, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("failed to decode encrypted payload: %w", err)
	}
	plaintext, err := crypto.Open(key, sealed)
	if err != nil {
		return nil, err
	}

	var payload map[string]any
	if err := json.Unmarshal(plaintext, &payload); err != nil {
		return nil, fmt.Errorf("failed to decode decrypted payload: %w", err)
	}
	out := m.Clone()
	out.Payload = payload
	return out, nil
}

// IsEncrypted reports whether the payload is encrypted.
func (m *Message) IsEncrypted() bool {
	_, ok := m.Payload[encryptedField]
	return ok
}

// AsMap returns a JSON-friendly snapshot of the message. Topics appear as
// maps of namespace, attributes, and version; the signature is base64.
func (m *Message) AsMap() map[string]any {
	topics := make([]map[string]any, len(m.Topics))
	for i, t := range m.Topics {
		attrs := make(map[string]string, len(t.Attributes))
		for k, v := range t.Attributes {
			attrs[k] = v
		}
		topics[i] = map[string]any{
			"namespace":  t.Namespace,
			"attributes": attrs,
			"version":    t.Version,
		}
	}
	payload := make(map[string]any, len(m.Payload))
	for k, v := range m.Payload {
		payload[k] = v
	}

	out := map[string]any{
		"id":        m.ID,
		"sender":    m.Sender,
		"recipient": m.Recipient,
		"topics":    topics,
		"payload":   payload,
		"task_id":   m.TaskID,
		"timestamp": m.Timestamp,
	}
	if len(m.Signature) > 0 {
		out["signature"] = base64.StdEncoding.EncodeToString(m.Signature)
	}
	return out
}
