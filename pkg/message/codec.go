package message

import (
	"bytes"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
	"github.com/vmihailenco/msgpack/v5/msgpcode"
)

// Canonical serialization. Every peer must produce byte-identical output for
// equal message contents, so fields are encoded as a msgpack map in a pinned
// order, absent optionals are explicit nil, topics cross the wire as
// canonical strings, and payload maps are encoded with sorted keys.

// SigningBytes encodes the fields covered by the signature.
func SigningBytes(m *Message) ([]byte, error) {
	var buf bytes.Buffer
	if err := encodeFields(&buf, m, false); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WireBytes encodes the full envelope, signature included, for transmission.
func WireBytes(m *Message) ([]byte, error) {
	var buf bytes.Buffer
	if err := encodeFields(&buf, m, true); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func encodeFields(buf *bytes.Buffer, m *Message, withSignature bool) error {
	enc := msgpack.NewEncoder(buf)
	enc.SetSortMapKeys(true)
	// Compact ints make equal values encode identically whatever Go integer
	// type carries them, so a decode and re-encode never breaks a signature.
	enc.UseCompactInts(true)

	fields := 7
	if withSignature {
		fields = 8
	}
	if err := enc.EncodeMapLen(fields); err != nil {
		return err
	}

	if err := enc.EncodeString("id"); err != nil {
		return err
	}
	if err := enc.EncodeString(m.ID); err != nil {
		return err
	}

	if err := enc.EncodeString("sender"); err != nil {
		return err
	}
	if err := enc.EncodeString(m.Sender); err != nil {
		return err
	}

	if err := enc.EncodeString("recipient"); err != nil {
		return err
	}
	if err := encodeOptionalString(enc, m.Recipient); err != nil {
		return err
	}

	if err := enc.EncodeString("topics"); err != nil {
		return err
	}
	if err := enc.EncodeArrayLen(len(m.Topics)); err != nil {
		return err
	}
	for _, t := range m.Topics {
		if err := enc.EncodeString(t.Canonical()); err != nil {
			return err
		}
	}

	if err := enc.EncodeString("payload"); err != nil {
		return err
	}
	if m.Payload == nil {
		if err := enc.EncodeNil(); err != nil {
			return err
		}
	} else if err := enc.Encode(m.Payload); err != nil {
		return err
	}

	if err := enc.EncodeString("task_id"); err != nil {
		return err
	}
	if err := encodeOptionalString(enc, m.TaskID); err != nil {
		return err
	}

	if err := enc.EncodeString("timestamp"); err != nil {
		return err
	}
	if err := enc.EncodeFloat64(m.Timestamp); err != nil {
		return err
	}

	if withSignature {
		if err := enc.EncodeString("signature"); err != nil {
			return err
		}
		if len(m.Signature) == 0 {
			if err := enc.EncodeNil(); err != nil {
				return err
			}
		} else if err := enc.EncodeBytes(m.Signature); err != nil {
			return err
		}
	}
	return nil
}

func encodeOptionalString(enc *msgpack.Encoder, s string) error {
	if s == "" {
		return enc.EncodeNil()
	}
	return enc.EncodeString(s)
}

// Decode parses a wire-encoded message. Unknown fields are skipped so that
// older peers tolerate additions.
func Decode(data []byte) (*Message, error) {
	dec := msgpack.NewDecoder(bytes.NewReader(data))
	dec.UseLooseInterfaceDecoding(true)

	n, err := dec.DecodeMapLen()
	if err != nil {
		return nil, fmt.Errorf("failed to decode message envelope: %w", err)
	}
	if n < 0 {
		return nil, fmt.Errorf("message envelope is not a map")
	}

	m := &Message{}
	for i := 0; i < n; i++ {
		key, err := dec.DecodeString()
		if err != nil {
			return nil, fmt.Errorf("failed to decode message field name: %w", err)
		}
		switch key {
		case "id":
			if m.ID, err = dec.DecodeString(); err != nil {
				return nil, fmt.Errorf("failed to decode id: %w", err)
			}
		case "sender":
			if m.Sender, err = dec.DecodeString(); err != nil {
				return nil, fmt.Errorf("failed to decode sender: %w", err)
			}
		case "recipient":
			if m.Recipient, err = decodeOptionalString(dec); err != nil {
				return nil, fmt.Errorf("failed to decode recipient: %w", err)
			}
		case "topics":
			if m.Topics, err = decodeTopics(dec); err != nil {
				return nil, err
			}
		case "payload":
			if m.Payload, err = decodePayload(dec); err != nil {
				return nil, err
			}
		case "task_id":
			if m.TaskID, err = decodeOptionalString(dec); err != nil {
				return nil, fmt.Errorf("failed to decode task_id: %w", err)
			}
		case "timestamp":
			if m.Timestamp, err = dec.DecodeFloat64(); err != nil {
				return nil, fmt.Errorf("failed to decode timestamp: %w", err)
			}
		case "signature":
			code, err := dec.PeekCode()
			if err != nil {
				return nil, fmt.Errorf("failed to decode signature: %w", err)
			}
			if code == msgpcode.Nil {
				if err := dec.DecodeNil(); err != nil {
					return nil, fmt.Errorf("failed to decode signature: %w", err)
				}
			} else if m.Signature, err = dec.DecodeBytes(); err != nil {
				return nil, fmt.Errorf("failed to decode signature: %w", err)
			}
		default:
			if err := dec.Skip(); err != nil {
				return nil, fmt.Errorf("failed to skip field %q: %w", key, err)
			}
		}
	}
	if m.ID == "" {
		return nil, fmt.Errorf("message envelope missing id")
	}
	return m, nil
}

func decodeOptionalString(dec *msgpack.Decoder) (string, error) {
	code, err := dec.PeekCode()
	if err != nil {
		return "", err
	}
	if code == msgpcode.Nil {
		return "", dec.DecodeNil()
	}
	return dec.DecodeString()
}

func decodeTopics(dec *msgpack.Decoder) ([]Topic, error) {
	n, err := dec.DecodeArrayLen()
	if err != nil {
		return nil, fmt.Errorf("failed to decode topics: %w", err)
	}
	if n <= 0 {
		return nil, nil
	}
	topics := make([]Topic, 0, n)
	for i := 0; i < n; i++ {
		s, err := dec.DecodeString()
		if err != nil {
			return nil, fmt.Errorf("failed to decode topic: %w", err)
		}
		t, err := ParseTopic(s)
		if err != nil {
			return nil, err
		}
		topics = append(topics, t)
	}
	return topics, nil
}

func decodePayload(dec *msgpack.Decoder) (map[string]any, error) {
	code, err := dec.PeekCode()
	if err != nil {
		return nil, fmt.Errorf("failed to decode payload: %w", err)
	}
	if code == msgpcode.Nil {
		return nil, dec.DecodeNil()
	}
	raw, err := dec.DecodeInterfaceLoose()
	if err != nil {
		return nil, fmt.Errorf("failed to decode payload: %w", err)
	}
	payload, ok := raw.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("payload is %T, want a map", raw)
	}
	return payload, nil
}
