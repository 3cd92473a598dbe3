package transport

import (
	"context"
	"errors"

	"github.com/convergeframework/converge/pkg/identity"
	"github.com/convergeframework/converge/pkg/message"
	"github.com/rs/zerolog"
)

// ErrNotStarted is returned by Send and Receive before Start or after Stop.
var ErrNotStarted = errors.New("transport not started")

// Transport moves message envelopes between agents. Implementations are
// hot-swappable: the runtime only depends on this interface.
type Transport interface {
	// Start makes the transport ready to send and receive.
	Start(ctx context.Context) error

	// Stop tears down connections and releases resources. Stop is
	// idempotent.
	Stop(ctx context.Context) error

	// Send routes a message toward its destination. Where the message
	// goes depends on the implementation's routing rules.
	Send(ctx context.Context, msg *message.Message) error

	// Receive blocks until a message arrives or ctx is done.
	Receive(ctx context.Context) (*message.Message, error)

	// ReceiveVerified receives a message and checks its signature against
	// the sender's registered public key. Messages from unknown senders or
	// with invalid signatures are dropped: the call returns (nil, nil) so
	// the caller can keep polling.
	ReceiveVerified(ctx context.Context, registry *identity.Registry) (*message.Message, error)
}

// verifyReceived resolves the sender's key and checks the envelope
// signature. Returns nil when the message must be dropped.
func verifyReceived(msg *message.Message, registry *identity.Registry, logger zerolog.Logger) *message.Message {
	pub, ok := registry.Resolve(msg.Sender)
	if !ok {
		logger.Debug().
			Str("sender", msg.Sender).
			Str("message_id", msg.ID).
			Msg("Dropping message from unknown sender")
		return nil
	}
	if !msg.Verify(pub) {
		logger.Debug().
			Str("sender", msg.Sender).
			Str("message_id", msg.ID).
			Msg("Dropping message with invalid signature")
		return nil
	}
	return msg
}
