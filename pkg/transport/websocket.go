package transport

import (
	"context"
	"encoding/binary"
	"fmt"
	"sync"
	"time"

	"github.com/convergeframework/converge/pkg/identity"
	"github.com/convergeframework/converge/pkg/log"
	"github.com/convergeframework/converge/pkg/message"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	wsInboxSize        = 1024
	wsHandshakeTimeout = 10 * time.Second
	wsWriteTimeout     = 10 * time.Second
)

// WebSocketTransport is a client transport speaking the same length-prefixed
// framing as TCP, with each frame carried in one binary WebSocket message.
// It connects out to a relay or gateway; it does not accept connections.
type WebSocketTransport struct {
	agentID string
	uri     string
	inbox   chan *message.Message

	mu      sync.Mutex
	writeMu sync.Mutex
	conn    *websocket.Conn
	started bool
	done    chan struct{}

	logger zerolog.Logger
}

// NewWebSocketTransport creates a transport that will connect to uri
// (e.g. ws://localhost:8765) on Start.
func NewWebSocketTransport(agentID, uri string) *WebSocketTransport {
	return &WebSocketTransport{
		agentID: agentID,
		uri:     uri,
		inbox:   make(chan *message.Message, wsInboxSize),
		logger:  log.WithComponent("transport.websocket"),
	}
}

// Start dials the WebSocket endpoint and begins the reader goroutine.
func (t *WebSocketTransport) Start(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: wsHandshakeTimeout}
	conn, resp, err := dialer.DialContext(ctx, t.uri, nil)
	if err != nil {
		return fmt.Errorf("failed to dial %s: %w", t.uri, err)
	}
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}

	done := make(chan struct{})
	t.mu.Lock()
	t.conn = conn
	t.done = done
	t.started = true
	t.mu.Unlock()

	go t.readLoop(conn, done)

	t.logger.Info().Str("uri", t.uri).Msg("WebSocket transport connected")
	return nil
}

// Stop sends a close frame, closes the connection, and waits for the
// reader goroutine to exit.
func (t *WebSocketTransport) Stop(ctx context.Context) error {
	t.mu.Lock()
	if !t.started {
		t.mu.Unlock()
		return nil
	}
	t.started = false
	conn := t.conn
	t.conn = nil
	done := t.done
	t.mu.Unlock()

	if conn != nil {
		t.writeMu.Lock()
		deadline := time.Now().Add(time.Second)
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
		t.writeMu.Unlock()
		conn.Close()
	}

	if done != nil {
		select {
		case <-done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// readLoop is the only goroutine reading from the connection. It unframes
// each binary message and feeds the inbox.
func (t *WebSocketTransport) readLoop(conn *websocket.Conn, done chan struct{}) {
	defer close(done)
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				t.logger.Debug().Err(err).Msg("WebSocket read ended")
			}
			return
		}
		if len(data) < 4 {
			continue
		}
		length := binary.BigEndian.Uint32(data[:4])
		if length > MaxFrameSize || uint64(length) > uint64(len(data)-4) {
			t.logger.Debug().Uint32("length", length).Msg("Discarding truncated frame")
			continue
		}

		msg, err := message.Decode(data[4 : 4+length])
		if err != nil {
			t.logger.Debug().Err(err).Msg("Discarding undecodable frame")
			continue
		}

		select {
		case t.inbox <- msg:
		default:
			t.logger.Warn().Str("message_id", msg.ID).Msg("Inbox full, dropping message")
		}
	}
}

// Send writes the message as one framed binary WebSocket message.
func (t *WebSocketTransport) Send(ctx context.Context, msg *message.Message) error {
	t.mu.Lock()
	started := t.started
	conn := t.conn
	t.mu.Unlock()
	if !started || conn == nil {
		return ErrNotStarted
	}

	data, err := message.WireBytes(msg)
	if err != nil {
		return fmt.Errorf("failed to encode message: %w", err)
	}

	frame := make([]byte, 4+len(data))
	binary.BigEndian.PutUint32(frame[:4], uint32(len(data)))
	copy(frame[4:], data)

	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	if err := conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
		return fmt.Errorf("failed to write frame: %w", err)
	}
	return nil
}

// Receive blocks until a message arrives or ctx is done.
func (t *WebSocketTransport) Receive(ctx context.Context) (*message.Message, error) {
	t.mu.Lock()
	started := t.started
	t.mu.Unlock()
	if !started {
		return nil, ErrNotStarted
	}
	select {
	case msg := <-t.inbox:
		return msg, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// ReceiveVerified receives and checks the signature. Unverifiable messages
// return (nil, nil).
func (t *WebSocketTransport) ReceiveVerified(ctx context.Context, registry *identity.Registry) (*message.Message, error) {
	msg, err := t.Receive(ctx)
	if err != nil {
		return nil, err
	}
	return verifyReceived(msg, registry, t.logger), nil
}
