package transport

import (
	"bufio"
	"context"
	"crypto/tls"
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/convergeframework/converge/pkg/identity"
	"github.com/convergeframework/converge/pkg/log"
	"github.com/convergeframework/converge/pkg/message"
	"github.com/rs/zerolog"
)

const (
	// TCPNamespace is the topic namespace carrying TCP destination
	// attributes (host, port).
	TCPNamespace = "transport.tcp"

	// MaxFrameSize caps a single wire frame. Larger length prefixes drop
	// the connection to protect the receiver from memory exhaustion.
	MaxFrameSize = 10 * 1024 * 1024

	tcpInboxSize = 1024
	dialTimeout  = 5 * time.Second
)

// pooledConn is a reusable outbound connection. The mutex serializes
// writes so a frame is never interleaved with another.
type pooledConn struct {
	mu   sync.Mutex
	conn net.Conn
}

// TCPTransport exchanges length-prefixed wire frames over TCP. Each frame
// is a 4-byte big-endian length followed by the canonical message bytes.
//
// Outbound routing reads the destination from the first topic in the
// TCPNamespace namespace: its host and port attributes name the peer.
// Messages without such a topic are dropped silently. Outbound connections
// are pooled per peer and evicted on write errors.
type TCPTransport struct {
	host        string
	fingerprint string
	tlsConfig   *tls.Config

	inbox chan *message.Message

	mu       sync.Mutex
	port     int
	started  bool
	listener net.Listener
	pool     map[string]*pooledConn
	conns    map[net.Conn]struct{}
	wg       sync.WaitGroup

	logger zerolog.Logger
}

// NewTCPTransport creates a plaintext TCP transport listening on host:port.
// Port 0 picks a free port; Port() reports the bound one after Start.
func NewTCPTransport(host string, port int, fingerprint string) *TCPTransport {
	return &TCPTransport{
		host:        host,
		port:        port,
		fingerprint: fingerprint,
		inbox:       make(chan *message.Message, tcpInboxSize),
		pool:        make(map[string]*pooledConn),
		conns:       make(map[net.Conn]struct{}),
		logger:      log.WithComponent("transport.tcp"),
	}
}

// NewTCPTransportTLS creates a TCP transport with TLS applied to both the
// listener and outbound connections.
func NewTCPTransportTLS(host string, port int, fingerprint string, cfg *tls.Config) *TCPTransport {
	t := NewTCPTransport(host, port, fingerprint)
	t.tlsConfig = cfg
	return t
}

// Port returns the listening port. After Start with port 0 it reports the
// port the listener actually bound.
func (t *TCPTransport) Port() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.port
}

// Start binds the listener and begins accepting connections.
func (t *TCPTransport) Start(ctx context.Context) error {
	addr := net.JoinHostPort(t.host, strconv.Itoa(t.port))

	var (
		lis net.Listener
		err error
	)
	if t.tlsConfig != nil {
		lis, err = tls.Listen("tcp", addr, t.tlsConfig)
	} else {
		var lc net.ListenConfig
		lis, err = lc.Listen(ctx, "tcp", addr)
	}
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	t.mu.Lock()
	t.listener = lis
	t.started = true
	if tcpAddr, ok := lis.Addr().(*net.TCPAddr); ok {
		t.port = tcpAddr.Port
	}
	t.mu.Unlock()

	t.wg.Add(1)
	go t.acceptLoop(lis)

	t.logger.Info().Str("addr", lis.Addr().String()).Bool("tls", t.tlsConfig != nil).Msg("TCP transport listening")
	return nil
}

// Stop closes the listener, accepted connections, and pooled outbound
// connections, then waits for reader goroutines to finish.
func (t *TCPTransport) Stop(ctx context.Context) error {
	t.mu.Lock()
	if !t.started {
		t.mu.Unlock()
		return nil
	}
	t.started = false
	lis := t.listener
	t.listener = nil
	for conn := range t.conns {
		conn.Close()
	}
	pool := t.pool
	t.pool = make(map[string]*pooledConn)
	t.mu.Unlock()

	if lis != nil {
		lis.Close()
	}
	for _, pc := range pool {
		pc.conn.Close()
	}

	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (t *TCPTransport) acceptLoop(lis net.Listener) {
	defer t.wg.Done()
	for {
		conn, err := lis.Accept()
		if err != nil {
			return
		}
		t.mu.Lock()
		if !t.started {
			t.mu.Unlock()
			conn.Close()
			return
		}
		t.conns[conn] = struct{}{}
		t.mu.Unlock()

		t.wg.Add(1)
		go t.handleConn(conn)
	}
}

func (t *TCPTransport) handleConn(conn net.Conn) {
	defer t.wg.Done()
	defer func() {
		conn.Close()
		t.mu.Lock()
		delete(t.conns, conn)
		t.mu.Unlock()
	}()

	reader := bufio.NewReader(conn)
	var header [4]byte
	for {
		if _, err := io.ReadFull(reader, header[:]); err != nil {
			return
		}
		length := binary.BigEndian.Uint32(header[:])
		if length > MaxFrameSize {
			t.logger.Warn().
				Uint32("length", length).
				Str("remote", conn.RemoteAddr().String()).
				Msg("Dropping connection: frame exceeds size limit")
			return
		}

		payload := make([]byte, length)
		if _, err := io.ReadFull(reader, payload); err != nil {
			return
		}

		msg, err := message.Decode(payload)
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

// Send routes the message to the peer named by its TCPNamespace topic.
// Messages without a destination topic are dropped without error.
func (t *TCPTransport) Send(ctx context.Context, msg *message.Message) error {
	if !t.isStarted() {
		return ErrNotStarted
	}

	host, port, ok := tcpDestination(msg)
	if !ok {
		t.logger.Debug().Str("message_id", msg.ID).Msg("No TCP destination topic, dropping message")
		return nil
	}

	data, err := message.WireBytes(msg)
	if err != nil {
		return fmt.Errorf("failed to encode message: %w", err)
	}
	if len(data) > MaxFrameSize {
		return fmt.Errorf("message of %d bytes exceeds frame size limit", len(data))
	}

	pc, err := t.connection(ctx, host, port)
	if err != nil {
		return fmt.Errorf("failed to connect to %s:%d: %w", host, port, err)
	}

	var header [4]byte
	binary.BigEndian.PutUint32(header[:], uint32(len(data)))

	pc.mu.Lock()
	_, err = pc.conn.Write(header[:])
	if err == nil {
		_, err = pc.conn.Write(data)
	}
	pc.mu.Unlock()

	if err != nil {
		t.evict(host, port, pc)
		return fmt.Errorf("failed to write to %s:%d: %w", host, port, err)
	}
	return nil
}

// tcpDestination extracts host and port from the first TCPNamespace topic.
func tcpDestination(msg *message.Message) (string, int, bool) {
	for _, topic := range msg.Topics {
		if topic.Namespace != TCPNamespace {
			continue
		}
		host := topic.Attributes["host"]
		port, err := strconv.Atoi(topic.Attributes["port"])
		if host == "" || err != nil || port <= 0 {
			return "", 0, false
		}
		return host, port, true
	}
	return "", 0, false
}

// connection returns the pooled connection for host:port, dialing a new
// one when none exists.
func (t *TCPTransport) connection(ctx context.Context, host string, port int) (*pooledConn, error) {
	key := net.JoinHostPort(host, strconv.Itoa(port))

	t.mu.Lock()
	if pc, ok := t.pool[key]; ok {
		t.mu.Unlock()
		return pc, nil
	}
	t.mu.Unlock()

	dialer := net.Dialer{Timeout: dialTimeout}
	var (
		conn net.Conn
		err  error
	)
	if t.tlsConfig != nil {
		tlsDialer := tls.Dialer{NetDialer: &dialer, Config: t.tlsConfig}
		conn, err = tlsDialer.DialContext(ctx, "tcp", key)
	} else {
		conn, err = dialer.DialContext(ctx, "tcp", key)
	}
	if err != nil {
		return nil, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if pc, ok := t.pool[key]; ok {
		// Lost a dial race; keep the existing entry.
		conn.Close()
		return pc, nil
	}
	pc := &pooledConn{conn: conn}
	t.pool[key] = pc
	return pc, nil
}

// evict drops a pooled connection after a write error.
func (t *TCPTransport) evict(host string, port int, pc *pooledConn) {
	key := net.JoinHostPort(host, strconv.Itoa(port))
	t.mu.Lock()
	if cur, ok := t.pool[key]; ok && cur == pc {
		delete(t.pool, key)
	}
	t.mu.Unlock()
	pc.conn.Close()
}

// Receive blocks until a frame is decoded into a message or ctx is done.
func (t *TCPTransport) Receive(ctx context.Context) (*message.Message, error) {
	if !t.isStarted() {
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
func (t *TCPTransport) ReceiveVerified(ctx context.Context, registry *identity.Registry) (*message.Message, error) {
	msg, err := t.Receive(ctx)
	if err != nil {
		return nil, err
	}
	return verifyReceived(msg, registry, t.logger), nil
}

func (t *TCPTransport) isStarted() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.started
}
