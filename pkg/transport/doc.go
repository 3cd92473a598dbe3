/*
Package transport moves message envelopes between agents over pluggable
carriers: in-process channels, TCP, or WebSocket.

Every carrier implements the same Transport interface, so the runtime can
swap them without code changes. Signature checking happens at the receive
edge: ReceiveVerified resolves the sender's public key from an identity
registry and silently drops messages that fail verification.

# Architecture

	┌───────────────────── TRANSPORT LAYER ─────────────────────┐
	│                                                            │
	│  ┌────────────────────────────────────────────┐            │
	│  │      Transport interface                   │            │
	│  │  Start / Stop / Send / Receive             │            │
	│  │  ReceiveVerified (signature gate)          │            │
	│  └───────┬───────────────┬───────────────┬────┘            │
	│          │               │               │                 │
	│  ┌───────▼──────┐ ┌──────▼───────┐ ┌─────▼─────────┐       │
	│  │ Local        │ │ TCP          │ │ WebSocket     │       │
	│  │ shared       │ │ length-      │ │ client; same  │       │
	│  │ registry of  │ │ prefixed     │ │ framing in    │       │
	│  │ channels +   │ │ frames,      │ │ binary WS     │       │
	│  │ namespace    │ │ pooled conns │ │ messages      │       │
	│  │ subscriptions│ │ optional TLS │ │               │       │
	│  └──────────────┘ └──────────────┘ └───────────────┘       │
	│                                                            │
	│  Wire frame (TCP and WebSocket):                           │
	│    [4-byte big-endian length][canonical message bytes]     │
	│    frames over 10 MiB drop the connection                  │
	└────────────────────────────────────────────────────────────┘

# Core Components

  - Transport: the carrier interface the runtime depends on
  - LocalRegistry / LocalTransport: in-process routing by recipient,
    topic namespace subscription, or broadcast
  - TCPTransport: listener plus pooled outbound connections; the
    destination comes from the message's transport.tcp topic
  - WebSocketTransport: dial-out client for relay topologies
  - SelfSignedTLS: ephemeral shared certificate for closed deployments

# Usage

	tr := transport.NewTCPTransport("0.0.0.0", 9000, id.Fingerprint())
	if err := tr.Start(ctx); err != nil {
		return err
	}
	defer tr.Stop(ctx)

	msg, err := tr.ReceiveVerified(ctx, keys)
	if err != nil {
		return err
	}
	if msg == nil {
		// dropped: unknown sender or bad signature
	}
*/
package transport
