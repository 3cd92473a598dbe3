package transport

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/convergeframework/converge/pkg/identity"
	"github.com/convergeframework/converge/pkg/message"
)

func startLocal(t *testing.T, registry *LocalRegistry, agentID string) *LocalTransport {
	t.Helper()
	tr := NewLocalTransportWithRegistry(agentID, registry)
	require.NoError(t, tr.Start(context.Background()))
	t.Cleanup(func() { tr.Stop(context.Background()) })
	return tr
}

func receiveOne(t *testing.T, tr Transport, timeout time.Duration) *message.Message {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	msg, err := tr.Receive(ctx)
	require.NoError(t, err)
	return msg
}

func assertNoMessage(t *testing.T, tr Transport, wait time.Duration) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), wait)
	defer cancel()
	msg, err := tr.Receive(ctx)
	require.Error(t, err)
	assert.Nil(t, msg)
}

func TestLocalTransportDirectSend(t *testing.T) {
	registry := NewLocalRegistry()
	a := startLocal(t, registry, "agent-a")
	b := startLocal(t, registry, "agent-b")

	msg := message.New("agent-a")
	msg.Recipient = "agent-b"
	msg.Payload["greeting"] = "hello"
	require.NoError(t, a.Send(context.Background(), msg))

	got := receiveOne(t, b, time.Second)
	assert.Equal(t, msg.ID, got.ID)
	assert.Equal(t, "hello", got.Payload["greeting"])
}

func TestLocalTransportSendToSelf(t *testing.T) {
	registry := NewLocalRegistry()
	a := startLocal(t, registry, "agent-a")

	msg := message.New("agent-a")
	msg.Recipient = "agent-a"
	require.NoError(t, a.Send(context.Background(), msg))

	got := receiveOne(t, a, time.Second)
	assert.Equal(t, msg.ID, got.ID)
}

func TestLocalTransportBroadcastSkipsSender(t *testing.T) {
	registry := NewLocalRegistry()
	a := startLocal(t, registry, "agent-a")
	b := startLocal(t, registry, "agent-b")
	c := startLocal(t, registry, "agent-c")

	msg := message.New("agent-a")
	require.NoError(t, a.Send(context.Background(), msg))

	assert.Equal(t, msg.ID, receiveOne(t, b, time.Second).ID)
	assert.Equal(t, msg.ID, receiveOne(t, c, time.Second).ID)
	assertNoMessage(t, a, 100*time.Millisecond)
}

func TestLocalTransportTopicRouting(t *testing.T) {
	registry := NewLocalRegistry()
	a := startLocal(t, registry, "agent-a")
	b := startLocal(t, registry, "agent-b")
	c := startLocal(t, registry, "agent-c")
	b.Subscribe("tasks.review")

	msg := message.New("agent-a")
	msg.Topics = []message.Topic{message.NewTopic("tasks.review", map[string]string{"lang": "go"})}
	require.NoError(t, a.Send(context.Background(), msg))

	assert.Equal(t, msg.ID, receiveOne(t, b, time.Second).ID)
	assertNoMessage(t, c, 100*time.Millisecond)
}

func TestLocalTransportTopicFallbackBroadcast(t *testing.T) {
	registry := NewLocalRegistry()
	a := startLocal(t, registry, "agent-a")
	b := startLocal(t, registry, "agent-b")
	c := startLocal(t, registry, "agent-c")

	// Nobody subscribes to the namespace, so the send falls back to a
	// broadcast that skips the sender.
	msg := message.New("agent-a")
	msg.Topics = []message.Topic{message.NewTopic("tasks.unclaimed", nil)}
	require.NoError(t, a.Send(context.Background(), msg))

	assert.Equal(t, msg.ID, receiveOne(t, b, time.Second).ID)
	assert.Equal(t, msg.ID, receiveOne(t, c, time.Second).ID)
	assertNoMessage(t, a, 100*time.Millisecond)
}

func TestLocalTransportUnsubscribeStopsTopicDelivery(t *testing.T) {
	registry := NewLocalRegistry()
	a := startLocal(t, registry, "agent-a")
	b := startLocal(t, registry, "agent-b")
	c := startLocal(t, registry, "agent-c")
	b.Subscribe("alerts")
	c.Subscribe("alerts")
	c.Unsubscribe("alerts")

	msg := message.New("agent-a")
	msg.Topics = []message.Topic{message.NewTopic("alerts", nil)}
	require.NoError(t, a.Send(context.Background(), msg))

	assert.Equal(t, msg.ID, receiveOne(t, b, time.Second).ID)
	assertNoMessage(t, c, 100*time.Millisecond)
}

func TestLocalTransportNotStarted(t *testing.T) {
	tr := NewLocalTransportWithRegistry("agent-a", NewLocalRegistry())

	err := tr.Send(context.Background(), message.New("agent-a"))
	assert.ErrorIs(t, err, ErrNotStarted)

	_, err = tr.Receive(context.Background())
	assert.ErrorIs(t, err, ErrNotStarted)
}

func TestLocalTransportStopUnregisters(t *testing.T) {
	registry := NewLocalRegistry()
	a := startLocal(t, registry, "agent-a")
	b := startLocal(t, registry, "agent-b")
	require.NoError(t, b.Stop(context.Background()))

	msg := message.New("agent-a")
	require.NoError(t, a.Send(context.Background(), msg))

	_, err := b.Receive(context.Background())
	assert.ErrorIs(t, err, ErrNotStarted)
}

func TestLocalTransportReceiveVerified(t *testing.T) {
	registry := NewLocalRegistry()
	sender := startLocal(t, registry, "sender")
	receiver := startLocal(t, registry, "receiver")

	id, err := identity.Generate()
	require.NoError(t, err)
	keys := identity.NewRegistry()
	keys.Register(id)

	msg := message.New("sender")
	msg.Recipient = "receiver"
	msg.Payload["n"] = int64(1)
	signed, err := msg.Sign(id)
	require.NoError(t, err)
	require.NoError(t, sender.Send(context.Background(), signed))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	got, err := receiver.ReceiveVerified(ctx, keys)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, id.Fingerprint(), got.Sender)
}

func TestLocalTransportReceiveVerifiedDropsUnknownSender(t *testing.T) {
	registry := NewLocalRegistry()
	sender := startLocal(t, registry, "sender")
	receiver := startLocal(t, registry, "receiver")

	msg := message.New("unknown_agent")
	msg.Recipient = "receiver"
	require.NoError(t, sender.Send(context.Background(), msg))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	got, err := receiver.ReceiveVerified(ctx, identity.NewRegistry())
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestLocalTransportReceiveVerifiedDropsTamperedMessage(t *testing.T) {
	registry := NewLocalRegistry()
	sender := startLocal(t, registry, "sender")
	receiver := startLocal(t, registry, "receiver")

	id, err := identity.Generate()
	require.NoError(t, err)
	keys := identity.NewRegistry()
	keys.Register(id)

	msg := message.New("sender")
	msg.Recipient = "receiver"
	signed, err := msg.Sign(id)
	require.NoError(t, err)
	signed.Payload["injected"] = true
	require.NoError(t, sender.Send(context.Background(), signed))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	got, err := receiver.ReceiveVerified(ctx, keys)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestResetDefaultIsolatesRegistries(t *testing.T) {
	ResetDefault()
	first := DefaultRegistry()
	ResetDefault()
	assert.NotSame(t, first, DefaultRegistry())
}
