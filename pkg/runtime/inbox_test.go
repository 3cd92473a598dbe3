package runtime

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/convergeframework/converge/pkg/message"
)

func TestInboxPushPollOrder(t *testing.T) {
	ctx := context.Background()
	in := NewInbox(0, false)

	first := message.New("agent-1")
	second := message.New("agent-1")
	third := message.New("agent-1")
	require.True(t, in.Push(ctx, first))
	require.True(t, in.Push(ctx, second))
	require.True(t, in.Push(ctx, third))

	msgs := in.Poll(0)
	require.Len(t, msgs, 3)
	assert.Equal(t, first.ID, msgs[0].ID)
	assert.Equal(t, second.ID, msgs[1].ID)
	assert.Equal(t, third.ID, msgs[2].ID)
}

func TestInboxPollBatchLimit(t *testing.T) {
	ctx := context.Background()
	in := NewInbox(0, false)

	for i := 0; i < 15; i++ {
		require.True(t, in.Push(ctx, message.New("agent-1")))
	}

	assert.Len(t, in.Poll(0), 10)
	assert.Len(t, in.Poll(0), 5)
	assert.Empty(t, in.Poll(0))
}

func TestInboxDropsWhenFull(t *testing.T) {
	ctx := context.Background()
	in := NewInbox(2, true)

	assert.True(t, in.Push(ctx, message.New("agent-1")))
	assert.True(t, in.Push(ctx, message.New("agent-1")))
	assert.False(t, in.Push(ctx, message.New("agent-1")))

	assert.Equal(t, 2, in.Len())
}

func TestInboxBlockingPushUnblocksOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	in := NewInbox(1, false)
	require.True(t, in.Push(ctx, message.New("agent-1")))

	done := make(chan bool, 1)
	go func() {
		done <- in.Push(ctx, message.New("agent-1"))
	}()

	cancel()
	select {
	case accepted := <-done:
		assert.False(t, accepted)
	case <-time.After(time.Second):
		t.Fatal("push did not unblock on context cancellation")
	}
}
