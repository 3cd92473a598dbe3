package runtime

import (
	"context"

	"github.com/convergeframework/converge/pkg/message"
)

const defaultPollBatch = 10

// Inbox is the bounded queue between the transport listener and the agent
// loop. An unbounded inbox (maxSize 0) never drops; a bounded inbox either
// drops on overflow or applies backpressure, depending on dropWhenFull.
type Inbox struct {
	queue        chan *message.Message
	dropWhenFull bool
}

// NewInbox creates an inbox holding up to maxSize messages. maxSize <= 0
// means effectively unbounded (a large buffer). When dropWhenFull is set,
// Push discards messages that arrive while the inbox is full instead of
// blocking the listener.
func NewInbox(maxSize int, dropWhenFull bool) *Inbox {
	if maxSize <= 0 {
		maxSize = 4096
		dropWhenFull = false
	}
	return &Inbox{
		queue:        make(chan *message.Message, maxSize),
		dropWhenFull: dropWhenFull,
	}
}

// Push enqueues a message. It reports whether the message was accepted:
// false means it was dropped because the inbox was full, or ctx ended
// while waiting for space.
func (in *Inbox) Push(ctx context.Context, msg *message.Message) bool {
	if in.dropWhenFull {
		select {
		case in.queue <- msg:
			return true
		default:
			return false
		}
	}
	select {
	case in.queue <- msg:
		return true
	case <-ctx.Done():
		return false
	}
}

// Poll drains up to batch messages without blocking. batch <= 0 uses the
// default of 10.
func (in *Inbox) Poll(batch int) []*message.Message {
	if batch <= 0 {
		batch = defaultPollBatch
	}
	var msgs []*message.Message
	for len(msgs) < batch {
		select {
		case msg := <-in.queue:
			msgs = append(msgs, msg)
		default:
			return msgs
		}
	}
	return msgs
}

// Len returns the number of queued messages.
func (in *Inbox) Len() int {
	return len(in.queue)
}
