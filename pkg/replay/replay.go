package replay

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/convergeframework/converge/pkg/message"
)

// EventTypeMessage marks a recorded message dispatch.
const EventTypeMessage = "message"

// Event is one recorded occurrence.
type Event struct {
	Type      string         `json:"type"`
	Timestamp float64        `json:"timestamp"`
	Data      map[string]any `json:"data"`
}

// Log records runtime events for later inspection or playback. Safe for
// concurrent use.
type Log struct {
	mu     sync.Mutex
	events []Event
}

// NewLog creates an empty replay log.
func NewLog() *Log {
	return &Log{}
}

// RecordMessage appends a message event stamped with the message's own
// timestamp.
func (l *Log) RecordMessage(msg *message.Message) {
	event := Event{
		Type:      EventTypeMessage,
		Timestamp: msg.Timestamp,
		Data:      msg.AsMap(),
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, event)
}

// Events returns a copy of the recorded events in order.
func (l *Log) Events() []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Event(nil), l.events...)
}

// Len returns the number of recorded events.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.events)
}

// Export writes the log to path as a JSON array.
func (l *Log) Export(path string) error {
	data, err := json.Marshal(l.Events())
	if err != nil {
		return fmt.Errorf("failed to encode replay log: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write replay log: %w", err)
	}
	return nil
}

// Load replaces the log's events with those stored at path.
func (l *Log) Load(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read replay log: %w", err)
	}
	var events []Event
	if err := json.Unmarshal(data, &events); err != nil {
		return fmt.Errorf("failed to decode replay log: %w", err)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = events
	return nil
}
