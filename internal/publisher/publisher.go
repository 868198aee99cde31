// Package publisher emits change summaries to downstream consumers.
package publisher

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// Message is one published payload, retained by the Memory publisher.
type Message struct {
	Topic   string
	Payload []byte
}

// defaultRetained bounds the Memory publisher's buffer. The process
// runs for days; retention must not grow with cycle count.
const defaultRetained = 128

// Memory is an in-process publisher. It backs the default "noop"
// provider and the tests. Only the most recent messages are retained;
// older ones are evicted so a long run never accumulates payloads.
type Memory struct {
	mu       sync.Mutex
	cap      int
	messages []Message
}

// NewMemory builds a Memory publisher retaining the default number of
// recent messages.
func NewMemory() *Memory {
	return NewMemoryWithCap(defaultRetained)
}

// NewMemoryWithCap builds a Memory publisher retaining at most cap
// messages. cap <= 0 falls back to the default.
func NewMemoryWithCap(cap int) *Memory {
	if cap <= 0 {
		cap = defaultRetained
	}
	return &Memory{cap: cap}
}

// Publish records the payload and returns a synthetic message id. When
// the buffer is full the oldest message is dropped.
func (m *Memory) Publish(_ context.Context, topic string, payload []byte) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, Message{Topic: topic, Payload: append([]byte(nil), payload...)})
	if len(m.messages) > m.cap {
		overflow := len(m.messages) - m.cap
		m.messages = append(m.messages[:0], m.messages[overflow:]...)
	}
	return uuid.NewString(), nil
}

// Messages returns a copy of the retained messages, oldest first.
func (m *Memory) Messages() []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Message, len(m.messages))
	copy(out, m.messages)
	return out
}

// Close satisfies the provider lifecycle.
func (m *Memory) Close() error { return nil }
