package fix

import (
	"sync"

	"github.com/tradewire/fix/codec"
)

// Receiver consumes inbound messages the session delivers to the
// application: business messages arriving in sequence plus session-level
// Rejects. Messages are immutable once decoded, so implementations may hold
// on to them.
type Receiver interface {
	Deliver(...*codec.Message)
}

type MemoryReceiver struct {
	mu       sync.RWMutex
	Messages []*codec.Message
}

func NewMemoryReceiver() *MemoryReceiver {
	return &MemoryReceiver{
		Messages: make([]*codec.Message, 0),
	}
}

func (m *MemoryReceiver) Deliver(msgs ...*codec.Message) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Messages = append(m.Messages, msgs...)
}

func (m *MemoryReceiver) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.Messages)
}

func (m *MemoryReceiver) Get(index int) *codec.Message {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.Messages[index]
}

type DiscardReceiver struct {
}

func NewDiscardReceiver() *DiscardReceiver {
	return &DiscardReceiver{}
}

func (r *DiscardReceiver) Deliver(msgs ...*codec.Message) {

}
