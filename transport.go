package fix

import "sync"

// Transport carries encoded frames to the counterparty. Implementations have
// no framing knowledge; the session hands them fully encoded messages and
// feeds whatever bytes they receive back through Session.Receive.
//
// IMPORTANT: Implementations must either:
//  1. Write the frame synchronously before returning, OR
//  2. Clone the frame before returning
//
// The caller may reuse the underlying buffer after Send returns, so any
// asynchronous delivery must work with cloned data.
type Transport interface {
	Send(frame []byte) error
}

// MemoryTransport stores sent frames in memory, useful for testing.
type MemoryTransport struct {
	mu     sync.RWMutex
	frames [][]byte
}

// NewMemoryTransport creates a new MemoryTransport.
func NewMemoryTransport() *MemoryTransport {
	return &MemoryTransport{
		frames: make([][]byte, 0),
	}
}

// Send appends a copy of the frame to the in-memory slice.
func (m *MemoryTransport) Send(frame []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.frames = append(m.frames, append([]byte(nil), frame...))
	return nil
}

// Count returns the number of frames sent.
func (m *MemoryTransport) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.frames)
}

// Get returns the frame at the specified index.
func (m *MemoryTransport) Get(index int) []byte {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.frames[index]
}

// Frames returns a copy of all frames sent.
func (m *MemoryTransport) Frames() [][]byte {
	m.mu.RLock()
	defer m.mu.RUnlock()

	frames := make([][]byte, len(m.frames))
	copy(frames, m.frames)
	return frames
}

// DiscardTransport drops all frames, useful for benchmarking.
type DiscardTransport struct {
}

// NewDiscardTransport creates a new DiscardTransport.
func NewDiscardTransport() *DiscardTransport {
	return &DiscardTransport{}
}

// Send does nothing.
func (t *DiscardTransport) Send(frame []byte) error {
	return nil
}
