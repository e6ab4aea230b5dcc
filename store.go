package fix

import (
	"bytes"
	"sync"

	"github.com/huandu/skiplist"
)

// StoredMessage is one retained outbound frame keyed by its sequence number.
type StoredMessage struct {
	Seq     uint64
	Payload []byte
}

// MessageStore owns a session's sequence counters and its outbound message
// retention. Counters and retained messages survive for the lifetime of the
// logical session identity, across connections; durable implementations
// survive process restarts as well.
//
// Sequence numbers start at 1. Record is idempotent for an identical payload
// and fails with ErrSeqAlreadyRecorded when a sequence number is rebound to
// different bytes, so a crash between send and acknowledge can never
// silently rewrite history.
type MessageStore interface {
	// NextOutboundSeq issues the next outbound sequence number,
	// incrementing the counter.
	NextOutboundSeq() (uint64, error)

	// ExpectedInboundSeq returns the next inbound sequence number the
	// session will accept.
	ExpectedInboundSeq() (uint64, error)

	// SetExpectedInboundSeq moves the inbound counter, used both for
	// normal advancement and for SequenceReset.
	SetExpectedInboundSeq(seq uint64) error

	// Record retains an outbound frame under its sequence number for
	// later resend.
	Record(seq uint64, payload []byte) error

	// FetchRange returns the retained frames with begin <= seq <= end in
	// ascending order. end == 0 means "through the latest retained
	// frame". Sequence numbers in range that were never recorded or are
	// no longer retained are simply absent from the result.
	FetchRange(begin, end uint64) ([]StoredMessage, error)

	// Reset drops all retained messages and returns both counters to 1,
	// the FIX sequence-reset semantics for a fresh session day.
	Reset() error

	Close() error
}

// MemoryStore is an in-memory MessageStore backed by a skip list ordered by
// sequence number. It is safe for concurrent use and is the default store
// for tests and for sessions that accept losing recovery state on restart.
type MemoryStore struct {
	mu       sync.Mutex
	messages *skiplist.SkipList
	nextOut  uint64
	nextIn   uint64
	closed   bool
}

// NewMemoryStore creates an empty MemoryStore with both counters at 1.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		messages: skiplist.New(skiplist.Uint64),
		nextOut:  1,
		nextIn:   1,
	}
}

func (s *MemoryStore) NextOutboundSeq() (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, ErrStoreClosed
	}

	seq := s.nextOut
	s.nextOut++
	return seq, nil
}

func (s *MemoryStore) ExpectedInboundSeq() (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, ErrStoreClosed
	}

	return s.nextIn, nil
}

func (s *MemoryStore) SetExpectedInboundSeq(seq uint64) error {
	if seq == 0 {
		return ErrInvalidParam
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}

	s.nextIn = seq
	return nil
}

func (s *MemoryStore) Record(seq uint64, payload []byte) error {
	if seq == 0 {
		return ErrInvalidParam
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}

	if el := s.messages.Get(seq); el != nil {
		if bytes.Equal(el.Value.([]byte), payload) {
			return nil
		}
		return ErrSeqAlreadyRecorded
	}

	s.messages.Set(seq, append([]byte(nil), payload...))
	return nil
}

func (s *MemoryStore) FetchRange(begin, end uint64) ([]StoredMessage, error) {
	if begin == 0 {
		return nil, ErrInvalidParam
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrStoreClosed
	}

	var out []StoredMessage
	for el := s.messages.Find(begin); el != nil; el = el.Next() {
		seq := el.Key().(uint64)
		if end != 0 && seq > end {
			break
		}
		out = append(out, StoredMessage{
			Seq:     seq,
			Payload: append([]byte(nil), el.Value.([]byte)...),
		})
	}
	return out, nil
}

func (s *MemoryStore) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}

	s.messages.Init()
	s.nextOut = 1
	s.nextIn = 1
	return nil
}

func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
