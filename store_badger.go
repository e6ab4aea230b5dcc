package fix

import (
	"bytes"
	"encoding/binary"
	"errors"

	badger "github.com/dgraph-io/badger/v3"
)

// BadgerStore is a durable MessageStore backend on top of Badger. One store
// serves many sessions; ForSession scopes a key namespace to a single
// session identity so its counters and retained frames survive process
// restarts independently of every other session in the same database.
type BadgerStore struct {
	db *badger.DB
}

// OpenBadgerStore opens (or creates) a Badger database at dir.
func OpenBadgerStore(dir string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	return &BadgerStore{db: db}, nil
}

// ForSession returns the MessageStore view scoped to the given session
// identity. Closing the returned store only detaches the view; Close on the
// BadgerStore itself closes the database.
func (s *BadgerStore) ForSession(id SessionID) MessageStore {
	prefix := "sess/" + id.Key() + "/"
	return &badgerSessionStore{
		db:        s.db,
		outKey:    []byte(prefix + "meta/out"),
		inKey:     []byte(prefix + "meta/in"),
		msgPrefix: []byte(prefix + "msg/"),
	}
}

// Close closes the underlying database.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}

type badgerSessionStore struct {
	db        *badger.DB
	outKey    []byte
	inKey     []byte
	msgPrefix []byte
	closed    bool
}

func (s *badgerSessionStore) msgKey(seq uint64) []byte {
	key := make([]byte, 0, len(s.msgPrefix)+8)
	key = append(key, s.msgPrefix...)
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], seq)
	return append(key, buf[:]...)
}

func counterValue(item *badger.Item) (uint64, error) {
	raw, err := item.ValueCopy(nil)
	if err != nil {
		return 0, err
	}
	if len(raw) != 8 {
		return 0, ErrInvalidParam
	}
	return binary.BigEndian.Uint64(raw), nil
}

func encodeCounter(seq uint64) []byte {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], seq)
	return buf[:]
}

// readCounter returns the stored counter or 1 when the key has never been
// written.
func readCounter(txn *badger.Txn, key []byte) (uint64, error) {
	item, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return 1, nil
	}
	if err != nil {
		return 0, err
	}
	return counterValue(item)
}

func (s *badgerSessionStore) NextOutboundSeq() (uint64, error) {
	if s.closed {
		return 0, ErrStoreClosed
	}

	var seq uint64
	err := s.db.Update(func(txn *badger.Txn) error {
		cur, err := readCounter(txn, s.outKey)
		if err != nil {
			return err
		}
		seq = cur
		return txn.Set(s.outKey, encodeCounter(cur+1))
	})
	if err != nil {
		return 0, err
	}
	return seq, nil
}

func (s *badgerSessionStore) ExpectedInboundSeq() (uint64, error) {
	if s.closed {
		return 0, ErrStoreClosed
	}

	var seq uint64
	err := s.db.View(func(txn *badger.Txn) error {
		cur, err := readCounter(txn, s.inKey)
		if err != nil {
			return err
		}
		seq = cur
		return nil
	})
	if err != nil {
		return 0, err
	}
	return seq, nil
}

func (s *badgerSessionStore) SetExpectedInboundSeq(seq uint64) error {
	if seq == 0 {
		return ErrInvalidParam
	}
	if s.closed {
		return ErrStoreClosed
	}

	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(s.inKey, encodeCounter(seq))
	})
}

func (s *badgerSessionStore) Record(seq uint64, payload []byte) error {
	if seq == 0 {
		return ErrInvalidParam
	}
	if s.closed {
		return ErrStoreClosed
	}

	return s.db.Update(func(txn *badger.Txn) error {
		key := s.msgKey(seq)
		item, err := txn.Get(key)
		if err == nil {
			existing, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			if bytes.Equal(existing, payload) {
				return nil
			}
			return ErrSeqAlreadyRecorded
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		return txn.Set(key, payload)
	})
}

func (s *badgerSessionStore) FetchRange(begin, end uint64) ([]StoredMessage, error) {
	if begin == 0 {
		return nil, ErrInvalidParam
	}
	if s.closed {
		return nil, ErrStoreClosed
	}

	prefix := s.msgPrefix
	var out []StoredMessage
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(s.msgKey(begin)); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			seq := binary.BigEndian.Uint64(item.Key()[len(prefix):])
			if end != 0 && seq > end {
				break
			}
			payload, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			out = append(out, StoredMessage{Seq: seq, Payload: payload})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *badgerSessionStore) Reset() error {
	if s.closed {
		return ErrStoreClosed
	}

	prefix := s.msgPrefix
	return s.db.Update(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)

		var keys [][]byte
		for it.Rewind(); it.ValidForPrefix(prefix); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		it.Close()

		for _, key := range keys {
			if err := txn.Delete(key); err != nil {
				return err
			}
		}
		if err := txn.Set(s.outKey, encodeCounter(1)); err != nil {
			return err
		}
		return txn.Set(s.inKey, encodeCounter(1))
	})
}

// Close detaches the session view. The shared database stays open.
func (s *badgerSessionStore) Close() error {
	s.closed = true
	return nil
}
