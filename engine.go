package fix

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

// Engine manages the sessions of one FIX endpoint. Each session runs its own
// loop; the engine only routes by session identity and coordinates
// shutdown.
type Engine struct {
	isShutdown atomic.Bool
	sessions   sync.Map
}

// NewEngine creates a new engine instance.
func NewEngine() *Engine {
	return &Engine{
		sessions: sync.Map{},
	}
}

// CreateSession creates a session for the given identity, registers it and
// starts its loop. Returns ErrSessionExists if the identity is already
// registered or ErrShutdown if the engine is shutting down.
func (e *Engine) CreateSession(id SessionID, store MessageStore, transport Transport, opts ...SessionOption) (*Session, error) {
	if e.isShutdown.Load() {
		return nil, ErrShutdown
	}

	sess, err := NewSession(id, store, transport, opts...)
	if err != nil {
		return nil, err
	}

	if _, loaded := e.sessions.LoadOrStore(id.Key(), sess); loaded {
		return nil, ErrSessionExists
	}

	go func() {
		_ = sess.Start()
	}()

	return sess, nil
}

// Session retrieves the session for a specific identity.
// Returns nil if the session does not exist.
func (e *Engine) Session(id SessionID) *Session {
	value, found := e.sessions.Load(id.Key())
	if !found {
		return nil
	}

	sess, _ := value.(*Session)
	return sess
}

// RemoveSession shuts the session down and unregisters it. Returns
// ErrNotFound if the identity is not registered.
func (e *Engine) RemoveSession(ctx context.Context, id SessionID) error {
	value, found := e.sessions.LoadAndDelete(id.Key())
	if !found {
		return ErrNotFound
	}

	sess := value.(*Session)
	return sess.Shutdown(ctx)
}

// Shutdown gracefully shuts down all sessions in the engine.
// It blocks until all sessions have completed their shutdown or the context is cancelled.
// Returns nil if all sessions shut down successfully, or an aggregated error otherwise.
func (e *Engine) Shutdown(ctx context.Context) error {
	// Set shutdown flag to prevent new session creation
	e.isShutdown.Store(true)

	var wg sync.WaitGroup
	var errs []error
	var errMu sync.Mutex

	// Shutdown all sessions in parallel
	e.sessions.Range(func(key, value any) bool {
		wg.Add(1)
		go func(sess *Session) {
			defer wg.Done()
			if err := sess.Shutdown(ctx); err != nil {
				errMu.Lock()
				errs = append(errs, err)
				errMu.Unlock()
			}
		}(value.(*Session))
		return true
	})

	wg.Wait()

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}
