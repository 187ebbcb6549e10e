package render

import "sync"

// Store is the process-wide association from session identifier to the
// current Project State version. It is the single source of truth read by the
// compositor at render time. Implementations must be safe under concurrent
// use from multiple rendering workers and the mutation thread: a Get that
// races a Set returns either the old or the new value atomically, never a
// mix, and writes per key are totally ordered (last write wins).
type Store interface {
	// Set replaces or inserts the entry for session.
	Set(session SessionID, state ProjectState)

	// Get returns the latest value for session. ok is false after Remove or
	// before the first Set; callers handle absence by falling back to
	// DefaultProjectState rather than failing the render.
	Get(session SessionID) (state ProjectState, ok bool)

	// Remove deletes the entry. Idempotent.
	Remove(session SessionID)

	// Len returns the number of live session entries. Used for metrics.
	Len() int
}

// InMemoryStore is a mutex-guarded in-memory implementation of Store.
// ProjectState is a value type, so every Get hands out an independent
// snapshot; readers can never observe a torn write.
type InMemoryStore struct {
	mu     sync.RWMutex
	states map[SessionID]ProjectState
}

// NewInMemoryStore returns a new empty store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{states: make(map[SessionID]ProjectState)}
}

// Set implements Store.Set.
func (s *InMemoryStore) Set(session SessionID, state ProjectState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[session] = state
}

// Get implements Store.Get.
func (s *InMemoryStore) Get(session SessionID) (ProjectState, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.states[session]
	return st, ok
}

// Remove implements Store.Remove.
func (s *InMemoryStore) Remove(session SessionID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.states, session)
}

// Len implements Store.Len.
func (s *InMemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.states)
}
