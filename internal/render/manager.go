package render

import "sync"

// Manager tracks live pipelines by session identifier for the HTTP control
// surface. Each pipeline owns its session exclusively; the manager only
// routes requests to it.
type Manager struct {
	mu        sync.RWMutex
	pipelines map[SessionID]*Pipeline
}

// NewManager returns an empty Manager.
func NewManager() *Manager {
	return &Manager{pipelines: make(map[SessionID]*Pipeline)}
}

// Add registers a pipeline under its own session identifier.
func (m *Manager) Add(p *Pipeline) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pipelines[p.Session()] = p
}

// Get returns the pipeline for the session, if registered.
func (m *Manager) Get(session SessionID) (*Pipeline, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.pipelines[session]
	return p, ok
}

// Remove unregisters the session. Idempotent; tearing the pipeline down is
// the caller's job.
func (m *Manager) Remove(session SessionID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.pipelines, session)
}

// Len returns the number of live pipelines. Used for metrics.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.pipelines)
}
