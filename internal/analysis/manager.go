package analysis

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"rash-identifier/internal/intake"
)

// Seed is what every new session starts with.
type Seed struct {
	Image    intake.EncodedImage
	Analysis string
	Err      error
}

// LoadSeed pairs the bundled default image with DefaultAnalysis. No inference call is made.
func LoadSeed(path string) Seed {
	img, err := intake.LoadDefault(path)
	if err != nil {
		return Seed{Err: err}
	}
	return Seed{Image: img, Analysis: DefaultAnalysis}
}

// Manager keeps the live sessions, one per open tool instance.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	seed     Seed
	limit    int
}

// NewManager creates a manager. A limit of zero means unlimited.
func NewManager(seed Seed, limit int) *Manager {
	return &Manager{
		sessions: make(map[string]*Session),
		seed:     seed,
		limit:    limit,
	}
}

func (m *Manager) Create() (*Session, error) {
	s := newSession(uuid.NewString(), m.seed, time.Now().UTC())

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.limit > 0 && len(m.sessions) >= m.limit {
		return nil, ErrTooManySessions
	}
	m.sessions[s.ID] = s
	return s, nil
}

func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return s, nil
}

// Delete removes a session and abandons its in-flight analysis.
func (m *Manager) Delete(id string) bool {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if ok {
		s.close()
	}
	return ok
}

func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Sweep drops sessions idle for longer than maxIdle. Sessions with a running
// analysis are kept.
func (m *Manager) Sweep(maxIdle time.Duration) int {
	now := time.Now()
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for id, s := range m.sessions {
		if s.idle(now, maxIdle) {
			delete(m.sessions, id)
			s.close()
			removed++
		}
	}
	return removed
}

// RunSweeper calls Sweep every interval until ctx is done.
func (m *Manager) RunSweeper(ctx context.Context, interval, maxIdle time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := m.Sweep(maxIdle); n > 0 {
				log.Printf("evicted %d idle sessions", n)
			}
		}
	}
}
