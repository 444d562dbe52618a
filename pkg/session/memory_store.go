package session

import (
	"context"
	"sync"
	"time"
)

type memoryRecord struct {
	data      Payload
	expiresAt time.Time
}

// MemoryStore keeps sessions in process memory. Intended for development and
// single-instance deployments.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]memoryRecord
	now      func() time.Time
	ticker   *time.Ticker
	done     chan struct{}
	once     sync.Once
}

var (
	_ Store          = (*MemoryStore)(nil)
	_ UserRevoker    = (*MemoryStore)(nil)
	_ ExpiredSweeper = (*MemoryStore)(nil)
)

// NewMemoryStore creates an in-memory store. A positive cleanupInterval
// starts a goroutine that sweeps expired records until Close is called.
func NewMemoryStore(cleanupInterval time.Duration) *MemoryStore {
	store := &MemoryStore{
		sessions: make(map[string]memoryRecord),
		now:      time.Now,
		done:     make(chan struct{}),
	}

	if cleanupInterval > 0 {
		store.ticker = time.NewTicker(cleanupInterval)
		go store.cleanupLoop()
	}

	return store
}

func (m *MemoryStore) Save(_ context.Context, id string, data Payload, ttl time.Duration) error {
	if id == "" {
		return ErrInvalidSessionID
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.sessions[id] = memoryRecord{data: data, expiresAt: m.now().Add(ttl)}
	return nil
}

func (m *MemoryStore) Load(_ context.Context, id string) (Payload, error) {
	m.mu.RLock()
	rec, exists := m.sessions[id]
	m.mu.RUnlock()

	if !exists {
		return Payload{}, ErrSessionNotFound
	}

	if !m.now().Before(rec.expiresAt) {
		m.mu.Lock()
		delete(m.sessions, id)
		m.mu.Unlock()
		return Payload{}, ErrSessionExpired
	}

	return rec.data, nil
}

func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.sessions[id]; !exists {
		return ErrSessionNotFound
	}
	delete(m.sessions, id)
	return nil
}

func (m *MemoryStore) DeleteExpired(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	var n int64
	for id, rec := range m.sessions {
		if !now.Before(rec.expiresAt) {
			delete(m.sessions, id)
			n++
		}
	}

	return n, nil
}

func (m *MemoryStore) DeleteByUserID(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, rec := range m.sessions {
		if rec.data.UserID == userID {
			delete(m.sessions, id)
		}
	}

	return nil
}

// Len returns the number of stored records, expired ones included.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Close stops the cleanup goroutine
func (m *MemoryStore) Close() error {
	m.once.Do(func() {
		if m.ticker != nil {
			m.ticker.Stop()
		}
		close(m.done)
	})
	return nil
}

func (m *MemoryStore) cleanupLoop() {
	for {
		select {
		case <-m.ticker.C:
			_, _ = m.DeleteExpired(context.Background())
		case <-m.done:
			return
		}
	}
}
