package conversation

import (
	"context"
	"maps"
	"sync"
	"time"
)

// StateStore persists dialog state keyed by user handle.
type StateStore interface {
	Get(ctx context.Context, user string) (State, bool, error)
	Put(ctx context.Context, user string, st State) error
	Delete(ctx context.Context, user string) error
}

// MemoryStateStore keeps state in process memory. Entries older than the TTL are
// invisible to Get and removed by Sweep.
type MemoryStateStore struct {
	mu     sync.Mutex
	ttl    time.Duration
	now    func() time.Time
	states map[string]memState
}

type memState struct {
	state     State
	expiresAt time.Time
}

// NewMemoryStateStore builds a store whose entries live for ttl after their last write.
// A non-positive ttl disables expiry.
func NewMemoryStateStore(ttl time.Duration) *MemoryStateStore {
	return &MemoryStateStore{
		ttl:    ttl,
		now:    time.Now,
		states: make(map[string]memState),
	}
}

func (m *MemoryStateStore) Get(ctx context.Context, user string) (State, bool, error) {
	if err := ctx.Err(); err != nil {
		return State{}, false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.states[user]
	if !ok || m.expired(entry, m.now()) {
		return State{}, false, nil
	}
	st := entry.state
	st.Fields = maps.Clone(st.Fields)
	return st, true, nil
}

func (m *MemoryStateStore) Put(ctx context.Context, user string, st State) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	st.Fields = maps.Clone(st.Fields)
	m.mu.Lock()
	defer m.mu.Unlock()
	entry := memState{state: st}
	if m.ttl > 0 {
		entry.expiresAt = m.now().Add(m.ttl)
	}
	m.states[user] = entry
	return nil
}

func (m *MemoryStateStore) Delete(ctx context.Context, user string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.states, user)
	return nil
}

// Sweep removes expired entries and returns how many were dropped.
func (m *MemoryStateStore) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	removed := 0
	for user, entry := range m.states {
		if m.expired(entry, now) {
			delete(m.states, user)
			removed++
		}
	}
	return removed
}

// Run sweeps every interval until ctx is done.
func (m *MemoryStateStore) Run(ctx context.Context, interval time.Duration, onSweep func(removed int)) error {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if n := m.Sweep(); n > 0 && onSweep != nil {
				onSweep(n)
			}
		}
	}
}

func (m *MemoryStateStore) expired(entry memState, now time.Time) bool {
	return !entry.expiresAt.IsZero() && !now.Before(entry.expiresAt)
}

var _ StateStore = (*MemoryStateStore)(nil)
