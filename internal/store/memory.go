package store

import (
	"context"
	"sync"

	"github.com/fpang/caption-wizard/internal/profile"
)

// MemoryStore keeps everything in process. Values are copied on the way in
// and out so callers cannot alias stored state.
type MemoryStore struct {
	mu       sync.RWMutex
	wizards  map[string][]byte
	profiles map[string]profile.UserProfile
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		wizards:  make(map[string][]byte),
		profiles: make(map[string]profile.UserProfile),
	}
}

func (m *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.wizards[key]
	if !ok {
		return nil, nil
	}
	return append([]byte(nil), data...), nil
}

func (m *MemoryStore) Put(_ context.Context, key string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.wizards[key] = append([]byte(nil), data...)
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.wizards, key)
	return nil
}

func (m *MemoryStore) GetProfile(_ context.Context, uid string) (*profile.UserProfile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.profiles[uid]
	if !ok {
		return nil, nil
	}
	if p.TrialEndDate != nil {
		end := *p.TrialEndDate
		p.TrialEndDate = &end
	}
	return &p, nil
}

func (m *MemoryStore) PutProfile(_ context.Context, p *profile.UserProfile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	if p.TrialEndDate != nil {
		end := *p.TrialEndDate
		cp.TrialEndDate = &end
	}
	m.profiles[p.UID] = cp
	return nil
}

func (m *MemoryStore) SwapProfile(_ context.Context, p *profile.UserProfile, prevUsed int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cur, ok := m.profiles[p.UID]; ok && cur.RequestsUsed != prevUsed {
		return profile.ErrConflict
	}
	cp := *p
	if p.TrialEndDate != nil {
		end := *p.TrialEndDate
		cp.TrialEndDate = &end
	}
	m.profiles[p.UID] = cp
	return nil
}
