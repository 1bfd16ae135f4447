package wizard

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// IdleTimeout is how long an untouched session stays in a Registry.
const IdleTimeout = 30 * time.Minute

type session struct {
	mu       sync.Mutex
	wiz      *Wizard
	lastUsed time.Time

	// refs counts callers inside With; guarded by Registry.mu.
	refs int
}

// Registry serialises access to wizards keyed by session id. Each session
// has its own mutex so concurrent requests for the same session are
// serialised while requests for different sessions proceed in parallel.
//
// Storage is the source of truth: every With re-reads the record and step,
// so several processes sharing one Storage see each other's writes. Idle
// sessions are swept on access as well as by Sweep.
type Registry struct {
	storage Storage
	now     func() time.Time

	mu        sync.Mutex
	sessions  map[string]*session
	lastSweep time.Time
}

// NewRegistry returns an empty registry backed by storage.
func NewRegistry(storage Storage) *Registry {
	return &Registry{
		storage:   storage,
		now:       time.Now,
		sessions:  make(map[string]*session),
		lastSweep: time.Now(),
	}
}

// Create starts a new empty wizard under a fresh session id.
func (r *Registry) Create() string {
	id := uuid.NewString()
	r.mu.Lock()
	r.sessions[id] = &session{wiz: New(r.storage, id), lastUsed: r.now()}
	r.mu.Unlock()
	log.Info().Str("sessionId", id).Msg("Wizard session created")
	return id
}

// With runs fn with exclusive access to the wizard of session id. The wizard
// is reloaded from storage first, and its step is saved afterwards when fn
// moved it. An id that has never been persisted yields an empty wizard.
func (r *Registry) With(ctx context.Context, id string, fn func(*Wizard) error) error {
	s := r.acquire(id)
	defer r.release(s)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastUsed = r.now()

	s.wiz.Reload(ctx)
	before := s.wiz.Step()
	err := fn(s.wiz)
	if s.wiz.Step() != before {
		if serr := s.wiz.SaveStep(ctx); serr != nil {
			log.Warn().Err(serr).Str("sessionId", id).Msg("Wizard step not persisted")
		}
	}
	return err
}

// acquire returns the session for id, creating it if needed, and pins it
// so Sweep cannot drop it while in use.
func (r *Registry) acquire(id string) *session {
	if r.sweepDue() {
		r.Sweep()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		s = &session{wiz: New(r.storage, id), lastUsed: r.now()}
		r.sessions[id] = s
	}
	s.refs++
	return s
}

func (r *Registry) release(s *session) {
	r.mu.Lock()
	s.refs--
	r.mu.Unlock()
}

func (r *Registry) sweepDue() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.now().Sub(r.lastSweep) >= IdleTimeout
}

// Evict drops session id from the cache. The persisted entry is kept.
func (r *Registry) Evict(id string) {
	r.mu.Lock()
	delete(r.sessions, id)
	r.mu.Unlock()
}

// Sweep evicts sessions idle for longer than IdleTimeout and returns how many
// were removed.
func (r *Registry) Sweep() int {
	now := r.now()
	cutoff := now.Add(-IdleTimeout)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastSweep = now
	n := 0
	for id, s := range r.sessions {
		if s.refs > 0 || !s.mu.TryLock() {
			continue
		}
		idle := s.lastUsed.Before(cutoff)
		s.mu.Unlock()
		if idle {
			delete(r.sessions, id)
			n++
		}
	}
	if n > 0 {
		log.Debug().Int("evicted", n).Msg("Swept idle wizard sessions")
	}
	return n
}

// Len returns the number of cached sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
