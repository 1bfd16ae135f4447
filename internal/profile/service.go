package profile

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/fpang/caption-wizard/internal/identity"
	"github.com/rs/zerolog/log"
)

// Service applies profile and quota rules on top of a Store. Read-modify-write
// sequences are serialised within the process.
type Service struct {
	store Store
	now   func() time.Time
	mu    sync.Mutex
}

// NewService returns a Service backed by store.
func NewService(store Store) *Service {
	return &Service{store: store, now: time.Now}
}

// Ensure returns the profile for id, creating the default free profile the
// first time a user is seen.
func (s *Service) Ensure(ctx context.Context, id identity.Identity) (*UserProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.store.GetProfile(ctx, id.UID)
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}
	if p != nil {
		prev := p.RequestsUsed
		if !s.refresh(p) {
			return p, nil
		}
		err := s.store.SwapProfile(ctx, p, prev)
		if errors.Is(err, ErrConflict) {
			// Another writer got there first; its copy is already refreshed.
			return s.Get(ctx, id.UID)
		}
		if err != nil {
			return nil, fmt.Errorf("put profile: %w", err)
		}
		return p, nil
	}

	now := s.now().UTC()
	name := id.Name
	if name == "" {
		name, _, _ = strings.Cut(id.Email, "@")
	}
	p = &UserProfile{
		UID:           id.UID,
		DisplayName:   name,
		Email:         id.Email,
		PhotoURL:      id.Picture,
		CreatedAt:     now,
		PlanType:      PlanFree,
		RequestsLimit: Limit(PlanFree),
		ResetDate:     now.AddDate(0, 1, 0),
	}
	if err := s.store.PutProfile(ctx, p); err != nil {
		return nil, fmt.Errorf("create profile: %w", err)
	}
	log.Info().Str("uid", id.UID).Msg("Profile created")
	return p, nil
}

// Get returns the profile for uid or ErrNotFound.
func (s *Service) Get(ctx context.Context, uid string) (*UserProfile, error) {
	p, err := s.store.GetProfile(ctx, uid)
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}
	if p == nil {
		return nil, ErrNotFound
	}
	return p, nil
}

// UpdateDisplayName sets the display name.
func (s *Service) UpdateDisplayName(ctx context.Context, uid, name string) (*UserProfile, error) {
	return s.Update(ctx, uid, Patch{DisplayName: &name})
}

// Update applies patch to the stored profile. An empty display name is
// rejected; an unknown selected plan is rejected.
func (s *Service) Update(ctx context.Context, uid string, patch Patch) (*UserProfile, error) {
	if patch.DisplayName != nil && strings.TrimSpace(*patch.DisplayName) == "" {
		return nil, fmt.Errorf("%w: display name must not be empty", ErrInvalidPatch)
	}
	if patch.SelectedPlan != nil {
		if _, ok := planLimits[*patch.SelectedPlan]; !ok {
			return nil, fmt.Errorf("%w: unknown plan %q", ErrInvalidPatch, *patch.SelectedPlan)
		}
	}

	return s.modify(ctx, uid, func(p *UserProfile) error {
		if patch.DisplayName != nil {
			p.DisplayName = strings.TrimSpace(*patch.DisplayName)
		}
		if patch.PhotoURL != nil {
			p.PhotoURL = *patch.PhotoURL
		}
		if patch.SelectedPlan != nil {
			p.SelectedPlan = *patch.SelectedPlan
		}
		return nil
	})
}

// ConsumeRequest charges one request against uid's quota. The usage window
// rolls over once reset_date has passed. Callers reserve before doing the
// work and hand the request back with RefundRequest if the work fails.
func (s *Service) ConsumeRequest(ctx context.Context, uid string) (*UserProfile, error) {
	return s.modify(ctx, uid, func(p *UserProfile) error {
		if p.RequestsUsed >= p.RequestsLimit {
			log.Warn().Str("uid", uid).Int("used", p.RequestsUsed).Int("limit", p.RequestsLimit).Msg("Request quota exceeded")
			return ErrQuotaExceeded
		}
		p.RequestsUsed++
		return nil
	})
}

// RefundRequest returns one request charged by ConsumeRequest. Usage never
// drops below zero, so a refund after a window rollover is a no-op.
func (s *Service) RefundRequest(ctx context.Context, uid string) (*UserProfile, error) {
	return s.modify(ctx, uid, func(p *UserProfile) error {
		if p.RequestsUsed > 0 {
			p.RequestsUsed--
		}
		return nil
	})
}

// StartTrial moves uid onto a pro trial. Each user gets one trial.
func (s *Service) StartTrial(ctx context.Context, uid string) (*UserProfile, error) {
	p, err := s.modify(ctx, uid, func(p *UserProfile) error {
		if p.HasUsedTrial {
			return ErrTrialUsed
		}
		end := s.now().UTC().Add(TrialLength)
		p.HasUsedTrial = true
		p.TrialPending = false
		p.TrialEndDate = &end
		p.PlanType = PlanPro
		p.RequestsLimit = Limit(PlanPro)
		return nil
	})
	if err == nil {
		log.Info().Str("uid", uid).Time("trialEnd", *p.TrialEndDate).Msg("Trial started")
	}
	return p, err
}

// maxSwapAttempts bounds how often modify re-reads after a conflicting write.
const maxSwapAttempts = 5

// modify reads uid's profile, rolls its usage window and applies fn, then
// writes it back with SwapProfile so a concurrent writer in another process
// cannot be overwritten. An error from fn skips fn's changes; a pending
// refresh is still saved and fn's error is returned with the profile.
func (s *Service) modify(ctx context.Context, uid string, fn func(*UserProfile) error) (*UserProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for attempt := 1; ; attempt++ {
		p, err := s.Get(ctx, uid)
		if err != nil {
			return nil, err
		}
		prev := p.RequestsUsed
		refreshed := s.refresh(p)
		snapshot := *p

		fnErr := fn(p)
		if fnErr != nil {
			*p = snapshot
			if !refreshed {
				return p, fnErr
			}
		}

		err = s.store.SwapProfile(ctx, p, prev)
		if err == nil {
			return p, fnErr
		}
		if !errors.Is(err, ErrConflict) || attempt == maxSwapAttempts {
			return nil, fmt.Errorf("put profile: %w", err)
		}
		log.Debug().Str("uid", uid).Int("attempt", attempt).Msg("Profile changed concurrently, retrying")
	}
}

// refresh ends an expired trial and rolls the usage window. It reports
// whether p changed.
func (s *Service) refresh(p *UserProfile) bool {
	now := s.now().UTC()
	changed := false

	if p.TrialEndDate != nil && !now.Before(*p.TrialEndDate) {
		p.TrialEndDate = nil
		p.PlanType = PlanFree
		p.RequestsLimit = Limit(PlanFree)
		changed = true
	}
	if p.RequestsLimit == 0 {
		p.RequestsLimit = Limit(p.PlanType)
		changed = true
	}
	if p.ResetDate.IsZero() || !now.Before(p.ResetDate) {
		p.RequestsUsed = 0
		next := p.ResetDate
		if next.IsZero() {
			next = now
		}
		for !next.After(now) {
			next = next.AddDate(0, 1, 0)
		}
		p.ResetDate = next
		changed = true
	}
	return changed
}
