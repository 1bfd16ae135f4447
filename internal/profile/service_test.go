package profile

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/fpang/caption-wizard/internal/identity"
)

type memStore struct {
	mu       sync.Mutex
	profiles map[string]UserProfile
	puts     int
	putErr   error
}

func newMemStore() *memStore {
	return &memStore{profiles: make(map[string]UserProfile)}
}

func (m *memStore) GetProfile(_ context.Context, uid string) (*UserProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[uid]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (m *memStore) PutProfile(_ context.Context, p *UserProfile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.putErr != nil {
		return m.putErr
	}
	m.puts++
	m.profiles[p.UID] = *p
	return nil
}

func (m *memStore) SwapProfile(_ context.Context, p *UserProfile, prevUsed int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.putErr != nil {
		return m.putErr
	}
	if cur, ok := m.profiles[p.UID]; ok && cur.RequestsUsed != prevUsed {
		return ErrConflict
	}
	m.puts++
	m.profiles[p.UID] = *p
	return nil
}

var epoch = time.Date(2026, 1, 31, 12, 0, 0, 0, time.UTC)

func newTestService(store Store, now *time.Time) *Service {
	s := NewService(store)
	s.now = func() time.Time { return *now }
	return s
}

func TestEnsure_CreatesDefaultProfile(t *testing.T) {
	now := epoch
	store := newMemStore()
	svc := newTestService(store, &now)

	p, err := svc.Ensure(context.Background(), identity.Identity{UID: "u1", Email: "ada@example.com"})
	if err != nil {
		t.Fatalf("Ensure() error: %v", err)
	}
	if p.PlanType != PlanFree || p.RequestsLimit != 10 || p.RequestsUsed != 0 {
		t.Errorf("Ensure() plan = %q limit = %d used = %d", p.PlanType, p.RequestsLimit, p.RequestsUsed)
	}
	if p.DisplayName != "ada" {
		t.Errorf("DisplayName = %q, want ada", p.DisplayName)
	}
	if !p.CreatedAt.Equal(epoch) {
		t.Errorf("CreatedAt = %v, want %v", p.CreatedAt, epoch)
	}
	if want := epoch.AddDate(0, 1, 0); !p.ResetDate.Equal(want) {
		t.Errorf("ResetDate = %v, want %v", p.ResetDate, want)
	}

	// A second call returns the stored document without rewriting it.
	if _, err := svc.Ensure(context.Background(), identity.Identity{UID: "u1", Name: "Other"}); err != nil {
		t.Fatalf("Ensure() error: %v", err)
	}
	if store.puts != 1 {
		t.Errorf("puts = %d, want 1", store.puts)
	}
	got, _ := store.GetProfile(context.Background(), "u1")
	if got.DisplayName != "ada" {
		t.Errorf("DisplayName overwritten to %q", got.DisplayName)
	}
}

func TestConsumeRequest_Quota(t *testing.T) {
	now := epoch
	store := newMemStore()
	svc := newTestService(store, &now)
	ctx := context.Background()
	if _, err := svc.Ensure(ctx, identity.Identity{UID: "u1", Name: "Ada"}); err != nil {
		t.Fatalf("Ensure() error: %v", err)
	}

	for i := 1; i <= 10; i++ {
		p, err := svc.ConsumeRequest(ctx, "u1")
		if err != nil {
			t.Fatalf("ConsumeRequest() #%d error: %v", i, err)
		}
		if p.RequestsUsed != i {
			t.Errorf("RequestsUsed = %d, want %d", p.RequestsUsed, i)
		}
	}
	p, err := svc.ConsumeRequest(ctx, "u1")
	if !errors.Is(err, ErrQuotaExceeded) {
		t.Fatalf("ConsumeRequest() error = %v, want ErrQuotaExceeded", err)
	}
	if p.Remaining() != 0 {
		t.Errorf("Remaining() = %d, want 0", p.Remaining())
	}

	// Once the reset date passes the window rolls over.
	now = epoch.AddDate(0, 1, 1)
	p, err = svc.ConsumeRequest(ctx, "u1")
	if err != nil {
		t.Fatalf("ConsumeRequest() after reset error: %v", err)
	}
	if p.RequestsUsed != 1 {
		t.Errorf("RequestsUsed after reset = %d, want 1", p.RequestsUsed)
	}
	if !p.ResetDate.After(now) {
		t.Errorf("ResetDate = %v, want after %v", p.ResetDate, now)
	}
}

func TestConsumeRequest_UnknownUser(t *testing.T) {
	now := epoch
	svc := newTestService(newMemStore(), &now)
	if _, err := svc.ConsumeRequest(context.Background(), "ghost"); !errors.Is(err, ErrNotFound) {
		t.Errorf("ConsumeRequest() error = %v, want ErrNotFound", err)
	}
}

func TestStartTrial(t *testing.T) {
	now := epoch
	svc := newTestService(newMemStore(), &now)
	ctx := context.Background()
	if _, err := svc.Ensure(ctx, identity.Identity{UID: "u1", Name: "Ada"}); err != nil {
		t.Fatalf("Ensure() error: %v", err)
	}

	p, err := svc.StartTrial(ctx, "u1")
	if err != nil {
		t.Fatalf("StartTrial() error: %v", err)
	}
	if p.PlanType != PlanPro || p.RequestsLimit != 100 || !p.HasUsedTrial {
		t.Errorf("StartTrial() = %+v", p)
	}
	if p.TrialEndDate == nil || !p.TrialEndDate.Equal(epoch.Add(TrialLength)) {
		t.Errorf("TrialEndDate = %v", p.TrialEndDate)
	}

	if _, err := svc.StartTrial(ctx, "u1"); !errors.Is(err, ErrTrialUsed) {
		t.Errorf("second StartTrial() error = %v, want ErrTrialUsed", err)
	}

	// After the trial ends the profile drops back to free.
	now = epoch.Add(TrialLength + time.Hour)
	p, err = svc.Ensure(ctx, identity.Identity{UID: "u1"})
	if err != nil {
		t.Fatalf("Ensure() error: %v", err)
	}
	if p.PlanType != PlanFree || p.RequestsLimit != 10 || p.TrialEndDate != nil {
		t.Errorf("after trial = plan %q limit %d end %v", p.PlanType, p.RequestsLimit, p.TrialEndDate)
	}
	if !p.HasUsedTrial {
		t.Error("HasUsedTrial cleared after trial end")
	}
}

func TestUpdate(t *testing.T) {
	now := epoch
	svc := newTestService(newMemStore(), &now)
	ctx := context.Background()
	if _, err := svc.Ensure(ctx, identity.Identity{UID: "u1", Name: "Ada"}); err != nil {
		t.Fatalf("Ensure() error: %v", err)
	}

	p, err := svc.UpdateDisplayName(ctx, "u1", "  Ada Lovelace ")
	if err != nil {
		t.Fatalf("UpdateDisplayName() error: %v", err)
	}
	if p.DisplayName != "Ada Lovelace" {
		t.Errorf("DisplayName = %q", p.DisplayName)
	}

	tests := []struct {
		name  string
		patch Patch
	}{
		{"empty name", Patch{DisplayName: ptr(" ")}},
		{"unknown plan", Patch{SelectedPlan: ptr("enterprise")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.Update(ctx, "u1", tt.patch); !errors.Is(err, ErrInvalidPatch) {
				t.Errorf("Update() error = %v, want ErrInvalidPatch", err)
			}
		})
	}

	p, err = svc.Update(ctx, "u1", Patch{SelectedPlan: ptr(PlanPro)})
	if err != nil {
		t.Fatalf("Update() error: %v", err)
	}
	if p.SelectedPlan != PlanPro || p.PlanType != PlanFree {
		t.Errorf("selected = %q plan = %q", p.SelectedPlan, p.PlanType)
	}
}

func TestEnsure_StoreFailure(t *testing.T) {
	now := epoch
	store := newMemStore()
	store.putErr = errors.New("throttled")
	svc := newTestService(store, &now)
	if _, err := svc.Ensure(context.Background(), identity.Identity{UID: "u1"}); !errors.Is(err, store.putErr) {
		t.Errorf("Ensure() error = %v, want wrapped put error", err)
	}
}

func TestLimit(t *testing.T) {
	if Limit(PlanPro) != 100 || Limit(PlanFree) != 10 || Limit("bogus") != 10 {
		t.Errorf("Limit() = %d/%d/%d", Limit(PlanPro), Limit(PlanFree), Limit("bogus"))
	}
}

func ptr(s string) *string { return &s }

func TestRefundRequest(t *testing.T) {
	now := epoch
	store := newMemStore()
	svc := newTestService(store, &now)
	ctx := context.Background()
	if _, err := svc.Ensure(ctx, identity.Identity{UID: "u1", Name: "Ada"}); err != nil {
		t.Fatalf("Ensure() error: %v", err)
	}

	if _, err := svc.ConsumeRequest(ctx, "u1"); err != nil {
		t.Fatalf("ConsumeRequest() error: %v", err)
	}
	p, err := svc.RefundRequest(ctx, "u1")
	if err != nil {
		t.Fatalf("RefundRequest() error: %v", err)
	}
	if p.RequestsUsed != 0 {
		t.Errorf("RequestsUsed = %d, want 0", p.RequestsUsed)
	}

	p, err = svc.RefundRequest(ctx, "u1")
	if err != nil {
		t.Fatalf("RefundRequest() at zero error: %v", err)
	}
	if p.RequestsUsed != 0 {
		t.Errorf("RequestsUsed after extra refund = %d, want 0", p.RequestsUsed)
	}
}

func TestConsumeRequest_LastRequestAcrossInstances(t *testing.T) {
	now := epoch
	store := newMemStore()
	ctx := context.Background()
	seed := newTestService(store, &now)
	if _, err := seed.Ensure(ctx, identity.Identity{UID: "u1", Name: "Ada"}); err != nil {
		t.Fatalf("Ensure() error: %v", err)
	}
	p, _ := store.GetProfile(ctx, "u1")
	p.RequestsUsed = p.RequestsLimit - 1
	store.PutProfile(ctx, p)

	// Separate services share nothing but the store, like two Lambda instances.
	const callers = 8
	var wg sync.WaitGroup
	errs := make(chan error, callers)
	for range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := newTestService(store, &now).ConsumeRequest(ctx, "u1")
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var ok, exceeded int
	for err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, ErrQuotaExceeded):
			exceeded++
		default:
			t.Errorf("ConsumeRequest() unexpected error: %v", err)
		}
	}
	if ok != 1 || exceeded != callers-1 {
		t.Errorf("ok = %d, exceeded = %d, want 1 and %d", ok, exceeded, callers-1)
	}
	got, _ := store.GetProfile(ctx, "u1")
	if got.RequestsUsed != got.RequestsLimit {
		t.Errorf("RequestsUsed = %d, want %d", got.RequestsUsed, got.RequestsLimit)
	}
}

// racingStore lets another writer charge a request right before the first
// swap lands.
type racingStore struct {
	*memStore
	raced bool
}

func (r *racingStore) SwapProfile(ctx context.Context, p *UserProfile, prevUsed int) error {
	if !r.raced {
		r.raced = true
		cur, _ := r.memStore.GetProfile(ctx, p.UID)
		cur.RequestsUsed++
		r.memStore.PutProfile(ctx, cur)
	}
	return r.memStore.SwapProfile(ctx, p, prevUsed)
}

func TestConsumeRequest_RetriesAfterConflict(t *testing.T) {
	now := epoch
	base := newMemStore()
	ctx := context.Background()
	if _, err := newTestService(base, &now).Ensure(ctx, identity.Identity{UID: "u1", Name: "Ada"}); err != nil {
		t.Fatalf("Ensure() error: %v", err)
	}

	svc := newTestService(&racingStore{memStore: base}, &now)
	p, err := svc.ConsumeRequest(ctx, "u1")
	if err != nil {
		t.Fatalf("ConsumeRequest() error: %v", err)
	}
	if p.RequestsUsed != 2 {
		t.Errorf("RequestsUsed = %d, want 2 (the racing charge plus ours)", p.RequestsUsed)
	}
}
