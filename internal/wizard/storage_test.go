package wizard

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestFileStorage_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	st, err := NewFileStorage(dir)
	if err != nil {
		t.Fatalf("NewFileStorage() error: %v", err)
	}
	ctx := context.Background()

	got, err := st.Get(ctx, DefaultKey)
	if err != nil || got != nil {
		t.Fatalf("Get() on missing key = %q, %v; want nil, nil", got, err)
	}

	if err := st.Put(ctx, DefaultKey, []byte(`{"niche":"food"}`)); err != nil {
		t.Fatalf("Put() error: %v", err)
	}
	got, err = st.Get(ctx, DefaultKey)
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if string(got) != `{"niche":"food"}` {
		t.Errorf("Get() = %q", got)
	}
	if _, err := os.Stat(filepath.Join(dir, DefaultKey+".json")); err != nil {
		t.Errorf("entry file missing: %v", err)
	}

	if err := st.Delete(ctx, DefaultKey); err != nil {
		t.Fatalf("Delete() error: %v", err)
	}
	if err := st.Delete(ctx, DefaultKey); err != nil {
		t.Errorf("second Delete() error = %v, want nil", err)
	}
	if got, _ := st.Get(ctx, DefaultKey); got != nil {
		t.Errorf("Get() after Delete = %q, want nil", got)
	}
}

func TestFileStorage_RejectsUnsafeKeys(t *testing.T) {
	st, err := NewFileStorage(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStorage() error: %v", err)
	}
	for _, key := range []string{"", "../escape", "a/b", ".hidden", strings.Repeat("k", 200)} {
		if err := st.Put(context.Background(), key, []byte("{}")); err == nil {
			t.Errorf("Put(%q) error = nil, want rejection", key)
		}
	}
}

func TestFileStorage_WizardPersistsAcrossLoads(t *testing.T) {
	st, err := NewFileStorage(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStorage() error: %v", err)
	}
	ctx := context.Background()

	w := New(st, DefaultKey)
	if err := w.Update(ctx, SetMedia("", MediaTextOnly)); err != nil {
		t.Fatalf("Update() error: %v", err)
	}
	if err := w.Update(ctx, SetNiche("fitness")); err != nil {
		t.Fatalf("Update() error: %v", err)
	}

	again := Load(ctx, st, DefaultKey)
	if again.Step() != 3 {
		t.Errorf("Step() = %d, want 3", again.Step())
	}
	if got := again.Record().MediaURL; got != TextOnlyReference {
		t.Errorf("MediaURL = %q, want %q", got, TextOnlyReference)
	}
}

func TestRegistry_CreateAndWith(t *testing.T) {
	st := newMemStorage()
	reg := NewRegistry(st)
	ctx := context.Background()

	id := reg.Create()
	if reg.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", reg.Len())
	}
	err := reg.With(ctx, id, func(w *Wizard) error {
		return w.Update(ctx, SetMedia("https://cdn.example.com/v.mp4", MediaVideo))
	})
	if err != nil {
		t.Fatalf("With() error: %v", err)
	}

	// After eviction the session is rehydrated from storage.
	reg.Evict(id)
	var step Step
	reg.With(ctx, id, func(w *Wizard) error {
		step = w.Step()
		return nil
	})
	if step != 2 {
		t.Errorf("rehydrated Step() = %d, want 2", step)
	}
}

func TestRegistry_UnknownSessionIsEmpty(t *testing.T) {
	reg := NewRegistry(newMemStorage())
	var empty bool
	reg.With(context.Background(), "does-not-exist", func(w *Wizard) error {
		empty = w.Record().IsEmpty() && w.Step() == FirstStep
		return nil
	})
	if !empty {
		t.Error("unknown session did not start empty at step 1")
	}
}

func TestRegistry_SerialisesSession(t *testing.T) {
	reg := NewRegistry(newMemStorage())
	id := reg.Create()
	ctx := context.Background()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		active  int
		overlap bool
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			reg.With(ctx, id, func(*Wizard) error {
				mu.Lock()
				active++
				if active > 1 {
					overlap = true
				}
				mu.Unlock()
				time.Sleep(time.Millisecond)
				mu.Lock()
				active--
				mu.Unlock()
				return nil
			})
		}()
	}
	wg.Wait()
	if overlap {
		t.Error("two callers held the same session at once")
	}
}

func TestRegistry_Sweep(t *testing.T) {
	reg := NewRegistry(newMemStorage())
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	reg.now = func() time.Time { return now }

	stale := reg.Create()
	now = now.Add(IdleTimeout + time.Minute)
	fresh := reg.Create()

	if n := reg.Sweep(); n != 1 {
		t.Errorf("Sweep() = %d, want 1", n)
	}
	reg.mu.Lock()
	_, staleOK := reg.sessions[stale]
	_, freshOK := reg.sessions[fresh]
	reg.mu.Unlock()
	if staleOK || !freshOK {
		t.Errorf("after Sweep stale cached = %v, fresh cached = %v", staleOK, freshOK)
	}
}

func TestRegistry_SharedStorageSeesOtherWrites(t *testing.T) {
	st := newMemStorage()
	a, b := NewRegistry(st), NewRegistry(st)
	ctx := context.Background()
	id := a.Create()

	update := func(reg *Registry, p Patch) {
		t.Helper()
		if err := reg.With(ctx, id, func(w *Wizard) error { return w.Update(ctx, p) }); err != nil {
			t.Fatalf("With() error: %v", err)
		}
	}
	update(a, SetMedia("https://x/y.jpg", MediaImage))
	update(b, SetNiche("coffee"))
	update(a, SetPlatform("instagram"))

	stored := Load(ctx, st, id).Record()
	if stored.MediaURL != "https://x/y.jpg" || stored.Niche != "coffee" || stored.Platform != "instagram" {
		t.Errorf("stored record = %+v, want media, niche and platform", stored)
	}
}

func TestRegistry_StepIsShared(t *testing.T) {
	st := newMemStorage()
	a, b := NewRegistry(st), NewRegistry(st)
	ctx := context.Background()
	id := a.Create()

	a.With(ctx, id, func(w *Wizard) error {
		if err := w.Update(ctx, SetMedia("https://x/y.jpg", MediaImage)); err != nil {
			return err
		}
		w.Update(ctx, SetNiche("coffee"))
		w.Advance()
		return nil
	})
	// Going back on one instance is visible on the other.
	b.With(ctx, id, func(w *Wizard) error {
		w.Retreat()
		return nil
	})

	var step Step
	a.With(ctx, id, func(w *Wizard) error {
		step = w.Step()
		return nil
	})
	if step != 1 {
		t.Errorf("Step() = %d, want 1", step)
	}
}

func TestRegistry_SweepsOnAccess(t *testing.T) {
	reg := NewRegistry(newMemStorage())
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	reg.now = func() time.Time { return now }
	reg.lastSweep = now
	ctx := context.Background()

	stale := reg.Create()
	now = now.Add(IdleTimeout + time.Minute)
	reg.With(ctx, "other", func(*Wizard) error { return nil })

	reg.mu.Lock()
	_, staleOK := reg.sessions[stale]
	reg.mu.Unlock()
	if staleOK {
		t.Error("idle session still cached after access past the sweep interval")
	}
	if reg.Len() != 1 {
		t.Errorf("Len() = %d, want 1", reg.Len())
	}
}
