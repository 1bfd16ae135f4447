// Package wizard implements the six-step caption wizard: media, niche,
// platform, goal, tone and generated captions.
//
// The wizard only moves forward when the current step's data is present and
// can always move back. The collected Record is written through to a Storage
// entry on every update. A wizard rehydrated from storage starts at its saved
// step (see SaveStep), or at the furthest step the stored data supports.
package wizard

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/fpang/caption-wizard/internal/caption"
)

// DefaultKey is the storage key used when a single wizard is persisted
// locally (the CLI). The server keys wizards by session id instead.
const DefaultKey = "wizardData"

// Step is a wizard position in [FirstStep, LastStep].
type Step int

const (
	FirstStep Step = 1
	LastStep  Step = 6
)

var stepLabels = map[Step]string{
	1: "Upload Media",
	2: "Select Niche",
	3: "Platform",
	4: "Goal",
	5: "Tone",
	6: "Generated Captions",
}

// Label returns the display label of the step.
func (s Step) Label() string {
	return stepLabels[s]
}

// Valid reports whether s is within range.
func (s Step) Valid() bool {
	return s >= FirstStep && s <= LastStep
}

// Wizard holds the current step and the collected record. It is not safe for
// concurrent use; callers that share a wizard must serialise access (see
// Registry).
type Wizard struct {
	storage Storage
	key     string
	step    Step
	record  Record
}

// New returns an empty wizard at step 1 that persists under key.
func New(storage Storage, key string) *Wizard {
	return &Wizard{storage: storage, key: key, step: FirstStep}
}

// StepKey returns the storage key that holds the current step of the wizard
// stored under key.
func StepKey(key string) string {
	return key + ".step"
}

// Load rehydrates a wizard from storage. A missing, unreadable or malformed
// entry yields an empty wizard; Load never fails.
func Load(ctx context.Context, storage Storage, key string) *Wizard {
	w := New(storage, key)
	w.Reload(ctx)
	return w
}

// Reload replaces the record and step with what storage holds. The step is
// the saved step when there is one, otherwise the furthest step the record
// supports, and never beyond what the record supports. A read error keeps
// the current state; a missing or malformed record yields an empty one.
func (w *Wizard) Reload(ctx context.Context) {
	data, err := w.storage.Get(ctx, w.key)
	if err != nil {
		log.Warn().Err(err).Str("key", w.key).Msg("Failed to read persisted wizard, keeping current state")
		return
	}

	var rec Record
	if len(data) > 0 {
		if err := json.Unmarshal(data, &rec); err != nil {
			log.Warn().Err(err).Str("key", w.key).Int("bytes", len(data)).Msg("Discarding corrupt persisted wizard")
			rec = Record{}
		}
	}

	w.record = rec
	w.step = w.reachable()
	if saved, ok := w.savedStep(ctx); ok {
		w.step = saved
		w.reconcile()
	}
	log.Debug().Str("key", w.key).Int("step", int(w.step)).Msg("Wizard rehydrated")
}

// SaveStep persists the current step under StepKey.
func (w *Wizard) SaveStep(ctx context.Context) error {
	if err := w.storage.Put(ctx, StepKey(w.key), []byte(strconv.Itoa(int(w.step)))); err != nil {
		log.Warn().Err(err).Str("key", w.key).Int("step", int(w.step)).Msg("Failed to persist wizard step")
		return fmt.Errorf("persist wizard step %s: %w", w.key, err)
	}
	return nil
}

func (w *Wizard) savedStep(ctx context.Context) (Step, bool) {
	data, err := w.storage.Get(ctx, StepKey(w.key))
	if err != nil || len(data) == 0 {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || !Step(n).Valid() {
		log.Warn().Str("key", w.key).Str("step", string(data)).Msg("Ignoring invalid persisted step")
		return 0, false
	}
	return Step(n), true
}

// Step returns the current step.
func (w *Wizard) Step() Step {
	return w.step
}

// Record returns a copy of the collected data.
func (w *Wizard) Record() Record {
	r := w.record
	if r.GeneratedCaptions != nil {
		r.GeneratedCaptions = make([]caption.Caption, len(w.record.GeneratedCaptions))
		copy(r.GeneratedCaptions, w.record.GeneratedCaptions)
	}
	return r
}

// Key returns the storage key of the wizard.
func (w *Wizard) Key() string {
	return w.key
}

// IsStepComplete reports whether the record holds the data step requires.
// Steps outside [1,6] are never complete.
func (w *Wizard) IsStepComplete(step Step) bool {
	r := w.record
	switch step {
	case 1:
		return r.MediaURL != "" && r.MediaType != ""
	case 2:
		return r.Niche != ""
	case 3:
		return r.Platform != ""
	case 4:
		return r.Goal != ""
	case 5:
		return r.Tone != ""
	case 6:
		return r.GeneratedCaptions != nil
	default:
		return false
	}
}

// Advance moves to the next step when the current one is complete. It
// returns whether the step changed; an incomplete step is not an error.
func (w *Wizard) Advance() bool {
	if w.step >= LastStep || !w.IsStepComplete(w.step) {
		return false
	}
	w.step++
	w.reconcile()
	log.Debug().Str("key", w.key).Int("step", int(w.step)).Msg("Wizard advanced")
	return true
}

// Retreat moves to the previous step. Going back needs no completed data.
func (w *Wizard) Retreat() bool {
	if w.step <= FirstStep {
		return false
	}
	w.step--
	log.Debug().Str("key", w.key).Int("step", int(w.step)).Msg("Wizard retreated")
	return true
}

// Update merges p into the record and writes the merged record through to
// storage. The merge stands even when the write fails; the write error is
// returned so callers can surface it.
func (w *Wizard) Update(ctx context.Context, p Patch) error {
	w.record = w.record.apply(p)
	w.reconcile()
	return w.persist(ctx)
}

// Reset returns to step 1 with an empty record and removes the persisted
// entry and saved step.
func (w *Wizard) Reset(ctx context.Context) error {
	w.step = FirstStep
	w.record = Record{}
	if err := w.storage.Delete(ctx, StepKey(w.key)); err != nil {
		log.Warn().Err(err).Str("key", w.key).Msg("Failed to remove persisted wizard step")
	}
	if err := w.storage.Delete(ctx, w.key); err != nil {
		log.Warn().Err(err).Str("key", w.key).Msg("Failed to remove persisted wizard")
		return fmt.Errorf("delete wizard %s: %w", w.key, err)
	}
	log.Debug().Str("key", w.key).Msg("Wizard reset")
	return nil
}

// Completion returns the completion flag of every step, indexed by step-1.
func (w *Wizard) Completion() [LastStep]bool {
	var out [LastStep]bool
	for s := FirstStep; s <= LastStep; s++ {
		out[s-1] = w.IsStepComplete(s)
	}
	return out
}

// reachable walks from step 1 and stops at the first incomplete step: the
// wizard may never display a step whose predecessors lack data.
func (w *Wizard) reachable() Step {
	s := FirstStep
	for s < LastStep && w.IsStepComplete(s) {
		s++
	}
	return s
}

func (w *Wizard) reconcile() {
	if limit := w.reachable(); w.step > limit {
		w.step = limit
	}
}

func (w *Wizard) persist(ctx context.Context) error {
	data, err := json.Marshal(w.record)
	if err != nil {
		return fmt.Errorf("marshal wizard record: %w", err)
	}
	if err := w.storage.Put(ctx, w.key, data); err != nil {
		log.Warn().Err(err).Str("key", w.key).Msg("Failed to persist wizard")
		return fmt.Errorf("persist wizard %s: %w", w.key, err)
	}
	return nil
}
