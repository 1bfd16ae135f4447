package api

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/fpang/caption-wizard/internal/caption"
	"github.com/fpang/caption-wizard/internal/identity"
	"github.com/fpang/caption-wizard/internal/profile"
	"github.com/fpang/caption-wizard/internal/wizard"
)

// wizardState is the JSON view of a wizard session.
type wizardState struct {
	SessionID  string        `json:"sessionId"`
	Step       int           `json:"step"`
	StepLabel  string        `json:"stepLabel"`
	Record     wizard.Record `json:"record"`
	Completed  []bool        `json:"completed"`
	CanAdvance bool          `json:"canAdvance"`
	CanRetreat bool          `json:"canRetreat"`
}

func stateOf(id string, w *wizard.Wizard) wizardState {
	done := w.Completion()
	step := w.Step()
	return wizardState{
		SessionID:  id,
		Step:       int(step),
		StepLabel:  step.Label(),
		Record:     w.Record(),
		Completed:  done[:],
		CanAdvance: step < wizard.LastStep && w.IsStepComplete(step),
		CanRetreat: step > wizard.FirstStep,
	}
}

// sessionID validates the {id} path value and writes 400 when it is not a UUID.
func sessionID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := r.PathValue("id")
	if _, err := uuid.Parse(id); err != nil {
		httpError(w, http.StatusBadRequest, "invalid session id: must be a UUID")
		return "", false
	}
	return id, true
}

func (h *Handler) handleWizardCreate(w http.ResponseWriter, r *http.Request) {
	if !h.allowed(w, r) {
		return
	}
	id := h.opts.Registry.Create()
	var state wizardState
	h.opts.Registry.With(r.Context(), id, func(wz *wizard.Wizard) error {
		state = stateOf(id, wz)
		return nil
	})
	respondJSON(w, http.StatusCreated, state)
}

func (h *Handler) handleWizardGet(w http.ResponseWriter, r *http.Request) {
	h.withWizard(w, r, func(wz *wizard.Wizard) (int, error) {
		return http.StatusOK, nil
	})
}

func (h *Handler) handleWizardPatch(w http.ResponseWriter, r *http.Request) {
	if !h.allowed(w, r) {
		return
	}
	if _, ok := sessionID(w, r); !ok {
		return
	}
	var patch wizard.Patch
	if err := decodeJSON(w, r, &patch); err != nil {
		httpError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := patch.Validate(); err != nil {
		httpError(w, http.StatusBadRequest, err.Error())
		return
	}
	if patch.MediaType != nil && *patch.MediaType == wizard.MediaTextOnly && (patch.MediaURL == nil || *patch.MediaURL == "") {
		patch = mergeMedia(patch)
	}
	h.runWizard(w, r, func(wz *wizard.Wizard) (int, error) {
		if err := wz.Update(r.Context(), patch); err != nil {
			// The in-memory merge stands; the client sees the merged state.
			log.Warn().Err(err).Str("sessionId", wz.Key()).Msg("Wizard update not persisted")
		}
		return http.StatusOK, nil
	})
}

// mergeMedia fills in the text-only placeholder reference.
func mergeMedia(p wizard.Patch) wizard.Patch {
	media := wizard.SetMedia("", wizard.MediaTextOnly)
	p.MediaURL = media.MediaURL
	return p
}

func (h *Handler) handleWizardNext(w http.ResponseWriter, r *http.Request) {
	h.withWizard(w, r, func(wz *wizard.Wizard) (int, error) {
		wz.Advance()
		return http.StatusOK, nil
	})
}

func (h *Handler) handleWizardBack(w http.ResponseWriter, r *http.Request) {
	h.withWizard(w, r, func(wz *wizard.Wizard) (int, error) {
		wz.Retreat()
		return http.StatusOK, nil
	})
}

func (h *Handler) handleWizardReset(w http.ResponseWriter, r *http.Request) {
	h.withWizard(w, r, func(wz *wizard.Wizard) (int, error) {
		if err := wz.Reset(r.Context()); err != nil {
			log.Warn().Err(err).Str("sessionId", wz.Key()).Msg("Persisted wizard not removed")
		}
		return http.StatusOK, nil
	})
}

type generateRequest struct {
	PostIdea        string `json:"postIdea"`
	MetadataContext string `json:"metadataContext"`
}

type generateResponse struct {
	wizardState
	Captions []caption.Caption `json:"captions"`
}

func (h *Handler) handleWizardGenerate(w http.ResponseWriter, r *http.Request) {
	if !h.allowed(w, r) {
		return
	}
	id, ok := sessionID(w, r)
	if !ok {
		return
	}
	var body generateRequest
	if err := decodeJSON(w, r, &body); err != nil {
		httpError(w, http.StatusBadRequest, err.Error())
		return
	}

	caller, signedIn := identity.FromContext(r.Context())
	charge := signedIn && h.opts.Profiles != nil
	if charge {
		if _, err := h.opts.Profiles.Ensure(r.Context(), caller); err != nil {
			httpError(w, http.StatusInternalServerError, "failed to load profile", err.Error())
			return
		}
		// Reserve before generating so concurrent requests cannot overdraw.
		if _, err := h.opts.Profiles.ConsumeRequest(r.Context(), caller.UID); err != nil {
			if errors.Is(err, profile.ErrQuotaExceeded) {
				httpError(w, http.StatusTooManyRequests, profile.ErrQuotaExceeded.Error())
				return
			}
			httpError(w, http.StatusInternalServerError, "failed to record caption request", err.Error())
			return
		}
	}

	var resp generateResponse
	var genErr error
	h.opts.Registry.With(r.Context(), id, func(wz *wizard.Wizard) error {
		rec := wz.Record()
		req := caption.Request{
			Tone:            rec.Tone,
			Platform:        rec.Platform,
			Niche:           rec.Niche,
			Goal:            rec.Goal,
			MediaType:       string(rec.MediaType),
			PostIdea:        body.PostIdea,
			MetadataContext: body.MetadataContext,
		}
		resp.Captions, genErr = h.opts.Captions.Generate(r.Context(), req)
		if genErr == nil {
			if err := wz.Update(r.Context(), wizard.SetCaptions(resp.Captions)); err != nil {
				log.Warn().Err(err).Str("sessionId", id).Msg("Generated captions not persisted")
			}
		}
		resp.wizardState = stateOf(id, wz)
		return nil
	})

	if genErr != nil {
		log.Error().Err(genErr).Str("sessionId", id).Msg("Caption generation failed")
		if charge {
			// Only successful generations count against the quota.
			if _, err := h.opts.Profiles.RefundRequest(r.Context(), caller.UID); err != nil {
				log.Error().Err(err).Str("uid", caller.UID).Msg("Failed to refund caption request")
			}
		}
		respondJSON(w, http.StatusBadGateway, map[string]any{
			"error":    "Failed to generate captions. Please try again.",
			"captions": []caption.Caption{},
		})
		return
	}
	respondJSON(w, http.StatusOK, resp)
}

type finishResponse struct {
	Submitted wizard.Record `json:"submitted"`
	State     wizardState   `json:"state"`
}

func (h *Handler) handleWizardFinish(w http.ResponseWriter, r *http.Request) {
	if !h.allowed(w, r) {
		return
	}
	id, ok := sessionID(w, r)
	if !ok {
		return
	}
	var resp finishResponse
	complete := false
	h.opts.Registry.With(r.Context(), id, func(wz *wizard.Wizard) error {
		if !wz.IsStepComplete(wizard.LastStep) {
			resp.State = stateOf(id, wz)
			return nil
		}
		complete = true
		resp.Submitted = wz.Record()
		if err := wz.Reset(r.Context()); err != nil {
			log.Warn().Err(err).Str("sessionId", id).Msg("Persisted wizard not removed after submit")
		}
		resp.State = stateOf(id, wz)
		return nil
	})
	if !complete {
		httpError(w, http.StatusConflict, "generate captions before finishing")
		return
	}
	log.Info().Str("sessionId", id).Int("captions", len(resp.Submitted.GeneratedCaptions)).Msg("Wizard submitted")
	respondJSON(w, http.StatusOK, resp)
}

// withWizard checks the caller and session id, then runs fn on the session's
// wizard and responds with its state.
func (h *Handler) withWizard(w http.ResponseWriter, r *http.Request, fn func(*wizard.Wizard) (int, error)) {
	if !h.allowed(w, r) {
		return
	}
	if _, ok := sessionID(w, r); !ok {
		return
	}
	h.runWizard(w, r, fn)
}

// runWizard is withWizard for handlers that already checked the caller and
// session id.
func (h *Handler) runWizard(w http.ResponseWriter, r *http.Request, fn func(*wizard.Wizard) (int, error)) {
	id := r.PathValue("id")
	status := http.StatusOK
	var state wizardState
	err := h.opts.Registry.With(r.Context(), id, func(wz *wizard.Wizard) error {
		var err error
		status, err = fn(wz)
		state = stateOf(id, wz)
		return err
	})
	if err != nil {
		httpError(w, status, err.Error())
		return
	}
	respondJSON(w, status, state)
}
