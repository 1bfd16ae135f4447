package api

import (
	"errors"
	"net/http"

	"github.com/fpang/caption-wizard/internal/profile"
)

// profilesEnabled writes 503 when profiles are not configured.
func (h *Handler) profilesEnabled(w http.ResponseWriter) bool {
	if h.opts.Profiles == nil {
		httpError(w, http.StatusServiceUnavailable, "profiles are not enabled")
		return false
	}
	return true
}

func (h *Handler) handleProfileGet(w http.ResponseWriter, r *http.Request) {
	if !h.profilesEnabled(w) {
		return
	}
	id, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	p, err := h.opts.Profiles.Ensure(r.Context(), id)
	if err != nil {
		httpError(w, http.StatusInternalServerError, "failed to load profile", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, p)
}

func (h *Handler) handleProfilePatch(w http.ResponseWriter, r *http.Request) {
	if !h.profilesEnabled(w) {
		return
	}
	id, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	var patch profile.Patch
	if err := decodeJSON(w, r, &patch); err != nil {
		httpError(w, http.StatusBadRequest, err.Error())
		return
	}
	if _, err := h.opts.Profiles.Ensure(r.Context(), id); err != nil {
		httpError(w, http.StatusInternalServerError, "failed to load profile", err.Error())
		return
	}
	p, err := h.opts.Profiles.Update(r.Context(), id.UID, patch)
	if err != nil {
		switch {
		case errors.Is(err, profile.ErrInvalidPatch):
			httpError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, profile.ErrNotFound):
			httpError(w, http.StatusNotFound, err.Error())
		default:
			httpError(w, http.StatusInternalServerError, "failed to update profile", err.Error())
		}
		return
	}
	respondJSON(w, http.StatusOK, p)
}

func (h *Handler) handleProfileTrial(w http.ResponseWriter, r *http.Request) {
	if !h.profilesEnabled(w) {
		return
	}
	id, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	if _, err := h.opts.Profiles.Ensure(r.Context(), id); err != nil {
		httpError(w, http.StatusInternalServerError, "failed to load profile", err.Error())
		return
	}
	p, err := h.opts.Profiles.StartTrial(r.Context(), id.UID)
	if err != nil {
		if errors.Is(err, profile.ErrTrialUsed) {
			httpError(w, http.StatusConflict, err.Error())
			return
		}
		httpError(w, http.StatusInternalServerError, "failed to start trial", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, p)
}
