// Package api is the HTTP surface of the caption wizard. The same Handler is
// served by the local web server and, through the API Gateway adapter, by
// the Lambda.
//
// Endpoints:
//
//	GET    /api/health                 health check
//	GET    /api/catalog                steps, platforms, goals, tones, filters
//	POST   /api/wizard                 start a wizard session
//	GET    /api/wizard/{id}            current step, record and completion
//	PATCH  /api/wizard/{id}            merge selections into the record
//	POST   /api/wizard/{id}/next       advance when the current step is complete
//	POST   /api/wizard/{id}/back       go back one step
//	POST   /api/wizard/{id}/reset      clear the session
//	POST   /api/wizard/{id}/generate   generate captions for the selections
//	POST   /api/wizard/{id}/finish     submit and clear the session
//	POST   /api/editor/render          rotate and filter an uploaded image
//	GET    /api/profile                profile of the signed-in user
//	PATCH  /api/profile                update display name or plan choice
//	POST   /api/profile/trial          start the one-time pro trial
package api

import (
	"context"
	"net/http"

	"github.com/klauspost/compress/gzhttp"

	"github.com/fpang/caption-wizard/internal/caption"
	"github.com/fpang/caption-wizard/internal/identity"
	"github.com/fpang/caption-wizard/internal/profile"
	"github.com/fpang/caption-wizard/internal/wizard"
)

const (
	defaultMaxUploadBytes = 20 << 20
	defaultMaxDimension   = 4096
)

// Uploader stores an exported image and returns its key and a download URL.
type Uploader interface {
	UploadExport(ctx context.Context, sessionID string, data []byte) (key, url string, err error)
}

// Verifier checks bearer ID tokens.
type Verifier interface {
	Verify(ctx context.Context, token string) (identity.Identity, error)
}

// Options wires the handler's collaborators. Registry and Captions are
// required; the rest are optional.
type Options struct {
	Registry *wizard.Registry
	Captions *caption.Service
	// Profiles enables the profile routes and the per-user request quota.
	Profiles *profile.Service
	// Verifier enables bearer-token authentication.
	Verifier Verifier
	// Uploader stores edited images; without it they are returned inline.
	Uploader Uploader

	AllowedOrigins []string
	// RequireIdentity rejects unauthenticated wizard and editor calls.
	RequireIdentity bool
	MaxUploadBytes  int64
	MaxDimension    int
}

// Handler serves the API.
type Handler struct {
	opts    Options
	handler http.Handler
}

// New builds the handler and its middleware chain.
func New(opts Options) *Handler {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = defaultMaxUploadBytes
	}
	if opts.MaxDimension <= 0 {
		opts.MaxDimension = defaultMaxDimension
	}
	h := &Handler{opts: opts}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", h.handleHealth)
	mux.HandleFunc("GET /api/catalog", h.handleCatalog)

	mux.HandleFunc("POST /api/wizard", h.handleWizardCreate)
	mux.HandleFunc("GET /api/wizard/{id}", h.handleWizardGet)
	mux.HandleFunc("PATCH /api/wizard/{id}", h.handleWizardPatch)
	mux.HandleFunc("POST /api/wizard/{id}/next", h.handleWizardNext)
	mux.HandleFunc("POST /api/wizard/{id}/back", h.handleWizardBack)
	mux.HandleFunc("POST /api/wizard/{id}/reset", h.handleWizardReset)
	mux.HandleFunc("POST /api/wizard/{id}/generate", h.handleWizardGenerate)
	mux.HandleFunc("POST /api/wizard/{id}/finish", h.handleWizardFinish)

	mux.HandleFunc("POST /api/editor/render", h.handleEditorRender)

	mux.HandleFunc("GET /api/profile", h.handleProfileGet)
	mux.HandleFunc("PATCH /api/profile", h.handleProfilePatch)
	mux.HandleFunc("POST /api/profile/trial", h.handleProfileTrial)

	var handler http.Handler = mux
	handler = h.withIdentity(handler)
	handler = withMetrics(handler)
	handler = withCORS(opts.AllowedOrigins, handler)
	handler = withLogging(handler)
	h.handler = gzhttp.GzipHandler(handler)
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.handler.ServeHTTP(w, r)
}

// --- Health and catalog ---

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status":   "ok",
		"service":  "caption-wizard",
		"provider": h.opts.Captions.Provider(),
	})
}

type stepInfo struct {
	Step  int    `json:"step"`
	Label string `json:"label"`
}

type filterInfo struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

func (h *Handler) handleCatalog(w http.ResponseWriter, r *http.Request) {
	steps := make([]stepInfo, 0, int(wizard.LastStep))
	for s := wizard.FirstStep; s <= wizard.LastStep; s++ {
		steps = append(steps, stepInfo{Step: int(s), Label: s.Label()})
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"steps":     steps,
		"platforms": wizard.Platforms,
		"goals":     wizard.Goals,
		"tones":     wizard.Tones,
		"filters":   filterCatalog(),
	})
}
