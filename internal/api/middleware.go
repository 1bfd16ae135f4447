package api

import (
	"errors"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/fpang/caption-wizard/internal/identity"
	"github.com/fpang/caption-wizard/internal/metrics"
)

func withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		if strings.HasPrefix(r.URL.Path, "/api/") {
			log.Info().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Dur("duration", time.Since(start)).
				Msg("API request")
		}
	})
}

// withCORS allows the configured origins. "*" allows any origin.
func withCORS(allowed []string, next http.Handler) http.Handler {
	allowAll := slices.Contains(allowed, "*")
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && (allowAll || slices.Contains(allowed, origin)) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			w.Header().Add("Vary", "Origin")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// statusRecorder wraps http.ResponseWriter to capture the status code.
type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.statusCode = code
	sr.ResponseWriter.WriteHeader(code)
}

func (sr *statusRecorder) Unwrap() http.ResponseWriter {
	return sr.ResponseWriter
}

// withMetrics emits per-request EMF metrics: RequestLatencyMs and
// RequestCount with an Endpoint dimension.
func withMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sr := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(sr, r)

		metrics.New(metrics.Namespace).
			Dimension("Endpoint", endpointName(r)).
			Metric("RequestLatencyMs", float64(time.Since(start).Milliseconds()), metrics.UnitMilliseconds).
			Count("RequestCount").
			Property("method", r.Method).
			Property("statusCode", sr.statusCode).
			Property("path", r.URL.Path).
			Flush()
	})
}

// endpointName returns the matched route pattern, which keeps the metric
// dimension low-cardinality.
func endpointName(r *http.Request) string {
	if r.Pattern == "" {
		return "unmatched"
	}
	if _, path, ok := strings.Cut(r.Pattern, " "); ok {
		return path
	}
	return r.Pattern
}

// withIdentity verifies a bearer token when one is sent and stores the
// identity in the request context. Requests without a token pass through;
// handlers decide whether they need one.
func (h *Handler) withIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.opts.Verifier == nil {
			next.ServeHTTP(w, r)
			return
		}
		token, err := identity.BearerToken(r)
		if errors.Is(err, identity.ErrNoToken) {
			next.ServeHTTP(w, r)
			return
		}
		id, err := h.opts.Verifier.Verify(r.Context(), token)
		if err != nil {
			log.Warn().Err(err).Str("path", r.URL.Path).Msg("Rejected bearer token")
			httpError(w, http.StatusUnauthorized, "invalid or expired token")
			return
		}
		next.ServeHTTP(w, r.WithContext(identity.WithIdentity(r.Context(), id)))
	})
}

// requireIdentity returns the caller's identity, or writes 401 and returns
// false.
func requireIdentity(w http.ResponseWriter, r *http.Request) (identity.Identity, bool) {
	id, ok := identity.FromContext(r.Context())
	if !ok {
		httpError(w, http.StatusUnauthorized, "sign in required")
		return identity.Identity{}, false
	}
	return id, true
}

// allowed writes 401 and returns false when the handler requires identity
// and the request carries none.
func (h *Handler) allowed(w http.ResponseWriter, r *http.Request) bool {
	if !h.opts.RequireIdentity {
		return true
	}
	_, ok := requireIdentity(w, r)
	return ok
}
