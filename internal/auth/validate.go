package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/rs/zerolog/log"
	"google.golang.org/genai"

	"github.com/fpang/caption-wizard/internal/caption"
	"github.com/fpang/caption-wizard/internal/metrics"
)

// ValidationError represents a specific type of API key validation failure.
type ValidationError struct {
	Type    ValidationErrorType
	Message string
	Err     error
}

// ValidationErrorType categorizes validation failures.
type ValidationErrorType int

const (
	// ErrTypeNoKey indicates no API key was found.
	ErrTypeNoKey ValidationErrorType = iota
	// ErrTypeInvalidKey indicates the API key is invalid or revoked.
	ErrTypeInvalidKey
	// ErrTypeNetworkError indicates a network connectivity issue.
	ErrTypeNetworkError
	// ErrTypeQuotaExceeded indicates the API quota has been exceeded.
	ErrTypeQuotaExceeded
	// ErrTypeUnknown indicates an unknown error occurred.
	ErrTypeUnknown
)

func (t ValidationErrorType) String() string {
	switch t {
	case ErrTypeNoKey:
		return "no_key"
	case ErrTypeInvalidKey:
		return "invalid"
	case ErrTypeNetworkError:
		return "network_error"
	case ErrTypeQuotaExceeded:
		return "quota"
	}
	return "unknown"
}

func (e *ValidationError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// ValidateKey checks that gen accepts its credentials by sending a minimal
// prompt. It returns nil if the key works, or a ValidationError describing
// the failure.
func ValidateKey(ctx context.Context, gen caption.Generator, provider string) error {
	log.Debug().Str("provider", provider).Msg("Validating API key")

	start := time.Now()
	reply, err := gen.Complete(ctx, caption.Prompt{User: "Reply with the single word ok."})
	elapsed := time.Since(start)

	result := "success"
	var valErr *ValidationError
	switch {
	case err != nil:
		valErr = Classify(err)
		result = valErr.Type.String()
	case strings.TrimSpace(reply) == "":
		log.Warn().Str("provider", provider).Msg("API key validation returned empty response")
		valErr = &ValidationError{Type: ErrTypeUnknown, Message: "API returned empty response"}
		result = "empty_response"
	}

	metrics.New(metrics.Namespace).
		Dimension("Provider", provider).
		Dimension("Result", result).
		Metric("ApiKeyValidationMs", float64(elapsed.Milliseconds()), metrics.UnitMilliseconds).
		Count("ApiKeyValidationResult").
		Flush()

	if valErr != nil {
		return valErr
	}
	log.Info().Str("provider", provider).Dur("duration", elapsed).Msg("API key validated successfully")
	return nil
}

// Classify analyzes a provider error and returns a ValidationError with the
// appropriate type.
func Classify(err error) *ValidationError {
	if err == nil {
		return nil
	}

	var oaErr *openai.Error
	if errors.As(err, &oaErr) {
		return classifyStatus(oaErr.StatusCode, "OpenAI", err)
	}
	var apiErr *genai.APIError
	if errors.As(err, &apiErr) {
		return classifyStatus(apiErr.Code, "Gemini", err)
	}

	errLower := strings.ToLower(err.Error())

	switch {
	case strings.Contains(errLower, "api key not valid") ||
		strings.Contains(errLower, "invalid api key") ||
		strings.Contains(errLower, "incorrect api key") ||
		strings.Contains(errLower, "api_key_invalid") ||
		strings.Contains(errLower, "permission denied"):
		log.Error().Err(err).Msg("Invalid API key")
		return &ValidationError{Type: ErrTypeInvalidKey, Message: "API key is invalid or has been revoked", Err: err}

	case strings.Contains(errLower, "quota") ||
		strings.Contains(errLower, "resource exhausted") ||
		strings.Contains(errLower, "rate limit"):
		log.Error().Err(err).Msg("API quota exceeded")
		return &ValidationError{Type: ErrTypeQuotaExceeded, Message: "API quota exceeded or rate limited", Err: err}

	case errors.Is(err, context.DeadlineExceeded) ||
		strings.Contains(errLower, "connection") ||
		strings.Contains(errLower, "network") ||
		strings.Contains(errLower, "timeout") ||
		strings.Contains(errLower, "dial") ||
		strings.Contains(errLower, "no such host") ||
		strings.Contains(errLower, "unreachable"):
		log.Error().Err(err).Msg("Network error during API validation")
		return &ValidationError{Type: ErrTypeNetworkError, Message: "Network error - check your internet connection", Err: err}

	default:
		log.Error().Err(err).Msg("Unknown error during API validation")
		return &ValidationError{Type: ErrTypeUnknown, Message: "Failed to validate API key", Err: err}
	}
}

// classifyStatus categorizes an HTTP status returned by a provider.
func classifyStatus(code int, provider string, err error) *ValidationError {
	switch code {
	case 400:
		log.Error().Int("code", code).Str("provider", provider).Msg("Bad request - possibly invalid API key format")
		return &ValidationError{Type: ErrTypeInvalidKey, Message: "Bad request - API key may be malformed", Err: err}
	case 401, 403:
		log.Error().Int("code", code).Str("provider", provider).Msg("Authentication failed - invalid API key")
		return &ValidationError{Type: ErrTypeInvalidKey, Message: "API key is invalid, expired, or lacks permissions", Err: err}
	case 429:
		log.Error().Int("code", code).Str("provider", provider).Msg("Rate limit exceeded")
		return &ValidationError{Type: ErrTypeQuotaExceeded, Message: "API rate limit exceeded - try again later", Err: err}
	case 500, 502, 503, 504:
		log.Error().Int("code", code).Str("provider", provider).Msg("Server error during validation")
		return &ValidationError{Type: ErrTypeNetworkError, Message: provider + " API server error - try again later", Err: err}
	default:
		log.Error().Int("code", code).Str("provider", provider).Msg("Provider API error")
		return &ValidationError{Type: ErrTypeUnknown, Message: provider + " API error", Err: err}
	}
}
