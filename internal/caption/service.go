package caption

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/fpang/caption-wizard/internal/metrics"
)

// TransportError reports a failed generation: the provider call failed or
// its reply could not be parsed. The caller notifies the user, who may retry.
type TransportError struct {
	Provider string
	Err      error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("caption generation via %s failed: %v", e.Provider, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Service generates captions with a Generator and records metrics.
type Service struct {
	gen      Generator
	provider string
}

// NewService returns a Service. provider names the generator in logs and
// metrics ("openai", "gemini", "mock").
func NewService(gen Generator, provider string) *Service {
	return &Service{gen: gen, provider: provider}
}

// Provider returns the provider name.
func (s *Service) Provider() string { return s.provider }

// Generate produces captions for req. On failure it returns an empty,
// non-nil list together with a *TransportError. There is no automatic retry.
func (s *Service) Generate(ctx context.Context, req Request) ([]Caption, error) {
	req = req.WithDefaults()
	m := metrics.New(metrics.Namespace).
		Dimension("Provider", s.provider).
		Property("platform", req.Platform).
		Property("mediaType", req.MediaType)
	defer m.Flush()

	prompt, err := BuildPrompt(req)
	if err != nil {
		m.Count("CaptionGenerationFailed")
		return []Caption{}, &TransportError{Provider: s.provider, Err: err}
	}

	log.Info().
		Str("provider", s.provider).
		Str("platform", req.Platform).
		Str("tone", req.Tone).
		Str("niche", req.Niche).
		Msg("Generating captions")

	start := time.Now()
	raw, err := s.gen.Complete(ctx, prompt)
	elapsed := time.Since(start)
	m.Duration("CaptionLatency", elapsed)
	if err != nil {
		log.Error().Err(err).Str("provider", s.provider).Dur("duration", elapsed).Msg("Caption generation failed")
		m.Count("CaptionGenerationFailed")
		return []Caption{}, &TransportError{Provider: s.provider, Err: err}
	}

	captions, err := ParseCaptions(raw)
	if err != nil {
		log.Error().Err(err).Int("response_length", len(raw)).Msg("Failed to parse caption reply")
		m.Count("CaptionParseFailed")
		return []Caption{}, &TransportError{Provider: s.provider, Err: err}
	}

	m.Metric("CaptionCount", float64(len(captions)), metrics.UnitCount)
	log.Info().
		Int("count", len(captions)).
		Dur("duration", elapsed).
		Msg("Caption generation complete")
	return captions, nil
}
