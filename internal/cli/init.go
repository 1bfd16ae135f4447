package cli

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/fpang/caption-wizard/internal/app"
	"github.com/fpang/caption-wizard/internal/auth"
	"github.com/fpang/caption-wizard/internal/caption"
	"github.com/fpang/caption-wizard/internal/config"
)

// InitGenerator creates the configured caption generator and validates its
// key. It returns the generator and model name, or exits fatally on failure.
// The mock provider is never validated.
func InitGenerator(ctx context.Context, cfg config.ProviderConfig) (caption.Generator, string) {
	gen, model, err := app.NewGenerator(ctx, cfg)
	if err != nil {
		HandleValidationError(cfg.Name, err)
	}

	log.Info().Str("provider", cfg.Name).Str("model", model).Msg("Caption provider initialized")

	if cfg.Name != "mock" {
		if err := auth.ValidateKey(ctx, gen, cfg.Name); err != nil {
			HandleValidationError(cfg.Name, err)
		}
	}
	return gen, model
}
