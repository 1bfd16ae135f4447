package cli

import (
	"errors"
	"os"

	"github.com/rs/zerolog/log"

	"github.com/fpang/caption-wizard/internal/auth"
)

// HandleValidationError processes auth.ValidationError and exits with appropriate messaging.
func HandleValidationError(provider string, err error) {
	var validationErr *auth.ValidationError
	if errors.As(err, &validationErr) {
		switch validationErr.Type {
		case auth.ErrTypeNoKey:
			log.Fatal().Str("provider", provider).Msgf("No API key configured. Set %s or store it in ~/.caption-wizard/%s.gpg", auth.EnvVar(provider), provider)
		case auth.ErrTypeInvalidKey:
			log.Fatal().Err(err).Str("provider", provider).Msg("Invalid API key. Please check your API key and try again")
		case auth.ErrTypeNetworkError:
			log.Fatal().Err(err).Msg("Network error. Please check your internet connection")
		case auth.ErrTypeQuotaExceeded:
			log.Fatal().Err(err).Msg("API quota exceeded. Please try again later or check your usage limits")
		default:
			log.Fatal().Err(err).Msg("API key validation failed")
		}
	} else {
		log.Fatal().Err(err).Str("provider", provider).Msg("Failed to initialize caption provider")
	}
	os.Exit(1)
}
