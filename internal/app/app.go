// Package app assembles the API handler from configuration. The local web
// server and the Lambda share it so both run the same wiring.
package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/fpang/caption-wizard/internal/api"
	"github.com/fpang/caption-wizard/internal/auth"
	"github.com/fpang/caption-wizard/internal/caption"
	"github.com/fpang/caption-wizard/internal/config"
	"github.com/fpang/caption-wizard/internal/identity"
	"github.com/fpang/caption-wizard/internal/lambdaboot"
	"github.com/fpang/caption-wizard/internal/logging"
	"github.com/fpang/caption-wizard/internal/profile"
	"github.com/fpang/caption-wizard/internal/store"
	"github.com/fpang/caption-wizard/internal/wizard"
)

// App is an assembled handler plus the pieces entry points need to manage.
type App struct {
	Handler   *api.Handler
	Registry  *wizard.Registry
	Generator caption.Generator
	Provider  string
	Model     string
}

// NewGenerator returns the caption generator selected by cfg.
func NewGenerator(ctx context.Context, cfg config.ProviderConfig) (caption.Generator, string, error) {
	switch cfg.Name {
	case "mock":
		return &caption.Mock{}, "mock", nil
	case "openai":
		key, err := auth.GetAPIKey("openai")
		if err != nil {
			return nil, "", err
		}
		gen, err := caption.NewOpenAI(caption.OpenAIConfig{
			APIKey:      key,
			Model:       cfg.Model,
			BaseURL:     cfg.BaseURL,
			Temperature: cfg.Temperature,
			Timeout:     cfg.Timeout,
		})
		if err != nil {
			return nil, "", err
		}
		return gen, gen.Model(), nil
	case "gemini":
		key, err := auth.GetAPIKey("gemini")
		if err != nil {
			return nil, "", err
		}
		gen, err := caption.NewGeminiFromKey(ctx, key, cfg.Model)
		if err != nil {
			return nil, "", err
		}
		return gen, gen.Model(), nil
	}
	return nil, "", fmt.Errorf("unknown caption provider %q: want openai, gemini or mock", cfg.Name)
}

// NewVerifier returns the token verifier for cfg, or nil when identity is
// not configured.
func NewVerifier(cfg config.IdentityConfig) api.Verifier {
	switch {
	case cfg.DevSecret != "":
		log.Warn().Msg("Verifying HS256 development tokens; do not use in production")
		return identity.NewVerifier(cfg.ProjectID, identity.HMACSource{Secret: []byte(cfg.DevSecret)})
	case cfg.ProjectID != "":
		return identity.NewVerifier(cfg.ProjectID, identity.NewGoogleCertSource(&http.Client{Timeout: 10 * time.Second}, ""))
	}
	return nil
}

// Build assembles the handler. aws is nil when running without AWS; the
// in-memory store is then used and edited images are returned inline.
func Build(ctx context.Context, cfg config.Config, aws *lambdaboot.AWSClients, startup *logging.StartupLogger) (*App, error) {
	if aws != nil && cfg.Storage.SSMPrefix != "" && cfg.Provider.Name != "mock" {
		if param, err := lambdaboot.LoadProviderKey(ctx, aws.SSM, cfg.Storage.SSMPrefix, cfg.Provider.Name); err != nil {
			log.Warn().Err(err).Str("param", param).Msg("Provider key not loaded from SSM")
		} else if param != "" {
			startup.SSMParam("providerKey", param)
		}
	}

	gen, model, err := NewGenerator(ctx, cfg.Provider)
	if err != nil {
		return nil, err
	}
	startup.Provider(cfg.Provider.Name, model)

	var backend store.Backend
	if aws != nil && cfg.Storage.TableName != "" {
		backend = lambdaboot.InitDynamo(aws.Config, cfg.Storage.TableName)
		startup.Table("state", cfg.Storage.TableName)
	} else {
		backend = store.NewMemoryStore()
		startup.Config("state", "memory")
	}

	opts := api.Options{
		Registry:        wizard.NewRegistry(backend),
		Captions:        caption.NewService(gen, cfg.Provider.Name),
		Profiles:        profile.NewService(backend),
		Verifier:        NewVerifier(cfg.Identity),
		AllowedOrigins:  cfg.API.AllowedOrigins,
		RequireIdentity: cfg.Identity.Required,
		MaxUploadBytes:  cfg.API.MaxUploadBytes,
		MaxDimension:    cfg.API.OutputMaxDimension,
	}
	startup.Feature("identity", opts.Verifier != nil)

	if aws != nil {
		if exp := lambdaboot.InitExporter(aws.Config, cfg.Storage.MediaBucket); exp != nil {
			opts.Uploader = exp
			startup.Bucket("media", exp.Bucket())
		}
	}
	startup.Feature("s3Export", opts.Uploader != nil)

	return &App{
		Handler:   api.New(opts),
		Registry:  opts.Registry,
		Generator: gen,
		Provider:  cfg.Provider.Name,
		Model:     model,
	}, nil
}
