package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/fpang/caption-wizard/internal/app"
	"github.com/fpang/caption-wizard/internal/auth"
	"github.com/fpang/caption-wizard/internal/cli"
	"github.com/fpang/caption-wizard/internal/config"
	"github.com/fpang/caption-wizard/internal/lambdaboot"
	"github.com/fpang/caption-wizard/internal/logging"
)

// CLI flags
var (
	portFlag        int
	providerFlag    string
	modelFlag       string
	skipValidateKey bool
)

// sweepInterval is how often idle wizard sessions are dropped from memory.
const sweepInterval = 5 * time.Minute

var rootCmd = &cobra.Command{
	Use:   "caption-web",
	Short: "HTTP API for the caption wizard and image editor",
	Long: `Caption Web starts the caption wizard API: wizard sessions, caption
generation, the image editor and user profiles.

State is kept in memory unless DYNAMO_TABLE_NAME is set. Edited images are
returned inline unless MEDIA_BUCKET_NAME is set.

Examples:
  caption-web
  caption-web --port 9090
  caption-web --provider gemini --model gemini-2.5-flash
  caption-web --provider mock`,
	Run: runMain,
}

func init() {
	rootCmd.Flags().IntVar(&portFlag, "port", 0, "Port to listen on (overrides CAPTION_API_ADDR)")
	rootCmd.Flags().StringVarP(&providerFlag, "provider", "p", "", "Caption provider: openai, gemini or mock (overrides CAPTION_PROVIDER)")
	rootCmd.Flags().StringVarP(&modelFlag, "model", "m", "", "Provider model to use (overrides CAPTION_MODEL)")
	rootCmd.Flags().BoolVar(&skipValidateKey, "skip-key-check", false, "Do not validate the provider API key at startup")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runMain(cmd *cobra.Command, args []string) {
	initStart := time.Now()
	logging.Init()

	cfg := config.Load()
	if portFlag > 0 {
		cfg.API.Addr = fmt.Sprintf(":%d", portFlag)
	}
	if providerFlag != "" {
		cfg.Provider.Name = strings.ToLower(providerFlag)
	}
	if modelFlag != "" {
		cfg.Provider.Model = modelFlag
	}

	ctx := context.Background()

	var clients *lambdaboot.AWSClients
	if cfg.Storage.TableName != "" || cfg.Storage.MediaBucket != "" {
		c := lambdaboot.InitAWS(ctx)
		clients = &c
	}

	startup := logging.NewStartupLogger("caption-web").
		CommitHash(commitHash).
		Config("addr", cfg.API.Addr).
		Config("allowedOrigins", strings.Join(cfg.API.AllowedOrigins, ","))

	a, err := app.Build(ctx, cfg, clients, startup)
	if err != nil {
		cli.HandleValidationError(cfg.Provider.Name, err)
	}

	if a.Provider != "mock" && !skipValidateKey {
		if err := auth.ValidateKey(ctx, a.Generator, a.Provider); err != nil {
			cli.HandleValidationError(a.Provider, err)
		}
	}

	startup.InitDuration(time.Since(initStart)).Log()

	srv := &http.Server{
		Addr:         cfg.API.Addr,
		Handler:      a.Handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	stopSweep := make(chan struct{})
	go func() {
		ticker := time.NewTicker(sweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if n := a.Registry.Sweep(); n > 0 {
					log.Debug().Int("evicted", n).Int("remaining", a.Registry.Len()).Msg("Evicted idle wizard sessions")
				}
			case <-stopSweep:
				return
			}
		}
	}()

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info().Msg("Shutting down...")
		close(stopSweep)
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			log.Error().Err(err).Msg("Shutdown did not complete cleanly")
		}
	}()

	log.Info().Str("addr", cfg.API.Addr).Str("provider", a.Provider).Str("model", a.Model).Msg("Starting web server")
	fmt.Printf("\n  Caption Wizard API: http://localhost%s/api/health\n\n", cfg.API.Addr)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("Server failed")
	}
}
