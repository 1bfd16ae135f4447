// Package config loads runtime settings from environment variables.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	API      APIConfig
	Provider ProviderConfig
	Storage  StorageConfig
	Identity IdentityConfig
}

type APIConfig struct {
	Addr           string
	AllowedOrigins []string
	MaxUploadBytes int64
	// OutputMaxDimension caps the longer side of decoded editor sources.
	OutputMaxDimension int
}

type ProviderConfig struct {
	// Name is "openai", "gemini" or "mock".
	Name        string
	Model       string
	BaseURL     string
	Temperature float64
	Timeout     time.Duration
}

type StorageConfig struct {
	// TableName selects DynamoDB when set; otherwise state is kept in memory.
	TableName   string
	MediaBucket string
	SSMPrefix   string
}

type IdentityConfig struct {
	ProjectID string
	// DevSecret switches token verification to HS256 for local development.
	DevSecret string
	// Required makes every /api route demand a verified token.
	Required bool
}

func Load() Config {
	return Config{
		API: APIConfig{
			Addr:               env("CAPTION_API_ADDR", ":8080"),
			AllowedOrigins:     envList("CAPTION_ALLOWED_ORIGINS", []string{"http://localhost:5173"}),
			MaxUploadBytes:     int64(envInt("CAPTION_MAX_UPLOAD_BYTES", 20<<20)),
			OutputMaxDimension: envInt("CAPTION_MAX_DIMENSION", 4096),
		},
		Provider: ProviderConfig{
			Name:        strings.ToLower(env("CAPTION_PROVIDER", "openai")),
			Model:       env("CAPTION_MODEL", ""),
			BaseURL:     env("OPENAI_BASE_URL", ""),
			Temperature: envFloat("CAPTION_TEMPERATURE", 0.7),
			Timeout:     envDuration("CAPTION_TIMEOUT", 60*time.Second),
		},
		Storage: StorageConfig{
			TableName:   env("DYNAMO_TABLE_NAME", ""),
			MediaBucket: env("MEDIA_BUCKET_NAME", ""),
			SSMPrefix:   env("SSM_PARAM_PREFIX", "/caption-wizard/prod"),
		},
		Identity: IdentityConfig{
			ProjectID: env("FIREBASE_PROJECT_ID", ""),
			DevSecret: env("CAPTION_DEV_JWT_SECRET", ""),
			Required:  envBool("CAPTION_AUTH_REQUIRED", false),
		},
	}
}

func env(key, fallback string) string {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return fallback
	}
	return value
}

func envInt(key string, fallback int) int {
	value := env(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func envFloat(key string, fallback float64) float64 {
	value := env(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func envBool(key string, fallback bool) bool {
	value := env(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func envDuration(key string, fallback time.Duration) time.Duration {
	value := env(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func envList(key string, fallback []string) []string {
	value := env(key, "")
	if value == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
