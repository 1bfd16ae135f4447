package config

import (
	"reflect"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	for _, k := range []string{"CAPTION_API_ADDR", "CAPTION_PROVIDER", "CAPTION_ALLOWED_ORIGINS", "CAPTION_TEMPERATURE", "DYNAMO_TABLE_NAME"} {
		t.Setenv(k, "")
	}
	cfg := Load()
	if cfg.API.Addr != ":8080" {
		t.Errorf("Addr = %q, want :8080", cfg.API.Addr)
	}
	if cfg.Provider.Name != "openai" || cfg.Provider.Temperature != 0.7 || cfg.Provider.Timeout != time.Minute {
		t.Errorf("Provider = %+v", cfg.Provider)
	}
	if cfg.Storage.TableName != "" {
		t.Errorf("TableName = %q, want empty", cfg.Storage.TableName)
	}
	if !reflect.DeepEqual(cfg.API.AllowedOrigins, []string{"http://localhost:5173"}) {
		t.Errorf("AllowedOrigins = %v", cfg.API.AllowedOrigins)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("CAPTION_PROVIDER", "Gemini")
	t.Setenv("CAPTION_ALLOWED_ORIGINS", "https://a.example, ,https://b.example")
	t.Setenv("CAPTION_TIMEOUT", "15s")
	t.Setenv("CAPTION_TEMPERATURE", "not-a-number")
	t.Setenv("CAPTION_AUTH_REQUIRED", "true")

	cfg := Load()
	if cfg.Provider.Name != "gemini" {
		t.Errorf("Provider.Name = %q, want gemini", cfg.Provider.Name)
	}
	if want := []string{"https://a.example", "https://b.example"}; !reflect.DeepEqual(cfg.API.AllowedOrigins, want) {
		t.Errorf("AllowedOrigins = %v, want %v", cfg.API.AllowedOrigins, want)
	}
	if cfg.Provider.Timeout != 15*time.Second {
		t.Errorf("Timeout = %v", cfg.Provider.Timeout)
	}
	if cfg.Provider.Temperature != 0.7 {
		t.Errorf("Temperature = %v, want fallback 0.7", cfg.Provider.Temperature)
	}
	if !cfg.Identity.Required {
		t.Error("Identity.Required = false")
	}
}
