package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/fpang/caption-wizard/internal/config"
	"github.com/fpang/caption-wizard/internal/logging"
)

func TestNewGenerator(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("HOME", t.TempDir())

	tests := []struct {
		name      string
		cfg       config.ProviderConfig
		wantModel string
		wantErr   bool
	}{
		{"mock", config.ProviderConfig{Name: "mock"}, "mock", false},
		{"openai default model", config.ProviderConfig{Name: "openai"}, "gpt-4o-mini", false},
		{"openai custom model", config.ProviderConfig{Name: "openai", Model: "gpt-4.1"}, "gpt-4.1", false},
		{"gemini without key", config.ProviderConfig{Name: "gemini"}, "", true},
		{"unknown", config.ProviderConfig{Name: "llama"}, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen, model, err := NewGenerator(context.Background(), tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewGenerator() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && (gen == nil || model != tt.wantModel) {
				t.Errorf("NewGenerator() model = %q, want %q", model, tt.wantModel)
			}
		})
	}
}

func TestNewVerifier(t *testing.T) {
	if v := NewVerifier(config.IdentityConfig{}); v != nil {
		t.Errorf("NewVerifier(empty) = %v, want nil", v)
	}
	if v := NewVerifier(config.IdentityConfig{ProjectID: "p", DevSecret: "s"}); v == nil {
		t.Error("NewVerifier(dev secret) = nil")
	}
	if v := NewVerifier(config.IdentityConfig{ProjectID: "p"}); v == nil {
		t.Error("NewVerifier(project) = nil")
	}
}

func TestBuild_Local(t *testing.T) {
	cfg := config.Load()
	cfg.Provider.Name = "mock"
	cfg.Identity = config.IdentityConfig{}

	a, err := Build(context.Background(), cfg, nil, logging.NewStartupLogger("test"))
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}
	if a.Provider != "mock" || a.Registry == nil {
		t.Errorf("Build() = %+v", a)
	}

	rec := httptest.NewRecorder()
	a.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/wizard", nil))
	if rec.Code != http.StatusCreated {
		t.Errorf("create = %d, want 201", rec.Code)
	}
	if a.Registry.Len() != 1 {
		t.Errorf("Registry.Len() = %d, want 1", a.Registry.Len())
	}
}
