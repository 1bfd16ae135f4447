package auth

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/fpang/caption-wizard/internal/caption"
)

func TestGetAPIKeyFromEnv(t *testing.T) {
	tests := []struct {
		provider string
		envVar   string
	}{
		{"openai", "OPENAI_API_KEY"},
		{"gemini", "GEMINI_API_KEY"},
	}
	for _, tt := range tests {
		t.Run(tt.provider, func(t *testing.T) {
			t.Setenv(tt.envVar, "test-api-key-12345")
			key, err := GetAPIKey(tt.provider)
			if err != nil {
				t.Fatalf("GetAPIKey() error: %v", err)
			}
			if key != "test-api-key-12345" {
				t.Errorf("GetAPIKey() = %q, want test-api-key-12345", key)
			}
		})
	}
}

func TestGetAPIKeyNoSource(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("HOME", t.TempDir())

	_, err := GetAPIKey("openai")
	var valErr *ValidationError
	if !errors.As(err, &valErr) || valErr.Type != ErrTypeNoKey {
		t.Errorf("GetAPIKey() error = %v, want ErrTypeNoKey", err)
	}
}

func TestGetCredentialPath(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	path, err := getCredentialPath("gemini")
	if err != nil {
		t.Fatalf("getCredentialPath() error: %v", err)
	}
	if want := filepath.Join(home, ".caption-wizard", "gemini.gpg"); path != want {
		t.Errorf("getCredentialPath() = %q, want %q", path, want)
	}
}

func TestGetFromGPGFileNotFound(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	if _, err := getFromGPG("openai"); err == nil {
		t.Error("getFromGPG() error = nil, want missing file error")
	}
}

func TestEnvVar(t *testing.T) {
	if got := EnvVar("mistral"); got != "MISTRAL_API_KEY" {
		t.Errorf("EnvVar(mistral) = %q", got)
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ValidationErrorType
	}{
		{"invalid key message", errors.New("Incorrect API key provided"), ErrTypeInvalidKey},
		{"quota message", errors.New("You exceeded your current quota"), ErrTypeQuotaExceeded},
		{"dial failure", errors.New("dial tcp: lookup api.openai.com: no such host"), ErrTypeNetworkError},
		{"deadline", fmt.Errorf("gemini: %w", context.DeadlineExceeded), ErrTypeNetworkError},
		{"other", errors.New("something odd"), ErrTypeUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.err)
			if got.Type != tt.want {
				t.Errorf("Classify() type = %v, want %v", got.Type, tt.want)
			}
			if !errors.Is(got, tt.err) {
				t.Error("Classify() does not wrap the original error")
			}
		})
	}
	if Classify(nil) != nil {
		t.Error("Classify(nil) != nil")
	}
}

func TestValidateKey(t *testing.T) {
	if err := ValidateKey(context.Background(), &caption.Mock{Reply: "ok"}, "mock"); err != nil {
		t.Errorf("ValidateKey() error: %v", err)
	}

	err := ValidateKey(context.Background(), &caption.Mock{Err: errors.New("401 invalid api key")}, "mock")
	var valErr *ValidationError
	if !errors.As(err, &valErr) || valErr.Type != ErrTypeInvalidKey {
		t.Errorf("ValidateKey() error = %v, want invalid key", err)
	}

	err = ValidateKey(context.Background(), &caption.Mock{Reply: "  "}, "mock")
	if !errors.As(err, &valErr) || valErr.Type != ErrTypeUnknown {
		t.Errorf("ValidateKey() empty reply error = %v, want unknown", err)
	}
}
