// Package auth locates LLM provider API keys and classifies the errors a
// provider returns when a key is rejected.
package auth

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
)

const credentialDir = ".caption-wizard"

// keyEnvVars maps provider names to the environment variable holding the key.
var keyEnvVars = map[string]string{
	"openai": "OPENAI_API_KEY",
	"gemini": "GEMINI_API_KEY",
}

// EnvVar returns the environment variable consulted for provider's key.
func EnvVar(provider string) string {
	if v, ok := keyEnvVars[provider]; ok {
		return v
	}
	return strings.ToUpper(provider) + "_API_KEY"
}

// GetAPIKey retrieves the API key for provider ("openai" or "gemini").
// Priority order:
//  1. the provider's environment variable (OPENAI_API_KEY, GEMINI_API_KEY)
//  2. GPG-encrypted file at ~/.caption-wizard/<provider>.gpg
func GetAPIKey(provider string) (string, error) {
	envVar := EnvVar(provider)
	if key := os.Getenv(envVar); key != "" {
		log.Debug().Str("provider", provider).Msg("Using API key from environment variable")
		return key, nil
	}

	key, err := getFromGPG(provider)
	if err == nil && key != "" {
		log.Debug().Str("provider", provider).Msg("Using API key from GPG encrypted file")
		return key, nil
	}

	log.Error().Err(err).Str("provider", provider).Msg("Failed to retrieve API key")
	return "", &ValidationError{
		Type:    ErrTypeNoKey,
		Message: fmt.Sprintf("API key not found. Set %s or store it in ~/%s/%s.gpg", envVar, credentialDir, provider),
		Err:     err,
	}
}

// getFromGPG decrypts the API key from the provider's GPG-encrypted file.
func getFromGPG(provider string) (string, error) {
	credPath, err := getCredentialPath(provider)
	if err != nil {
		return "", err
	}

	if _, err := os.Stat(credPath); os.IsNotExist(err) {
		return "", fmt.Errorf("GPG credentials file not found at %s", credPath)
	}

	log.Debug().Str("file", credPath).Msg("Decrypting GPG credentials")

	args := []string{"--decrypt", "--quiet"}

	if passphrasePath, err := getPassphrasePath(); err == nil {
		if fi, statErr := os.Stat(passphrasePath); statErr == nil {
			// Passphrase file must be owner-only.
			if mode := fi.Mode().Perm(); mode&0o077 != 0 {
				log.Warn().
					Str("passphrase_file", passphrasePath).
					Str("permissions", fmt.Sprintf("%04o", mode)).
					Msg("Passphrase file has insecure permissions (should be 0600); skipping")
			} else {
				args = append(args, "--pinentry-mode", "loopback", "--passphrase-file", passphrasePath)
			}
		}
	}

	args = append(args, credPath)
	output, err := exec.Command("gpg", args...).Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return "", fmt.Errorf("GPG decryption failed: %s", string(exitErr.Stderr))
		}
		return "", fmt.Errorf("GPG decryption failed: %w", err)
	}

	return strings.TrimSpace(string(output)), nil
}

// getCredentialPath returns the full path to the provider's credentials file.
func getCredentialPath(provider string) (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, credentialDir, provider+".gpg"), nil
}

// getPassphrasePath returns ~/.caption-wizard/.gpg-passphrase.
func getPassphrasePath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, credentialDir, ".gpg-passphrase"), nil
}
