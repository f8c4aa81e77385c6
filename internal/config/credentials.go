package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// credentialFile is the on-disk shape of openrouter_key.json.
type credentialFile struct {
	OpenRouterAPIKey string `json:"openrouter_api_key"`
}

// CredentialStore caches the OpenRouter API key in
// <cache dir>/openrouter_key.json with 0600 permissions.
type CredentialStore struct {
	path string
}

// NewCredentialStore returns a store rooted at dir.
func NewCredentialStore(dir string) *CredentialStore {
	return &CredentialStore{path: filepath.Join(dir, "openrouter_key.json")}
}

// Load returns the cached key. Missing, unreadable or malformed files are
// reported as absent.
func (c *CredentialStore) Load() (string, bool) {
	data, err := os.ReadFile(c.path)
	if err != nil {
		return "", false
	}
	var f credentialFile
	if err := json.Unmarshal(data, &f); err != nil {
		return "", false
	}
	key := SanitizeValue(f.OpenRouterAPIKey)
	if key == "" {
		return "", false
	}
	return key, true
}

// Save replaces the cached key.
func (c *CredentialStore) Save(key string) error {
	key = SanitizeValue(key)
	if key == "" {
		return fmt.Errorf("refusing to cache an empty key")
	}
	data, err := json.Marshal(credentialFile{OpenRouterAPIKey: key})
	if err != nil {
		return fmt.Errorf("marshaling key: %w", err)
	}
	return writeFileAtomic(c.path, data, "openrouter_key_")
}

// Clear removes the cached key. Clearing an absent key is not an error.
func (c *CredentialStore) Clear() error {
	if err := os.Remove(c.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing %s: %w", c.path, err)
	}
	return nil
}

// BindCredential exports key as OPENROUTER_API_KEY unless the variable is
// already set. Returns true when the environment was changed.
func BindCredential(key string) bool {
	key = SanitizeValue(key)
	if key == "" {
		return false
	}
	if strings.TrimSpace(os.Getenv(CredentialEnv)) != "" {
		return false
	}
	os.Setenv(CredentialEnv, key)
	return true
}
