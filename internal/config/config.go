package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/batalabs/microcode/internal/agent"
)

// Environment variables consulted during resolution. The spellings are part
// of the user-facing contract and must stay stable.
const (
	EnvModel          = "MICROCODE_MODEL"
	EnvSubModel       = "MICROCODE_SUB_LM"
	EnvModaicEnv      = "MODAIC_ENV"
	EnvMicrocodeEnv   = "MICROCODE_ENV"
	EnvVerbose        = "MICROCODE_VERBOSE"
	EnvMaxIterations  = "MICROCODE_MAX_ITERATIONS"
	EnvMaxTokens      = "MICROCODE_MAX_TOKENS"
	EnvMaxOutputChars = "MICROCODE_MAX_OUTPUT_CHARS"
	EnvAPIBase        = "MICROCODE_API_BASE"
	EnvPasteThreshold = "MICROCODE_PASTE_THRESHOLD"

	// CredentialEnv is where the OpenRouter key is bound for the agent.
	CredentialEnv = agent.APIKeyEnv
)

// cacheDirOverride is set by tests to redirect CacheDir.
var cacheDirOverride string

// CacheDir returns the cache directory for microcode:
// $XDG_CACHE_HOME/microcode, or ~/.cache/microcode.
func CacheDir() string {
	if cacheDirOverride != "" {
		return cacheDirOverride
	}
	if xdg := strings.TrimSpace(os.Getenv("XDG_CACHE_HOME")); xdg != "" {
		return filepath.Join(xdg, "microcode")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".cache", "microcode")
}

// ConfigDir returns ~/.config/microcode, where user-scoped MCP server
// declarations live.
func ConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "microcode")
}

// writeFileAtomic writes data to path via a temp file in the same directory
// followed by a rename, so a crash mid-write leaves the previous file intact.
func writeFileAtomic(path string, data []byte, prefix string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("creating cache dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, prefix+"*.json")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		// No-op after a successful rename.
		_ = os.Remove(tmpPath)
	}()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing %s: %w", tmpPath, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", tmpPath, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("replacing %s: %w", path, err)
	}
	// Best effort: some filesystems ignore permission bits.
	_ = os.Chmod(path, 0o600)
	return nil
}

// SanitizeValue strips control characters (except \n and \t) and DEL from a
// value and trims surrounding whitespace. Keys pasted from a clipboard often
// carry such artifacts.
func SanitizeValue(s string) string {
	return strings.Map(func(r rune) rune {
		if (r < 32 && r != '\n' && r != '\t') || r == 0x7F {
			return -1
		}
		return r
	}, strings.TrimSpace(s))
}

// MaskKey masks an API key for display, showing only the last 4 characters.
func MaskKey(key string) string {
	if key == "" {
		return ""
	}
	if len(key) <= 4 {
		return "****"
	}
	return "****" + key[len(key)-4:]
}

// ParseBoolish parses a boolean-like string value.
func ParseBoolish(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "on", "yes", "1":
		return true, nil
	case "false", "off", "no", "0":
		return false, nil
	default:
		return false, fmt.Errorf("invalid boolean value: %s (use true/false, on/off, yes/no)", s)
	}
}
