package config

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
)

// Keys used in settings.json.
const (
	KeyModel          = "model"
	KeySubModel       = "sub_lm"
	KeyMaxIterations  = "max_iters"
	KeyMaxTokens      = "max_tokens"
	KeyMaxOutputChars = "max_output_chars"
	KeyAPIBase        = "api_base"
	KeyVerbose        = "verbose"
)

// SettingsStore persists cached scalar settings as a flat JSON object in
// <cache dir>/settings.json.
type SettingsStore struct {
	path string
}

// NewSettingsStore returns a store rooted at dir.
func NewSettingsStore(dir string) *SettingsStore {
	return &SettingsStore{path: filepath.Join(dir, "settings.json")}
}

// Path returns the settings file path.
func (s *SettingsStore) Path() string {
	return s.path
}

// Load reads the settings map. A missing file yields an empty map and no
// error; an unreadable or malformed file yields an empty map and the error,
// which callers are free to ignore.
func (s *SettingsStore) Load() (map[string]any, error) {
	values := map[string]any{}
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return values, nil
	}
	if err != nil {
		return values, fmt.Errorf("reading %s: %w", s.path, err)
	}
	warnInsecurePermissions(s.path)
	if err := json.Unmarshal(data, &values); err != nil {
		return map[string]any{}, fmt.Errorf("parsing %s: %w", s.path, err)
	}
	if values == nil {
		values = map[string]any{}
	}
	return values, nil
}

// Save replaces the settings file with values.
func (s *SettingsStore) Save(values map[string]any) error {
	data, err := json.MarshalIndent(values, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling settings: %w", err)
	}
	return writeFileAtomic(s.path, data, "settings_")
}

// Update loads the current map, applies fn and saves the result. A malformed
// existing file is replaced rather than preserved.
func (s *SettingsStore) Update(fn func(values map[string]any)) error {
	values, _ := s.Load()
	fn(values)
	return s.Save(values)
}

// CachedSettings is the typed view of settings.json. Zero values mean the
// key is absent or was not usable.
type CachedSettings struct {
	Model          string
	SubModel       string
	MaxIterations  int
	MaxTokens      int
	MaxOutputChars int
	APIBase        string
	Verbose        *bool
}

// ParseCachedSettings extracts the recognised keys from a raw settings map.
// Values of the wrong type, non-integral numbers and non-positive limits are
// dropped.
func ParseCachedSettings(values map[string]any) CachedSettings {
	var c CachedSettings
	c.Model = stringValue(values[KeyModel])
	c.SubModel = stringValue(values[KeySubModel])
	c.APIBase = stringValue(values[KeyAPIBase])
	c.MaxIterations = positiveIntValue(values[KeyMaxIterations])
	c.MaxTokens = positiveIntValue(values[KeyMaxTokens])
	c.MaxOutputChars = positiveIntValue(values[KeyMaxOutputChars])
	if b, ok := boolValue(values[KeyVerbose]); ok {
		c.Verbose = &b
	}
	return c
}

// Apply writes c into values. Absent fields are deleted so stale entries do
// not outlive the configuration that produced them.
func (c CachedSettings) Apply(values map[string]any) {
	setString := func(key, v string) {
		if v == "" {
			delete(values, key)
			return
		}
		values[key] = v
	}
	setInt := func(key string, v int) {
		if v <= 0 {
			delete(values, key)
			return
		}
		values[key] = v
	}
	setString(KeyModel, c.Model)
	setString(KeySubModel, c.SubModel)
	setString(KeyAPIBase, c.APIBase)
	setInt(KeyMaxIterations, c.MaxIterations)
	setInt(KeyMaxTokens, c.MaxTokens)
	setInt(KeyMaxOutputChars, c.MaxOutputChars)
	if c.Verbose == nil {
		delete(values, KeyVerbose)
	} else {
		values[KeyVerbose] = *c.Verbose
	}
}

func stringValue(v any) string {
	s, ok := v.(string)
	if !ok {
		return ""
	}
	return strings.TrimSpace(s)
}

func positiveIntValue(v any) int {
	var n int
	switch x := v.(type) {
	case float64:
		if x != math.Trunc(x) || x > math.MaxInt32 {
			return 0
		}
		n = int(x)
	case int:
		n = x
	case int64:
		n = int(x)
	case json.Number:
		i, err := x.Int64()
		if err != nil {
			return 0
		}
		n = int(i)
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(x))
		if err != nil {
			return 0
		}
		n = i
	default:
		return 0
	}
	if n <= 0 {
		return 0
	}
	return n
}

func boolValue(v any) (bool, bool) {
	switch x := v.(type) {
	case bool:
		return x, true
	case string:
		b, err := ParseBoolish(x)
		return b, err == nil
	case float64:
		return x != 0, x == 0 || x == 1
	default:
		return false, false
	}
}

// warnInsecurePermissions prints a warning to stderr if the file is readable
// by group or others. On Windows, permission bits don't map to ACLs, so the
// check is skipped.
func warnInsecurePermissions(path string) {
	if runtime.GOOS == "windows" {
		return
	}
	info, err := os.Stat(path)
	if err != nil {
		return
	}
	if info.Mode().Perm()&0o077 != 0 {
		fmt.Fprintf(os.Stderr, "WARNING: %s is readable by others (mode %o). Run: chmod 600 %s\n",
			path, info.Mode().Perm(), path)
	}
}
