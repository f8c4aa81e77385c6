package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

func TestCacheDir(t *testing.T) {
	t.Run("returns override when set", func(t *testing.T) {
		orig := cacheDirOverride
		cacheDirOverride = "/tmp/test-cache"
		t.Cleanup(func() { cacheDirOverride = orig })

		if got := CacheDir(); got != "/tmp/test-cache" {
			t.Errorf("expected override dir, got %q", got)
		}
	})

	t.Run("honours XDG_CACHE_HOME", func(t *testing.T) {
		t.Setenv("XDG_CACHE_HOME", "/tmp/xdg")
		want := filepath.Join("/tmp/xdg", "microcode")
		if got := CacheDir(); got != want {
			t.Errorf("CacheDir() = %q, want %q", got, want)
		}
	})

	t.Run("falls back to ~/.cache", func(t *testing.T) {
		t.Setenv("XDG_CACHE_HOME", "")
		got := CacheDir()
		if !strings.HasSuffix(got, filepath.Join(".cache", "microcode")) {
			t.Errorf("expected path ending in .cache/microcode, got %q", got)
		}
	})
}

func TestMaskKey(t *testing.T) {
	tests := []struct {
		name string
		key  string
		want string
	}{
		{"empty key", "", ""},
		{"short key", "abc", "****"},
		{"exactly 4 chars", "abcd", "****"},
		{"normal key", "sk-or-v1-abc123xyz", "****3xyz"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MaskKey(tt.key); got != tt.want {
				t.Errorf("MaskKey(%q) = %q, want %q", tt.key, got, tt.want)
			}
		})
	}
}

func TestParseBoolish(t *testing.T) {
	tests := []struct {
		input   string
		want    bool
		wantErr bool
	}{
		{"true", true, false},
		{"ON", true, false},
		{" yes ", true, false},
		{"1", true, false},
		{"false", false, false},
		{"off", false, false},
		{"0", false, false},
		{"maybe", false, true},
		{"", false, true},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseBoolish(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseBoolish(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseBoolish(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestSanitizeValue(t *testing.T) {
	if got := SanitizeValue("  sk-\x00abc\x7f\r "); got != "sk-abc" {
		t.Errorf("SanitizeValue = %q, want %q", got, "sk-abc")
	}
}

func TestWriteFileAtomic(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested")
	path := filepath.Join(dir, "out.json")

	if err := writeFileAtomic(path, []byte(`{"a":1}`), "out_"); err != nil {
		t.Fatalf("writeFileAtomic: %v", err)
	}
	if err := writeFileAtomic(path, []byte(`{"a":2}`), "out_"); err != nil {
		t.Fatalf("second writeFileAtomic: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading: %v", err)
	}
	if string(data) != `{"a":2}` {
		t.Errorf("content = %q", data)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("expected only the target file, found %d entries", len(entries))
	}

	if runtime.GOOS != "windows" {
		info, err := os.Stat(path)
		if err != nil {
			t.Fatalf("stat: %v", err)
		}
		if perm := info.Mode().Perm(); perm != 0o600 {
			t.Errorf("expected 0600 permissions, got %o", perm)
		}
	}
}
