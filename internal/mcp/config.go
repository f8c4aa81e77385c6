package mcp

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

// Config is the set of declared MCP servers, as read from mcp.json files.
type Config struct {
	Servers map[string]ServerConfig `json:"mcpServers"`
}

// ServerConfig describes how to connect to a single MCP server.
type ServerConfig struct {
	Type    string            `json:"type"`              // "stdio" or "http"
	Command string            `json:"command,omitempty"` // stdio: executable
	Args    []string          `json:"args,omitempty"`    // stdio: arguments
	Env     map[string]string `json:"env,omitempty"`     // stdio: env vars
	URL     string            `json:"url,omitempty"`     // http: server URL
}

// Names returns the declared server names in sorted order.
func (c Config) Names() []string {
	names := make([]string, 0, len(c.Servers))
	for name := range c.Servers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// LoadConfig merges <userDir>/mcp.json with <cwd>/.mcp.json. Project entries
// replace user entries of the same name. Missing files are skipped; a file
// that exists but does not parse is an error.
func LoadConfig(userDir, cwd string) (Config, error) {
	merged := Config{Servers: map[string]ServerConfig{}}

	var paths []string
	if userDir != "" {
		paths = append(paths, filepath.Join(userDir, "mcp.json"))
	}
	if cwd != "" {
		paths = append(paths, filepath.Join(cwd, ".mcp.json"))
	}
	for _, p := range paths {
		cfg, err := loadConfigFile(p)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return Config{}, err
		}
		for name, sc := range cfg.Servers {
			merged.Servers[name] = sc
		}
	}

	for name, sc := range merged.Servers {
		sc = sc.expanded()
		if err := sc.Validate(name); err != nil {
			return Config{}, err
		}
		merged.Servers[name] = sc
	}
	return merged, nil
}

func loadConfigFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parsing %s: %w", path, err)
	}
	if cfg.Servers == nil {
		cfg.Servers = map[string]ServerConfig{}
	}
	return cfg, nil
}

// Validate checks that sc has what its transport type needs.
func (sc ServerConfig) Validate(name string) error {
	switch sc.Type {
	case "stdio", "":
		if sc.Command == "" {
			return fmt.Errorf("MCP server %q: stdio type requires 'command'", name)
		}
	case "http":
		if sc.URL == "" {
			return fmt.Errorf("MCP server %q: http type requires 'url'", name)
		}
	default:
		return fmt.Errorf("MCP server %q: unknown type %q (expected 'stdio' or 'http')", name, sc.Type)
	}
	return nil
}

// Describe renders sc for listings.
func (sc ServerConfig) Describe() string {
	if sc.Type == "http" {
		return sc.URL
	}
	return strings.TrimSpace(sc.Command + " " + strings.Join(sc.Args, " "))
}

func (sc ServerConfig) expanded() ServerConfig {
	sc.Command = expandEnvVars(sc.Command)
	sc.URL = expandEnvVars(sc.URL)
	if sc.Args != nil {
		args := make([]string, len(sc.Args))
		for i, arg := range sc.Args {
			args[i] = expandEnvVars(arg)
		}
		sc.Args = args
	}
	if sc.Env != nil {
		env := make(map[string]string, len(sc.Env))
		for k, v := range sc.Env {
			env[k] = expandEnvVars(v)
		}
		sc.Env = env
	}
	return sc
}

// envVarPattern matches ${VAR} and ${VAR:-default}.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-([^}]*))?\}`)

// lookupEnvFunc returns (value, exists) for an environment variable.
// Override in tests to control the environment.
var lookupEnvFunc = os.LookupEnv

// expandEnvVars replaces ${VAR} and ${VAR:-default} patterns with values.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)
		if len(groups) < 2 {
			return match
		}
		if val, exists := lookupEnvFunc(groups[1]); exists {
			return val
		}
		if len(groups) >= 3 {
			return strings.TrimSpace(groups[2])
		}
		return ""
	})
}
