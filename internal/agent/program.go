package agent

import (
	"context"
	"strconv"
)

// APIKeyEnv holds the OpenRouter credential read at invocation time.
const APIKeyEnv = "OPENROUTER_API_KEY"

// DefaultRepo is the catalog reference of the shipped RLM program.
const DefaultRepo = "microcode/rlm"

// Ref identifies which program to load and at which revision tag.
type Ref struct {
	Repo string
	Rev  string
}

// Config is the parameter set a program is built from. Zero limits are
// unset; the program picks its own bound.
type Config struct {
	Model          string
	SubModel       string
	Verbose        bool
	MaxIterations  int
	MaxTokens      int
	MaxOutputChars int
	APIBase        string
}

// Map returns the config in the key/value form used by the settings cache
// and verbose diagnostics. Unset limits are omitted.
func (c Config) Map() map[string]string {
	m := map[string]string{
		"lm":      c.Model,
		"sub_lm":  c.SubModel,
		"verbose": strconv.FormatBool(c.Verbose),
	}
	if c.MaxIterations > 0 {
		m["max_iters"] = strconv.Itoa(c.MaxIterations)
	}
	if c.MaxTokens > 0 {
		m["max_tokens"] = strconv.Itoa(c.MaxTokens)
	}
	if c.MaxOutputChars > 0 {
		m["max_output_chars"] = strconv.Itoa(c.MaxOutputChars)
	}
	if c.APIBase != "" {
		m["api_base"] = c.APIBase
	}
	return m
}

// Result is the outcome of one task.
type Result struct {
	Answer string
}

// Tool is an externally provided capability the program may call while
// working on a task.
type Tool struct {
	Name        string
	Description string
	// Parameters is a JSON Schema object describing the arguments.
	Parameters map[string]any
	Call       func(ctx context.Context, args map[string]any) (string, error)
}

// Program is a bound agent instance. Exactly one is live per session.
type Program interface {
	Invoke(ctx context.Context, task string) (Result, error)
	// RegisterTools replaces the tool set attributed to server.
	RegisterTools(server string, tools []Tool)
	Config() Config
	Close() error
}

// Loader constructs a program for ref with cfg.
type Loader func(ctx context.Context, ref Ref, cfg Config) (Program, error)
