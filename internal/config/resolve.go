package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/batalabs/microcode/internal/agent"
)

// Defaults applied when no other source yields a value.
const (
	DefaultEnv            = "prod"
	DefaultMaxIterations  = 50
	DefaultMaxTokens      = 50000
	DefaultMaxOutputChars = 100000
	DefaultAPIBase        = "https://openrouter.ai/api/v1"
	DefaultPasteThreshold = 2000
	DefaultHistoryLimit   = 10

	MinHistoryLimit = 1
	MaxHistoryLimit = 25
)

// Source identifies which precedence level produced a value.
type Source int

const (
	SourceNone Source = iota
	SourceOverride
	SourceEnv
	SourceCache
	SourceDefault
)

func (s Source) String() string {
	switch s {
	case SourceOverride:
		return "override"
	case SourceEnv:
		return "env"
	case SourceCache:
		return "cache"
	case SourceDefault:
		return "default"
	default:
		return "none"
	}
}

// step is one tagged entry in a precedence chain.
type step[T any] struct {
	source Source
	lookup func() (T, bool)
}

// resolve walks steps in order and returns the first present value.
func resolve[T any](steps ...step[T]) (T, Source) {
	for _, s := range steps {
		if v, ok := s.lookup(); ok {
			return v, s.source
		}
	}
	var zero T
	return zero, SourceNone
}

func fixed[T any](v T) func() (T, bool) {
	return func() (T, bool) { return v, true }
}

func fromString(p *string) func() (string, bool) {
	return func() (string, bool) {
		if p == nil {
			return "", false
		}
		v := strings.TrimSpace(*p)
		return v, v != ""
	}
}

func fromPositive(p *int) func() (int, bool) {
	return func() (int, bool) {
		if p == nil || *p <= 0 {
			return 0, false
		}
		return *p, true
	}
}

// Overrides carries call-site values, typically command-line flags the user
// set explicitly. Nil fields are absent.
type Overrides struct {
	Model          *string
	SubModel       *string
	Env            *string
	Verbose        *bool
	MaxIterations  *int
	MaxTokens      *int
	MaxOutputChars *int
	APIBase        *string
	HistoryLimit   *int
}

// Effective is the resolved runtime parameter set for a session.
type Effective struct {
	Model          string
	SubModel       string
	Env            string
	Verbose        bool
	MaxIterations  int
	MaxTokens      int
	MaxOutputChars int
	APIBase        string
	HistoryLimit   int
	PasteThreshold int

	// Sources records where each parameter came from, keyed by settings key
	// (or "env", "history_limit", "paste_threshold" for uncached values).
	Sources map[string]Source
}

// AgentConfig returns the subset handed to the agent loader.
func (e Effective) AgentConfig() agent.Config {
	return agent.Config{
		Model:          e.Model,
		SubModel:       e.SubModel,
		Verbose:        e.Verbose,
		MaxIterations:  e.MaxIterations,
		MaxTokens:      e.MaxTokens,
		MaxOutputChars: e.MaxOutputChars,
		APIBase:        e.APIBase,
	}
}

// Cached returns the persisted view of e.
func (e Effective) Cached() CachedSettings {
	verbose := e.Verbose
	return CachedSettings{
		Model:          e.Model,
		SubModel:       e.SubModel,
		MaxIterations:  e.MaxIterations,
		MaxTokens:      e.MaxTokens,
		MaxOutputChars: e.MaxOutputChars,
		APIBase:        e.APIBase,
		Verbose:        &verbose,
	}
}

// SettingsBackend is the persistence collaborator used by the resolver.
type SettingsBackend interface {
	Load() (map[string]any, error)
	Save(values map[string]any) error
}

// Resolver computes the effective configuration from overrides, the process
// environment, cached settings and defaults, in that order.
type Resolver struct {
	Settings SettingsBackend
	// Getenv defaults to os.LookupEnv.
	Getenv func(key string) (string, bool)
	Logger *Logger
}

func (r *Resolver) env(key string) func() (string, bool) {
	return func() (string, bool) {
		getenv := r.Getenv
		if getenv == nil {
			getenv = os.LookupEnv
		}
		v, ok := getenv(key)
		v = strings.TrimSpace(v)
		return v, ok && v != ""
	}
}

func (r *Resolver) envPositive(key string) func() (int, bool) {
	raw := r.env(key)
	return func() (int, bool) {
		s, ok := raw()
		if !ok {
			return 0, false
		}
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			return 0, false
		}
		return n, true
	}
}

func (r *Resolver) envBool(key string) func() (bool, bool) {
	raw := r.env(key)
	return func() (bool, bool) {
		s, ok := raw()
		if !ok {
			return false, false
		}
		b, err := ParseBoolish(s)
		if err != nil {
			return false, false
		}
		return b, true
	}
}

// Resolve computes the effective configuration and writes it back to the
// settings store. It never fails; unusable data at any level is skipped and
// write failures are only logged.
func (r *Resolver) Resolve(o Overrides) Effective {
	var cached CachedSettings
	if r.Settings != nil {
		values, err := r.Settings.Load()
		if err != nil {
			r.Logger.Printf("config: ignoring cached settings: %v", err)
		}
		cached = ParseCachedSettings(values)
	}

	e := Effective{Sources: make(map[string]Source)}
	var src Source

	e.Model, src = resolve(
		step[string]{SourceOverride, fromString(o.Model)},
		step[string]{SourceEnv, r.env(EnvModel)},
		step[string]{SourceCache, fromString(&cached.Model)},
		step[string]{SourceDefault, fixed(agent.DefaultModel)},
	)
	e.Model = agent.NormalizeModelID(e.Model)
	e.Sources[KeyModel] = src

	e.SubModel, src = resolve(
		step[string]{SourceOverride, fromString(o.SubModel)},
		step[string]{SourceEnv, r.env(EnvSubModel)},
		step[string]{SourceCache, fromString(&cached.SubModel)},
		step[string]{SourceDefault, fixed(e.Model)},
	)
	e.SubModel = agent.NormalizeModelID(e.SubModel)
	e.Sources[KeySubModel] = src

	e.Env, src = resolve(
		step[string]{SourceOverride, fromString(o.Env)},
		step[string]{SourceEnv, r.env(EnvModaicEnv)},
		step[string]{SourceEnv, r.env(EnvMicrocodeEnv)},
		step[string]{SourceDefault, fixed(DefaultEnv)},
	)
	e.Sources["env"] = src

	e.Verbose, src = resolve(
		step[bool]{SourceOverride, func() (bool, bool) {
			if o.Verbose == nil {
				return false, false
			}
			return *o.Verbose, true
		}},
		step[bool]{SourceEnv, r.envBool(EnvVerbose)},
		step[bool]{SourceCache, func() (bool, bool) {
			if cached.Verbose == nil {
				return false, false
			}
			return *cached.Verbose, true
		}},
		step[bool]{SourceDefault, fixed(false)},
	)
	e.Sources[KeyVerbose] = src

	e.MaxIterations, src = resolve(
		step[int]{SourceOverride, fromPositive(o.MaxIterations)},
		step[int]{SourceEnv, r.envPositive(EnvMaxIterations)},
		step[int]{SourceCache, fromPositive(&cached.MaxIterations)},
		step[int]{SourceDefault, fixed(DefaultMaxIterations)},
	)
	e.Sources[KeyMaxIterations] = src

	e.MaxTokens, src = resolve(
		step[int]{SourceOverride, fromPositive(o.MaxTokens)},
		step[int]{SourceEnv, r.envPositive(EnvMaxTokens)},
		step[int]{SourceCache, fromPositive(&cached.MaxTokens)},
		step[int]{SourceDefault, fixed(DefaultMaxTokens)},
	)
	e.Sources[KeyMaxTokens] = src

	e.MaxOutputChars, src = resolve(
		step[int]{SourceOverride, fromPositive(o.MaxOutputChars)},
		step[int]{SourceEnv, r.envPositive(EnvMaxOutputChars)},
		step[int]{SourceCache, fromPositive(&cached.MaxOutputChars)},
		step[int]{SourceDefault, fixed(DefaultMaxOutputChars)},
	)
	e.Sources[KeyMaxOutputChars] = src

	e.APIBase, src = resolve(
		step[string]{SourceOverride, fromString(o.APIBase)},
		step[string]{SourceEnv, r.env(EnvAPIBase)},
		step[string]{SourceCache, fromString(&cached.APIBase)},
		step[string]{SourceDefault, fixed(DefaultAPIBase)},
	)
	e.Sources[KeyAPIBase] = src

	e.HistoryLimit, src = resolve(
		step[int]{SourceOverride, fromPositive(o.HistoryLimit)},
		step[int]{SourceDefault, fixed(DefaultHistoryLimit)},
	)
	e.HistoryLimit = ClampHistoryLimit(e.HistoryLimit)
	e.Sources["history_limit"] = src

	// Zero or negative thresholds are meaningful here: they disable capture.
	e.PasteThreshold, src = resolve(
		step[int]{SourceEnv, func() (int, bool) {
			s, ok := r.env(EnvPasteThreshold)()
			if !ok {
				return 0, false
			}
			n, err := strconv.Atoi(s)
			return n, err == nil
		}},
		step[int]{SourceDefault, fixed(DefaultPasteThreshold)},
	)
	e.Sources["paste_threshold"] = src

	r.persist(e)
	return e
}

func (r *Resolver) persist(e Effective) {
	if r.Settings == nil {
		return
	}
	values, _ := r.Settings.Load()
	if values == nil {
		values = map[string]any{}
	}
	e.Cached().Apply(values)
	if err := r.Settings.Save(values); err != nil {
		r.Logger.Printf("config: saving settings: %v", err)
	}
}

// ClampHistoryLimit bounds n to the supported history window range.
func ClampHistoryLimit(n int) int {
	if n < MinHistoryLimit {
		return MinHistoryLimit
	}
	if n > MaxHistoryLimit {
		return MaxHistoryLimit
	}
	return n
}
