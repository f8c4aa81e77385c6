// microcode CLI entry point
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"runtime/debug"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/batalabs/microcode/internal/agent"
	"github.com/batalabs/microcode/internal/config"
	"github.com/batalabs/microcode/internal/mcp"
	"github.com/batalabs/microcode/internal/paste"
	"github.com/batalabs/microcode/internal/session"
	"github.com/batalabs/microcode/internal/tui"
)

var version = "dev"

func init() {
	if version != "dev" {
		return
	}
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" && info.Main.Version != "(devel)" {
		version = info.Main.Version
	}
}

type options struct {
	model          string
	subModel       string
	apiKey         string
	maxIterations  int
	maxTokens      int
	maxOutputChars int
	apiBase        string
	verbose        bool
	env            string
	maxTurns       int
	noBanner       bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var opts options
	cmd := &cobra.Command{
		Use:     "microcode",
		Short:   "Interactive coding agent for the terminal",
		Version: version,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, opts)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	f := cmd.Flags()
	f.StringVarP(&opts.model, "lm", "m", "", "primary model ID (e.g. openai/gpt-5.2)")
	f.StringVar(&opts.subModel, "sub-lm", "", "sub model ID (defaults to the primary model)")
	f.StringVar(&opts.apiKey, "api-key", "", "OpenRouter API key (overrides "+agent.APIKeyEnv+")")
	f.IntVar(&opts.maxIterations, "max-iterations", 0, "max tool-loop iterations per task")
	f.IntVar(&opts.maxTokens, "max-tokens", 0, "max tokens per completion")
	f.IntVar(&opts.maxOutputChars, "max-output-chars", 0, "max characters kept from tool output")
	f.StringVar(&opts.apiBase, "api-base", "", "OpenRouter API base URL")
	f.BoolVarP(&opts.verbose, "verbose", "v", false, "mirror diagnostics to stderr")
	f.StringVar(&opts.env, "env", "", "environment tag (dev or prod)")
	f.IntVar(&opts.maxTurns, "max-turns", config.DefaultHistoryLimit,
		fmt.Sprintf("conversation turns sent with each task (%d-%d)", config.MinHistoryLimit, config.MaxHistoryLimit))
	f.BoolVar(&opts.noBanner, "no-banner", false, "skip the startup banner")
	return cmd
}

// overrides turns the flags the user actually set into resolver overrides.
func (o options) overrides(cmd *cobra.Command) (config.Overrides, error) {
	var ov config.Overrides
	changed := cmd.Flags().Changed

	if changed("lm") {
		ov.Model = &o.model
	}
	if changed("sub-lm") {
		ov.SubModel = &o.subModel
	}
	if changed("env") {
		env := strings.ToLower(strings.TrimSpace(o.env))
		if env != "dev" && env != "prod" {
			return ov, fmt.Errorf("--env must be dev or prod, got %q", o.env)
		}
		ov.Env = &env
	}
	if changed("verbose") {
		ov.Verbose = &o.verbose
	}
	for _, l := range []struct {
		name string
		val  int
		dst  **int
	}{
		{"max-iterations", o.maxIterations, &ov.MaxIterations},
		{"max-tokens", o.maxTokens, &ov.MaxTokens},
		{"max-output-chars", o.maxOutputChars, &ov.MaxOutputChars},
	} {
		if !changed(l.name) {
			continue
		}
		if l.val <= 0 {
			return ov, fmt.Errorf("--%s must be positive, got %d", l.name, l.val)
		}
		v := l.val
		*l.dst = &v
	}
	if changed("api-base") {
		ov.APIBase = &o.apiBase
	}
	if changed("max-turns") {
		if o.maxTurns < config.MinHistoryLimit || o.maxTurns > config.MaxHistoryLimit {
			return ov, fmt.Errorf("--max-turns must be between %d and %d, got %d",
				config.MinHistoryLimit, config.MaxHistoryLimit, o.maxTurns)
		}
		ov.HistoryLimit = &o.maxTurns
	}
	return ov, nil
}

// bindKey exports the OpenRouter key for this process. An explicit
// --api-key replaces whatever the environment holds; otherwise the cached
// key is used only when the variable is unset. It reports whether the
// variable is owned by the caller (shell or flag) rather than the cache,
// which decides whether /key may overwrite it.
func bindKey(flagKey string, flagSet bool, creds *config.CredentialStore, logger *config.Logger) bool {
	if flagSet {
		if key := config.SanitizeValue(flagKey); key != "" {
			os.Setenv(agent.APIKeyEnv, key)
			logger.Printf("config: using key %s from --api-key", config.MaskKey(key))
			return true
		}
	}
	if strings.TrimSpace(os.Getenv(agent.APIKeyEnv)) != "" {
		return true
	}
	if key, ok := creds.Load(); ok && config.BindCredential(key) {
		logger.Printf("config: using cached key %s", config.MaskKey(key))
	}
	return false
}

func run(cmd *cobra.Command, opts options) error {
	ov, err := opts.overrides(cmd)
	if err != nil {
		return err
	}

	cacheDir := config.CacheDir()
	logger := config.NewLogger(cacheDir)
	defer logger.Close()
	logger.Printf("microcode %s starting", version)

	creds := config.NewCredentialStore(cacheDir)
	keyFromEnv := bindKey(opts.apiKey, cmd.Flags().Changed("api-key"), creds, logger)

	settings := config.NewSettingsStore(cacheDir)
	resolver := config.Resolver{Settings: settings, Logger: logger}
	cfg := resolver.Resolve(ov)
	if cfg.Verbose {
		logger.Mirror(os.Stderr)
	}
	os.Setenv(config.EnvModaicEnv, cfg.Env)
	for k, v := range cfg.AgentConfig().Map() {
		logger.Printf("config: %s=%s", k, v)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	ref := agent.Ref{Repo: agent.DefaultRepo, Rev: cfg.Env}
	loader := agent.NewOpenRouterLoader(logger.Printf)
	program, err := loader(ctx, ref, cfg.AgentConfig())
	if err != nil {
		logger.Printf("startup: building program: %v", err)
		if agent.Classify(err) == agent.FailureAuth {
			return errors.New(agent.AuthMessage(err))
		}
		return fmt.Errorf("building program: %w", err)
	}

	cwd, err := os.Getwd()
	if err != nil {
		cwd = "."
	}
	manager := mcp.NewManager(nil, logger.Printf)
	if mcpCfg, err := mcp.LoadConfig(config.ConfigDir(), cwd); err != nil {
		logger.Printf("mcp: loading config: %v", err)
	} else if err := manager.StartAll(ctx, mcpCfg, program); err != nil {
		fmt.Fprintf(os.Stderr, "warning: some MCP servers failed to start (see %s)\n", config.LogPath(cacheDir))
	}

	capture := paste.New(cfg.PasteThreshold)
	term := tui.NewTerminal(capture)

	if !opts.noBanner {
		fmt.Println(tui.Banner(tui.BannerInfo{
			Model:        cfg.Model,
			SubModel:     cfg.SubModel,
			Cwd:          tui.ShortCwd(cwd),
			HistoryLimit: cfg.HistoryLimit,
			MaxTokens:    cfg.MaxTokens,
			Verbose:      cfg.Verbose,
		}))
	}

	s := session.New(session.Deps{
		Config:      cfg,
		Ref:         ref,
		Program:     program,
		Loader:      loader,
		Terminal:    term,
		Capture:     capture,
		MCP:         manager,
		Settings:    settings,
		Credentials: creds,
		Logger:      logger,
		Out:         os.Stdout,
		KeyFromEnv:  keyFromEnv,
	})
	defer s.Close()

	if err := s.Run(ctx); err != nil {
		logger.Printf("session: %v", err)
		return err
	}
	fmt.Println()
	return nil
}
