package session

import (
	"context"
	"errors"
	"os"

	"github.com/batalabs/microcode/internal/agent"
	"github.com/batalabs/microcode/internal/config"
	"github.com/batalabs/microcode/internal/tui"
)

// handleKey implements /key [clear|unset|remove|<key>].
func (s *Session) handleKey(ctx context.Context, args []string) {
	if len(args) > 0 {
		switch args[0] {
		case "clear", "unset", "remove":
			if s.creds != nil {
				if err := s.creds.Clear(); err != nil {
					s.log.Printf("key: clearing cache: %v", err)
				}
			}
			os.Unsetenv(agent.APIKeyEnv)
			s.keyFromEnv = false
			s.notice("OpenRouter key cleared")
			return
		}
	}

	var key string
	if len(args) > 0 {
		key = args[0]
	} else {
		k, err := s.term.AskSecret(ctx, "Enter OpenRouter API key (input hidden):")
		// A hidden read can outlive an interrupt; whatever it returned is
		// dropped once the session is shutting down.
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			if !errors.Is(err, tui.ErrAborted) {
				s.log.Printf("key: reading input: %v", err)
			}
			s.notice("OpenRouter key unchanged")
			return
		}
		key = k
	}
	key = config.SanitizeValue(key)
	if key == "" {
		s.errorLine("OpenRouter key not set (empty input)")
		return
	}

	cached := false
	if s.creds != nil {
		if err := s.creds.Save(key); err != nil {
			s.log.Printf("key: caching: %v", err)
		} else {
			cached = true
		}
	}
	masked := config.MaskKey(key)
	switch {
	case s.keyFromEnv && cached:
		s.notice("OpenRouter key " + masked + " saved to cache; " + agent.APIKeyEnv + " from the environment stays in effect")
		return
	case s.keyFromEnv:
		s.errorLine("OpenRouter key " + masked + " not saved: caching failed; " + agent.APIKeyEnv + " from the environment stays in effect")
		return
	}
	os.Setenv(agent.APIKeyEnv, key)
	if cached {
		s.notice("OpenRouter key " + masked + " saved to cache")
	} else {
		s.notice("OpenRouter key " + masked + " bound for this session; caching failed")
	}
}
