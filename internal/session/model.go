package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/batalabs/microcode/internal/agent"
	"github.com/batalabs/microcode/internal/config"
	"github.com/batalabs/microcode/internal/tui"
)

// Choice values that are not model IDs. Catalog IDs always contain a slash,
// so these cannot collide.
const (
	choiceKeep    = ":keep"
	choiceCustom  = ":custom"
	choicePrimary = ":primary"
)

// handleModel implements /model. With arguments the pair is taken from them
// (a missing sub model keeps the current one); without, the user picks the
// primary and then the sub model.
func (s *Session) handleModel(ctx context.Context, args []string) {
	if len(args) > 2 {
		s.errorLine("usage: /model [primary] [sub]")
		return
	}

	curModel, curSub := s.cfg.Model, s.cfg.SubModel
	var primary, sub string
	if len(args) > 0 {
		primary = agent.NormalizeModelID(args[0])
		sub = curSub
		if len(args) == 2 {
			sub = agent.NormalizeModelID(args[1])
		}
	} else {
		fmt.Fprintf(s.out, "\n%s %s\n%s %s\n",
			tui.StatusHead.Render("Current RLM(model):"), agent.DisplayModelID(curModel),
			tui.StatusHead.Render("Current sub model:"), agent.DisplayModelID(curSub))
		var ok bool
		primary, ok = s.choosePrimary(ctx, curModel)
		if !ok {
			s.notice("Keeping current model: " + agent.DisplayModelID(curModel))
			s.notice("Keeping current sub model: " + agent.DisplayModelID(curSub))
			return
		}
		sub = s.chooseSub(ctx, primary, curSub)
	}

	if err := s.swap(ctx, primary, sub); err != nil {
		s.log.Printf("model: swap to %s | %s failed: %v", primary, sub, err)
		if agent.Classify(err) == agent.FailureAuth {
			s.errorLine(agent.AuthMessage(err))
		} else {
			s.errorLine("Model switch failed: " + err.Error())
		}
		s.notice("Keeping " + agent.DisplayModelID(curModel) + " | sub model: " + agent.DisplayModelID(curSub))
		return
	}
	s.notice("Switched to: " + s.cfg.Model + " | sub model: " + agent.DisplayModelID(s.cfg.SubModel))
}

func modelOptions() []tui.Option {
	opts := make([]tui.Option, 0, len(agent.Catalog)+3)
	for _, e := range agent.Catalog {
		opts = append(opts, tui.Option{Label: fmt.Sprintf("%s (%s)", e.Name, e.ID), Value: e.ID})
	}
	return append(opts, tui.Option{Label: "Custom model ID", Value: choiceCustom})
}

// choosePrimary returns the selected primary model, or false when the user
// cancelled or entered an empty custom ID.
func (s *Session) choosePrimary(ctx context.Context, cur string) (string, bool) {
	opts := append(modelOptions(),
		tui.Option{Label: "Keep current (" + agent.DisplayModelID(cur) + ")", Value: choiceKeep})

	choice, err := s.term.Choose(ctx, "Select a new RLM(model):", opts)
	if err != nil {
		if !errors.Is(err, tui.ErrAborted) {
			s.log.Printf("model: choosing primary: %v", err)
		}
		return "", false
	}
	switch choice {
	case choiceKeep:
		s.notice("Keeping current model: " + agent.DisplayModelID(cur))
		return cur, true
	case choiceCustom:
		id := s.askModelID(ctx, "Enter model ID (e.g. openai/gpt-5.2):")
		if id == "" {
			s.errorLine("Invalid model ID, keeping current model")
			return "", false
		}
		s.notice("Selected custom model: " + id)
		return id, true
	default:
		id := agent.NormalizeModelID(choice)
		s.notice("Selected: " + agent.CatalogName(id) + " (" + id + ")")
		return id, true
	}
}

// chooseSub returns the selected sub model. Cancelling, keeping or an empty
// custom ID all yield cur.
func (s *Session) chooseSub(ctx context.Context, primary, cur string) string {
	opts := append(modelOptions(),
		tui.Option{Label: "Keep current (" + agent.DisplayModelID(cur) + ")", Value: choiceKeep},
		tui.Option{Label: "Use primary model (" + agent.DisplayModelID(primary) + ")", Value: choicePrimary})

	choice, err := s.term.Choose(ctx, "Select a sub model:", opts)
	if err != nil && !errors.Is(err, tui.ErrAborted) {
		s.log.Printf("model: choosing sub model: %v", err)
	}
	switch {
	case err != nil, choice == choiceKeep:
		s.notice("Keeping current sub model: " + agent.DisplayModelID(cur))
		return cur
	case choice == choicePrimary:
		s.notice("Sub model set to primary model: " + agent.DisplayModelID(primary))
		return primary
	case choice == choiceCustom:
		id := s.askModelID(ctx, "Enter sub model ID:")
		if id == "" {
			s.errorLine("Invalid sub model ID, keeping current sub model")
			return cur
		}
		s.notice("Selected custom sub model: " + agent.DisplayModelID(id))
		return id
	default:
		id := agent.NormalizeModelID(choice)
		s.notice("Selected sub model: " + agent.DisplayModelID(id))
		return id
	}
}

func (s *Session) askModelID(ctx context.Context, label string) string {
	id, err := s.term.Ask(ctx, label)
	if err != nil {
		if !errors.Is(err, tui.ErrAborted) {
			s.log.Printf("model: reading custom ID: %v", err)
		}
		return ""
	}
	return agent.NormalizeModelID(id)
}

// swap replaces the live program with one built for (primary, sub). The new
// program is built and every MCP server re-registered against it before
// anything is committed; on failure the new program is closed and the
// session is left exactly as it was.
func (s *Session) swap(ctx context.Context, primary, sub string) error {
	cfg := s.cfg.AgentConfig()
	cfg.Model, cfg.SubModel = primary, sub

	next, err := s.loader(ctx, s.ref, cfg)
	if err != nil {
		return fmt.Errorf("building program: %w", err)
	}
	tools, err := s.mcp.Rebind(ctx, next)
	if err != nil {
		if cerr := next.Close(); cerr != nil {
			s.log.Printf("model: closing discarded program: %v", cerr)
		}
		return err
	}

	prev := s.program
	s.program = next
	s.mcp.Commit(tools)
	s.cfg.Model, s.cfg.SubModel = primary, sub
	if s.cfg.Sources == nil {
		s.cfg.Sources = make(map[string]config.Source)
	}
	s.cfg.Sources[config.KeyModel] = config.SourceOverride
	s.cfg.Sources[config.KeySubModel] = config.SourceOverride

	if s.settings != nil {
		err := s.settings.Update(func(values map[string]any) {
			values[config.KeyModel] = primary
			values[config.KeySubModel] = sub
		})
		if err != nil {
			s.log.Printf("model: saving settings: %v", err)
		}
	}
	if prev != nil {
		if err := prev.Close(); err != nil {
			s.log.Printf("model: closing previous program: %v", err)
		}
	}
	s.log.Printf("model: switched to %s | %s", primary, sub)
	return nil
}
