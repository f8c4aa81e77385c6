package mcp

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/batalabs/microcode/internal/agent"
)

const usage = "usage: /mcp [list] | /mcp add <name> <command> [args...] | /mcp add <name> --url <url> | /mcp remove <name>"

// HandleCommand runs an /mcp sub-command given its arguments (without the
// command word). handled is false for sub-commands it does not recognise so
// the caller can treat the input as a task.
func (m *Manager) HandleCommand(ctx context.Context, args []string, p agent.Program) (out string, handled bool, err error) {
	if len(args) == 0 {
		return m.List(), true, nil
	}
	switch args[0] {
	case "list", "ls":
		return m.List(), true, nil
	case "add":
		name, sc, err := parseAddArgs(args[1:])
		if err != nil {
			return "", true, err
		}
		b, err := m.Add(ctx, p, name, sc)
		if err != nil {
			return "", true, err
		}
		return fmt.Sprintf("MCP server %s connected (%d tools)", b.Name, len(b.ToolNames)), true, nil
	case "remove", "rm":
		if len(args) != 2 {
			return "", true, errors.New(usage)
		}
		if err := m.Remove(p, args[1]); err != nil {
			return "", true, err
		}
		return fmt.Sprintf("MCP server %s removed", args[1]), true, nil
	default:
		return "", false, nil
	}
}

func parseAddArgs(args []string) (string, ServerConfig, error) {
	if len(args) < 2 {
		return "", ServerConfig{}, errors.New(usage)
	}
	name := args[0]
	var sc ServerConfig
	if args[1] == "--url" {
		if len(args) != 3 {
			return "", ServerConfig{}, errors.New(usage)
		}
		sc = ServerConfig{Type: "http", URL: args[2]}
	} else {
		sc = ServerConfig{Type: "stdio", Command: args[1], Args: args[2:]}
	}
	sc = sc.expanded()
	if err := sc.Validate(name); err != nil {
		return "", ServerConfig{}, err
	}
	return name, sc, nil
}

// List renders the bound servers and their tools.
func (m *Manager) List() string {
	names := m.Names()
	if len(names) == 0 {
		return "No MCP servers connected. Add one with /mcp add <name> <command> [args...]"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "MCP servers (%d, %d tools):", len(names), m.ToolCount())
	for _, name := range names {
		bd := m.bindings[name]
		fmt.Fprintf(&b, "\n  %s  %s  (%d tools)", name, bd.Handle.Config.Describe(), len(bd.ToolNames))
		for _, tn := range bd.ToolNames {
			fmt.Fprintf(&b, "\n    %s", tn)
		}
	}
	return b.String()
}
