package mcp

import (
	"context"
	"fmt"

	"github.com/batalabs/microcode/internal/agent"
)

// Registrar attaches a server's tools to a program and reports the names
// they were registered under, in server order.
type Registrar interface {
	Register(ctx context.Context, p agent.Program, name string, h *Handle) ([]string, error)
}

// SDKRegistrar lists tools over the live MCP session and exposes each one
// to the program as a namespaced function tool.
type SDKRegistrar struct{}

func (SDKRegistrar) Register(ctx context.Context, p agent.Program, name string, h *Handle) ([]string, error) {
	tools, err := h.ListTools(ctx)
	if err != nil {
		return nil, fmt.Errorf("registering %q: %w", name, err)
	}

	defs := make([]agent.Tool, 0, len(tools))
	names := make([]string, 0, len(tools))
	for _, t := range tools {
		remote := t.Name
		full := NamespacedName(name, remote)
		defs = append(defs, agent.Tool{
			Name:        full,
			Description: t.Description,
			Parameters:  schemaMap(t.InputSchema),
			Call: func(ctx context.Context, args map[string]any) (string, error) {
				return h.CallTool(ctx, remote, args)
			},
		})
		names = append(names, full)
	}
	p.RegisterTools(name, defs)
	return names, nil
}
