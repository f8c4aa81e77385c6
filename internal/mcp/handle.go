package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
)

// Timeouts for connecting to a server and for a single tool call.
var (
	connectTimeout = 30 * time.Second
	callTimeout    = 60 * time.Second
)

// clientVersion is reported to servers during the handshake.
var clientVersion = "dev"

// Handle is a live client session with one MCP server.
type Handle struct {
	Config  ServerConfig
	session *mcpsdk.ClientSession
	kill    context.CancelFunc
}

// newTransport creates the appropriate MCP transport. Extracted for testability.
var newTransport = defaultNewTransport

func defaultNewTransport(sc ServerConfig) (mcpsdk.Transport, context.CancelFunc) {
	switch sc.Type {
	case "http":
		return &mcpsdk.StreamableClientTransport{Endpoint: sc.URL}, func() {}
	default: // stdio
		cmd := exec.Command(sc.Command, sc.Args...)
		if len(sc.Env) > 0 {
			cmd.Env = os.Environ()
			for k, v := range sc.Env {
				cmd.Env = append(cmd.Env, k+"="+v)
			}
		}
		// Child stderr is discarded so it cannot interleave with the prompt.
		return &mcpsdk.CommandTransport{Command: cmd}, func() {
			if cmd.Process != nil {
				_ = cmd.Process.Kill()
			}
		}
	}
}

// Connect starts (or dials) the server described by sc and completes the
// MCP handshake.
func Connect(ctx context.Context, name string, sc ServerConfig) (*Handle, error) {
	if err := sc.Validate(name); err != nil {
		return nil, err
	}
	client := mcpsdk.NewClient(&mcpsdk.Implementation{
		Name:    "microcode",
		Version: clientVersion,
	}, nil)

	transport, kill := newTransport(sc)

	connCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	session, err := client.Connect(connCtx, transport, nil)
	if err != nil {
		kill()
		return nil, fmt.Errorf("connecting to MCP server %q: %w", name, err)
	}
	return &Handle{Config: sc, session: session, kill: kill}, nil
}

// ListTools returns the tools the server currently offers.
func (h *Handle) ListTools(ctx context.Context) ([]*mcpsdk.Tool, error) {
	if h == nil || h.session == nil {
		return nil, errors.New("MCP session is closed")
	}
	listCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	result, err := h.session.ListTools(listCtx, nil)
	if err != nil {
		return nil, fmt.Errorf("listing tools: %w", err)
	}
	return result.Tools, nil
}

// CallTool invokes tool with args and returns its text output. A result the
// server flags as an error is returned as an error carrying that text.
func (h *Handle) CallTool(ctx context.Context, tool string, args map[string]any) (string, error) {
	if h == nil || h.session == nil {
		return "", errors.New("MCP session is closed")
	}
	callCtx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	result, err := h.session.CallTool(callCtx, &mcpsdk.CallToolParams{
		Name:      tool,
		Arguments: args,
	})
	if err != nil {
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			return "", fmt.Errorf("MCP tool %s timed out after %s", tool, callTimeout)
		}
		return "", fmt.Errorf("MCP tool %s failed: %w", tool, err)
	}
	if result == nil {
		return "", fmt.Errorf("MCP tool %s returned an empty response", tool)
	}

	text := extractTextContent(result.Content)
	if result.IsError {
		if text == "" {
			text = "tool reported an error"
		}
		return "", errors.New(text)
	}
	return text, nil
}

// Close ends the session and stops a stdio child.
func (h *Handle) Close() error {
	if h == nil {
		return nil
	}
	var err error
	if h.session != nil {
		err = h.session.Close()
		h.session = nil
	}
	if h.kill != nil {
		h.kill()
		h.kill = nil
	}
	return err
}

// extractTextContent concatenates text from MCP Content items.
func extractTextContent(content []mcpsdk.Content) string {
	var parts []string
	for _, c := range content {
		if tc, ok := c.(*mcpsdk.TextContent); ok {
			parts = append(parts, tc.Text)
		}
	}
	return strings.Join(parts, "\n")
}

// schemaMap converts a tool's input schema to a plain JSON object.
func schemaMap(schema any) map[string]any {
	switch s := schema.(type) {
	case nil:
		return nil
	case map[string]any:
		return s
	default:
		data, err := json.Marshal(s)
		if err != nil {
			return nil
		}
		var m map[string]any
		if err := json.Unmarshal(data, &m); err != nil {
			return nil
		}
		return m
	}
}
