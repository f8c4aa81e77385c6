package session

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"reflect"
	"strings"
	"testing"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/batalabs/microcode/internal/agent"
	"github.com/batalabs/microcode/internal/config"
	"github.com/batalabs/microcode/internal/mcp"
)

const (
	codex = "openrouter/openai/gpt-5.2-codex"
	qwen  = "openrouter/qwen/qwen3-coder"
)

func (h *harness) savedPair(t *testing.T) (string, string) {
	t.Helper()
	values, err := h.settings.Load()
	if err != nil {
		t.Fatalf("loading settings: %v", err)
	}
	m, _ := values[config.KeyModel].(string)
	sub, _ := values[config.KeySubModel].(string)
	return m, sub
}

func TestModel_CustomThenUsePrimary(t *testing.T) {
	h := newHarness(t, nil)
	h.term.choices = []string{choiceCustom, choicePrimary}
	h.term.asks = []string{"foo/bar"}

	h.s.Handle(context.Background(), "/model")

	cfg := h.s.Config()
	if cfg.Model != "openrouter/foo/bar" || cfg.SubModel != "openrouter/foo/bar" {
		t.Fatalf("pair = %q | %q", cfg.Model, cfg.SubModel)
	}
	if m, sub := h.savedPair(t); m != "openrouter/foo/bar" || sub != "openrouter/foo/bar" {
		t.Errorf("persisted = %q | %q", m, sub)
	}
	if len(h.built) != 1 || h.s.Program() != agent.Program(h.built[0]) {
		t.Fatalf("live program was not replaced")
	}
	if !h.prog.closed {
		t.Errorf("previous program not closed")
	}
	got := h.built[0].cfg
	if got.MaxIterations != 50 || got.MaxTokens != 500 {
		t.Errorf("limits not carried over: %+v", got)
	}
	if cfg.Sources[config.KeyModel] != config.SourceOverride {
		t.Errorf("model source = %v", cfg.Sources[config.KeyModel])
	}
	out := h.out.String()
	for _, want := range []string{"Selected custom model: openrouter/foo/bar", "Switched to: openrouter/foo/bar", "mcp_tools: 0"} {
		if !strings.Contains(out, want) {
			t.Errorf("output lacks %q:\n%s", want, out)
		}
	}
}

func TestModel_CatalogPickKeepSub(t *testing.T) {
	h := newHarness(t, nil)
	h.term.choices = []string{"qwen/qwen3-coder", choiceKeep}

	h.s.Handle(context.Background(), "/model")

	cfg := h.s.Config()
	if cfg.Model != qwen || cfg.SubModel != codex {
		t.Fatalf("pair = %q | %q", cfg.Model, cfg.SubModel)
	}
	if !strings.Contains(h.out.String(), "Selected: Qwen 3 Coder ("+qwen+")") {
		t.Errorf("output = %q", h.out.String())
	}
}

func TestModel_KeepBothStillRebuilds(t *testing.T) {
	h := newHarness(t, nil)
	h.term.choices = []string{choiceKeep, choiceKeep}

	h.s.Handle(context.Background(), "/model")

	if len(h.built) != 1 {
		t.Fatalf("built = %d, want 1", len(h.built))
	}
	if cfg := h.s.Config(); cfg.Model != codex || cfg.SubModel != codex {
		t.Errorf("pair = %q | %q", cfg.Model, cfg.SubModel)
	}
}

func TestModel_SubCancelKeepsCurrentSub(t *testing.T) {
	h := newHarness(t, nil)
	h.term.choices = []string{"google/gemini-3-flash-preview", ""}

	h.s.Handle(context.Background(), "/model")

	cfg := h.s.Config()
	if cfg.Model != "openrouter/google/gemini-3-flash-preview" || cfg.SubModel != codex {
		t.Errorf("pair = %q | %q", cfg.Model, cfg.SubModel)
	}
}

func TestModel_NoSwap(t *testing.T) {
	tests := []struct {
		name    string
		choices []string
		asks    []string
	}{
		{"cancel", []string{""}, nil},
		{"empty custom", []string{choiceCustom}, []string{"   "}},
		{"aborted custom", []string{choiceCustom}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, nil)
			h.term.choices = tt.choices
			h.term.asks = tt.asks

			h.s.Handle(context.Background(), "/model")

			if len(h.built) != 0 {
				t.Errorf("loader called %d times", len(h.built))
			}
			if h.prog.closed || h.s.Program() != agent.Program(h.prog) {
				t.Errorf("live program changed")
			}
			if _, err := os.Stat(h.settings.Path()); !os.IsNotExist(err) {
				t.Errorf("settings written: %v", err)
			}
			if !strings.Contains(h.out.String(), "Keeping current model: openai/gpt-5.2-codex") {
				t.Errorf("output = %q", h.out.String())
			}
		})
	}
}

func TestModel_Arguments(t *testing.T) {
	tests := []struct {
		line      string
		model     string
		sub       string
		wantBuild bool
	}{
		{"/model a/b c/d", "openrouter/a/b", "openrouter/c/d", true},
		{"/model a/b", "openrouter/a/b", codex, true},
		{"/model openrouter/a/b", "openrouter/a/b", codex, true},
		{"/model a b c", codex, codex, false},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			h := newHarness(t, nil)
			h.s.Handle(context.Background(), tt.line)

			cfg := h.s.Config()
			if cfg.Model != tt.model || cfg.SubModel != tt.sub {
				t.Errorf("pair = %q | %q, want %q | %q", cfg.Model, cfg.SubModel, tt.model, tt.sub)
			}
			if got := len(h.built) == 1; got != tt.wantBuild {
				t.Errorf("built = %d", len(h.built))
			}
		})
	}
}

func TestModel_LoaderFailureChangesNothing(t *testing.T) {
	tests := []struct {
		name string
		err  error
		msg  string
	}{
		{"generic", errors.New("repo not found\nstack..."), "Model switch failed: building program: repo not found"},
		{"auth", agent.ErrNoCredentials, "OpenRouter authentication failed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, nil)
			h.loadErr = tt.err

			h.s.Handle(context.Background(), "/model a/b c/d")

			cfg := h.s.Config()
			if cfg.Model != codex || cfg.SubModel != codex {
				t.Errorf("pair changed: %q | %q", cfg.Model, cfg.SubModel)
			}
			if h.prog.closed || h.s.Program() != agent.Program(h.prog) {
				t.Errorf("live program changed")
			}
			if _, err := os.Stat(h.settings.Path()); !os.IsNotExist(err) {
				t.Errorf("settings written: %v", err)
			}
			out := h.out.String()
			if !strings.Contains(out, tt.msg) || !strings.Contains(out, "Keeping openai/gpt-5.2-codex") {
				t.Errorf("output = %q", out)
			}
		})
	}
}

// pickyRegistrar refuses to register tools with programs built for the
// "bad" model.
type pickyRegistrar struct {
	mcp.SDKRegistrar
}

func (r pickyRegistrar) Register(ctx context.Context, p agent.Program, name string, h *mcp.Handle) ([]string, error) {
	if p.Config().Model == "openrouter/bad/model" {
		return nil, errors.New("tool schema rejected")
	}
	return r.SDKRegistrar.Register(ctx, p, name, h)
}

func startHTTPServer(t *testing.T, tools ...string) string {
	t.Helper()
	server := mcpsdk.NewServer(&mcpsdk.Implementation{Name: "test-server", Version: "1.0"}, nil)
	for _, name := range tools {
		server.AddTool(&mcpsdk.Tool{
			Name:        name,
			Description: name + " tool",
			InputSchema: map[string]any{"type": "object"},
		}, func(ctx context.Context, req *mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
			return &mcpsdk.CallToolResult{Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: "ok"}}}, nil
		})
	}
	handler := mcpsdk.NewStreamableHTTPHandler(func(*http.Request) *mcpsdk.Server { return server }, nil)
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv.URL
}

func newBoundHarness(t *testing.T) *harness {
	t.Helper()
	url := startHTTPServer(t, "search", "fetch")
	// Registered after the server so sessions close before it shuts down.
	mgr := mcp.NewManager(pickyRegistrar{}, nil)
	t.Cleanup(mgr.CloseAll)
	h := newHarness(t, mgr)
	if _, err := mgr.Add(context.Background(), h.prog, "web", mcp.ServerConfig{Type: "http", URL: url}); err != nil {
		t.Fatalf("adding server: %v", err)
	}
	return h
}

func TestModel_SwapRebindsTools(t *testing.T) {
	h := newBoundHarness(t)

	h.s.Handle(context.Background(), "/model a/b")

	if len(h.built) != 1 {
		t.Fatalf("built = %d", len(h.built))
	}
	next := h.built[0]
	if got := len(next.tools["web"]); got != 2 {
		t.Errorf("new program has %d web tools, want 2", got)
	}
	b, ok := h.s.mcp.Binding("web")
	if !ok || len(b.ToolNames) != 2 {
		t.Fatalf("binding = %+v", b)
	}
	if !strings.Contains(h.out.String(), "mcp_tools: 2") {
		t.Errorf("status line lacks tool count: %q", h.out.String())
	}
}

func TestModel_RebindFailureIsAllOrNothing(t *testing.T) {
	h := newBoundHarness(t)
	b, _ := h.s.mcp.Binding("web")
	before := append([]string(nil), b.ToolNames...)

	h.s.Handle(context.Background(), "/model bad/model")

	if len(h.built) != 1 {
		t.Fatalf("built = %d", len(h.built))
	}
	if !h.built[0].closed {
		t.Errorf("discarded program not closed")
	}
	if h.prog.closed || h.s.Program() != agent.Program(h.prog) {
		t.Errorf("live program changed")
	}
	if cfg := h.s.Config(); cfg.Model != codex {
		t.Errorf("model = %q", cfg.Model)
	}
	if b, _ := h.s.mcp.Binding("web"); !reflect.DeepEqual(b.ToolNames, before) {
		t.Errorf("tool names = %v, want %v", b.ToolNames, before)
	}
	if _, err := os.Stat(h.settings.Path()); !os.IsNotExist(err) {
		t.Errorf("settings written: %v", err)
	}
	if !strings.Contains(h.out.String(), "tool schema rejected") {
		t.Errorf("output = %q", h.out.String())
	}
}
