package session

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/batalabs/microcode/internal/agent"
	"github.com/batalabs/microcode/internal/config"
	"github.com/batalabs/microcode/internal/history"
	"github.com/batalabs/microcode/internal/mcp"
	"github.com/batalabs/microcode/internal/paste"
	"github.com/batalabs/microcode/internal/tui"
)

type fakeProgram struct {
	cfg    agent.Config
	answer string
	err    error
	tasks  []string
	tools  map[string][]agent.Tool
	closed bool
}

func newFakeProgram(cfg agent.Config) *fakeProgram {
	return &fakeProgram{cfg: cfg, answer: "done", tools: map[string][]agent.Tool{}}
}

func (p *fakeProgram) Invoke(ctx context.Context, task string) (agent.Result, error) {
	p.tasks = append(p.tasks, task)
	if p.err != nil {
		return agent.Result{}, p.err
	}
	return agent.Result{Answer: p.answer}, nil
}

func (p *fakeProgram) RegisterTools(server string, tools []agent.Tool) {
	if tools == nil {
		delete(p.tools, server)
		return
	}
	p.tools[server] = tools
}

func (p *fakeProgram) Config() agent.Config { return p.cfg }

func (p *fakeProgram) Close() error {
	p.closed = true
	return nil
}

// fakeTerm replays scripted input. An empty choice or a drained queue is a
// cancel.
type fakeTerm struct {
	lines   []string
	choices []string
	asks    []string
	secrets []string
	cleared int
}

func pop(q *[]string) (string, bool) {
	if len(*q) == 0 {
		return "", false
	}
	v := (*q)[0]
	*q = (*q)[1:]
	return v, true
}

func (f *fakeTerm) ReadLine(ctx context.Context, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if v, ok := pop(&f.lines); ok {
		return v, nil
	}
	return "", io.EOF
}

func (f *fakeTerm) Choose(ctx context.Context, title string, opts []tui.Option) (string, error) {
	v, ok := pop(&f.choices)
	if !ok || v == "" {
		return "", tui.ErrAborted
	}
	return v, nil
}

func (f *fakeTerm) Ask(ctx context.Context, label string) (string, error) {
	if v, ok := pop(&f.asks); ok {
		return v, nil
	}
	return "", tui.ErrAborted
}

func (f *fakeTerm) AskSecret(ctx context.Context, label string) (string, error) {
	if v, ok := pop(&f.secrets); ok {
		return v, nil
	}
	return "", tui.ErrAborted
}

func (f *fakeTerm) Clear()     { f.cleared++ }
func (f *fakeTerm) Width() int { return 80 }

type harness struct {
	s        *Session
	out      *bytes.Buffer
	term     *fakeTerm
	prog     *fakeProgram
	settings *config.SettingsStore
	creds    *config.CredentialStore
	built    []*fakeProgram
	loadErr  error
}

func testConfig() config.Effective {
	return config.Effective{
		Model:          "openrouter/openai/gpt-5.2-codex",
		SubModel:       "openrouter/openai/gpt-5.2-codex",
		Env:            "prod",
		MaxIterations:  50,
		MaxTokens:      500,
		HistoryLimit:   10,
		PasteThreshold: 10,
		Sources:        map[string]config.Source{},
	}
}

func newHarness(t *testing.T, mgr *mcp.Manager) *harness {
	t.Helper()
	dir := t.TempDir()
	cfg := testConfig()
	h := &harness{
		out:      &bytes.Buffer{},
		term:     &fakeTerm{},
		prog:     newFakeProgram(cfg.AgentConfig()),
		settings: config.NewSettingsStore(dir),
		creds:    config.NewCredentialStore(dir),
	}
	loader := func(ctx context.Context, ref agent.Ref, c agent.Config) (agent.Program, error) {
		if h.loadErr != nil {
			return nil, h.loadErr
		}
		p := newFakeProgram(c)
		h.built = append(h.built, p)
		return p, nil
	}
	h.s = New(Deps{
		Config:      cfg,
		Ref:         agent.Ref{Repo: agent.DefaultRepo, Rev: "prod"},
		Program:     h.prog,
		Loader:      loader,
		Terminal:    h.term,
		Capture:     paste.New(cfg.PasteThreshold),
		MCP:         mgr,
		Settings:    h.settings,
		Credentials: h.creds,
		Out:         h.out,
		Getwd:       func() (string, error) { return "/work/proj", nil },
		Now:         func() time.Time { return time.Date(2026, 3, 4, 5, 6, 7, 0, time.FixedZone("X", 3600)) },
	})
	return h
}

func TestHandle_Quit(t *testing.T) {
	h := newHarness(t, nil)
	for _, in := range []string{"/q", "exit", "  /q  "} {
		if h.s.Handle(context.Background(), in) {
			t.Errorf("Handle(%q) should stop the loop", in)
		}
	}
	for _, in := range []string{"", "   ", "/help", "/clear"} {
		if !h.s.Handle(context.Background(), in) {
			t.Errorf("Handle(%q) should continue", in)
		}
	}
	if len(h.prog.tasks) != 0 {
		t.Errorf("commands must not reach the program: %q", h.prog.tasks)
	}
	if h.term.cleared != 1 {
		t.Errorf("cleared = %d, want 1", h.term.cleared)
	}
}

func TestRun_EndsCleanly(t *testing.T) {
	t.Run("end of input", func(t *testing.T) {
		h := newHarness(t, nil)
		h.term.lines = []string{"hello"}
		if err := h.s.Run(context.Background()); err != nil {
			t.Fatalf("Run = %v", err)
		}
		if len(h.prog.tasks) != 1 || h.s.History().Len() != 1 {
			t.Errorf("tasks = %d, history = %d", len(h.prog.tasks), h.s.History().Len())
		}
	})
	t.Run("quit", func(t *testing.T) {
		h := newHarness(t, nil)
		h.term.lines = []string{"/q", "never"}
		if err := h.s.Run(context.Background()); err != nil {
			t.Fatalf("Run = %v", err)
		}
		if len(h.prog.tasks) != 0 {
			t.Errorf("line after /q was processed")
		}
	})
	t.Run("cancelled context", func(t *testing.T) {
		h := newHarness(t, nil)
		h.term.lines = []string{"hello"}
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		if err := h.s.Run(ctx); err != nil {
			t.Fatalf("Run = %v", err)
		}
		if len(h.prog.tasks) != 0 {
			t.Errorf("no line should be read after cancel")
		}
	})
}

func TestBuildTask(t *testing.T) {
	h := newHarness(t, nil)
	h.s.cfg.HistoryLimit = 2
	w := h.s.History()
	w.Append(history.Turn{User: "u1", Assistant: "a1"})
	w.Append(history.Turn{User: "u2", Assistant: "a2"})
	w.Append(history.Turn{User: "u3", Assistant: "a3"})

	got := h.s.BuildTask("fix it", "PASTE")
	want := "Current task: fix it\n" +
		"Working directory: /work/proj\nTime: 2026-03-04 04:06:07\n\n" +
		"Previous conversation:\n" +
		"User: u2\nAssistant: a2\n\n" +
		"User: u3\nAssistant: a3\n\n" +
		"\nPasted content:\nPASTE\n" +
		"\n"
	if got != want {
		t.Errorf("BuildTask =\n%q\nwant\n%q", got, want)
	}
}

func TestBuildTask_Minimal(t *testing.T) {
	h := newHarness(t, nil)
	got := h.s.BuildTask("hi", "")
	want := "Current task: hi\nWorking directory: /work/proj\nTime: 2026-03-04 04:06:07\n\n\n"
	if got != want {
		t.Errorf("BuildTask = %q, want %q", got, want)
	}
}

func TestHandle_TaskAppendsHistory(t *testing.T) {
	h := newHarness(t, nil)
	h.prog.answer = "**answer**"
	h.s.Handle(context.Background(), "  explain  ")

	turns := h.s.History().Tail(5)
	if len(turns) != 1 || turns[0].User != "explain" || turns[0].Assistant != "**answer**" {
		t.Fatalf("history = %+v", turns)
	}
	if !strings.Contains(h.out.String(), "answer") {
		t.Errorf("answer not rendered: %q", h.out.String())
	}

	h.s.Handle(context.Background(), "again")
	if !strings.Contains(h.prog.tasks[1], "User: explain\nAssistant: **answer**") {
		t.Errorf("second task lacks history: %q", h.prog.tasks[1])
	}
}

func TestHandle_PasteIsOneShot(t *testing.T) {
	h := newHarness(t, nil)
	text := strings.Repeat("a", 15)
	ph := h.s.capture.Intercept(text)
	if ph != "[pasted 15+ chars]" {
		t.Fatalf("placeholder = %q", ph)
	}

	h.s.Handle(context.Background(), "run "+ph)
	if !strings.Contains(h.prog.tasks[0], "\nPasted content:\n"+text+"\n") {
		t.Fatalf("paste not delivered: %q", h.prog.tasks[0])
	}

	h.s.Handle(context.Background(), "run "+ph)
	if strings.Contains(h.prog.tasks[1], "Pasted content") {
		t.Errorf("paste delivered twice: %q", h.prog.tasks[1])
	}
}

func TestHandle_PasteDiscardedByOtherLine(t *testing.T) {
	h := newHarness(t, nil)
	ph := h.s.capture.Intercept(strings.Repeat("a", 15))

	h.s.Handle(context.Background(), "/help")
	h.s.Handle(context.Background(), "use "+ph)
	if strings.Contains(h.prog.tasks[0], "Pasted content") {
		t.Errorf("stale paste delivered: %q", h.prog.tasks[0])
	}
}

func TestHandle_ClearHistory(t *testing.T) {
	h := newHarness(t, nil)
	h.s.Handle(context.Background(), "one")
	h.s.Handle(context.Background(), "/c")
	if h.s.History().Len() != 0 {
		t.Errorf("history not cleared")
	}
	if !strings.Contains(h.out.String(), "Cleared conversation") {
		t.Errorf("no confirmation: %q", h.out.String())
	}
}

func TestHandle_InvokeErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"missing credentials", agent.ErrNoCredentials, "OpenRouter authentication failed: no credentials found."},
		{"rejected credentials", errors.New("litellm.AuthenticationError: OpenrouterException - bad key"), "OpenRouter authentication failed. Set"},
		{"other", errors.New("boom\ntrace line"), "Error: boom"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, nil)
			h.prog.err = tt.err
			if !h.s.Handle(context.Background(), "task") {
				t.Fatal("failures must not stop the loop")
			}
			out := h.out.String()
			if !strings.Contains(out, tt.want) {
				t.Errorf("output %q lacks %q", out, tt.want)
			}
			if strings.Contains(out, "trace line") {
				t.Errorf("full detail leaked to the user: %q", out)
			}
			if h.s.History().Len() != 0 {
				t.Errorf("failed task recorded in history")
			}
		})
	}
}

func TestHandle_InvalidQuoting(t *testing.T) {
	h := newHarness(t, nil)
	h.s.Handle(context.Background(), `/key "sk-open`)
	if !strings.Contains(h.out.String(), "parsing") {
		t.Errorf("output = %q", h.out.String())
	}
	if _, ok := h.creds.Load(); ok {
		t.Error("nothing should be cached")
	}
}

func TestHandle_MCPDelegation(t *testing.T) {
	h := newHarness(t, nil)
	h.s.Handle(context.Background(), "/mcp")
	if !strings.Contains(h.out.String(), "No MCP servers connected") {
		t.Errorf("output = %q", h.out.String())
	}
	if len(h.prog.tasks) != 0 {
		t.Fatalf("/mcp list reached the program")
	}

	h.s.Handle(context.Background(), "/mcp frobnicate")
	if len(h.prog.tasks) != 1 || !strings.HasPrefix(h.prog.tasks[0], "Current task: /mcp frobnicate\n") {
		t.Errorf("unknown sub-command should run as a task: %q", h.prog.tasks)
	}

	h.s.Handle(context.Background(), "/mcp remove ghost")
	if !strings.Contains(h.out.String(), "unknown MCP server") {
		t.Errorf("output = %q", h.out.String())
	}
}

func TestNew_Defaults(t *testing.T) {
	s := New(Deps{Config: config.Effective{PasteThreshold: 0}, Program: newFakeProgram(agent.Config{}), Terminal: &fakeTerm{}})
	if s.capture == nil || s.capture.Enabled() {
		t.Error("capture should exist and be disabled for threshold 0")
	}
	if s.mcp == nil || s.out == nil || s.getwd == nil || s.now == nil {
		t.Error("defaults not applied")
	}
	if s.Program() == nil {
		t.Error("Program() = nil")
	}
}

func TestMain(m *testing.M) {
	// Keep the developer's credential out of the key tests.
	os.Unsetenv(agent.APIKeyEnv)
	os.Exit(m.Run())
}
