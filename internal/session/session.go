// Package session runs the interactive loop: it reads lines, dispatches
// slash commands, hot-swaps the agent program and forwards everything else
// as a task.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/batalabs/microcode/internal/agent"
	"github.com/batalabs/microcode/internal/config"
	"github.com/batalabs/microcode/internal/domain"
	"github.com/batalabs/microcode/internal/history"
	"github.com/batalabs/microcode/internal/mcp"
	"github.com/batalabs/microcode/internal/paste"
	"github.com/batalabs/microcode/internal/tui"
)

// InputPrompt is shown in front of every input line.
const InputPrompt = "❯ "

// SettingsUpdater persists changes to the cached settings.
type SettingsUpdater interface {
	Update(fn func(values map[string]any)) error
}

// Credentials caches the OpenRouter key.
type Credentials interface {
	Save(key string) error
	Clear() error
}

// Deps collects what a Session is built from. Program, Loader and Terminal
// are required; the rest have usable defaults.
type Deps struct {
	Config      config.Effective
	Ref         agent.Ref
	Program     agent.Program
	Loader      agent.Loader
	Terminal    tui.Terminal
	Capture     *paste.Capture
	MCP         *mcp.Manager
	Settings    SettingsUpdater
	Credentials Credentials
	Logger      *config.Logger
	Out         io.Writer

	// KeyFromEnv is true when OPENROUTER_API_KEY was set by the user before
	// startup. A key entered with /key is then cached but not exported.
	KeyFromEnv bool

	Getwd func() (string, error)
	Now   func() time.Time
}

// Session owns all mutable state of one interactive run. It is driven from a
// single goroutine and is not safe for concurrent use.
type Session struct {
	cfg     config.Effective
	ref     agent.Ref
	program agent.Program
	loader  agent.Loader

	term    tui.Terminal
	capture *paste.Capture
	history history.Window
	mcp     *mcp.Manager

	settings SettingsUpdater
	creds    Credentials
	log      *config.Logger
	out      io.Writer

	keyFromEnv bool
	getwd      func() (string, error)
	now        func() time.Time
}

// New builds a Session from d.
func New(d Deps) *Session {
	s := &Session{
		cfg:        d.Config,
		ref:        d.Ref,
		program:    d.Program,
		loader:     d.Loader,
		term:       d.Terminal,
		capture:    d.Capture,
		mcp:        d.MCP,
		settings:   d.Settings,
		creds:      d.Credentials,
		log:        d.Logger,
		out:        d.Out,
		keyFromEnv: d.KeyFromEnv,
		getwd:      d.Getwd,
		now:        d.Now,
	}
	if s.capture == nil {
		s.capture = paste.New(d.Config.PasteThreshold)
	}
	if s.mcp == nil {
		s.mcp = mcp.NewManager(nil, s.log.Printf)
	}
	if s.out == nil {
		s.out = os.Stdout
	}
	if s.getwd == nil {
		s.getwd = os.Getwd
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// Program returns the live agent program.
func (s *Session) Program() agent.Program {
	return s.program
}

// Config returns the effective configuration, including any model swap.
func (s *Session) Config() config.Effective {
	return s.cfg
}

// History exposes the conversation window.
func (s *Session) History() *history.Window {
	return &s.history
}

// Close releases the program and every MCP connection.
func (s *Session) Close() {
	s.mcp.CloseAll()
	if s.program != nil {
		if err := s.program.Close(); err != nil {
			s.log.Printf("session: closing program: %v", err)
		}
	}
}

// Run reads and handles lines until the user quits, input ends or ctx is
// cancelled. Those all return nil; only an unusable terminal is an error.
func (s *Session) Run(ctx context.Context) error {
	for {
		fmt.Fprintln(s.out, tui.Separator(s.term.Width()))
		line, err := s.term.ReadLine(ctx, InputPrompt)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, tui.ErrAborted) || errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("reading input: %w", err)
		}
		if !s.Handle(ctx, line) {
			return nil
		}
	}
}

// Handle processes one completed input line and reports whether the loop
// should continue.
func (s *Session) Handle(ctx context.Context, line string) bool {
	// Every line ends the paste cycle, command or not.
	pasted, _ := s.capture.Consume(line)

	act := domain.Dispatch(line)
	switch act.Kind {
	case domain.ActionNone:
	case domain.ActionQuit:
		return false
	case domain.ActionHelp:
		fmt.Fprintln(s.out, tui.Help())
	case domain.ActionClearScreen:
		s.term.Clear()
	case domain.ActionKey:
		s.handleKey(ctx, act.Args)
	case domain.ActionClearHistory:
		s.history.Clear()
		s.notice("Cleared conversation")
	case domain.ActionModel:
		s.handleModel(ctx, act.Args)
		fmt.Fprintln(s.out, tui.Separator(s.term.Width()))
		fmt.Fprintln(s.out, s.statusLine())
		fmt.Fprintln(s.out)
	case domain.ActionMCP:
		if !s.handleMCP(ctx, act.Args) {
			s.runTask(ctx, act.Input, pasted)
		}
	case domain.ActionInvalid:
		s.errorLine(act.Err.Error())
	case domain.ActionTask:
		s.runTask(ctx, act.Input, pasted)
	}
	return true
}

// BuildTask assembles the payload sent to the program for input: working
// directory, UTC time, the trailing history window and an optional paste.
func (s *Session) BuildTask(input, pasted string) string {
	cwd, err := s.getwd()
	if err != nil {
		cwd = "."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Current task: %s\n", input)
	fmt.Fprintf(&b, "Working directory: %s\nTime: %s\n\n", cwd, s.now().UTC().Format("2006-01-02 15:04:05"))
	if turns := s.history.Tail(s.cfg.HistoryLimit); len(turns) > 0 {
		b.WriteString("Previous conversation:\n")
		for _, t := range turns {
			fmt.Fprintf(&b, "User: %s\nAssistant: %s\n\n", t.User, t.Assistant)
		}
	}
	if pasted != "" {
		fmt.Fprintf(&b, "\nPasted content:\n%s\n", pasted)
	}
	b.WriteString("\n")
	return b.String()
}

func (s *Session) runTask(ctx context.Context, input, pasted string) {
	task := s.BuildTask(input, pasted)
	s.log.Printf("task: %d chars, paste=%t, history=%d", len(task), pasted != "", s.history.Len())

	fmt.Fprintln(s.out)
	fmt.Fprintln(s.out, tui.AsstIconStyle.Render("⏺")+" "+tui.ThinkingStyle.Render("Thinking..."))

	res, err := s.program.Invoke(ctx, task)
	if err != nil {
		s.reportError(ctx, err)
		return
	}
	fmt.Fprintln(s.out)
	fmt.Fprintln(s.out, tui.AsstIconStyle.Render("⏺")+" "+tui.RenderMarkdown(res.Answer, s.term.Width()-2))
	fmt.Fprintln(s.out)
	s.history.Append(history.Turn{User: input, Assistant: res.Answer})
}

func (s *Session) reportError(ctx context.Context, err error) {
	if ctx.Err() != nil {
		s.log.Printf("task interrupted: %v", err)
		return
	}
	if agent.Classify(err) == agent.FailureAuth {
		s.log.Printf("task failed (auth): %v", err)
		s.errorLine(agent.AuthMessage(err))
		return
	}
	s.log.Printf("task failed: %v", err)
	msg := err.Error()
	if i := strings.IndexByte(msg, '\n'); i >= 0 {
		msg = msg[:i]
	}
	s.errorLine("Error: " + msg)
}

func (s *Session) handleMCP(ctx context.Context, args []string) bool {
	out, handled, err := s.mcp.HandleCommand(ctx, args, s.program)
	if !handled {
		return false
	}
	if err != nil {
		s.log.Printf("mcp: %v", err)
		s.errorLine(err.Error())
		return true
	}
	fmt.Fprintln(s.out, out)
	return true
}

func (s *Session) statusLine() string {
	cwd, err := s.getwd()
	if err != nil {
		cwd = "."
	}
	return tui.StatusLine(tui.ShortCwd(cwd), s.cfg.Model, s.cfg.SubModel, s.mcp.ToolCount())
}

func (s *Session) notice(msg string) {
	fmt.Fprintln(s.out, tui.NoticeStyle.Render("⏺ "+msg))
}

func (s *Session) errorLine(msg string) {
	fmt.Fprintln(s.out, tui.ErrorLineStyle.Render("⏺ "+msg))
}
