package tui

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/term"

	"github.com/batalabs/microcode/internal/paste"
)

// Rich is the bubbletea-backed Terminal. Every prompt runs as its own
// short-lived inline program so plain output between prompts stays in the
// normal scrollback.
type Rich struct {
	in      io.Reader
	out     io.Writer
	capture *paste.Capture
}

// NewRich returns a Rich terminal reading from in and drawing to out.
// capture may be nil, in which case pastes are inserted as typed.
func NewRich(in io.Reader, out io.Writer, capture *paste.Capture) *Rich {
	return &Rich{in: in, out: out, capture: capture}
}

func (r *Rich) run(ctx context.Context, m tea.Model) (tea.Model, error) {
	p := tea.NewProgram(m,
		tea.WithContext(ctx),
		tea.WithInput(r.in),
		tea.WithOutput(r.out),
	)
	final, err := p.Run()
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	if err != nil {
		return nil, fmt.Errorf("running prompt: %w", err)
	}
	return final, nil
}

// ReadLine implements Terminal.
func (r *Rich) ReadLine(ctx context.Context, prompt string) (string, error) {
	final, err := r.run(ctx, newLineModel(prompt, r.capture, r.Width()))
	if err != nil {
		return "", err
	}
	m := final.(lineModel)
	if m.aborted {
		return "", ErrAborted
	}
	return m.value, nil
}

// Choose implements Terminal.
func (r *Rich) Choose(ctx context.Context, title string, opts []Option) (string, error) {
	if len(opts) == 0 {
		return "", ErrAborted
	}
	final, err := r.run(ctx, newMenuModel(title, opts))
	if err != nil {
		return "", err
	}
	m := final.(menuModel)
	if m.aborted || m.chosen < 0 {
		return "", ErrAborted
	}
	return m.opts[m.chosen].Value, nil
}

// Ask implements Terminal.
func (r *Rich) Ask(ctx context.Context, label string) (string, error) {
	return r.ask(ctx, label, false)
}

// AskSecret implements Terminal. On a real TTY the value is read with echo
// disabled; otherwise a masked text input is used.
func (r *Rich) AskSecret(ctx context.Context, label string) (string, error) {
	if f, ok := r.in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(r.out, PromptStyle.Render(label)+" ")
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(r.out)
		if err != nil {
			return "", fmt.Errorf("reading secret: %w", err)
		}
		return strings.TrimSpace(string(b)), nil
	}
	return r.ask(ctx, label, true)
}

func (r *Rich) ask(ctx context.Context, label string, secret bool) (string, error) {
	final, err := r.run(ctx, newAskModel(label, secret))
	if err != nil {
		return "", err
	}
	m := final.(askModel)
	if m.aborted {
		return "", ErrAborted
	}
	return strings.TrimSpace(m.input.Value()), nil
}

// Clear implements Terminal.
func (r *Rich) Clear() {
	fmt.Fprint(r.out, "\x1b[H\x1b[2J")
}

// Width implements Terminal.
func (r *Rich) Width() int {
	return widthOf(r.out)
}

// askModel is a single-line free-text prompt.
type askModel struct {
	input   textinput.Model
	done    bool
	aborted bool
}

func newAskModel(label string, secret bool) askModel {
	ti := textinput.New()
	ti.Prompt = PromptStyle.Render(label) + " "
	if secret {
		ti.EchoMode = textinput.EchoPassword
		ti.EchoCharacter = '•'
	}
	ti.Focus()
	return askModel{input: ti}
}

func (m askModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m askModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if k, ok := msg.(tea.KeyMsg); ok {
		switch k.Type {
		case tea.KeyEnter:
			m.done = true
			return m, tea.Quit
		case tea.KeyCtrlC, tea.KeyEsc:
			m.aborted = true
			return m, tea.Quit
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m askModel) View() string {
	if m.done || m.aborted {
		m.input.Blur()
	}
	return m.input.View() + "\n"
}
