package tui

import (
	"context"
	"errors"
	"io"
	"os"

	"golang.org/x/term"

	"github.com/batalabs/microcode/internal/paste"
)

// ErrAborted is returned when the user cancels an input prompt with
// ctrl+c, ctrl+d or escape.
var ErrAborted = errors.New("input aborted")

// Option is one entry of a choice prompt. Value is what Choose returns.
type Option struct {
	Label string
	Value string
}

// Terminal is everything the session needs from the user's terminal.
type Terminal interface {
	// ReadLine reads one logical input line. Large pastes are routed
	// through the paste capture and show up as a placeholder.
	ReadLine(ctx context.Context, prompt string) (string, error)
	// Choose shows opts and returns the chosen Value, or ErrAborted.
	Choose(ctx context.Context, title string, opts []Option) (string, error)
	// Ask reads a free-text answer.
	Ask(ctx context.Context, label string) (string, error)
	// AskSecret reads a value without echoing it.
	AskSecret(ctx context.Context, label string) (string, error)
	// Clear wipes the screen.
	Clear()
	// Width reports the usable column count.
	Width() int
}

// IsInteractive reports whether both stdin and stdout are terminals.
func IsInteractive() bool {
	return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
}

// NewTerminal picks the bubbletea terminal when stdin and stdout are a
// TTY and the line-based one otherwise.
func NewTerminal(capture *paste.Capture) Terminal {
	if IsInteractive() {
		return NewRich(os.Stdin, os.Stdout, capture)
	}
	return NewPlain(os.Stdin, os.Stdout, capture)
}

const defaultWidth = 80

func widthOf(w io.Writer) int {
	f, ok := w.(*os.File)
	if !ok {
		return defaultWidth
	}
	cols, _, err := term.GetSize(int(f.Fd()))
	if err != nil || cols <= 0 {
		return defaultWidth
	}
	return cols
}
