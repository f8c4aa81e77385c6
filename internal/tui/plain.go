package tui

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/batalabs/microcode/internal/paste"
)

// Plain is the Terminal used when stdin or stdout is not a TTY. Input is
// read line by line and choices are numbered.
type Plain struct {
	in      io.Reader
	out     io.Writer
	capture *paste.Capture
	once    sync.Once
	lines   chan lineResult
}

type lineResult struct {
	text string
	err  error
}

// NewPlain returns a line-based Terminal. Lines longer than the capture
// threshold are held back as a paste; capture may be nil.
func NewPlain(in io.Reader, out io.Writer, capture *paste.Capture) *Plain {
	return &Plain{in: in, out: out, capture: capture, lines: make(chan lineResult)}
}

// start launches the single reader goroutine. The channel is closed after
// the first read error has been delivered.
func (p *Plain) start() {
	p.once.Do(func() {
		go func() {
			defer close(p.lines)
			r := bufio.NewReader(p.in)
			for {
				s, err := r.ReadString('\n')
				if s != "" {
					p.lines <- lineResult{text: strings.TrimRight(s, "\r\n")}
				}
				if err != nil {
					p.lines <- lineResult{err: err}
					return
				}
			}
		}()
	})
}

func (p *Plain) next(ctx context.Context) (string, error) {
	p.start()
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case r, ok := <-p.lines:
		if !ok {
			return "", io.EOF
		}
		return r.text, r.err
	}
}

// ReadLine implements Terminal.
func (p *Plain) ReadLine(ctx context.Context, prompt string) (string, error) {
	fmt.Fprint(p.out, prompt)
	line, err := p.next(ctx)
	if err != nil || p.capture == nil {
		return line, err
	}
	return p.capture.InterceptLine(line), nil
}

// Choose implements Terminal. Empty input or end of input cancels.
func (p *Plain) Choose(ctx context.Context, title string, opts []Option) (string, error) {
	if len(opts) == 0 {
		return "", ErrAborted
	}
	fmt.Fprintln(p.out, title)
	for i, o := range opts {
		fmt.Fprintf(p.out, "  %d) %s\n", i+1, o.Label)
	}
	for {
		fmt.Fprintf(p.out, "Select [1-%d, empty to cancel]: ", len(opts))
		line, err := p.next(ctx)
		if err != nil {
			return "", abortOnEOF(err)
		}
		line = strings.TrimSpace(line)
		if line == "" {
			return "", ErrAborted
		}
		n, err := strconv.Atoi(line)
		if err != nil || n < 1 || n > len(opts) {
			fmt.Fprintf(p.out, "invalid choice %q\n", line)
			continue
		}
		return opts[n-1].Value, nil
	}
}

// Ask implements Terminal.
func (p *Plain) Ask(ctx context.Context, label string) (string, error) {
	fmt.Fprint(p.out, label+" ")
	line, err := p.next(ctx)
	if err != nil {
		return "", abortOnEOF(err)
	}
	return strings.TrimSpace(line), nil
}

// AskSecret implements Terminal. Without a TTY there is no echo to
// suppress, so it behaves like Ask.
func (p *Plain) AskSecret(ctx context.Context, label string) (string, error) {
	return p.Ask(ctx, label)
}

// Clear implements Terminal.
func (p *Plain) Clear() {
	fmt.Fprintln(p.out)
}

// Width implements Terminal.
func (p *Plain) Width() int {
	return widthOf(p.out)
}

func abortOnEOF(err error) error {
	if errors.Is(err, io.EOF) {
		return ErrAborted
	}
	return err
}
