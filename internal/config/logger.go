package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Logger writes timestamped diagnostic lines to <cache dir>/microcode.log and,
// when a mirror is attached, to that writer as well.
type Logger struct {
	mu     sync.Mutex
	file   *os.File
	mirror io.Writer
}

// LogPath returns the log file path inside dir.
func LogPath(dir string) string {
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, "microcode.log")
}

// NewLogger creates a logger that appends to microcode.log in dir. A logger
// whose file cannot be opened is still usable; it only writes to its mirror.
func NewLogger(dir string) *Logger {
	l := &Logger{}

	p := LogPath(dir)
	if p == "" {
		return l
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return l
	}

	f, err := os.OpenFile(p, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return l
	}

	l.file = f
	return l
}

// Mirror sends every subsequent line to w as well. Passing nil stops
// mirroring.
func (l *Logger) Mirror(w io.Writer) {
	if l == nil {
		return
	}
	l.mu.Lock()
	l.mirror = w
	l.mu.Unlock()
}

// Printf writes a timestamped log line.
func (l *Logger) Printf(format string, args ...any) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil && l.mirror == nil {
		return
	}
	ts := time.Now().UTC().Format("2006-01-02T15:04:05Z")
	line := ts + " " + fmt.Sprintf(format, args...) + "\n"
	if l.file != nil {
		io.WriteString(l.file, line)
	}
	if l.mirror != nil {
		io.WriteString(l.mirror, line)
	}
}

// Close closes the log file.
func (l *Logger) Close() {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file != nil {
		l.file.Close()
		l.file = nil
	}
}
