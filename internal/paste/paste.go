// Package paste holds large pasted blocks out of the visible input line.
//
// A Capture is either idle or armed with exactly one Record. Intercept arms
// it when a single paste exceeds the threshold and hands back a short
// placeholder to show instead. Consume must be called once for every
// completed input line: it always disarms, and returns the retained text only
// if the line still carries the placeholder. A record therefore survives at
// most one input cycle.
//
// Lengths are counted in characters (runes), not bytes. A paste at or under
// the threshold leaves an armed record untouched rather than clearing it, so
// a short paste typed after a long one does not lose the long one.
package paste

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// DefaultThreshold is the paste length above which capture kicks in.
const DefaultThreshold = 2000

// Record is a captured paste and the placeholder standing in for it.
type Record struct {
	Text        string
	Placeholder string
}

// Placeholder returns the visible token for a paste of n characters.
func Placeholder(n int) string {
	return fmt.Sprintf("[pasted %d+ chars]", n)
}

// Capture is the paste state machine. The zero value has capture disabled.
type Capture struct {
	threshold int
	record    *Record
}

// New returns a Capture that arms on pastes longer than threshold. A
// threshold of zero or less disables capture.
func New(threshold int) *Capture {
	return &Capture{threshold: threshold}
}

// Threshold reports the configured threshold.
func (c *Capture) Threshold() int {
	return c.threshold
}

// Enabled reports whether large pastes are captured at all.
func (c *Capture) Enabled() bool {
	return c.threshold > 0
}

// Intercept inspects one paste event. Text at or under the threshold is
// returned unchanged and leaves any armed record alone. Larger text arms the
// capture, replacing a previous record if there was one, and the
// placeholder is returned in its place.
func (c *Capture) Intercept(text string) string {
	if !c.Enabled() {
		return text
	}
	n := utf8.RuneCountInString(text)
	if n <= c.threshold {
		return text
	}
	c.record = &Record{Text: text, Placeholder: Placeholder(n)}
	return c.record.Placeholder
}

// InterceptLine applies Intercept to a completed input line, so long typed
// input or input built from several small pastes is held back too. A line
// that already carries the armed placeholder is returned as is; the paste
// it refers to stays armed.
func (c *Capture) InterceptLine(line string) string {
	if r := c.record; r != nil && strings.Contains(line, r.Placeholder) {
		return line
	}
	return c.Intercept(line)
}

// Consume ends the input cycle for line. It returns the retained text when
// line contains the armed placeholder. The capture is idle afterwards in
// every case.
func (c *Capture) Consume(line string) (string, bool) {
	r := c.record
	c.record = nil
	if r == nil || !strings.Contains(line, r.Placeholder) {
		return "", false
	}
	return r.Text, true
}

// Armed returns the retained record, if any.
func (c *Capture) Armed() (Record, bool) {
	if c.record == nil {
		return Record{}, false
	}
	return *c.record, true
}
