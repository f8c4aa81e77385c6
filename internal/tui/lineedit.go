package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textarea"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/batalabs/microcode/internal/paste"
)

const maxEditorHeight = 10

// lineModel edits one input line. Enter submits, ctrl+j breaks the line,
// and bracketed pastes go through the paste capture before insertion. The
// submitted line itself is offered to the capture as well.
type lineModel struct {
	input   textarea.Model
	capture *paste.Capture
	prompt  string
	value   string
	done    bool
	aborted bool
}

func newLineModel(prompt string, capture *paste.Capture, width int) lineModel {
	rendered := PromptStyle.Render(prompt)
	pw := lipgloss.Width(rendered)

	ta := textarea.New()
	ta.ShowLineNumbers = false
	ta.CharLimit = 0
	ta.KeyMap.InsertNewline = key.NewBinding(key.WithKeys("ctrl+j"))
	ta.FocusedStyle.CursorLine = lipgloss.NewStyle()
	ta.SetPromptFunc(pw, func(line int) string {
		if line == 0 {
			return rendered
		}
		return strings.Repeat(" ", pw)
	})
	ta.SetWidth(width)
	ta.SetHeight(1)
	ta.Focus()
	return lineModel{input: ta, capture: capture, prompt: rendered}
}

func (m lineModel) Init() tea.Cmd {
	return textarea.Blink
}

func (m lineModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.input.SetWidth(msg.Width)
	case tea.KeyMsg:
		if msg.Paste {
			m.insertPaste(string(msg.Runes))
			return m, nil
		}
		switch msg.Type {
		case tea.KeyEnter:
			m.value = m.input.Value()
			if m.capture != nil {
				m.value = m.capture.InterceptLine(m.value)
			}
			m.done = true
			return m, tea.Quit
		case tea.KeyCtrlC:
			m.aborted = true
			return m, tea.Quit
		case tea.KeyCtrlD:
			if m.input.Value() == "" {
				m.aborted = true
				return m, tea.Quit
			}
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	m.fit()
	return m, cmd
}

func (m *lineModel) insertPaste(raw string) {
	text := strings.ReplaceAll(raw, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	if m.capture != nil {
		text = m.capture.Intercept(text)
	}
	m.input.InsertString(text)
	m.fit()
}

func (m *lineModel) fit() {
	h := m.input.LineCount()
	if h > maxEditorHeight {
		h = maxEditorHeight
	}
	if h < 1 {
		h = 1
	}
	m.input.SetHeight(h)
}

func (m lineModel) View() string {
	if m.done {
		lines := strings.Split(m.value, "\n")
		pad := strings.Repeat(" ", lipgloss.Width(m.prompt))
		return m.prompt + strings.Join(lines, "\n"+pad) + "\n"
	}
	if m.aborted {
		return m.prompt + "\n"
	}
	return m.input.View()
}
