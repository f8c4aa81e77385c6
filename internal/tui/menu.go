package tui

import (
	"strings"

	tea "github.com/charmbracelet/bubbletea"
)

// menuModel is a vertical choice list. Arrow keys (or j/k) move, enter
// picks, a digit picks the matching entry directly, esc or q cancels.
type menuModel struct {
	title   string
	opts    []Option
	cursor  int
	chosen  int
	aborted bool
}

func newMenuModel(title string, opts []Option) menuModel {
	return menuModel{title: title, opts: opts, chosen: -1}
}

// MoveUp moves the selection up.
func (m *menuModel) MoveUp() {
	if m.cursor > 0 {
		m.cursor--
	}
}

// MoveDown moves the selection down.
func (m *menuModel) MoveDown() {
	if m.cursor < len(m.opts)-1 {
		m.cursor++
	}
}

func (m menuModel) Init() tea.Cmd {
	return nil
}

func (m menuModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	k, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	switch s := k.String(); s {
	case "up", "k", "ctrl+p":
		m.MoveUp()
	case "down", "j", "ctrl+n":
		m.MoveDown()
	case "enter":
		m.chosen = m.cursor
		return m, tea.Quit
	case "esc", "q", "ctrl+c":
		m.aborted = true
		return m, tea.Quit
	default:
		if len(s) == 1 && s[0] >= '1' && s[0] <= '9' {
			if n := int(s[0] - '1'); n < len(m.opts) {
				m.cursor = n
				m.chosen = n
				return m, tea.Quit
			}
		}
	}
	return m, nil
}

func (m menuModel) View() string {
	var b strings.Builder
	b.WriteString(MenuTitleStyle.Render(m.title))
	if m.chosen >= 0 {
		b.WriteString(" " + MenuItemStyle.Render(m.opts[m.chosen].Label) + "\n")
		return b.String()
	}
	if m.aborted {
		b.WriteString(" " + MenuHintStyle.Render("(cancelled)") + "\n")
		return b.String()
	}
	b.WriteString("\n")
	for i, o := range m.opts {
		if i == m.cursor {
			b.WriteString(MenuSelStyle.Render("› "+o.Label) + "\n")
			continue
		}
		b.WriteString(MenuItemStyle.Render("  "+o.Label) + "\n")
	}
	b.WriteString(MenuHintStyle.Render("↑/↓ move · enter select · esc cancel") + "\n")
	return b.String()
}
