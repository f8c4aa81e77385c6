package domain

import (
	"fmt"
	"strings"

	"github.com/google/shlex"
)

// CommandDef describes a slash command available to the user.
type CommandDef struct {
	Name        string
	Aliases     []string
	Usage       string
	Description string
	Group       string // display group for /help
}

// CommandDefs is the single source of truth for all slash commands.
var CommandDefs = []CommandDef{
	// Agent
	{Name: "/model", Usage: "/model [primary] [sub]", Description: "change model and sub model", Group: "agent"},
	{Name: "/key", Usage: "/key [key|clear]", Description: "set or clear the OpenRouter key", Group: "agent"},
	{Name: "/mcp", Usage: "/mcp [list|add|remove]", Description: "manage MCP servers", Group: "agent"},
	// Session
	{Name: "/c", Description: "clear conversation history", Group: "session"},
	{Name: "/clear", Aliases: []string{"/cls"}, Description: "clear the screen", Group: "session"},
	// General
	{Name: "/help", Aliases: []string{"/h", "?"}, Description: "show this help", Group: "general"},
	{Name: "/q", Aliases: []string{"exit"}, Description: "quit", Group: "general"},
}

// CommandGroups defines the display order and labels for help groups.
var CommandGroups = []struct {
	Key   string
	Label string
}{
	{"agent", "Agent"},
	{"session", "Session"},
	{"general", "General"},
}

// ActionKind is what the session should do with one input line.
type ActionKind int

const (
	ActionNone ActionKind = iota
	ActionQuit
	ActionHelp
	ActionClearScreen
	ActionKey
	ActionClearHistory
	ActionModel
	ActionMCP
	ActionTask
	ActionInvalid
)

func (k ActionKind) String() string {
	switch k {
	case ActionNone:
		return "none"
	case ActionQuit:
		return "quit"
	case ActionHelp:
		return "help"
	case ActionClearScreen:
		return "clear-screen"
	case ActionKey:
		return "key"
	case ActionClearHistory:
		return "clear-history"
	case ActionModel:
		return "model"
	case ActionMCP:
		return "mcp"
	case ActionTask:
		return "task"
	case ActionInvalid:
		return "invalid"
	default:
		return "unknown"
	}
}

// Action is the result of dispatching one line. Args holds the shell-split
// arguments following the command word; Input is the trimmed line.
type Action struct {
	Kind  ActionKind
	Input string
	Args  []string
	Err   error
}

// Dispatch classifies an input line. Matching is literal or prefix based on
// the trimmed line and the first rule that matches wins.
func Dispatch(raw string) Action {
	input := strings.TrimSpace(raw)
	switch {
	case input == "":
		return Action{Kind: ActionNone}
	case input == "/q" || input == "exit":
		return Action{Kind: ActionQuit, Input: input}
	case input == "/help" || input == "/h" || input == "?":
		return Action{Kind: ActionHelp, Input: input}
	case input == "/clear" || input == "/cls":
		return Action{Kind: ActionClearScreen, Input: input}
	case strings.HasPrefix(input, "/key"):
		return withArgs(ActionKey, input)
	case input == "/c":
		return Action{Kind: ActionClearHistory, Input: input}
	case strings.HasPrefix(input, "/model"):
		return withArgs(ActionModel, input)
	case strings.HasPrefix(input, "/mcp"):
		return withArgs(ActionMCP, input)
	default:
		return Action{Kind: ActionTask, Input: input}
	}
}

// withArgs splits input with POSIX shell rules and drops the command word.
func withArgs(kind ActionKind, input string) Action {
	parts, err := shlex.Split(input)
	if err != nil {
		return Action{Kind: ActionInvalid, Input: input, Err: fmt.Errorf("parsing %q: %w", input, err)}
	}
	var args []string
	if len(parts) > 1 {
		args = parts[1:]
	}
	return Action{Kind: kind, Input: input, Args: args}
}
