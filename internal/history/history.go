package history

// Turn is one exchange with the agent.
type Turn struct {
	User      string
	Assistant string
}

// Window is the in-memory conversation log. Storage is never pruned; callers
// choose how much of the tail to surface.
type Window struct {
	turns []Turn
}

// Append adds a turn at the end.
func (w *Window) Append(t Turn) {
	w.turns = append(w.turns, t)
}

// Tail returns a copy of the last min(n, Len) turns in chronological order.
func (w *Window) Tail(n int) []Turn {
	if n <= 0 || len(w.turns) == 0 {
		return nil
	}
	if n > len(w.turns) {
		n = len(w.turns)
	}
	out := make([]Turn, n)
	copy(out, w.turns[len(w.turns)-n:])
	return out
}

// Clear drops every turn.
func (w *Window) Clear() {
	w.turns = nil
}

// Len returns the number of stored turns.
func (w *Window) Len() int {
	return len(w.turns)
}
