package agent

import (
	"errors"
	"net/http"
	"strings"

	"github.com/openai/openai-go/v2"
)

// ErrNoCredentials is returned by Invoke when OPENROUTER_API_KEY is empty.
var ErrNoCredentials = errors.New("no OpenRouter credentials configured")

// FailureKind classifies an invocation failure for display.
type FailureKind int

const (
	FailureOther FailureKind = iota
	FailureAuth
)

func (k FailureKind) String() string {
	if k == FailureAuth {
		return "auth"
	}
	return "other"
}

// Classify maps err to a FailureKind. Structured errors are checked first;
// message matching covers collaborators that only surface text.
func Classify(err error) FailureKind {
	if err == nil {
		return FailureOther
	}
	if errors.Is(err, ErrNoCredentials) {
		return FailureAuth
	}
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return FailureAuth
		}
		return FailureOther
	}
	if missingCredentials(err.Error()) || rejectedCredentials(err.Error()) {
		return FailureAuth
	}
	return FailureOther
}

func missingCredentials(msg string) bool {
	return strings.Contains(msg, "OpenrouterException") &&
		strings.Contains(msg, "No cookie auth credentials found")
}

func rejectedCredentials(msg string) bool {
	return strings.Contains(msg, "AuthenticationError") &&
		strings.Contains(msg, "OpenrouterException")
}

// AuthMessage returns the one-line hint shown for an authentication failure.
func AuthMessage(err error) string {
	if errors.Is(err, ErrNoCredentials) || (err != nil && missingCredentials(err.Error())) {
		return "OpenRouter authentication failed: no credentials found. Set `OPENROUTER_API_KEY` or run `/key` to cache it."
	}
	return "OpenRouter authentication failed. Set `OPENROUTER_API_KEY` or run `/key` to cache it."
}
