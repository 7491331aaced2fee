package providers

import (
	"context"
	"fmt"
	"strings"
)

// Name identifies a supported AI backend. Inbound strings are resolved
// once at the boundary via ParseName; everything past that point works
// with the closed enum.
type Name string

const (
	NameOpenAI Name = "openai"
	NameGemini Name = "gemini"
)

func ParseName(s string) (Name, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "openai", "chatgpt":
		return NameOpenAI, true
	case "gemini":
		return NameGemini, true
	default:
		return "", false
	}
}

// HistoryLimit is the fixed bound on context turns sent to any backend.
const HistoryLimit = 10

type Turn struct {
	Role    string
	Content string
}

// BoundHistory keeps only the most recent HistoryLimit turns.
func BoundHistory(history []Turn) []Turn {
	if len(history) > HistoryLimit {
		return history[len(history)-HistoryLimit:]
	}
	return history
}

type Request struct {
	Preamble    string
	Prompt      string
	History     []Turn
	MaxTokens   int
	Temperature float64
}

type Result struct {
	Text   string
	Tokens int64
}

// Provider is one backend handle, constructed per (backend, model) pair.
type Provider interface {
	Generate(ctx context.Context, req Request) (Result, *Error)
}

type ErrorKind string

const (
	KindNotConfigured   ErrorKind = "not_configured"
	KindUnknownProvider ErrorKind = "unknown_provider"
	KindRateLimited     ErrorKind = "rate_limited"
	KindAuthInvalid     ErrorKind = "auth_invalid"
	KindInvalidArgument ErrorKind = "invalid_argument"
	KindQuotaExceeded   ErrorKind = "quota_exceeded"
	KindBackendFault    ErrorKind = "backend_fault"
	KindUnexpected      ErrorKind = "unexpected"
)

// Error is a classified provider failure. Message is safe to show to
// end users; internal detail belongs in logs, not here.
type Error struct {
	Kind    ErrorKind
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func Errorf(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Reply is the uniform outcome handed to callers: either Text (with
// attribution fields) or Err, never both.
type Reply struct {
	Text     string
	Provider Name
	Model    string
	Tokens   int64
	Err      *Error
}

func (r Reply) Failed() bool { return r.Err != nil }
