package compass

import (
	"errors"
	"fmt"
	"time"
)

// ErrLLM reports a failure from the LLM backend.
type ErrLLM struct {
	Provider string
	Message  string
}

func (e *ErrLLM) Error() string {
	return fmt.Sprintf("%s: %s", e.Provider, e.Message)
}

// ErrHTTP reports a non-2xx response from an external HTTP API.
// RetryAfter carries the parsed Retry-After header when present; the
// WithRetry wrapper honors it as a minimum backoff.
type ErrHTTP struct {
	Status     int
	Body       string
	RetryAfter time.Duration
}

func (e *ErrHTTP) Error() string {
	return fmt.Sprintf("http %d: %s", e.Status, e.Body)
}

// ErrStateNotFound is returned by StateStore.Load when no state exists for
// the (user, conversation) pair. Callers seed an empty state instead.
var ErrStateNotFound = errors.New("state not found")

// ErrCorruptState reports persisted state that cannot be decoded. Unlike
// ErrStateNotFound this is not recoverable by seeding; callers escalate.
type ErrCorruptState struct {
	ConversationID string
	Cause          error
}

func (e *ErrCorruptState) Error() string {
	return fmt.Sprintf("corrupt state for conversation %s: %v", e.ConversationID, e.Cause)
}

func (e *ErrCorruptState) Unwrap() error { return e.Cause }

// ErrNoPendingInterrupt is returned by ResumeTurn when the conversation has
// no suspended turn to resume.
var ErrNoPendingInterrupt = errors.New("no pending interrupt")
