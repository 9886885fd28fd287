// Package completion abstracts the turn-completion backend. The engine only
// depends on the Backend interface; ArkBackend is the production
// implementation and tests substitute a scripted fake.
package completion

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/schema"
)

// Prompt is the fully assembled input for one completion call: the persona's
// system prompt, the session's context window and the new user message.
type Prompt struct {
	System  string
	History []*schema.Message
	Query   string
}

// Params are per-call generation parameters sourced from the persona
// directory. Nil fields fall back to the model's defaults.
type Params struct {
	Temperature *float32
	MaxTokens   *int
}

// Backend produces a reply for an ordered conversation, either whole or as
// an incremental stream. Both calls honor context cancellation.
type Backend interface {
	Complete(ctx context.Context, p Prompt, params Params) (*schema.Message, error)
	Stream(ctx context.Context, p Prompt, params Params) (*schema.StreamReader[*schema.Message], error)
}

// ErrorKind classifies backend failures so callers can pick a retry policy;
// rate limits in particular warrant backoff.
type ErrorKind string

const (
	KindTimeout     ErrorKind = "timeout"
	KindRateLimited ErrorKind = "rate_limited"
	KindUpstream    ErrorKind = "upstream"
)

// BackendError wraps an upstream failure with its classification.
type BackendError struct {
	Kind ErrorKind
	Err  error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("completion backend %s: %v", e.Kind, e.Err)
}

func (e *BackendError) Unwrap() error { return e.Err }

// Classify wraps err as a BackendError, inferring its kind. Errors that are
// already classified pass through unchanged.
func Classify(err error) *BackendError {
	var backendErr *BackendError
	if errors.As(err, &backendErr) {
		return backendErr
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return &BackendError{Kind: KindTimeout, Err: err}
	case isRateLimit(err):
		return &BackendError{Kind: KindRateLimited, Err: err}
	default:
		return &BackendError{Kind: KindUpstream, Err: err}
	}
}

func isRateLimit(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "rate limit") || strings.Contains(msg, "429")
}

// CompletionTokens extracts the completion token count from the response
// metadata, when the backend reported usage.
func CompletionTokens(msg *schema.Message) *int {
	if msg == nil || msg.ResponseMeta == nil || msg.ResponseMeta.Usage == nil {
		return nil
	}
	n := msg.ResponseMeta.Usage.CompletionTokens
	return &n
}
