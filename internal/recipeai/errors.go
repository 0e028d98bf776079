package recipeai

import (
	"fmt"
	"net/http"
	"strings"
)

// Kind tags the outcome of a generation call.
type Kind string

const (
	KindOK            Kind = "ok"
	KindInvalidInput  Kind = "invalid_input"
	KindConfiguration Kind = "configuration"
	KindTransport     Kind = "transport"
	KindService       Kind = "service"
	KindMalformed     Kind = "malformed_response"
	KindEmpty         Kind = "empty_response"
	KindTruncated     Kind = "truncated_response"
)

// Error is the failure half of a Result. Message never contains the API key.
type Error struct {
	Kind         Kind
	StatusCode   int
	FinishReason string
	Message      string
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Kind))
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, " (status %d)", e.StatusCode)
	}
	if e.FinishReason != "" {
		fmt.Fprintf(&b, " (finish reason %s)", e.FinishReason)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	return b.String()
}

// Retryable reports whether retrying the same request may succeed.
func (e *Error) Retryable() bool {
	switch e.Kind {
	case KindTransport, KindTruncated:
		return true
	case KindService:
		return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
	default:
		return false
	}
}

// UserMessage renders an actionable message for end users.
func (e *Error) UserMessage() string {
	switch e.Kind {
	case KindInvalidInput:
		return e.Message
	case KindConfiguration:
		return "Recipe suggestions are not configured. Ask the administrator to set an API key."
	case KindTransport:
		return "The recipe service could not be reached in time. Please try again."
	case KindService:
		if e.Message != "" {
			return fmt.Sprintf("The recipe service rejected the request (status %d): %s", e.StatusCode, e.Message)
		}
		return fmt.Sprintf("The recipe service rejected the request (status %d).", e.StatusCode)
	case KindTruncated:
		return "The recipe response was cut short. Please try again."
	case KindEmpty:
		return "The recipe service returned no suggestions. Try different preferences."
	default:
		return "The recipe service returned an unexpected response."
	}
}

func invalidInput(msg string) *Error {
	return &Error{Kind: KindInvalidInput, Message: msg}
}

// Result is the tagged outcome of a generation call: Kind is KindOK with Text
// set, or a failure kind with Err set.
type Result struct {
	Kind Kind
	Text string
	Err  *Error
}

func ok(text string) Result { return Result{Kind: KindOK, Text: text} }

func failed(err *Error) Result { return Result{Kind: err.Kind, Err: err} }

// Unwrap converts the result into Go's (value, error) form.
func (r Result) Unwrap() (string, error) {
	if r.Kind == KindOK {
		return r.Text, nil
	}
	return "", r.Err
}
