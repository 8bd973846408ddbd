package kconfig

import (
	"context"
	"fmt"
)

// Message is one conversation turn sent to a completion service
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CompletionRequest is a bounded single shot request
type CompletionRequest struct {
	System    string
	Messages  []Message
	MaxTokens int
}

// Completer turns a request into text. Implementations must return either
// the text or a *CompletionError.
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
	// Model names the model answering requests
	Model() string
}

// ErrorKind classifies completion failures
type ErrorKind string

const (
	KindTimeout   ErrorKind = "timeout"
	KindTransport ErrorKind = "transport"
	KindStatus    ErrorKind = "status"
	KindMalformed ErrorKind = "malformed"
)

// CompletionError is the only error type returned by a Completer
type CompletionError struct {
	Kind       ErrorKind
	StatusCode int
	Message    string
	Err        error
}

func (e *CompletionError) Error() string {
	switch {
	case e.StatusCode != 0:
		return fmt.Sprintf("%s (HTTP %d): %s", e.Kind, e.StatusCode, e.Message)
	case e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	default:
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
}

func (e *CompletionError) Unwrap() error {
	return e.Err
}
