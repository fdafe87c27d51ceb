package llm

import (
	"context"
	"fmt"
)

// Completer is an opaque text-completion service
type Completer interface {
	Complete(ctx context.Context, req Request) (string, error)
	Name() string
}

// Request is one prompt sent to a Completer
type Request struct {
	System      string
	Prompt      string
	JSON        bool // ask the backend for a JSON object response
	Temperature float32
}

// APIError is a rejected completion call
type APIError struct {
	Provider string
	Status   int
	Message  string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s completion failed (status %d): %s", e.Provider, e.Status, e.Message)
}
