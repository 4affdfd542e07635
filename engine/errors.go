package engine

import (
	"errors"
	"fmt"
)

// ErrEmptyPrompt is returned by Ask for a prompt with no content.
var ErrEmptyPrompt = errors.New("empty prompt")

// ToolError is a failed tool invocation. It is rendered inline and never
// aborts the rest of the pass.
type ToolError struct {
	Tool string
	ID   string
	Err  error
}

func (e *ToolError) Error() string {
	return fmt.Sprintf("tool %s (%s): %v", e.Tool, e.ID, e.Err)
}

func (e *ToolError) Unwrap() error { return e.Err }

// RequestError is a transport or provider failure of the streamed request.
type RequestError struct {
	Model string
	Err   error
}

func (e *RequestError) Error() string {
	if e.Model == "" {
		return fmt.Sprintf("request failed: %v", e.Err)
	}
	return fmt.Sprintf("request to %s failed: %v", e.Model, e.Err)
}

func (e *RequestError) Unwrap() error { return e.Err }

// ResourceProcessingError wraps a failing resource processor hook. It is
// logged and the unprocessed resources are used.
type ResourceProcessingError struct {
	Err error
}

func (e *ResourceProcessingError) Error() string {
	return fmt.Sprintf("resource processing failed: %v", e.Err)
}

func (e *ResourceProcessingError) Unwrap() error { return e.Err }
