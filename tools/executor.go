// Tool Executor with Retry Logic.
//
// Information Hiding:
// - Retry strategy implementation hidden
// - Backoff algorithm hidden
// - Error classification logic hidden

package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/richinex/parley/model"
)

// Executor validates tool input and runs tools with an optional timeout
// and retries for transient failures.
type Executor struct {
	config Config
}

// NewExecutor creates a new tool executor with the given configuration.
func NewExecutor(config Config) *Executor {
	return &Executor{config: config}
}

// NewDefaultExecutor creates an executor with no timeout and a single attempt.
func NewDefaultExecutor() *Executor {
	return &Executor{}
}

// Execute validates input against the tool schema and resolves the tool.
func (e *Executor) Execute(ctx context.Context, tool Tool, input map[string]any, src model.Source, prompt string) ([]Content, error) {
	meta := tool.Metadata()
	if err := ValidateInput(input, meta.Schema); err != nil {
		return nil, err
	}

	timeout := e.config.Timeout()
	attempts := e.config.Retries()

	var lastErr error
	for attempt := uint32(0); attempt < attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(e.calculateBackoff(attempt)):
			}
		}

		content, err := e.resolveOnce(ctx, tool, input, src, prompt, timeout)
		if err == nil {
			return content, nil
		}
		lastErr = err
		if ctx.Err() != nil || !e.shouldRetry(err) {
			return nil, err
		}
	}

	return nil, fmt.Errorf("tool '%s' failed after %d attempts: %w", meta.Name, attempts, lastErr)
}

func (e *Executor) resolveOnce(ctx context.Context, tool Tool, input map[string]any, src model.Source, prompt string, timeout time.Duration) ([]Content, error) {
	if timeout <= 0 {
		return tool.Resolve(ctx, input, src, prompt)
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	content, err := tool.Resolve(ctx, input, src, prompt)
	if err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return nil, fmt.Errorf("tool '%s' timed out after %s: %w", tool.Metadata().Name, timeout, err)
	}
	return content, err
}

// calculateBackoff returns the backoff duration for the given attempt.
func (e *Executor) calculateBackoff(attempt uint32) time.Duration {
	const (
		baseDelay = 100 * time.Millisecond
		maxDelay  = 5 * time.Second
	)

	delay := baseDelay * time.Duration(1<<attempt)
	if delay > maxDelay {
		delay = maxDelay
	}
	return delay
}

// shouldRetry determines if an error is retryable.
func (e *Executor) shouldRetry(err error) bool {
	errLower := strings.ToLower(err.Error())

	nonRetryable := []string{"validation", "not allowed", "permission", "empty", "not found", "does not exist"}
	for _, s := range nonRetryable {
		if strings.Contains(errLower, s) {
			return false
		}
	}

	retryable := []string{"timeout", "timed out", "connection", "network", "temporar"}
	for _, s := range retryable {
		if strings.Contains(errLower, s) {
			return true
		}
	}

	return false
}
