package llm

import (
	"errors"
	"fmt"
)

// ErrNoSession is returned when a message is sent before InitializeSession succeeded.
var ErrNoSession = errors.New("chat session not initialized")

// ServiceError is a failure reported by the hosted model service.
// Transient is set when retries were exhausted on a retryable failure.
type ServiceError struct {
	Op        string
	Attempts  int
	Transient bool
	Err       error
}

func (e *ServiceError) Error() string {
	if e.Transient {
		return fmt.Sprintf("fatal API error after %d attempts during %s: %v", e.Attempts, e.Op, e.Err)
	}
	return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
}

func (e *ServiceError) Unwrap() error { return e.Err }
