// Package signal scopes interrupt handling to a single operation.
package signal

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

// NotifyContext returns a child of parent that is cancelled when SIGINT or SIGTERM is received.
// After stop runs, signals fall back to their default behavior.
func NotifyContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
