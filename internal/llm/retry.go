package llm

import (
	"context"
	"errors"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"google.golang.org/genai"
)

// RetryConfig configures retry behavior.
type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Multiplier  float64
}

// DefaultRetryConfig returns the default policy: 3 attempts, 2s then 4s.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 3,
		BaseDelay:   2 * time.Second,
		Multiplier:  2,
	}
}

// Delay returns the wait after the given failed attempt (1-based): base * multiplier^(attempt-1).
func (c RetryConfig) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	return time.Duration(float64(c.BaseDelay) * math.Pow(c.Multiplier, float64(attempt-1)))
}

// errStopped signals that the consumer of a stream stopped reading; it is never retried or surfaced.
var errStopped = errors.New("consumer stopped")

// retrier runs an operation until it succeeds, fails permanently, or runs out of attempts.
type retrier struct {
	config  RetryConfig
	sleep   func(ctx context.Context, d time.Duration) error
	onRetry func(op string, attempt int, wait time.Duration, err error)
}

// do returns nil, a context error, errStopped, or a *ServiceError.
func (r *retrier) do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	maxAttempts := max(r.config.MaxAttempts, 1)
	for attempt := 1; ; attempt++ {
		err := fn(ctx)
		if err == nil || errors.Is(err, errStopped) {
			return err
		}

		// Don't retry if context is already cancelled
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if errors.Is(err, context.Canceled) {
			return err
		}

		if !isRetryable(err) {
			return &ServiceError{Op: op, Attempts: attempt, Err: err}
		}
		if attempt >= maxAttempts {
			return &ServiceError{Op: op, Attempts: attempt, Transient: true, Err: err}
		}

		wait := r.config.Delay(attempt)
		if r.onRetry != nil {
			r.onRetry(op, attempt, wait, err)
		}
		if err := r.sleep(ctx, wait); err != nil {
			return err
		}
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

var (
	// statusPattern finds the status code in an API error message ("Error 400, Message: ...").
	statusPattern = regexp.MustCompile(`\berror (\d{3})\b`)
	// retryableCodePattern finds a bare retryable status code, not digits inside a larger number.
	retryableCodePattern = regexp.MustCompile(`\b(429|500|502|503|504)\b`)
)

// isRetryableStatus reports whether an HTTP status is worth retrying.
func isRetryableStatus(code int) bool {
	return code == 429 || code >= 500
}

// isRetryable returns true if the error is a transient error worth retrying.
// API errors are classified by status code alone.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return isRetryableStatus(apiErr.Code)
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return isRetryableStatus(apiErrPtr.Code)
	}

	errStr := strings.ToLower(err.Error())

	if m := statusPattern.FindStringSubmatch(errStr); m != nil {
		code, _ := strconv.Atoi(m[1])
		return isRetryableStatus(code)
	}

	// Rate limits and server-side failures reported without a structured status
	if retryableCodePattern.MatchString(errStr) ||
		strings.Contains(errStr, "resource_exhausted") ||
		strings.Contains(errStr, "resource exhausted") ||
		strings.Contains(errStr, "rate limit") ||
		strings.Contains(errStr, "too many requests") ||
		strings.Contains(errStr, "quota") ||
		strings.Contains(errStr, "internal error") ||
		strings.Contains(errStr, "bad gateway") ||
		strings.Contains(errStr, "service unavailable") ||
		strings.Contains(errStr, "overloaded") {
		return true
	}

	// Connection errors
	if strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "connection reset") ||
		strings.Contains(errStr, "broken pipe") ||
		strings.Contains(errStr, "unexpected eof") ||
		strings.Contains(errStr, "timeout") ||
		strings.Contains(errStr, "deadline exceeded") ||
		strings.Contains(errStr, "temporary failure") ||
		strings.Contains(errStr, "no such host") {
		return true
	}

	return false
}
