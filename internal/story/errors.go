package story

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

var (
	// ErrPollBudgetExhausted means the task never finished within the
	// RetryPolicy's attempts. It is always wrapped in a *TimeoutError.
	ErrPollBudgetExhausted = errors.New("poll budget exhausted")

	// ErrUnknownService is returned for a service name with no generator.
	ErrUnknownService = errors.New("unknown video service")

	// ErrTaskNotFound is returned by Client for an unknown task ID.
	ErrTaskNotFound = errors.New("video task not found")

	// ErrNotReady is returned when downloading a task that has not completed.
	ErrNotReady = errors.New("video is not ready")

	// ErrShortSecret means a signing secret is too short for HS256.
	ErrShortSecret = errors.New("secret key too short for HS256")
)

// APIError is a non-success response from a vendor.
type APIError struct {
	Service    string
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s API error (status %d): %s", e.Service, e.StatusCode, e.Message)
}

// IsRetryable reports whether trying again later could succeed: throttling,
// request timeouts, and server-side failures.
func (e *APIError) IsRetryable() bool {
	switch {
	case e.StatusCode == http.StatusTooManyRequests, e.StatusCode == http.StatusRequestTimeout:
		return true
	case e.StatusCode >= 500:
		return true
	}
	return false
}

// TaskFailedError means the vendor accepted the task and then reported it failed.
type TaskFailedError struct {
	Service string
	TaskID  string
	Reason  string
}

func (e *TaskFailedError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("%s task %s failed", e.Service, e.TaskID)
	}
	return fmt.Sprintf("%s task %s failed: %s", e.Service, e.TaskID, e.Reason)
}

// TimeoutError wraps ErrPollBudgetExhausted with the number of polls made.
type TimeoutError struct {
	Attempts int
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("video not ready after %d status checks: %v", e.Attempts, ErrPollBudgetExhausted)
}

func (e *TimeoutError) Unwrap() error { return ErrPollBudgetExhausted }

// IsRetryable classifies err for the retry loops. Context cancellation is
// never retryable; network timeouts and retryable API errors are.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.IsRetryable()
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr)
}

// classify names an outcome for metrics.
func classify(err error) string {
	switch {
	case err == nil:
		return "ok"
	case IsRetryable(err):
		return "retryable"
	default:
		return "terminal"
	}
}
