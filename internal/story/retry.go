package story

import (
	"context"
	"math"
	"time"

	"github.com/rs/zerolog/log"
)

// RetryPolicy bounds how long a caller waits on a vendor.
type RetryPolicy struct {
	// MaxAttempts is the number of polls (or submit tries) before giving up.
	MaxAttempts int
	// Interval is the delay before the second attempt.
	Interval time.Duration
	// Backoff multiplies the delay after every attempt. 1.0 keeps it fixed.
	Backoff float64
	// MaxInterval caps the delay. Zero means no cap.
	MaxInterval time.Duration
}

// DefaultRetryPolicy polls every 10 seconds, 30 times.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 30,
		Interval:    10 * time.Second,
		Backoff:     1.0,
		MaxInterval: time.Minute,
	}
}

func (p RetryPolicy) normalized() RetryPolicy {
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}
	if p.Backoff < 1 {
		p.Backoff = 1
	}
	if p.Interval < 0 {
		p.Interval = 0
	}
	return p
}

// Delay returns the wait after the given zero-based attempt:
// Interval * Backoff^attempt, clamped to MaxInterval.
func (p RetryPolicy) Delay(attempt int) time.Duration {
	p = p.normalized()
	d := float64(p.Interval) * math.Pow(p.Backoff, float64(attempt))
	if p.MaxInterval > 0 && d > float64(p.MaxInterval) {
		return p.MaxInterval
	}
	if d > math.MaxInt64 {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(d)
}

// Budget is the total time spent sleeping across every attempt.
func (p RetryPolicy) Budget() time.Duration {
	p = p.normalized()
	var total time.Duration
	for i := range p.MaxAttempts - 1 {
		total += p.Delay(i)
	}
	return total
}

// ProgressFunc observes intermediate poll results.
type ProgressFunc func(Status)

// Wait polls h until it completes, fails terminally, runs out of attempts, or
// ctx is cancelled. Retryable poll errors consume an attempt. A failed task is
// returned as *TaskFailedError and an exhausted budget as *TimeoutError.
func Wait(ctx context.Context, g Generator, h Handle, policy RetryPolicy, onProgress ProgressFunc) (Status, error) {
	policy = policy.normalized()

	for attempt := range policy.MaxAttempts {
		if attempt > 0 {
			if err := sleep(ctx, policy.Delay(attempt-1)); err != nil {
				return Status{}, err
			}
		}

		st, err := pollOnce(ctx, g, h)
		if err != nil {
			if ctx.Err() != nil {
				return Status{}, ctx.Err()
			}
			if !IsRetryable(err) {
				return Status{}, err
			}
			log.Warn().Err(err).
				Str("service", g.Name()).
				Str("taskId", h.ID).
				Int("attempt", attempt+1).
				Int("maxAttempts", policy.MaxAttempts).
				Msg("Retryable status check failure")
			continue
		}

		if onProgress != nil {
			onProgress(st)
		}
		if st.Done {
			return st, nil
		}
	}

	return Status{}, &TimeoutError{Attempts: policy.MaxAttempts}
}

// pollOnce calls PollStatus and turns a failed state into *TaskFailedError.
func pollOnce(ctx context.Context, g Generator, h Handle) (Status, error) {
	start := time.Now()
	st, err := g.PollStatus(ctx, h)
	if err == nil && st.State == StateFailed {
		err = &TaskFailedError{Service: g.Name(), TaskID: h.ID, Reason: st.Message}
	}
	recordCall(g.Name(), "poll", err, time.Since(start))
	if err != nil {
		return Status{}, err
	}
	return st, nil
}

// retry runs fn until it succeeds, fails terminally, or the policy runs out.
func retry[T any](ctx context.Context, policy RetryPolicy, what string, fn func() (T, error)) (T, error) {
	policy = policy.normalized()
	var (
		zero    T
		lastErr error
	)
	for attempt := range policy.MaxAttempts {
		if attempt > 0 {
			if err := sleep(ctx, policy.Delay(attempt-1)); err != nil {
				return zero, err
			}
		}
		v, err := fn()
		if err == nil {
			return v, nil
		}
		if ctx.Err() != nil {
			return zero, ctx.Err()
		}
		if !IsRetryable(err) {
			return zero, err
		}
		lastErr = err
		log.Warn().Err(err).Str("op", what).Int("attempt", attempt+1).Msg("Retrying after retryable error")
	}
	return zero, lastErr
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
