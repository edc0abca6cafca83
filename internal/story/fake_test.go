package story

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/fpang/swipe-story/internal/auth"
)

// staticCreds maps "service" and "service/name" to credentials.
type staticCreds map[string]string

func (c staticCreds) APIKey(_ context.Context, service string) (string, error) {
	if v, ok := c[service]; ok {
		return v, nil
	}
	return "", &auth.KeyError{Service: service, EnvVar: auth.EnvVar(service)}
}

func (c staticCreds) Secret(_ context.Context, service, name string) (string, error) {
	if v, ok := c[service+"/"+name]; ok {
		return v, nil
	}
	return "", &auth.KeyError{Service: service, EnvVar: strings.ToUpper(service + "_" + name)}
}

type pollStep struct {
	st  Status
	err error
}

// fakeGenerator replays scripted submit errors and poll results. The last
// poll step repeats once the script runs out.
type fakeGenerator struct {
	name string

	mu         sync.Mutex
	submitErrs []error
	steps      []pollStep
	submits    int
	polls      int
	block      chan struct{} // when set, PollStatus waits on it or ctx
	video      string
}

func (f *fakeGenerator) Name() string { return f.name }

func (f *fakeGenerator) Submit(_ context.Context, _ *Request) (Handle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submits++
	if len(f.submitErrs) > 0 {
		err := f.submitErrs[0]
		f.submitErrs = f.submitErrs[1:]
		return Handle{}, err
	}
	return Handle{Service: f.name, ID: "prov-1"}, nil
}

func (f *fakeGenerator) PollStatus(ctx context.Context, _ Handle) (Status, error) {
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return Status{}, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.polls++
	if len(f.steps) == 0 {
		return Status{State: StateProcessing}, nil
	}
	step := f.steps[0]
	if len(f.steps) > 1 {
		f.steps = f.steps[1:]
	}
	return step.st, step.err
}

func (f *fakeGenerator) Download(_ context.Context, ref string) (io.ReadCloser, string, error) {
	if ref == "" {
		return nil, "", errors.New("empty ref")
	}
	return io.NopCloser(strings.NewReader(f.video)), "video/mp4", nil
}

func (f *fakeGenerator) pollCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.polls
}

func fastPolicy(attempts int) RetryPolicy {
	return RetryPolicy{MaxAttempts: attempts, Interval: time.Millisecond, Backoff: 1}
}

var (
	errThrottled = &APIError{Service: "fake", StatusCode: http.StatusTooManyRequests, Message: "slow down"}
	errRejected  = &APIError{Service: "fake", StatusCode: http.StatusBadRequest, Message: "bad image"}
)
