package story

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/fpang/swipe-story/internal/jobs"
	"github.com/fpang/swipe-story/internal/metrics"
	"github.com/fpang/swipe-story/internal/store"
)

// persistTimeout bounds task writes made after the request context is gone.
const persistTimeout = 10 * time.Second

func recordCall(service, op string, err error, elapsed time.Duration) {
	metrics.VideoCall(service, op, classify(err), elapsed)
}

// Client submits story videos and tracks them as store.VideoTask records.
//
// A long-running server calls Create and then Start, which polls in the
// background until the vendor finishes. Where background work cannot
// outlive a request (Lambda), Status polls the vendor once per call and
// writes the result through, bounding the total wait by the policy budget
// measured from the task's creation time.
type Client struct {
	gens           map[string]Generator
	store          store.Store
	policy         RetryPolicy
	defaultService string

	base context.Context
	stop context.CancelFunc
	wg   sync.WaitGroup

	mu      sync.Mutex
	running map[string]*run

	now func() time.Time
}

type run struct {
	cancel    context.CancelFunc
	done      chan struct{}
	cancelled bool
}

// NewClient creates a Client. defaultService names the vendor used when a
// request does not choose one.
func NewClient(gens map[string]Generator, st store.Store, policy RetryPolicy, defaultService string) *Client {
	base, stop := context.WithCancel(context.Background())
	if defaultService == "" {
		defaultService = DefaultService
	}
	return &Client{
		gens:           gens,
		store:          st,
		policy:         policy.normalized(),
		defaultService: defaultService,
		base:           base,
		stop:           stop,
		running:        make(map[string]*run),
		now:            time.Now,
	}
}

// Generator returns the vendor for service ("" means the default).
func (c *Client) Generator(service string) (Generator, error) {
	if service == "" {
		service = c.defaultService
	}
	g, ok := c.gens[strings.ToLower(service)]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownService, service)
	}
	return g, nil
}

// DefaultService returns the vendor used when none is requested.
func (c *Client) DefaultService() string { return c.defaultService }

// Submit sends req to the vendor, retrying retryable failures under the
// client's policy.
func (c *Client) Submit(ctx context.Context, service string, req *Request) (Handle, error) {
	g, err := c.Generator(service)
	if err != nil {
		return Handle{}, err
	}
	return retry(ctx, c.policy, g.Name()+" submit", func() (Handle, error) {
		start := time.Now()
		h, err := g.Submit(ctx, req)
		recordCall(g.Name(), "submit", err, time.Since(start))
		return h, err
	})
}

// Create submits req and records the new task. A failed submit is recorded
// as a failed task and returned alongside the error.
func (c *Client) Create(ctx context.Context, sessionID, service string, req *Request) (*store.VideoTask, error) {
	g, err := c.Generator(service)
	if err != nil {
		return nil, err
	}

	task := &store.VideoTask{
		ID:        jobs.GenerateID(jobs.VideoPrefix),
		SessionID: sessionID,
		Service:   g.Name(),
		Status:    store.TaskPending,
	}

	h, err := c.Submit(ctx, g.Name(), req)
	if err != nil {
		writeErr := jobs.SetJobError(ctx, sessionID, task.ID, err.Error(), func(ctx context.Context, _, _, msg string) error {
			task.Status = store.TaskFailed
			task.Error = msg
			return c.persist(ctx, task)
		})
		if writeErr != nil {
			log.Warn().Err(writeErr).Str("taskId", task.ID).Msg("Failed to record submit failure")
		}
		return task, fmt.Errorf("submit to %s: %w", g.Name(), err)
	}

	task.ProviderTaskID = h.ID
	task.Status = store.TaskProcessing
	if err := c.persist(ctx, task); err != nil {
		return nil, err
	}
	log.Info().
		Str("taskId", task.ID).
		Str("sessionId", sessionID).
		Str("service", g.Name()).
		Str("providerTaskId", h.ID).
		Msg("Video task submitted")
	return task, nil
}

// Start polls task in the background until it finishes, fails, runs out of
// budget, or is cancelled. Progress is written to the store as it arrives.
func (c *Client) Start(task *store.VideoTask) error {
	g, err := c.Generator(task.Service)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(c.base)
	r := &run{cancel: cancel, done: make(chan struct{})}

	c.mu.Lock()
	if _, dup := c.running[task.ID]; dup {
		c.mu.Unlock()
		cancel()
		return fmt.Errorf("video task %s is already running", task.ID)
	}
	c.running[task.ID] = r
	c.mu.Unlock()

	t := *task
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer close(r.done)
		defer func() {
			c.mu.Lock()
			delete(c.running, t.ID)
			c.mu.Unlock()
			cancel()
		}()
		c.wait(ctx, g, &t, r)
	}()
	return nil
}

func (c *Client) wait(ctx context.Context, g Generator, task *store.VideoTask, r *run) {
	h := Handle{Service: g.Name(), ID: task.ProviderTaskID}
	last := task.Progress

	st, err := Wait(ctx, g, h, c.policy, func(st Status) {
		if st.Done || st.Progress == last {
			return
		}
		last = st.Progress
		task.Progress = st.Progress
		task.Status = store.TaskProcessing
		if err := c.persist(ctx, task); err != nil {
			log.Warn().Err(err).Str("taskId", task.ID).Msg("Failed to record video progress")
		}
	})

	c.mu.Lock()
	cancelled := r.cancelled
	c.mu.Unlock()

	switch {
	case err == nil:
		c.complete(task, st)
	case cancelled:
		task.Status = store.TaskCancelled
		task.Error = ""
		log.Info().Str("taskId", task.ID).Msg("Video task cancelled")
	case errors.Is(err, context.Canceled):
		task.Status = store.TaskFailed
		task.Error = "interrupted by shutdown"
	default:
		c.fail(task, err)
	}

	pctx, done := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer done()
	if err := c.persist(pctx, task); err != nil {
		log.Error().Err(err).Str("taskId", task.ID).Msg("Failed to record final video task state")
	}
}

func (c *Client) complete(task *store.VideoTask, st Status) {
	task.Status = store.TaskCompleted
	task.Progress = 100
	task.ResultURL = st.ResultRef
	task.Error = ""
	log.Info().Str("taskId", task.ID).Str("service", task.Service).Msg("Video task completed")
}

func (c *Client) fail(task *store.VideoTask, err error) {
	task.Status = store.TaskFailed
	task.Error = err.Error()
	log.Error().Err(err).Str("taskId", task.ID).Str("service", task.Service).Msg("Video task failed")
}

// Cancel stops a task. A task being polled in the background is interrupted
// and Cancel waits for its final write; any other unfinished task is marked
// cancelled directly. Finished tasks are returned unchanged.
func (c *Client) Cancel(ctx context.Context, taskID string) (*store.VideoTask, error) {
	c.mu.Lock()
	r, ok := c.running[taskID]
	if ok {
		r.cancelled = true
		r.cancel()
	}
	c.mu.Unlock()

	if ok {
		select {
		case <-r.done:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	task, err := c.task(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if task.Terminal() {
		return task, nil
	}
	task.Status = store.TaskCancelled
	if err := c.persist(ctx, task); err != nil {
		return nil, err
	}
	log.Info().Str("taskId", task.ID).Msg("Video task cancelled")
	return task, nil
}

// Status returns the task. An unfinished task that no background poller in
// this process owns is refreshed from the vendor first.
func (c *Client) Status(ctx context.Context, taskID string) (*store.VideoTask, error) {
	task, err := c.task(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if task.Terminal() || c.isRunning(taskID) {
		return task, nil
	}
	return c.Refresh(ctx, task)
}

// Refresh polls the vendor once for task and writes the outcome through.
// Retryable poll errors leave the task as it was, unless the policy budget
// has run out since the task was created.
func (c *Client) Refresh(ctx context.Context, task *store.VideoTask) (*store.VideoTask, error) {
	if task.Terminal() {
		return task, nil
	}
	g, err := c.Generator(task.Service)
	if err != nil {
		return nil, err
	}

	t := *task
	st, err := pollOnce(ctx, g, Handle{Service: g.Name(), ID: t.ProviderTaskID})
	switch {
	case err == nil && st.Done:
		c.complete(&t, st)
	case err == nil:
		t.Status = store.TaskProcessing
		t.Progress = st.Progress
	case ctx.Err() != nil:
		return nil, ctx.Err()
	case IsRetryable(err):
		log.Warn().Err(err).Str("taskId", t.ID).Msg("Retryable status check failure")
	default:
		c.fail(&t, err)
	}

	if !t.Terminal() && c.expired(&t) {
		c.fail(&t, &TimeoutError{Attempts: c.policy.MaxAttempts})
	}

	if t == *task {
		return task, nil
	}
	if err := c.persist(ctx, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

func (c *Client) expired(task *store.VideoTask) bool {
	if task.CreatedAt == 0 {
		return false
	}
	return c.now().Sub(time.Unix(task.CreatedAt, 0)) > c.policy.Budget()
}

// Download streams a completed task's video.
func (c *Client) Download(ctx context.Context, taskID string) (io.ReadCloser, string, error) {
	task, err := c.task(ctx, taskID)
	if err != nil {
		return nil, "", err
	}
	if task.Status != store.TaskCompleted || task.ResultURL == "" {
		return nil, "", fmt.Errorf("%w: task %s is %s", ErrNotReady, taskID, task.Status)
	}
	g, err := c.Generator(task.Service)
	if err != nil {
		return nil, "", err
	}
	d, ok := g.(Downloader)
	if !ok {
		return nil, "", fmt.Errorf("%s does not support downloads", g.Name())
	}
	return d.Download(ctx, task.ResultURL)
}

// Close cancels every background poll and waits for them to record their
// final state.
func (c *Client) Close() {
	c.stop()
	c.wg.Wait()
}

func (c *Client) isRunning(taskID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.running[taskID]
	return ok
}

func (c *Client) task(ctx context.Context, taskID string) (*store.VideoTask, error) {
	task, err := c.store.GetTask(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("load video task: %w", err)
	}
	if task == nil {
		return nil, fmt.Errorf("%w: %s", ErrTaskNotFound, taskID)
	}
	return task, nil
}

func (c *Client) persist(ctx context.Context, task *store.VideoTask) error {
	if err := c.store.PutTask(ctx, task); err != nil {
		return fmt.Errorf("save video task %s: %w", task.ID, err)
	}
	return nil
}
