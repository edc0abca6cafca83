package story

import (
	"context"
	"fmt"
	"io"
	"math"
	"net/url"
)

const (
	runwayBaseURL = "https://api.dev.runwayml.com"
	runwayVersion = "2024-11-06"
	runwayModel   = "gen3a_turbo"

	// runwayMaxPrompt is the promptText limit, in characters.
	runwayMaxPrompt = 1000
)

// Runway drives Runway's image_to_video API.
type Runway struct {
	api *api
}

// NewRunway creates a Runway generator.
func NewRunway(opts Options) *Runway {
	r := &Runway{api: newAPI("runway", runwayBaseURL, opts)}
	r.api.headers = map[string]string{"X-Runway-Version": runwayVersion}
	return r
}

func (r *Runway) Name() string { return "runway" }

type runwaySubmit struct {
	PromptImage string `json:"promptImage"`
	PromptText  string `json:"promptText,omitempty"`
	Model       string `json:"model"`
	Duration    int    `json:"duration"`
	Ratio       string `json:"ratio"`
}

type runwayTask struct {
	ID       string   `json:"id"`
	Status   string   `json:"status"` // PENDING, THROTTLED, RUNNING, SUCCEEDED, FAILED, CANCELLED
	Progress *float64 `json:"progress,omitempty"`
	Output   []string `json:"output,omitempty"`
	Failure  string   `json:"failure,omitempty"`
}

func (r *Runway) Submit(ctx context.Context, req *Request) (Handle, error) {
	ref, err := req.reference()
	if err != nil {
		return Handle{}, err
	}

	prompt := []rune(req.Prompt)
	if len(prompt) > runwayMaxPrompt {
		prompt = prompt[:runwayMaxPrompt]
	}
	body := runwaySubmit{
		PromptImage: imageInput(ref),
		PromptText:  string(prompt),
		Model:       runwayModel,
		Duration:    SecondsPerPhoto,
		Ratio:       "1280:768",
	}

	var task runwayTask
	if err := r.api.postJSON(ctx, "/v1/image_to_video", body, &task); err != nil {
		return Handle{}, err
	}
	if task.ID == "" {
		return Handle{}, fmt.Errorf("runway: response has no task id")
	}
	return Handle{Service: r.Name(), ID: task.ID}, nil
}

func (r *Runway) PollStatus(ctx context.Context, h Handle) (Status, error) {
	var task runwayTask
	if err := r.api.getJSON(ctx, "/v1/tasks/"+url.PathEscape(h.ID), &task); err != nil {
		return Status{}, err
	}

	progress := 0
	if task.Progress != nil {
		progress = clampProgress(int(math.Round(*task.Progress * 100)))
	}

	switch task.Status {
	case "SUCCEEDED":
		st := Status{Done: true, State: StateCompleted, Progress: 100}
		if len(task.Output) > 0 {
			st.ResultRef = task.Output[0]
		}
		return st, nil
	case "FAILED", "CANCELLED":
		return Status{State: StateFailed, Message: task.Failure, Progress: progress}, nil
	case "PENDING", "THROTTLED":
		return Status{State: StatePending, Progress: progress}, nil
	default:
		return Status{State: StateProcessing, Progress: progress}, nil
	}
}

func (r *Runway) Download(ctx context.Context, ref string) (io.ReadCloser, string, error) {
	return fetch(ctx, r.api.client, r.Name(), ref)
}
