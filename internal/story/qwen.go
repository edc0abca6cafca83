package story

import (
	"context"
	"fmt"
	"io"
	"net/url"
)

const (
	qwenBaseURL    = "https://dashscope.aliyuncs.com"
	qwenSubmitPath = "/api/v1/services/aigc/video-generation/video-synthesis"
	qwenTasksPath  = "/api/v1/tasks/"
)

// Qwen drives Alibaba DashScope's asynchronous video synthesis API.
type Qwen struct {
	api *api
}

// NewQwen creates a Qwen generator.
func NewQwen(opts Options) *Qwen {
	q := &Qwen{api: newAPI("qwen", qwenBaseURL, opts)}
	q.api.headers = map[string]string{"X-DashScope-Async": "enable"}
	return q
}

func (q *Qwen) Name() string { return "qwen" }

type qwenSubmit struct {
	Model string `json:"model"`
	Input struct {
		Prompt string `json:"prompt"`
		ImgURL string `json:"img_url"`
	} `json:"input"`
	Parameters struct {
		Duration int `json:"duration"`
		FPS      int `json:"fps"`
	} `json:"parameters"`
}

type qwenResponse struct {
	RequestID string `json:"request_id"`
	Output    struct {
		TaskID     string `json:"task_id"`
		TaskStatus string `json:"task_status"` // PENDING, RUNNING, SUCCEEDED, FAILED, CANCELED, UNKNOWN
		VideoURL   string `json:"video_url"`
		Code       string `json:"code"`
		Message    string `json:"message"`
	} `json:"output"`
}

func (q *Qwen) Submit(ctx context.Context, req *Request) (Handle, error) {
	ref, err := req.reference()
	if err != nil {
		return Handle{}, err
	}

	var body qwenSubmit
	body.Model = "qwen-vl-video"
	body.Input.Prompt = req.Prompt
	body.Input.ImgURL = imageInput(ref)
	body.Parameters.Duration = SecondsPerPhoto
	body.Parameters.FPS = 24

	var resp qwenResponse
	if err := q.api.postJSON(ctx, qwenSubmitPath, body, &resp); err != nil {
		return Handle{}, err
	}
	if resp.Output.TaskID == "" {
		return Handle{}, fmt.Errorf("qwen: response has no task_id (request %s)", resp.RequestID)
	}
	return Handle{Service: q.Name(), ID: resp.Output.TaskID}, nil
}

func (q *Qwen) PollStatus(ctx context.Context, h Handle) (Status, error) {
	var resp qwenResponse
	if err := q.api.getJSON(ctx, qwenTasksPath+url.PathEscape(h.ID), &resp); err != nil {
		return Status{}, err
	}

	out := resp.Output
	switch out.TaskStatus {
	case "SUCCEEDED":
		return Status{Done: true, State: StateCompleted, Progress: 100, ResultRef: out.VideoURL}, nil
	case "FAILED", "CANCELED", "UNKNOWN":
		msg := out.Message
		if msg == "" {
			msg = "task " + out.TaskStatus
		}
		return Status{State: StateFailed, Message: msg}, nil
	case "PENDING":
		return Status{State: StatePending, Progress: 10}, nil
	default:
		return Status{State: StateProcessing, Progress: 50}, nil
	}
}

func (q *Qwen) Download(ctx context.Context, ref string) (io.ReadCloser, string, error) {
	return fetch(ctx, q.api.client, q.Name(), ref)
}
