package story

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
)

const (
	jimengBaseURL = "https://open.volcengineapi.com"
	jimengPath    = "/api/v1/video_generation"
	jimengReqKey  = "jimeng_vgfm_i2v_l20"

	// jimengOK is Volcengine's success code; some gateways answer 0 instead.
	jimengOK = 10000
)

// Jimeng drives ByteDance's Jimeng (Volcengine visual) image-to-video API.
type Jimeng struct {
	api *api
}

// NewJimeng creates a Jimeng generator.
func NewJimeng(opts Options) *Jimeng {
	return &Jimeng{api: newAPI("jimeng", jimengBaseURL, opts)}
}

func (j *Jimeng) Name() string { return "jimeng" }

type jimengSubtitle struct {
	Enabled   bool   `json:"enabled"`
	Text      string `json:"text"`
	Style     string `json:"style"`
	Position  string `json:"position"`
	Animation string `json:"animation"`
}

type jimengSubmit struct {
	ReqKey           string          `json:"req_key"`
	Prompt           string          `json:"prompt"`
	ImageURLs        []string        `json:"image_urls,omitempty"`
	BinaryDataBase64 []string        `json:"binary_data_base64,omitempty"`
	ModelVersion     string          `json:"model_version"`
	VideoDuration    int             `json:"video_duration"`
	AspectRatio      string          `json:"aspect_ratio"`
	Subtitle         *jimengSubtitle `json:"subtitle,omitempty"`
}

type jimengResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    struct {
		TaskID   string `json:"task_id"`
		Status   string `json:"status"` // in_queue, generating, done, not_found, expired
		VideoURL string `json:"video_url"`
	} `json:"data"`
}

func (r *jimengResponse) err() error {
	if r.Code == jimengOK || r.Code == 0 {
		return nil
	}
	status := http.StatusBadRequest
	if r.Code >= 50000 {
		status = http.StatusInternalServerError
	}
	return &APIError{Service: "jimeng", StatusCode: status, Message: fmt.Sprintf("%s (code %d)", r.Message, r.Code)}
}

func (j *Jimeng) Submit(ctx context.Context, req *Request) (Handle, error) {
	ref, err := req.reference()
	if err != nil {
		return Handle{}, err
	}

	body := jimengSubmit{
		ReqKey:        jimengReqKey,
		Prompt:        req.Prompt,
		ModelVersion:  "v2.5",
		VideoDuration: SecondsPerPhoto,
		AspectRatio:   "16:9",
	}
	if ref.URL != "" {
		body.ImageURLs = []string{ref.URL}
	} else {
		body.BinaryDataBase64 = []string{ref.Base64()}
	}
	if req.Config.AddCaptions && req.Caption != "" {
		body.Subtitle = &jimengSubtitle{
			Enabled:   true,
			Text:      req.Caption,
			Style:     "modern",
			Position:  "bottom",
			Animation: "smooth",
		}
	}

	var resp jimengResponse
	if err := j.api.postJSON(ctx, jimengPath, body, &resp); err != nil {
		return Handle{}, err
	}
	if err := resp.err(); err != nil {
		return Handle{}, err
	}
	if resp.Data.TaskID == "" {
		return Handle{}, fmt.Errorf("jimeng: response has no task_id")
	}
	return Handle{Service: j.Name(), ID: resp.Data.TaskID}, nil
}

func (j *Jimeng) PollStatus(ctx context.Context, h Handle) (Status, error) {
	var resp jimengResponse
	if err := j.api.getJSON(ctx, jimengPath+"/task/"+url.PathEscape(h.ID), &resp); err != nil {
		return Status{}, err
	}
	if err := resp.err(); err != nil {
		return Status{}, err
	}

	switch resp.Data.Status {
	case "done":
		return Status{Done: true, State: StateCompleted, Progress: 100, ResultRef: resp.Data.VideoURL}, nil
	case "not_found", "expired":
		return Status{State: StateFailed, Message: "task " + resp.Data.Status}, nil
	case "in_queue":
		return Status{State: StatePending, Progress: 10}, nil
	default:
		return Status{State: StateProcessing, Progress: 50}, nil
	}
}

func (j *Jimeng) Download(ctx context.Context, ref string) (io.ReadCloser, string, error) {
	return fetch(ctx, j.api.client, j.Name(), ref)
}
