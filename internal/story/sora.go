package story

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
)

const (
	soraBaseURL = "https://api.openai.com"
	soraModel   = "sora-2-pro"
	soraSize    = "1280x720"
)

// Sora drives OpenAI's video API. It animates the first kept photo, sent
// as the input_reference of a multipart request.
type Sora struct {
	api *api
}

// NewSora creates a Sora generator.
func NewSora(opts Options) *Sora {
	return &Sora{api: newAPI("sora", soraBaseURL, opts)}
}

func (s *Sora) Name() string { return "sora" }

type soraVideo struct {
	ID       string `json:"id"`
	Status   string `json:"status"` // queued, in_progress, completed, failed
	Progress *int   `json:"progress,omitempty"`
	Error    *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (s *Sora) Submit(ctx context.Context, req *Request) (Handle, error) {
	ref, err := req.reference()
	if err != nil {
		return Handle{}, err
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fields := [][2]string{
		{"prompt", req.Prompt},
		{"model", soraModel},
		{"size", soraSize},
		{"seconds", fmt.Sprint(SecondsPerPhoto)},
	}
	for _, f := range fields {
		if err := mw.WriteField(f[0], f[1]); err != nil {
			return Handle{}, fmt.Errorf("write %s field: %w", f[0], err)
		}
	}

	name := ref.Name
	if name == "" {
		name = "reference.jpg"
	}
	hdr := make(textproto.MIMEHeader)
	hdr.Set("Content-Disposition", multipart.FileContentDisposition("input_reference", name))
	hdr.Set("Content-Type", ref.MIMEType)
	part, err := mw.CreatePart(hdr)
	if err != nil {
		return Handle{}, fmt.Errorf("create input_reference part: %w", err)
	}
	if _, err := part.Write(ref.Data); err != nil {
		return Handle{}, fmt.Errorf("write input_reference: %w", err)
	}
	if err := mw.Close(); err != nil {
		return Handle{}, fmt.Errorf("close multipart body: %w", err)
	}

	resp, err := s.api.send(ctx, http.MethodPost, "/v1/videos", &body, mw.FormDataContentType())
	if err != nil {
		return Handle{}, err
	}
	var v soraVideo
	if err := decodeBody(resp, &v); err != nil {
		return Handle{}, err
	}
	if v.ID == "" {
		return Handle{}, fmt.Errorf("sora: response has no video id")
	}
	return Handle{Service: s.Name(), ID: v.ID}, nil
}

func (s *Sora) PollStatus(ctx context.Context, h Handle) (Status, error) {
	var v soraVideo
	if err := s.api.getJSON(ctx, "/v1/videos/"+url.PathEscape(h.ID), &v); err != nil {
		return Status{}, err
	}

	st := Status{State: StateProcessing, Progress: 50}
	if v.Progress != nil {
		st.Progress = clampProgress(*v.Progress)
	}
	switch v.Status {
	case "completed":
		st = Status{Done: true, State: StateCompleted, Progress: 100, ResultRef: v.ID}
	case "failed":
		st.State = StateFailed
		if v.Error != nil {
			st.Message = v.Error.Message
		}
	}
	return st, nil
}

// Download streams the finished video. ref is the video ID.
func (s *Sora) Download(ctx context.Context, ref string) (io.ReadCloser, string, error) {
	resp, err := s.api.send(ctx, http.MethodGet, "/v1/videos/"+url.PathEscape(ref)+"/content", nil, "")
	if err != nil {
		return nil, "", err
	}
	return resp.Body, contentTypeOr(resp, "video/mp4"), nil
}

func clampProgress(p int) int {
	return min(max(p, 0), 100)
}
