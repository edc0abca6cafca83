package story

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

const (
	// defaultTimeout is the HTTP client timeout for vendor API calls.
	defaultTimeout = 60 * time.Second

	// maxErrorBody caps how much of an error response is read for its message.
	maxErrorBody = 64 << 10
)

// Credentials supplies vendor keys. *auth.Resolver satisfies it.
type Credentials interface {
	APIKey(ctx context.Context, service string) (string, error)
	Secret(ctx context.Context, service, name string) (string, error)
}

// Options configures a vendor generator.
type Options struct {
	// BaseURL overrides the vendor's production endpoint.
	BaseURL string
	// HTTPClient defaults to a client with a 60s timeout.
	HTTPClient *http.Client
	// Credentials resolves API keys on every request.
	Credentials Credentials
	// Limiter throttles outgoing requests. Defaults to 2 requests/s, burst 4.
	Limiter *rate.Limiter
}

// api is the transport shared by every vendor: base URL, bearer auth,
// rate limiting, and mapping non-2xx responses to *APIError.
type api struct {
	service string
	baseURL string
	client  *http.Client
	limiter *rate.Limiter
	token   func(ctx context.Context) (string, error)
	headers map[string]string
}

func newAPI(service, defaultBase string, opts Options) *api {
	a := &api{
		service: service,
		baseURL: strings.TrimRight(defaultBase, "/"),
		client:  opts.HTTPClient,
		limiter: opts.Limiter,
	}
	if opts.BaseURL != "" {
		a.baseURL = strings.TrimRight(opts.BaseURL, "/")
	}
	if a.client == nil {
		a.client = &http.Client{Timeout: defaultTimeout}
	}
	if a.limiter == nil {
		a.limiter = rate.NewLimiter(rate.Every(500*time.Millisecond), 4)
	}
	creds := opts.Credentials
	a.token = func(ctx context.Context) (string, error) {
		if creds == nil {
			return "", fmt.Errorf("no credentials configured for %s", service)
		}
		return creds.APIKey(ctx, service)
	}
	return a
}

// getJSON issues a GET and decodes the JSON response into out.
func (a *api) getJSON(ctx context.Context, path string, out any) error {
	resp, err := a.send(ctx, http.MethodGet, path, nil, "")
	if err != nil {
		return err
	}
	return decodeBody(resp, out)
}

// postJSON marshals in, POSTs it, and decodes the response into out.
func (a *api) postJSON(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("encode %s request: %w", a.service, err)
	}
	resp, err := a.send(ctx, http.MethodPost, path, bytes.NewReader(body), "application/json")
	if err != nil {
		return err
	}
	return decodeBody(resp, out)
}

// send performs an authenticated request. A non-2xx status is returned as
// *APIError and the body is closed; otherwise the caller owns resp.Body.
func (a *api) send(ctx context.Context, method, path string, body io.Reader, contentType string) (*http.Response, error) {
	if err := a.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	token, err := a.token(ctx)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	for k, v := range a.headers {
		req.Header.Set(k, v)
	}

	start := time.Now()
	log.Debug().Str("service", a.service).Str("method", method).Str("path", path).Msg("Video API request")
	resp, err := a.client.Do(req)
	if err != nil {
		log.Debug().Str("service", a.service).Dur("duration", time.Since(start)).Err(err).Msg("Video API response")
		return nil, fmt.Errorf("%s request failed: %w", a.service, err)
	}
	log.Debug().Str("service", a.service).Int("statusCode", resp.StatusCode).Dur("duration", time.Since(start)).Msg("Video API response")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		apiErr := &APIError{Service: a.service, StatusCode: resp.StatusCode, Message: errorMessage(data)}
		log.Warn().Str("service", a.service).Int("statusCode", resp.StatusCode).Str("error", apiErr.Message).Msg("Video API error")
		return nil, apiErr
	}
	return resp, nil
}

func decodeBody(resp *http.Response, out any) error {
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parse response: %w (body: %s)", err, truncate(string(data), 200))
	}
	return nil
}

// errorMessage pulls a human-readable message out of a vendor error body.
// Vendors disagree on the shape, so the common ones are tried in turn:
// {"error":{"message"}}, {"message"}, {"error":"..."}.
func errorMessage(body []byte) string {
	var shaped struct {
		Error   json.RawMessage `json:"error"`
		Message string          `json:"message"`
	}
	if err := json.Unmarshal(body, &shaped); err == nil {
		var nested struct {
			Message string `json:"message"`
		}
		if len(shaped.Error) > 0 && json.Unmarshal(shaped.Error, &nested) == nil && nested.Message != "" {
			return nested.Message
		}
		if shaped.Message != "" {
			return shaped.Message
		}
		var flat string
		if len(shaped.Error) > 0 && json.Unmarshal(shaped.Error, &flat) == nil && flat != "" {
			return flat
		}
	}
	msg := strings.TrimSpace(string(body))
	if msg == "" {
		return "empty response"
	}
	return truncate(msg, 200)
}

// fetch streams a result URL without vendor credentials. Result links
// handed out by vendors are pre-signed.
func fetch(ctx context.Context, client *http.Client, service, url string) (io.ReadCloser, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", fmt.Errorf("build request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("download %s video: %w", service, err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, "", &APIError{Service: service, StatusCode: resp.StatusCode, Message: "video download failed"}
	}
	return resp.Body, contentTypeOr(resp, "video/mp4"), nil
}

func contentTypeOr(resp *http.Response, def string) string {
	if ct := resp.Header.Get("Content-Type"); ct != "" {
		return ct
	}
	return def
}

// truncate returns the first n bytes of s, appending "..." if truncated.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// imageInput returns the form a JSON vendor accepts for a photo: its public
// URL when there is one, otherwise a data URI.
func imageInput(p Photo) string {
	if p.URL != "" {
		return p.URL
	}
	return p.DataURI()
}
