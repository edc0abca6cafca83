package narrator

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"google.golang.org/genai"
)

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ValidationErrorType
	}{
		{"bad request", &genai.APIError{Code: 400}, ErrTypeInvalidKey},
		{"unauthorized", &genai.APIError{Code: 401}, ErrTypeInvalidKey},
		{"forbidden", &genai.APIError{Code: 403}, ErrTypeInvalidKey},
		{"rate limited", &genai.APIError{Code: 429}, ErrTypeQuotaExceeded},
		{"server error", &genai.APIError{Code: 503}, ErrTypeNetworkError},
		{"other code", &genai.APIError{Code: 418, Message: "teapot"}, ErrTypeUnknown},
		{"wrapped api error", fmt.Errorf("call: %w", &genai.APIError{Code: 429}), ErrTypeQuotaExceeded},
		{"key message", errors.New("API key not valid. Please pass a valid API key."), ErrTypeInvalidKey},
		{"quota message", errors.New("Resource exhausted"), ErrTypeQuotaExceeded},
		{"network message", errors.New("dial tcp: no such host"), ErrTypeNetworkError},
		{"unknown", errors.New("something odd"), ErrTypeUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classifyError(tt.err)
			if got.Type != tt.want {
				t.Errorf("classifyError(%v).Type = %v, want %v", tt.err, got.Type, tt.want)
			}
			if got.Err == nil {
				t.Error("classifyError() dropped the cause")
			}
		})
	}
	if classifyError(nil) != nil {
		t.Error("classifyError(nil) != nil")
	}
}

func TestValidateAPIKey(t *testing.T) {
	ctx := context.Background()

	if err := New(&fakeModels{text: "hello"}, "m").ValidateAPIKey(ctx); err != nil {
		t.Errorf("ValidateAPIKey() error = %v", err)
	}

	err := New(&fakeModels{err: &genai.APIError{Code: 403}}, "m").ValidateAPIKey(ctx)
	var valErr *ValidationError
	if !errors.As(err, &valErr) || valErr.Type != ErrTypeInvalidKey {
		t.Errorf("ValidateAPIKey() error = %v, want invalid key", err)
	}

	err = New(&fakeModels{empty: true}, "m").ValidateAPIKey(ctx)
	if !errors.As(err, &valErr) || valErr.Type != ErrTypeUnknown {
		t.Errorf("ValidateAPIKey(empty) error = %v", err)
	}
}
