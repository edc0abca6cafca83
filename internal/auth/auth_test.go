package auth

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/ssm"
	ssmtypes "github.com/aws/aws-sdk-go-v2/service/ssm/types"
)

type fakeSSM struct {
	values map[string]string
	calls  int
}

func (f *fakeSSM) GetParameter(ctx context.Context, in *ssm.GetParameterInput, _ ...func(*ssm.Options)) (*ssm.GetParameterOutput, error) {
	f.calls++
	v, ok := f.values[*in.Name]
	if !ok {
		return nil, errors.New("ParameterNotFound")
	}
	if in.WithDecryption == nil || !*in.WithDecryption {
		return nil, errors.New("expected WithDecryption")
	}
	return &ssm.GetParameterOutput{Parameter: &ssmtypes.Parameter{Value: &v}}, nil
}

func TestEnvVar(t *testing.T) {
	tests := map[string]string{
		"kling":  "KLING_API_KEY",
		"sora":   "SORA_API_KEY",
		"gemini": "GEMINI_API_KEY",
	}
	for service, want := range tests {
		if got := EnvVar(service); got != want {
			t.Errorf("EnvVar(%q) = %q, want %q", service, got, want)
		}
	}
}

func TestAPIKey_EnvironmentWins(t *testing.T) {
	t.Setenv("KLING_API_KEY", "from-env")
	fake := &fakeSSM{values: map[string]string{"/swipe-story/prod/kling-api-key": "from-ssm"}}

	got, err := NewResolver(fake, "").APIKey(context.Background(), "kling")
	if err != nil {
		t.Fatalf("APIKey() error = %v", err)
	}
	if got != "from-env" {
		t.Errorf("APIKey() = %q, want from-env", got)
	}
	if fake.calls != 0 {
		t.Errorf("SSM called %d times, want 0", fake.calls)
	}
}

func TestAPIKey_SSMFallbackIsCached(t *testing.T) {
	t.Setenv("QWEN_API_KEY", "")
	fake := &fakeSSM{values: map[string]string{"/swipe-story/staging/qwen-api-key": "sk-qwen"}}
	r := NewResolver(fake, "staging")

	for range 3 {
		got, err := r.APIKey(context.Background(), "qwen")
		if err != nil {
			t.Fatalf("APIKey() error = %v", err)
		}
		if got != "sk-qwen" {
			t.Errorf("APIKey() = %q, want sk-qwen", got)
		}
	}
	if fake.calls != 1 {
		t.Errorf("SSM called %d times, want 1", fake.calls)
	}
}

func TestAPIKey_ParamOverride(t *testing.T) {
	t.Setenv("RUNWAY_API_KEY", "")
	t.Setenv("SSM_RUNWAY_KEY_PARAM", "/custom/runway")
	fake := &fakeSSM{values: map[string]string{"/custom/runway": "rw"}}

	got, err := NewResolver(fake, "prod").APIKey(context.Background(), "runway")
	if err != nil || got != "rw" {
		t.Fatalf("APIKey() = %q, %v; want rw", got, err)
	}
}

func TestAPIKey_Missing(t *testing.T) {
	t.Setenv("SORA_API_KEY", "")

	tests := []struct {
		name      string
		resolver  *Resolver
		wantParam bool
	}{
		{"no ssm", NewResolver(nil, "prod"), false},
		{"ssm miss", NewResolver(&fakeSSM{}, "prod"), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.resolver.APIKey(context.Background(), "sora")
			var ke *KeyError
			if !errors.As(err, &ke) {
				t.Fatalf("APIKey() error = %v, want *KeyError", err)
			}
			if !IsMissingKey(err) {
				t.Error("IsMissingKey() = false")
			}
			if ke.EnvVar != "SORA_API_KEY" {
				t.Errorf("EnvVar = %q", ke.EnvVar)
			}
			if (ke.Param != "") != tt.wantParam {
				t.Errorf("Param = %q, wantParam %v", ke.Param, tt.wantParam)
			}
		})
	}
}

func TestSecret(t *testing.T) {
	t.Setenv("KLING_SECRET_KEY", "shh")
	got, err := NewResolver(nil, "").Secret(context.Background(), "kling", "secret_key")
	if err != nil || got != "shh" {
		t.Fatalf("Secret() = %q, %v; want shh", got, err)
	}
}
