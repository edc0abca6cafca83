// Package auth resolves vendor API keys. A key set in the environment always
// wins; otherwise, when an SSM client is configured, the key is read from
// Parameter Store (with decryption) and cached for the life of the process.
package auth

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/rs/zerolog/log"
)

// ParameterReader is the subset of the SSM client used to fetch secrets.
type ParameterReader interface {
	GetParameter(ctx context.Context, in *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

// KeyError reports that no key could be found for a service.
type KeyError struct {
	Service string
	EnvVar  string
	Param   string
	Err     error
}

func (e *KeyError) Error() string {
	msg := fmt.Sprintf("%s API key not found: set %s", e.Service, e.EnvVar)
	if e.Param != "" {
		msg += " or SSM parameter " + e.Param
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *KeyError) Unwrap() error { return e.Err }

// IsMissingKey reports whether err is a KeyError.
func IsMissingKey(err error) bool {
	var ke *KeyError
	return errors.As(err, &ke)
}

// Resolver looks up keys from the environment, then SSM.
type Resolver struct {
	ssm ParameterReader
	env string

	mu    sync.Mutex
	cache map[string]string
}

// NewResolver creates a Resolver. ssmClient may be nil for environment-only
// lookup; env names the deployment used in parameter paths (e.g. "prod").
func NewResolver(ssmClient ParameterReader, env string) *Resolver {
	if env == "" {
		env = "prod"
	}
	return &Resolver{ssm: ssmClient, env: env, cache: make(map[string]string)}
}

// EnvVar returns the environment variable holding a service's API key,
// e.g. "kling" -> "KLING_API_KEY".
func EnvVar(service string) string {
	return strings.ToUpper(service) + "_API_KEY"
}

// ParamName returns the SSM parameter path for a service's API key.
// SSM_<SERVICE>_KEY_PARAM overrides the default /swipe-story/<env>/<service>-api-key.
func (r *Resolver) ParamName(service string) string {
	if p := os.Getenv("SSM_" + strings.ToUpper(service) + "_KEY_PARAM"); p != "" {
		return p
	}
	return fmt.Sprintf("/swipe-story/%s/%s-api-key", r.env, strings.ToLower(service))
}

// APIKey returns the API key for service.
func (r *Resolver) APIKey(ctx context.Context, service string) (string, error) {
	return r.lookup(ctx, service, EnvVar(service), r.ParamName(service))
}

// Secret returns an auxiliary credential such as KLING_SECRET_KEY. Missing
// secrets are reported as a KeyError like API keys.
func (r *Resolver) Secret(ctx context.Context, service, name string) (string, error) {
	envVar := strings.ToUpper(service) + "_" + strings.ToUpper(name)
	param := fmt.Sprintf("/swipe-story/%s/%s-%s", r.env, strings.ToLower(service), strings.ToLower(strings.ReplaceAll(name, "_", "-")))
	return r.lookup(ctx, service, envVar, param)
}

func (r *Resolver) lookup(ctx context.Context, service, envVar, param string) (string, error) {
	if v := os.Getenv(envVar); v != "" {
		log.Debug().Str("service", service).Str("source", "env").Msg("Using credential from environment")
		return v, nil
	}

	if r == nil || r.ssm == nil {
		return "", &KeyError{Service: service, EnvVar: envVar}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if v, ok := r.cache[param]; ok {
		return v, nil
	}

	start := time.Now()
	out, err := r.ssm.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           &param,
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		return "", &KeyError{Service: service, EnvVar: envVar, Param: param, Err: err}
	}
	if out.Parameter == nil || out.Parameter.Value == nil || *out.Parameter.Value == "" {
		return "", &KeyError{Service: service, EnvVar: envVar, Param: param}
	}

	r.cache[param] = *out.Parameter.Value
	log.Debug().
		Str("service", service).
		Str("param", param).
		Dur("elapsed", time.Since(start)).
		Msg("Credential loaded from SSM")
	return *out.Parameter.Value, nil
}
