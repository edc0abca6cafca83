package story

import (
	"context"
	"fmt"
	"io"
	"strings"
)

// DefaultService is used when VIDEO_SERVICE is unset.
const DefaultService = "kling"

// Services lists the supported vendors.
var Services = []string{"sora", "kling", "jimeng", "qwen", "runway"}

// Downloader streams a finished video given its Status.ResultRef.
type Downloader interface {
	Download(ctx context.Context, ref string) (io.ReadCloser, string, error)
}

// NewGenerator returns the vendor named by service.
func NewGenerator(service string, opts Options) (Generator, error) {
	switch strings.ToLower(strings.TrimSpace(service)) {
	case "sora":
		return NewSora(opts), nil
	case "kling", "":
		return NewKling(opts), nil
	case "jimeng":
		return NewJimeng(opts), nil
	case "qwen":
		return NewQwen(opts), nil
	case "runway":
		return NewRunway(opts), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownService, service)
	}
}

// NewGenerators builds every supported vendor. baseURL returns an endpoint
// override per service, or "" for production.
func NewGenerators(opts Options, baseURL func(service string) string) map[string]Generator {
	gens := make(map[string]Generator, len(Services))
	for _, name := range Services {
		o := opts
		if baseURL != nil {
			o.BaseURL = baseURL(name)
		}
		g, _ := NewGenerator(name, o)
		gens[name] = g
	}
	return gens
}
