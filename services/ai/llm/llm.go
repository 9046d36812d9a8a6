// Package llm hides the text generation providers behind one capability.
package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	config "github.com/xilidan/signposting/config/ai"
)

var (
	ErrUnsupportedBackend = errors.New("unsupported llm backend")
	ErrEmptyResponse      = errors.New("llm returned no text")
)

// Backend names a provider.
type Backend string

const (
	BackendVertexAI Backend = "vertexai"
	BackendOpenAI   Backend = "openai"
)

type Prompt struct {
	System      string
	User        string
	Temperature *float64
}

type Generator interface {
	Generate(ctx context.Context, p Prompt) (string, error)
}

// New builds the generator for backend. Unknown names return ErrUnsupportedBackend.
func New(ctx context.Context, backend Backend, cfg *config.Config, log *slog.Logger) (Generator, error) {
	log = log.With(slog.String("backend", string(backend)))

	switch backend {
	case BackendVertexAI:
		return NewVertex(ctx, &cfg.VertexAI, log)
	case BackendOpenAI:
		return NewOpenAI(&cfg.OpenAI, log)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedBackend, backend)
	}
}

func Temperature(t float64) *float64 {
	return &t
}
