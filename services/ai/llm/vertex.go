package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	config "github.com/xilidan/signposting/config/ai"
	"google.golang.org/genai"
)

type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Vertex generates text with Gemini models on Vertex AI.
type Vertex struct {
	models contentGenerator
	model  string
	log    *slog.Logger
}

func NewVertex(ctx context.Context, cfg *config.VertexAIConfig, log *slog.Logger) (*Vertex, error) {
	if cfg.ProjectID == "" {
		return nil, errors.New("vertexai: project id must not be empty")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		Project:  cfg.ProjectID,
		Location: cfg.Location,
		Backend:  genai.BackendVertexAI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	log.Debug("vertex ai client created", slog.String("project", cfg.ProjectID), slog.String("location", cfg.Location))
	return &Vertex{models: client.Models, model: cfg.Model, log: log}, nil
}

func (v *Vertex) Generate(ctx context.Context, p Prompt) (string, error) {
	gc := &genai.GenerateContentConfig{}
	if p.System != "" {
		gc.SystemInstruction = genai.NewContentFromText(p.System, genai.RoleUser)
	}
	if p.Temperature != nil {
		gc.Temperature = genai.Ptr(float32(*p.Temperature))
	}

	resp, err := v.models.GenerateContent(ctx, v.model, genai.Text(p.User), gc)
	if err != nil {
		v.log.Error("generate content failed", slog.String("model", v.model), slog.String("error", err.Error()))
		return "", fmt.Errorf("vertexai: generate content: %w", err)
	}

	text := resp.Text()
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}
