package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
	"github.com/openai/openai-go/shared"
	config "github.com/xilidan/signposting/config/ai"
)

// OpenAI generates text with the chat completions API.
type OpenAI struct {
	client oai.Client
	model  string
	log    *slog.Logger
}

func NewOpenAI(cfg *config.OpenAIConfig, log *slog.Logger, opts ...option.RequestOption) (*OpenAI, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openai: api key must not be empty")
	}
	if cfg.Model == "" {
		return nil, errors.New("openai: model must not be empty")
	}

	reqOpts := append([]option.RequestOption{option.WithAPIKey(cfg.APIKey)}, opts...)
	return &OpenAI{
		client: oai.NewClient(reqOpts...),
		model:  cfg.Model,
		log:    log,
	}, nil
}

func (o *OpenAI) Generate(ctx context.Context, p Prompt) (string, error) {
	var messages []oai.ChatCompletionMessageParamUnion
	if p.System != "" {
		messages = append(messages, oai.SystemMessage(p.System))
	}
	messages = append(messages, oai.UserMessage(p.User))

	params := oai.ChatCompletionNewParams{
		Model:    shared.ChatModel(o.model),
		Messages: messages,
	}
	if p.Temperature != nil {
		params.Temperature = param.NewOpt(*p.Temperature)
	}

	resp, err := o.client.Chat.Completions.New(ctx, params)
	if err != nil {
		o.log.Error("chat completion failed", slog.String("model", o.model), slog.String("error", err.Error()))
		return "", fmt.Errorf("openai: chat completion: %w", err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", ErrEmptyResponse
	}
	return resp.Choices[0].Message.Content, nil
}
