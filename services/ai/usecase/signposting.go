package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/xilidan/signposting/pkg/logger"
	"github.com/xilidan/signposting/services/ai/consts"
	"github.com/xilidan/signposting/services/ai/entity"
	"github.com/xilidan/signposting/services/ai/llm"
)

const describePrompt = `This is a dictionary representing information on a support organization within the UK.
The organization has been categorized. The category is %s.
Write a concise and helpful description of the organization. Don't mention the website.
Mention the name first. Include any additional details if you have knowledge of them. Keep your answer in the range of 2 sentences.
Organization dictionary:
%s`

func describeOptionPrompt(option entity.SignpostingOption, category string) (llm.Prompt, error) {
	data, err := json.Marshal(option)
	if err != nil {
		return llm.Prompt{}, fmt.Errorf("failed to encode option: %w", err)
	}
	return llm.Prompt{
		User:        fmt.Sprintf(describePrompt, category, data),
		Temperature: llm.Temperature(consts.DescribeTemp),
	}, nil
}

func optionDetails(option entity.SignpostingOption) string {
	return fmt.Sprintf("Website: %s\nLocation: %s", option.ExternalURL, option.AreaCovered)
}

// DescribeOptions writes one message per option, in order, and translates
// them when the requested language is not English.
func (u *usecase) DescribeOptions(ctx context.Context, req *entity.SignpostingRequest) ([]string, error) {
	if u.deps.Signposting == nil {
		return nil, errors.New("signposting backend is not configured")
	}
	log := logger.FromContext(ctx)

	messages := make([]string, 0, len(req.Options))
	for i, option := range req.Options {
		prompt, err := describeOptionPrompt(option, req.Category)
		if err != nil {
			return nil, err
		}
		text, err := u.deps.Signposting.Generate(ctx, prompt)
		if err != nil {
			log.Error("failed to describe option", slog.Int("index", i), slog.String("name", option.Name), slog.String("error", err.Error()))
			return nil, fmt.Errorf("failed to describe option %q: %w", option.Name, err)
		}
		messages = append(messages, text+"\n"+optionDetails(option))
	}

	if req.Language == consts.DefaultLanguage || len(messages) == 0 {
		return messages, nil
	}
	if u.deps.Translator == nil {
		return nil, errors.New("translator is not configured")
	}
	translated, err := u.deps.Translator.Translate(ctx, messages, req.Language)
	if err != nil {
		return nil, fmt.Errorf("failed to translate messages: %w", err)
	}
	return translated, nil
}

func (u *usecase) AnswerQuestion(ctx context.Context, req *entity.QuestionRequest) (string, error) {
	if u.deps.QA == nil {
		return "", errors.New("qa backend is not configured")
	}
	answer, err := u.deps.QA.Generate(ctx, llm.Prompt{
		System: u.cfg.OpenAI.QAInstructions,
		User:   req.UserMessage,
	})
	if err != nil {
		logger.ErrorErr(ctx, "failed to answer question", err)
		return "", fmt.Errorf("failed to answer question: %w", err)
	}
	return answer, nil
}
