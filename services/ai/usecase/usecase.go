package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	config "github.com/xilidan/signposting/config/ai"
	"github.com/xilidan/signposting/pkg/gen"
	"github.com/xilidan/signposting/pkg/logger"
	"github.com/xilidan/signposting/services/ai/entity"
	"github.com/xilidan/signposting/services/ai/fetcher"
	"github.com/xilidan/signposting/services/ai/llm"
	"github.com/xilidan/signposting/services/ai/storage"
)

var (
	ErrMediaUnavailable = errors.New("failed to download media")
	ErrPersistence      = errors.New("failed to update conversation records")
)

type MediaFetcher interface {
	Fetch(ctx context.Context, rawURL string) (*fetcher.Media, error)
}

type ObjectStore interface {
	Upload(ctx context.Context, localPath string) (string, error)
}

type Transcriber interface {
	Transcribe(ctx context.Context, uri string) (string, error)
}

type Translator interface {
	Translate(ctx context.Context, texts []string, lang string) ([]string, error)
}

type Usecase interface {
	Transcribe(ctx context.Context, mediaURL string) (*entity.TranscriptionResult, error)
	ApplyTranscription(ctx context.Context, messageID string, res *entity.TranscriptionResult) (*entity.UpdateOutcome, error)
	HandleTranscription(ctx context.Context, req *entity.TranscriptionRequest) (*entity.TranscriptionResponse, error)
	DescribeOptions(ctx context.Context, req *entity.SignpostingRequest) ([]string, error)
	AnswerQuestion(ctx context.Context, req *entity.QuestionRequest) (string, error)
}

// Deps are the process-lifetime clients shared by every request.
type Deps struct {
	Fetcher     MediaFetcher
	Blob        ObjectStore
	Speech      Transcriber
	Storage     storage.Storage
	Translator  Translator
	Signposting llm.Generator
	QA          llm.Generator
	IDs         gen.IDGenerator
}

type usecase struct {
	cfg  *config.Config
	deps Deps
}

func New(cfg *config.Config, deps Deps) Usecase {
	if deps.IDs == nil {
		deps.IDs = gen.UUID()
	}
	return &usecase{
		cfg:  cfg,
		deps: deps,
	}
}

// Transcribe downloads the media, stores it in the bucket and transcribes
// it. The downloaded file is removed before returning on every path.
func (u *usecase) Transcribe(ctx context.Context, mediaURL string) (*entity.TranscriptionResult, error) {
	log := logger.FromContext(ctx)

	media, err := u.deps.Fetcher.Fetch(ctx, mediaURL)
	if err != nil {
		log.Error("failed to fetch media", slog.String("error", err.Error()))
		return nil, fmt.Errorf("%w: %v", ErrMediaUnavailable, err)
	}
	defer func() {
		if err := media.Cleanup(); err != nil {
			log.Warn("failed to remove media dir", slog.String("dir", media.Dir), slog.String("error", err.Error()))
		}
	}()

	uri, err := u.deps.Blob.Upload(ctx, media.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to upload media: %w", err)
	}

	transcript, err := u.deps.Speech.Transcribe(ctx, uri)
	if err != nil {
		return nil, fmt.Errorf("failed to transcribe media: %w", err)
	}

	return &entity.TranscriptionResult{
		Transcript: transcript,
		StorageURI: uri,
	}, nil
}

// ApplyTranscription patches the message, its flow history entry and the
// contact profile. Every step runs; each reports its own outcome. The error
// is non-nil only when no database handle could be acquired.
func (u *usecase) ApplyTranscription(ctx context.Context, messageID string, res *entity.TranscriptionResult) (*entity.UpdateOutcome, error) {
	log := logger.FromContext(ctx)

	records, err := u.deps.Storage.Acquire(ctx)
	if err != nil {
		failed := entity.NewStepOutcome(false, err)
		log.Error("failed to acquire database handle", slog.String("error", err.Error()))
		return &entity.UpdateOutcome{Message: failed, FlowHistory: failed, Contact: failed}, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	defer records.Release()

	outcome := &entity.UpdateOutcome{
		Message:     entity.NewStepOutcome(records.UpdateMessage(ctx, messageID, res.Transcript, res.StorageURI)),
		FlowHistory: entity.NewStepOutcome(records.UpdateFlowResponse(ctx, messageID, res.Transcript, res.StorageURI)),
		Contact:     entity.NewStepOutcome(records.UpdateContactProfile(ctx, messageID, res.Transcript)),
	}

	log.Info("conversation records patched",
		slog.String("message_sid", messageID),
		slog.String("messages", string(outcome.Message.Status)),
		slog.String("flow_history", string(outcome.FlowHistory.Status)),
		slog.String("contacts", string(outcome.Contact.Status)),
	)
	return outcome, nil
}

func (u *usecase) HandleTranscription(ctx context.Context, req *entity.TranscriptionRequest) (*entity.TranscriptionResponse, error) {
	log := logger.FromContext(ctx).With(
		slog.String("job_id", u.deps.IDs.Next()),
		slog.String("message_sid", req.MessageID),
	)
	ctx = logger.WithContext(ctx, log)

	res, err := u.Transcribe(ctx, req.MediaURL)
	if err != nil {
		return nil, err
	}

	outcome, err := u.ApplyTranscription(ctx, req.MessageID, res)
	if err != nil {
		return &entity.TranscriptionResponse{Message: err.Error(), Status: 500, Updates: *outcome}, err
	}

	resp := &entity.TranscriptionResponse{
		Message: "Message updated successfully with " + res.Transcript,
		Status:  200,
		Updates: *outcome,
	}
	if outcome.Failed() {
		resp.Message = ErrPersistence.Error()
		resp.Status = 500
		return resp, fmt.Errorf("%w: %v", ErrPersistence, outcome.Err())
	}
	return resp, nil
}
