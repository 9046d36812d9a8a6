// Package speech transcribes audio stored in Cloud Storage with Speech-to-Text v1.
package speech

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	speechapi "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"
	"github.com/googleapis/gax-go/v2"
	"github.com/xilidan/signposting/services/ai/consts"
)

// Recognizer is the subset of the Speech client used here.
type Recognizer interface {
	Recognize(ctx context.Context, req *speechpb.RecognizeRequest, opts ...gax.CallOption) (*speechpb.RecognizeResponse, error)
}

type Client struct {
	recognizer Recognizer
	closer     func() error
	log        *slog.Logger
}

func NewGoogle(ctx context.Context, log *slog.Logger) (*Client, error) {
	sc, err := speechapi.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create speech client: %w", err)
	}
	c := New(sc, log)
	c.closer = sc.Close
	return c, nil
}

func New(r Recognizer, log *slog.Logger) *Client {
	return &Client{recognizer: r, log: log}
}

// Transcribe recognizes the OGG/Opus audio at uri and returns the first
// alternative of every result joined in order. No results yield "".
func (c *Client) Transcribe(ctx context.Context, uri string) (string, error) {
	resp, err := c.recognizer.Recognize(ctx, NewRequest(uri))
	if err != nil {
		c.log.Error("speech recognition failed", slog.String("uri", uri), slog.String("error", err.Error()))
		return "", fmt.Errorf("failed to transcribe %s: %w", uri, err)
	}

	transcript := Join(resp)
	c.log.Info("audio transcribed",
		slog.String("uri", uri),
		slog.Int("results", len(resp.GetResults())),
		slog.Int("chars", len(transcript)),
	)
	return transcript, nil
}

func (c *Client) Close() error {
	if c.closer != nil {
		return c.closer()
	}
	return nil
}

func NewRequest(uri string) *speechpb.RecognizeRequest {
	return &speechpb.RecognizeRequest{
		Config: &speechpb.RecognitionConfig{
			Encoding:        speechpb.RecognitionConfig_OGG_OPUS,
			SampleRateHertz: consts.DefaultSampleRate,
			LanguageCode:    consts.SpeechLanguage,
		},
		Audio: &speechpb.RecognitionAudio{
			AudioSource: &speechpb.RecognitionAudio_Uri{Uri: uri},
		},
	}
}

// Join concatenates the top alternative of each result with no separator.
// Results without alternatives are skipped.
func Join(resp *speechpb.RecognizeResponse) string {
	var sb strings.Builder
	for _, result := range resp.GetResults() {
		alts := result.GetAlternatives()
		if len(alts) == 0 {
			continue
		}
		sb.WriteString(alts[0].GetTranscript())
	}
	return sb.String()
}
