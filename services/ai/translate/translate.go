// Package translate renders generated text in the user's language.
package translate

import (
	"context"
	"fmt"
	"log/slog"

	gtranslate "cloud.google.com/go/translate"
	"golang.org/x/text/language"
)

type Backend interface {
	Translate(ctx context.Context, inputs []string, target language.Tag, opts *gtranslate.Options) ([]gtranslate.Translation, error)
}

type Client struct {
	backend Backend
	closer  func() error
	log     *slog.Logger
}

func NewGoogle(ctx context.Context, log *slog.Logger) (*Client, error) {
	tc, err := gtranslate.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create translate client: %w", err)
	}
	c := New(tc, log)
	c.closer = tc.Close
	return c, nil
}

func New(b Backend, log *slog.Logger) *Client {
	return &Client{backend: b, log: log}
}

// Translate returns texts rendered in lang as plain text, in input order.
func (c *Client) Translate(ctx context.Context, texts []string, lang string) ([]string, error) {
	if len(texts) == 0 {
		return []string{}, nil
	}
	target, err := language.Parse(lang)
	if err != nil {
		return nil, fmt.Errorf("failed to parse language %q: %w", lang, err)
	}

	translations, err := c.backend.Translate(ctx, texts, target, &gtranslate.Options{Format: gtranslate.Text})
	if err != nil {
		c.log.Error("translation failed", slog.String("language", lang), slog.String("error", err.Error()))
		return nil, fmt.Errorf("failed to translate to %s: %w", lang, err)
	}
	if len(translations) != len(texts) {
		return nil, fmt.Errorf("translate returned %d results for %d inputs", len(translations), len(texts))
	}

	out := make([]string, len(translations))
	for i, tr := range translations {
		out[i] = tr.Text
	}
	return out, nil
}

func (c *Client) Close() error {
	if c.closer != nil {
		return c.closer()
	}
	return nil
}
