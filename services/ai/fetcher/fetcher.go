// Package fetcher downloads message media from the messaging provider into
// a per-call temporary directory.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	config "github.com/xilidan/signposting/config/ai"
	"github.com/xilidan/signposting/services/ai/consts"
)

var ErrFetch = errors.New("media fetch failed")

// Media is a downloaded file. Dir is owned by the caller, who must call
// Cleanup once the file is no longer needed.
type Media struct {
	Path string
	Dir  string
}

func (m *Media) Cleanup() error {
	if m == nil || m.Dir == "" {
		return nil
	}
	return os.RemoveAll(m.Dir)
}

type Client struct {
	username   string
	password   string
	maxBytes   int64
	tempRoot   string
	httpClient *http.Client
	log        *slog.Logger
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithTempRoot sets the parent of the per-call directories. Defaults to os.TempDir().
func WithTempRoot(dir string) Option {
	return func(c *Client) {
		c.tempRoot = dir
	}
}

func WithMaxBytes(n int64) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxBytes = n
		}
	}
}

func New(cfg *config.TwilioConfig, log *slog.Logger, opts ...Option) *Client {
	log.Debug("creating media fetcher", slog.Bool("credentials_set", cfg.AccountSID != "" && cfg.AuthToken != ""))
	c := &Client{
		username:   cfg.AccountSID,
		password:   cfg.AuthToken,
		maxBytes:   consts.MaxAudioSize,
		httpClient: &http.Client{},
		log:        log,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Fetch downloads rawURL with basic auth. On any failure the temporary
// directory it created is removed and an error wrapping ErrFetch is returned.
func (c *Client) Fetch(ctx context.Context, rawURL string) (media *Media, err error) {
	dir, err := os.MkdirTemp(c.tempRoot, "media-*")
	if err != nil {
		c.log.Error("failed to create temp dir", slog.String("error", err.Error()))
		return nil, fmt.Errorf("%w: failed to create temp dir: %v", ErrFetch, err)
	}
	defer func() {
		if err != nil {
			if rmErr := os.RemoveAll(dir); rmErr != nil {
				c.log.Warn("failed to remove temp dir", slog.String("dir", dir), slog.String("error", rmErr.Error()))
			}
		}
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		c.log.Error("failed to create HTTP request", slog.String("error", err.Error()))
		return nil, fmt.Errorf("%w: failed to create request: %v", ErrFetch, err)
	}
	req.SetBasicAuth(c.username, c.password)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Error("network error while downloading media", slog.String("error", err.Error()))
		return nil, fmt.Errorf("%w: %v", ErrFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.log.Error("failed to download media", slog.Int("status_code", resp.StatusCode), slog.String("url", rawURL))
		return nil, fmt.Errorf("%w: unexpected status code %d", ErrFetch, resp.StatusCode)
	}

	filePath := filepath.Join(dir, fileName(rawURL, resp.Header.Get("Content-Type")))
	if err := c.write(filePath, resp.Body); err != nil {
		c.log.Error("file I/O error while saving media", slog.String("error", err.Error()))
		return nil, fmt.Errorf("%w: %v", ErrFetch, err)
	}

	c.log.Info("media downloaded successfully", slog.String("path", filePath))
	return &Media{Path: filePath, Dir: dir}, nil
}

func (c *Client) write(filePath string, body io.Reader) error {
	f, err := os.Create(filePath)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}

	n, err := io.Copy(f, io.LimitReader(body, c.maxBytes+1))
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	if n > c.maxBytes {
		return fmt.Errorf("media exceeds %d bytes", c.maxBytes)
	}
	return nil
}

// fileName joins the last URL path segment with the subtype of contentType,
// e.g. ".../Media/ME12" + "audio/ogg" -> "ME12.ogg".
func fileName(rawURL, contentType string) string {
	name := "media"
	if u, err := url.Parse(rawURL); err == nil {
		if base := path.Base(u.Path); base != "." && base != "/" && base != "" {
			name = base
		}
	}

	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil || mediaType == "" {
		return name
	}
	ext := mediaType[strings.LastIndex(mediaType, "/")+1:]
	if ext == "" {
		return name
	}
	return name + "." + ext
}
