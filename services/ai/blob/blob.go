// Package blob uploads local audio files to a Cloud Storage bucket.
package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"cloud.google.com/go/storage"
	"github.com/xilidan/signposting/services/ai/consts"
)

// Bucket opens writers for objects in a single bucket.
type Bucket interface {
	NewWriter(ctx context.Context, object string) io.WriteCloser
}

type gcsBucket struct {
	handle *storage.BucketHandle
}

func (b gcsBucket) NewWriter(ctx context.Context, object string) io.WriteCloser {
	return b.handle.Object(object).NewWriter(ctx)
}

type Client struct {
	name   string
	bucket Bucket
	closer io.Closer
	log    *slog.Logger
}

// NewGCS connects with Application Default Credentials. The handle is shared
// by every request for the life of the process.
func NewGCS(ctx context.Context, bucketName string, log *slog.Logger) (*Client, error) {
	if bucketName == "" {
		return nil, errors.New("bucket name must not be empty")
	}
	gcs, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}
	log.Debug("storage client created", slog.String("bucket", bucketName))

	c := New(bucketName, gcsBucket{handle: gcs.Bucket(bucketName)}, log)
	c.closer = gcs
	return c, nil
}

func New(bucketName string, bucket Bucket, log *slog.Logger) *Client {
	return &Client{
		name:   bucketName,
		bucket: bucket,
		log:    log,
	}
}

// Upload copies localPath to an object named after its base name, silently
// overwriting any existing object, and returns the gs:// URI.
func (c *Client) Upload(ctx context.Context, localPath string) (string, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", localPath, err)
	}
	defer f.Close()

	object := filepath.Base(localPath)
	w := c.bucket.NewWriter(ctx, object)
	if _, err := io.Copy(w, f); err != nil {
		w.Close()
		c.log.Error("failed to upload object", slog.String("object", object), slog.String("error", err.Error()))
		return "", fmt.Errorf("failed to upload %s: %w", object, err)
	}
	if err := w.Close(); err != nil {
		c.log.Error("failed to finalize object", slog.String("object", object), slog.String("error", err.Error()))
		return "", fmt.Errorf("failed to finalize %s: %w", object, err)
	}

	uri := URI(c.name, object)
	c.log.Info("file uploaded", slog.String("uri", uri))
	return uri, nil
}

func (c *Client) Close() error {
	if c.closer != nil {
		return c.closer.Close()
	}
	return nil
}

func URI(bucket, object string) string {
	return fmt.Sprintf("%s://%s/%s", consts.StorageScheme, bucket, object)
}
