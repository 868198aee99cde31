package backup

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"

	"cloud.google.com/go/storage"
	"go.uber.org/zap"
)

// GCS mirrors snapshots into a Cloud Storage bucket under a fixed
// prefix.
type GCS struct {
	client *storage.Client
	bucket string
	prefix string
	logger *zap.Logger
}

// NewGCS builds a GCS provider using ambient credentials.
func NewGCS(ctx context.Context, bucket, prefix string, logger *zap.Logger) (*GCS, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("storage client: %w", err)
	}
	return &GCS{client: client, bucket: bucket, prefix: prefix, logger: logger}, nil
}

// Upload copies the local file to <prefix>/<basename> in the bucket.
func (g *GCS) Upload(ctx context.Context, localPath string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("open %s: %w", localPath, err)
	}
	defer f.Close()

	object := path.Join(g.prefix, filepath.Base(localPath))
	w := g.client.Bucket(g.bucket).Object(object).NewWriter(ctx)
	if _, err := io.Copy(w, f); err != nil {
		w.Close()
		return fmt.Errorf("upload %s: %w", object, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("finalize %s: %w", object, err)
	}
	g.logger.Debug("snapshot backed up",
		zap.String("bucket", g.bucket),
		zap.String("object", object),
	)
	return nil
}

// Close releases the client.
func (g *GCS) Close() error {
	return g.client.Close()
}
