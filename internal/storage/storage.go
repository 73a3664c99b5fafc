package storage

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/andresuchdata/autopo-forecast/backend-go/internal/config"
)

// ObjectInfo represents metadata for a remote file/object.
type ObjectInfo struct {
	Key  string
	Size int64
}

// ObjectStorage captures the minimal S3-compatible operations the planner needs.
type ObjectStorage interface {
	ListObjects(ctx context.Context, prefix string) ([]ObjectInfo, error)
	DownloadObject(ctx context.Context, key string, destPath string) error
	UploadObject(ctx context.Context, key string, data []byte) error
}

const fileScheme = "file://"

// New picks the backend from the endpoint: file:// paths use a local
// directory, anything else is an S3-compatible bucket.
func New(cfg config.StorageConfig) (ObjectStorage, error) {
	if root, ok := strings.CutPrefix(cfg.Endpoint, fileScheme); ok {
		local, err := NewLocalStorage(filepath.Join(root, cfg.Bucket))
		if err != nil {
			return nil, err
		}
		return local, nil
	}
	remote, err := NewMinioClient(cfg)
	if err != nil {
		return nil, err
	}
	return remote, nil
}

// ExportUploader returns a flush callback that uploads each written export
// file under prefix, keeping its base name.
func ExportUploader(store ObjectStorage, prefix string) func(ctx context.Context, localPath string) error {
	return func(ctx context.Context, localPath string) error {
		data, err := os.ReadFile(localPath)
		if err != nil {
			return fmt.Errorf("failed reading %s: %w", localPath, err)
		}
		key := path.Join(prefix, filepath.Base(localPath))
		if err := store.UploadObject(ctx, key, data); err != nil {
			return fmt.Errorf("failed uploading %s: %w", key, err)
		}
		return nil
	}
}
