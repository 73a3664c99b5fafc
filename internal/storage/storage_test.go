package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andresuchdata/autopo-forecast/backend-go/internal/config"
)

func TestLocalStorageRoundTrip(t *testing.T) {
	ctx := context.Background()
	s, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, s.UploadObject(ctx, "exports/job_forecast.csv", []byte("a,b\n")))
	require.NoError(t, s.UploadObject(ctx, "other/x.csv", []byte("x")))

	objects, err := s.ListObjects(ctx, "exports/")
	require.NoError(t, err)
	assert.Equal(t, []ObjectInfo{{Key: "exports/job_forecast.csv", Size: 4}}, objects)

	dest := filepath.Join(t.TempDir(), "dl", "f.csv")
	require.NoError(t, s.DownloadObject(ctx, "exports/job_forecast.csv", dest))
	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "a,b\n", string(data))
}

func TestLocalStorageRejectsEscapingKeys(t *testing.T) {
	s, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	assert.Error(t, s.UploadObject(context.Background(), "../escape.csv", []byte("x")))
}

func TestExportUploader(t *testing.T) {
	ctx := context.Background()
	s, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	local := filepath.Join(t.TempDir(), "job-1_order_plan.csv")
	require.NoError(t, os.WriteFile(local, []byte("header\n"), 0o644))

	require.NoError(t, ExportUploader(s, "runs/job-1")(ctx, local))
	objects, err := s.ListObjects(ctx, "runs/")
	require.NoError(t, err)
	require.Len(t, objects, 1)
	assert.Equal(t, "runs/job-1/job-1_order_plan.csv", objects[0].Key)
}

func TestNewMinioClientValidation(t *testing.T) {
	_, err := NewMinioClient(config.StorageConfig{})
	assert.ErrorContains(t, err, "endpoint")

	_, err = NewMinioClient(config.StorageConfig{Endpoint: "s3.local"})
	assert.ErrorContains(t, err, "credentials")

	_, err = NewMinioClient(config.StorageConfig{Endpoint: "s3.local", AccessKey: "a", SecretKey: "b"})
	assert.ErrorContains(t, err, "bucket")

	c, err := NewMinioClient(config.StorageConfig{Endpoint: "https://s3.local:9000", AccessKey: "a", SecretKey: "b", Bucket: "exports"})
	require.NoError(t, err)
	assert.Equal(t, "exports", c.bucket)
}

func TestSplitEndpoint(t *testing.T) {
	host, secure, err := splitEndpoint("http://minio:9000", true)
	require.NoError(t, err)
	assert.Equal(t, "minio:9000", host)
	assert.False(t, secure)

	host, secure, err = splitEndpoint("minio:9000", true)
	require.NoError(t, err)
	assert.Equal(t, "minio:9000", host)
	assert.True(t, secure)
}

func TestNewPicksLocalForFileEndpoint(t *testing.T) {
	root := t.TempDir()
	s, err := New(config.StorageConfig{Endpoint: "file://" + root, Bucket: "exports"})
	require.NoError(t, err)
	require.IsType(t, &LocalStorage{}, s)

	require.NoError(t, s.UploadObject(context.Background(), "a.csv", []byte("x")))
	assert.FileExists(t, filepath.Join(root, "exports", "a.csv"))

	_, err = New(config.StorageConfig{Endpoint: "minio:9000"})
	assert.EqualError(t, err, "storage credentials must be provided")
}
