package drive

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// DownloadOptions controls how files are pulled from Google Drive.
type DownloadOptions struct {
	FolderID    string
	DownloadDir string
}

// Downloader pulls sales history files out of a Drive folder.
type Downloader struct {
	source FileSource
}

// NewDownloader creates a new Downloader.
func NewDownloader(source FileSource) *Downloader {
	return &Downloader{source: source}
}

// IsHistoryFile reports whether the ingest package can read the file.
func IsHistoryFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv", ".xlsx", ".xlsm":
		return true
	}
	return false
}

// DownloadFolder downloads every CSV and XLSX file of the folder into
// DownloadDir and returns the local paths sorted by name.
func (d *Downloader) DownloadFolder(ctx context.Context, opts DownloadOptions) ([]string, error) {
	if opts.DownloadDir == "" {
		return nil, fmt.Errorf("download dir is required")
	}
	if err := os.MkdirAll(opts.DownloadDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create download dir: %w", err)
	}

	files, err := d.source.ListFiles(ctx, opts.FolderID)
	if err != nil {
		return nil, err
	}

	var localPaths []string
	for _, f := range files {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		if !IsHistoryFile(f.Name) {
			continue
		}

		localPath, err := d.Download(ctx, f.ID, filepath.Join(opts.DownloadDir, filepath.Base(f.Name)))
		if err != nil {
			return nil, fmt.Errorf("failed to download %s: %w", f.Name, err)
		}
		localPaths = append(localPaths, localPath)
	}

	sort.Strings(localPaths)
	return localPaths, nil
}

// Download writes one file to destPath. A partially written file is removed.
func (d *Downloader) Download(ctx context.Context, fileID, destPath string) (string, error) {
	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return "", fmt.Errorf("failed to create download dir: %w", err)
	}
	out, err := os.Create(destPath)
	if err != nil {
		return "", fmt.Errorf("failed to create local file %s: %w", destPath, err)
	}
	if err := d.source.DownloadFile(ctx, fileID, out); err != nil {
		out.Close()
		_ = os.Remove(destPath)
		return "", err
	}
	if err := out.Close(); err != nil {
		return "", fmt.Errorf("failed to close %s: %w", destPath, err)
	}
	return destPath, nil
}
