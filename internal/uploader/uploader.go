// Package uploader copies a finished chunk directory to object storage.
package uploader

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	cfg "dumpsplit/internal/config"

	"github.com/pkg/errors"
)

// Uploader publishes a chunk directory and returns its remote location.
type Uploader interface {
	Enabled() bool
	UploadDir(ctx context.Context, dir string) (string, error)
}

// NoopUploader is used when no storage backend is configured.
type NoopUploader struct{}

// Enabled always reports false.
func (n NoopUploader) Enabled() bool {
	return false
}

// UploadDir does nothing and returns an empty location.
func (n NoopUploader) UploadDir(ctx context.Context, dir string) (string, error) {
	return "", nil
}

// New picks the configured backend. S3 wins when both are enabled.
func New(storage cfg.StorageConfig) (Uploader, error) {
	switch {
	case storage.S3.Enabled:
		return NewS3(storage.S3)
	case storage.GCS.Enabled:
		return NewGCS(storage.GCS)
	default:
		return NoopUploader{}, nil
	}
}

type localFile struct {
	path string
	key  string
}

// planUpload lists the regular files of dir and the object keys they map to.
func planUpload(dir, prefix string) ([]localFile, string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, "", errors.Wrapf(err, "read upload dir %s", dir)
	}
	base := filepath.Base(dir)
	prefix = strings.Trim(prefix, "/")
	if prefix != "" {
		prefix = prefix + "/"
	}
	var files []localFile
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		files = append(files, localFile{
			path: filepath.Join(dir, entry.Name()),
			key:  prefix + base + "/" + entry.Name(),
		})
	}
	return files, prefix + base + "/", nil
}

func contentType(name string) string {
	switch {
	case strings.HasSuffix(name, ".zst"):
		return "application/zstd"
	case strings.HasSuffix(name, ".sql"):
		return "application/sql"
	case strings.HasSuffix(name, ".json"):
		return "application/json"
	default:
		return "application/octet-stream"
	}
}
