package uploader

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	cfg "dumpsplit/internal/config"
	"dumpsplit/internal/util"

	"cloud.google.com/go/storage"
	"github.com/pkg/errors"
	"google.golang.org/api/option"
)

// GCSUploader uploads chunk directories to Google Cloud Storage.
type GCSUploader struct {
	cfg    cfg.GCSConfig
	client *storage.Client
}

// NewGCS constructs an uploader from GCS configuration.
func NewGCS(cfg cfg.GCSConfig) (*GCSUploader, error) {
	if !cfg.Enabled {
		return &GCSUploader{cfg: cfg}, nil
	}
	opts := []option.ClientOption{}
	if strings.TrimSpace(cfg.CredentialsFile) != "" {
		opts = append(opts, option.WithCredentialsFile(strings.TrimSpace(cfg.CredentialsFile)))
	}
	client, err := storage.NewClient(context.Background(), opts...)
	if err != nil {
		return nil, errors.Wrap(err, "gcs client")
	}
	return &GCSUploader{cfg: cfg, client: client}, nil
}

// Enabled reports whether GCS uploads are configured.
func (u *GCSUploader) Enabled() bool {
	return u.cfg.Enabled
}

// UploadDir uploads the chunk directory and returns its GCS URL prefix.
func (u *GCSUploader) UploadDir(ctx context.Context, dir string) (string, error) {
	if !u.cfg.Enabled {
		return "", nil
	}
	if u.client == nil {
		return "", errors.New("gcs uploader is not initialized")
	}
	files, keyPrefix, err := planUpload(dir, u.cfg.Prefix)
	if err != nil {
		return "", err
	}
	for _, f := range files {
		if err := u.uploadFile(ctx, f); err != nil {
			return "", errors.Wrapf(err, "upload %s", f.path)
		}
		util.Debugf("uploaded gs://%s/%s", u.cfg.Bucket, f.key)
	}
	return fmt.Sprintf("gs://%s/%s", u.cfg.Bucket, keyPrefix), nil
}

func (u *GCSUploader) uploadFile(ctx context.Context, f localFile) error {
	file, err := os.Open(f.path)
	if err != nil {
		return err
	}
	defer util.CloseWithErr(file, "gcs upload file")

	writer := u.client.Bucket(u.cfg.Bucket).Object(f.key).NewWriter(ctx)
	writer.ContentType = contentType(f.key)
	if _, err := io.Copy(writer, file); err != nil {
		_ = writer.Close()
		return err
	}
	return writer.Close()
}
