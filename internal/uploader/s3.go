package uploader

import (
	"context"
	"fmt"
	"os"

	cfg "dumpsplit/internal/config"
	"dumpsplit/internal/util"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/pkg/errors"
)

// S3Uploader uploads chunk directories to S3-compatible storage.
type S3Uploader struct {
	cfg    cfg.S3Config
	client *s3.Client
}

// NewS3 constructs an uploader from S3 configuration.
func NewS3(cfg cfg.S3Config) (*S3Uploader, error) {
	if !cfg.Enabled {
		return &S3Uploader{cfg: cfg}, nil
	}
	opts := []func(*awsconfig.LoadOptions) error{}
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		creds := credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, cfg.SessionToken)
		opts = append(opts, awsconfig.WithCredentialsProvider(creds))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), opts...)
	if err != nil {
		return nil, errors.Wrap(err, "load aws config")
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.UsePathStyle
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	return &S3Uploader{cfg: cfg, client: client}, nil
}

// Enabled reports whether S3 uploads are configured.
func (u *S3Uploader) Enabled() bool {
	return u.cfg.Enabled
}

// UploadDir uploads the chunk directory and returns its S3 URL prefix.
func (u *S3Uploader) UploadDir(ctx context.Context, dir string) (string, error) {
	if !u.cfg.Enabled {
		return "", nil
	}
	if u.client == nil {
		return "", errors.New("s3 uploader is not initialized")
	}
	files, keyPrefix, err := planUpload(dir, u.cfg.Prefix)
	if err != nil {
		return "", err
	}
	for _, f := range files {
		if err := u.uploadFile(ctx, f); err != nil {
			return "", errors.Wrapf(err, "upload %s", f.path)
		}
		util.Debugf("uploaded s3://%s/%s", u.cfg.Bucket, f.key)
	}
	return fmt.Sprintf("s3://%s/%s", u.cfg.Bucket, keyPrefix), nil
}

func (u *S3Uploader) uploadFile(ctx context.Context, f localFile) error {
	file, err := os.Open(f.path)
	if err != nil {
		return err
	}
	defer util.CloseWithErr(file, "s3 upload file")

	info, err := file.Stat()
	if err != nil {
		return err
	}
	_, err = u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(u.cfg.Bucket),
		Key:           aws.String(f.key),
		Body:          file,
		ContentLength: aws.Int64(info.Size()),
		ContentType:   aws.String(contentType(f.key)),
	})
	return err
}
