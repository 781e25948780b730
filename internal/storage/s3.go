// Package storage uploads finished videos to S3-compatible object storage.
package storage

import (
	"context"
	"fmt"
	"mime"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"redub/internal/config"
	"redub/internal/services"
)

// Uploader stores a local file under a key and returns its public URL.
type Uploader interface {
	Upload(ctx context.Context, key, path string) (string, error)
	Enabled() bool
}

type s3API interface {
	PutObject(ctx context.Context, input *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type s3Uploader struct {
	client        s3API
	bucket        string
	publicBaseURL string
}

// NewUploader builds an S3 uploader from the storage configuration, or a
// disabled uploader when storage is turned off.
func NewUploader(ctx context.Context, cfg config.Storage) (Uploader, error) {
	if !cfg.Enabled {
		return disabledUploader{}, nil
	}
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, services.Wrap(services.ErrConfiguration, "publish", "storage setup", "storage enabled without a bucket", nil)
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		),
	)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "publish", "storage setup", "", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if endpoint := strings.TrimSpace(cfg.Endpoint); endpoint != "" {
			o.BaseEndpoint = &endpoint
			o.UsePathStyle = true
		}
	})
	return &s3Uploader{
		client:        client,
		bucket:        cfg.Bucket,
		publicBaseURL: strings.TrimRight(cfg.PublicBaseURL, "/"),
	}, nil
}

// NewUploaderWithClient is used by tests to inject a fake S3 API.
func NewUploaderWithClient(client s3API, bucket, publicBaseURL string) Uploader {
	return &s3Uploader{
		client:        client,
		bucket:        bucket,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
	}
}

func (u *s3Uploader) Enabled() bool { return true }

func (u *s3Uploader) Upload(ctx context.Context, key, path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", services.Wrap(services.ErrContent, "publish", "upload", "", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return "", services.Wrap(services.ErrContent, "publish", "upload", "", err)
	}
	size := info.Size()
	contentType := contentTypeFor(filepath.Ext(path))
	_, err = u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        &u.bucket,
		Key:           &key,
		Body:          file,
		ContentLength: &size,
		ContentType:   &contentType,
	})
	if err != nil {
		return "", services.Wrap(services.ErrTransient, "publish", "upload", fmt.Sprintf("put object %s", key), err)
	}
	return u.publicURL(key), nil
}

func (u *s3Uploader) publicURL(key string) string {
	escaped := url.PathEscape(key)
	escaped = strings.ReplaceAll(escaped, "%2F", "/")
	if u.publicBaseURL != "" {
		return u.publicBaseURL + "/" + escaped
	}
	return fmt.Sprintf("s3://%s/%s", u.bucket, escaped)
}

// contentTypeFor knows the media extensions the pipeline produces; the mime
// package's builtin table does not cover mp4.
func contentTypeFor(ext string) string {
	switch strings.ToLower(ext) {
	case ".mp4":
		return "video/mp4"
	case ".mp3":
		return "audio/mpeg"
	case ".wav":
		return "audio/wav"
	}
	if detected := mime.TypeByExtension(ext); detected != "" {
		return detected
	}
	return "application/octet-stream"
}

type disabledUploader struct{}

func (disabledUploader) Enabled() bool { return false }

func (disabledUploader) Upload(context.Context, string, string) (string, error) {
	return "", services.Wrap(services.ErrConfiguration, "publish", "upload", "object storage is disabled", nil)
}
