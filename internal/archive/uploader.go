// Package archive copies a finished run directory to S3-compatible object
// storage.
package archive

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"

	"github.com/edvin/workspace-migrate/internal/config"
)

// Uploader puts every file of a run directory under
// <prefix>/<run directory name>/ in one bucket.
type Uploader struct {
	logger zerolog.Logger
	client *s3.Client
	bucket string
	prefix string
}

func New(logger zerolog.Logger, cfg config.ArchiveConfig) *Uploader {
	opts := s3.Options{
		Region:                     cfg.Region,
		UsePathStyle:               true,
		RequestChecksumCalculation: aws.RequestChecksumCalculationWhenRequired,
	}
	if cfg.Endpoint != "" {
		opts.BaseEndpoint = aws.String(cfg.Endpoint)
	}
	if cfg.AccessKey != "" {
		opts.Credentials = credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")
	} else {
		opts.Credentials = aws.AnonymousCredentials{}
	}

	return &Uploader{
		logger: logger.With().Str("component", "archive").Logger(),
		client: s3.New(opts),
		bucket: cfg.Bucket,
		prefix: strings.Trim(cfg.Prefix, "/"),
	}
}

// Key returns the object key for file inside the run directory dir.
func (u *Uploader) Key(dir, file string) (string, error) {
	rel, err := filepath.Rel(dir, file)
	if err != nil {
		return "", err
	}
	return path.Join(u.prefix, filepath.Base(dir), filepath.ToSlash(rel)), nil
}

// UploadDir uploads every regular file below dir, tagging each object with
// runID. It stops at the first failed upload and returns the number of
// objects written.
func (u *Uploader) UploadDir(ctx context.Context, dir, runID string) (int, error) {
	count := 0
	err := filepath.WalkDir(dir, func(file string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		key, err := u.Key(dir, file)
		if err != nil {
			return err
		}
		if err := u.put(ctx, file, key, runID); err != nil {
			return err
		}
		count++
		return nil
	})
	if err != nil {
		return count, fmt.Errorf("archive %s to s3://%s: %w", dir, u.bucket, err)
	}

	u.logger.Info().
		Str("bucket", u.bucket).
		Str("prefix", path.Join(u.prefix, filepath.Base(dir))).
		Int("objects", count).
		Msg("run directory archived")
	return count, nil
}

func (u *Uploader) put(ctx context.Context, file, key, runID string) error {
	f, err := os.Open(file)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(u.bucket),
		Key:         aws.String(key),
		Body:        f,
		ContentType: aws.String(contentType(file)),
		Metadata:    map[string]string{"run-id": runID},
	})
	if err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	u.logger.Debug().Str("key", key).Msg("uploaded")
	return nil
}

func contentType(file string) string {
	switch filepath.Ext(file) {
	case ".json":
		return "application/json"
	case ".py":
		return "text/x-python"
	case ".yml", ".yaml":
		return "application/yaml"
	case ".prom":
		return "text/plain; version=0.0.4"
	default:
		return "application/octet-stream"
	}
}
