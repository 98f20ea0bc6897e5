package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"smartqr-backend/internal/domain"
	"smartqr-backend/internal/domain/ports/adapter"
	appcfg "smartqr-backend/internal/config"
)

var _ adapter.ObjectStorage = (*R2Storage)(nil)

// objectAPI is the subset of *s3.Client used here.
type objectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// R2Storage stores media in an S3-compatible bucket (Cloudflare R2).
type R2Storage struct {
	api     objectAPI
	bucket  string
	baseURL string
}

func NewR2Storage(ctx context.Context, cfg appcfg.StorageConfig) (*R2Storage, error) {
	if cfg.Bucket == "" || cfg.Endpoint == "" {
		return nil, errors.New("storage: endpoint and bucket are required")
	}
	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(cfg.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKey,
			cfg.SecretKey,
			"",
		)))
	if err != nil {
		return nil, fmt.Errorf("storage: load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(cfg.Endpoint)
		o.UsePathStyle = true
	})
	return newR2Storage(client, cfg.Bucket, cfg.PublicBaseURL), nil
}

func newR2Storage(api objectAPI, bucket, baseURL string) *R2Storage {
	return &R2Storage{api: api, bucket: bucket, baseURL: strings.TrimRight(baseURL, "/")}
}

// ObjectKey builds "<folder>/<uuid>-<name>" with the base name only.
func ObjectKey(folder, name string) string {
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	if name == "." || name == "/" || name == "" {
		name = "file"
	}
	return folder + "/" + uuid.NewString() + "-" + name
}

func (s *R2Storage) Upload(ctx context.Context, folder string, obj adapter.UploadObject) (string, error) {
	if !adapter.ValidFolder(folder) {
		return "", fmt.Errorf("%w: unknown folder %q", domain.ErrInvalidArgument, folder)
	}
	if obj.Body == nil {
		return "", fmt.Errorf("%w: empty upload", domain.ErrInvalidArgument)
	}
	body, ok := obj.Body.(io.ReadSeeker)
	if !ok {
		b, err := io.ReadAll(obj.Body)
		if err != nil {
			return "", fmt.Errorf("storage: read body: %w", err)
		}
		body = bytes.NewReader(b)
	}

	key := ObjectKey(folder, obj.Name)
	in := &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   body,
	}
	if obj.ContentType != "" {
		in.ContentType = aws.String(obj.ContentType)
	}
	if _, err := s.api.PutObject(ctx, in); err != nil {
		return "", fmt.Errorf("storage: put %s: %w", key, err)
	}
	return key, nil
}

func (s *R2Storage) Delete(ctx context.Context, key string) error {
	if key == "" {
		return nil
	}
	_, err := s.api.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("storage: delete %s: %w", key, err)
	}
	return nil
}

func (s *R2Storage) PublicURL(key string) string {
	if s.baseURL == "" {
		return key
	}
	return s.baseURL + "/" + key
}
