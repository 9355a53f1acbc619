package repository

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"go.uber.org/zap"

	s3config "github.com/Nasko29/progimage-backend/internal/config"
	"github.com/Nasko29/progimage-backend/internal/domain"
)

// ObjectRepository is the gateway's view of the object-storage bucket.
// Blobs are addressed only by the image index key.
type ObjectRepository interface {
	Upload(ctx context.Context, key string, body io.Reader, size int64, contentType string) error
	Download(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	DeletePrefix(ctx context.Context, prefix string) (int, error)
	PresignURL(ctx context.Context, key string, ttl time.Duration) (string, error)
}

type s3Repository struct {
	client  *s3.Client
	presign *s3.PresignClient
	cfg     *s3config.S3Config
	log     *zap.Logger
}

func NewS3Repository(cfg *s3config.S3Config, log *zap.Logger) (ObjectRepository, error) {
	customResolver := aws.EndpointResolverWithOptionsFunc(func(service, region string, options ...interface{}) (aws.Endpoint, error) {
		if cfg.Endpoint != "" {
			return aws.Endpoint{
				URL:               cfg.Endpoint,
				HostnameImmutable: true,
				Source:            aws.EndpointSourceCustom,
			}, nil
		}
		return aws.Endpoint{}, &aws.EndpointNotFoundError{}
	})

	awsCfg, err := config.LoadDefaultConfig(context.Background(),
		config.WithEndpointResolverWithOptions(customResolver),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		)),
		config.WithRegion(cfg.Region),
	)
	if err != nil {
		return nil, err
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = true
	})

	repo := &s3Repository{
		client:  client,
		presign: s3.NewPresignClient(client),
		cfg:     cfg,
		log:     log,
	}

	if err := repo.ensureBucketExists(context.Background()); err != nil {
		log.Warn("Failed to ensure bucket exists", zap.Error(err))
	}

	return repo, nil
}

func (r *s3Repository) ensureBucketExists(ctx context.Context) error {
	_, err := r.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(r.cfg.BucketName),
	})

	if err == nil {
		r.log.Info("Bucket already exists", zap.String("bucket", r.cfg.BucketName))
		return nil
	}

	r.log.Info("Creating bucket", zap.String("bucket", r.cfg.BucketName))

	_, err = r.client.CreateBucket(ctx, &s3.CreateBucketInput{
		Bucket: aws.String(r.cfg.BucketName),
	})

	if err != nil {
		return err
	}

	r.log.Info("Bucket created successfully", zap.String("bucket", r.cfg.BucketName))

	return nil
}

func (r *s3Repository) Upload(ctx context.Context, key string, body io.Reader, size int64, contentType string) error {
	_, err := r.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(r.cfg.BucketName),
		Key:           aws.String(key),
		Body:          body,
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(size),
	})

	if err != nil {
		r.log.Error("Failed to upload blob",
			zap.String("key", key),
			zap.Error(err))
		return fmt.Errorf("put %s: %v: %w", key, err, domain.ErrStorage)
	}

	r.log.Info("Blob uploaded",
		zap.String("key", key),
		zap.Int64("size", size))

	return nil
}

func (r *s3Repository) Download(ctx context.Context, key string) (io.ReadCloser, error) {
	output, err := r.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(r.cfg.BucketName),
		Key:    aws.String(key),
	})

	if err != nil {
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) {
			return nil, fmt.Errorf("get %s: %w", key, domain.ErrNotFound)
		}
		r.log.Error("Failed to download blob",
			zap.String("key", key),
			zap.Error(err))
		return nil, fmt.Errorf("get %s: %v: %w", key, err, domain.ErrStorage)
	}

	return output.Body, nil
}

func (r *s3Repository) Delete(ctx context.Context, key string) error {
	_, err := r.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(r.cfg.BucketName),
		Key:    aws.String(key),
	})

	if err != nil {
		r.log.Error("Failed to delete blob",
			zap.String("key", key),
			zap.Error(err))
		return fmt.Errorf("delete %s: %v: %w", key, err, domain.ErrStorage)
	}

	return nil
}

// DeletePrefix removes every blob under prefix, page by page. It reports
// how many objects were deleted; partial failures are collected into the
// returned error instead of being swallowed.
func (r *s3Repository) DeletePrefix(ctx context.Context, prefix string) (int, error) {
	deleted := 0
	var failures []error

	paginator := s3.NewListObjectsV2Paginator(r.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(r.cfg.BucketName),
		Prefix: aws.String(prefix),
	})

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return deleted, fmt.Errorf("list %s: %v: %w", prefix, err, domain.ErrStorage)
		}

		if len(page.Contents) == 0 {
			continue
		}

		objects := make([]types.ObjectIdentifier, 0, len(page.Contents))
		for _, obj := range page.Contents {
			objects = append(objects, types.ObjectIdentifier{Key: obj.Key})
		}

		out, err := r.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(r.cfg.BucketName),
			Delete: &types.Delete{
				Objects: objects,
				Quiet:   aws.Bool(true),
			},
		})
		if err != nil {
			failures = append(failures, err)
			continue
		}

		deleted += len(objects) - len(out.Errors)
		for _, e := range out.Errors {
			failures = append(failures, fmt.Errorf("delete %s: %s", aws.ToString(e.Key), aws.ToString(e.Message)))
		}
	}

	r.log.Info("Prefix purged",
		zap.String("prefix", prefix),
		zap.Int("deleted", deleted),
		zap.Int("failed", len(failures)))

	if len(failures) > 0 {
		return deleted, fmt.Errorf("purge %s: %v: %w", prefix, errors.Join(failures...), domain.ErrStorage)
	}

	return deleted, nil
}

func (r *s3Repository) PresignURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	req, err := r.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(r.cfg.BucketName),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(ttl))

	if err != nil {
		r.log.Error("Failed to presign URL",
			zap.String("key", key),
			zap.Error(err))
		return "", fmt.Errorf("presign %s: %v: %w", key, err, domain.ErrStorage)
	}

	return req.URL, nil
}
