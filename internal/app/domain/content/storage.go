package content

import (
	"context"
	"fmt"
	"io"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/FACorreiaa/citcs-portal/internal/app/models"
	"github.com/FACorreiaa/citcs-portal/internal/pkg/config"
)

// MaxUploadSize caps a single image upload.
const MaxUploadSize = 5 << 20

// Uploader stores images and returns their public URL.
type Uploader interface {
	Enabled() bool
	Upload(ctx context.Context, entity models.Entity, filename, contentType string, body io.Reader) (string, error)
}

// ObjectPutter is the part of the S3 client the uploader needs.
type ObjectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type S3Uploader struct {
	client  ObjectPutter
	bucket  string
	baseURL string
	logger  *zap.Logger
	now     func() time.Time
}

// NewS3Uploader builds an uploader from cfg. With no bucket configured the
// uploader is disabled and every upload fails with models.ErrStorageDisabled.
func NewS3Uploader(ctx context.Context, cfg config.StorageConfig, logger *zap.Logger) (*S3Uploader, error) {
	if !cfg.Enabled() {
		return &S3Uploader{logger: logger, now: time.Now}, nil
	}

	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})
	return NewS3UploaderWithClient(client, cfg.Bucket, cfg.PublicBaseURL, logger), nil
}

func NewS3UploaderWithClient(client ObjectPutter, bucket, publicBaseURL string, logger *zap.Logger) *S3Uploader {
	return &S3Uploader{
		client:  client,
		bucket:  bucket,
		baseURL: strings.TrimRight(publicBaseURL, "/"),
		logger:  logger,
		now:     time.Now,
	}
}

func (u *S3Uploader) Enabled() bool {
	return u.client != nil && u.bucket != ""
}

// Upload writes body under <entity>/<unix nanos>_<name> and returns the
// public URL of the object.
func (u *S3Uploader) Upload(ctx context.Context, entity models.Entity, filename, contentType string, body io.Reader) (string, error) {
	if !u.Enabled() {
		return "", models.ErrStorageDisabled
	}
	key := ObjectKey(entity, filename, u.now())

	ctx, span := otel.Tracer("citcs-portal/storage").Start(ctx, "S3.PutObject", trace.WithAttributes(
		attribute.String("s3.bucket", u.bucket),
		attribute.String("s3.key", key),
		attribute.String("content.type", contentType),
	))
	defer span.End()

	_, err := u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(u.bucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "upload failed")
		u.logger.Error("Image upload failed", zap.String("key", key), zap.Error(err))
		return "", fmt.Errorf("upload %s: %w", key, err)
	}

	u.logger.Info("Image uploaded", zap.String("key", key))
	return u.baseURL + "/" + key, nil
}

var unsafeName = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

// ObjectKey names an uploaded object. Path components and unsafe characters
// are stripped from filename.
func ObjectKey(entity models.Entity, filename string, at time.Time) string {
	name := unsafeName.ReplaceAllString(path.Base(strings.ReplaceAll(filename, "\\", "/")), "_")
	name = strings.Trim(name, "._")
	if name == "" {
		name = "image"
	}
	return fmt.Sprintf("%s/%d_%s", entity, at.UnixNano(), name)
}
