// Package storage uploads profile avatars to S3-compatible object storage
// (MinIO in development) and builds the public URLs stored on the profile.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

const (
	MaxFilenameLength = 255
	MaxAvatarSize     = 5 * 1024 * 1024
	avatarPrefix      = "avatars/"
)

// AllowedContentTypes lists the image types accepted as avatars
var AllowedContentTypes = map[string]bool{
	"image/jpeg": true,
	"image/jpg":  true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
}

var (
	ErrInvalidFile   = errors.New("invalid file")
	ErrNotConfigured = errors.New("object storage is not configured")
)

// Config holds the connection settings for the bucket.
type Config struct {
	Endpoint       string
	PublicEndpoint string
	AccessKey      string
	SecretKey      string
	Bucket         string
	Region         string
	UseSSL         bool
}

// Enabled reports whether enough settings are present to connect.
func (c Config) Enabled() bool {
	return c.Endpoint != "" && c.Bucket != ""
}

// objectAPI is the subset of *s3.Client used here
type objectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	HeadBucket(ctx context.Context, in *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
	CreateBucket(ctx context.Context, in *s3.CreateBucketInput, optFns ...func(*s3.Options)) (*s3.CreateBucketOutput, error)
}

// Avatars stores avatar images in one bucket.
type Avatars struct {
	client    objectAPI
	bucket    string
	publicURL string
	logger    *slog.Logger
}

// New connects to the bucket described by cfg and creates it if missing.
func New(ctx context.Context, cfg Config, logger *slog.Logger) (*Avatars, error) {
	if !cfg.Enabled() {
		return nil, ErrNotConfigured
	}
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}

	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(cfg.Region),
		config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	// path-style addressing is required for MinIO
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(endpointURL(cfg.Endpoint, cfg.UseSSL))
		o.UsePathStyle = true
	})

	a := newAvatars(client, cfg, logger)
	if err := a.EnsureBucket(ctx); err != nil {
		logger.Warn("Failed to ensure avatar bucket exists", "bucket", cfg.Bucket, "error", err)
	}
	return a, nil
}

func newAvatars(client objectAPI, cfg Config, logger *slog.Logger) *Avatars {
	public := cfg.PublicEndpoint
	if public == "" {
		public = cfg.Endpoint
	}
	return &Avatars{
		client:    client,
		bucket:    cfg.Bucket,
		publicURL: endpointURL(public, cfg.UseSSL) + "/" + cfg.Bucket,
		logger:    logger,
	}
}

func endpointURL(endpoint string, useSSL bool) string {
	if strings.HasPrefix(endpoint, "http://") || strings.HasPrefix(endpoint, "https://") {
		return strings.TrimRight(endpoint, "/")
	}
	protocol := "http"
	if useSSL {
		protocol = "https"
	}
	return fmt.Sprintf("%s://%s", protocol, strings.TrimRight(endpoint, "/"))
}

// ValidateFilename checks if filename is safe and valid
func ValidateFilename(filename string) error {
	if filename == "" {
		return fmt.Errorf("%w: filename cannot be empty", ErrInvalidFile)
	}
	if len(filename) > MaxFilenameLength {
		return fmt.Errorf("%w: filename too long (max %d characters)", ErrInvalidFile, MaxFilenameLength)
	}
	if strings.Contains(filename, "..") || strings.ContainsAny(filename, `/\`) {
		return fmt.Errorf("%w: filename contains invalid characters", ErrInvalidFile)
	}
	if filepath.Ext(filename) == "" {
		return fmt.Errorf("%w: filename must have an extension", ErrInvalidFile)
	}
	return nil
}

// ValidateContentType checks if content type is an accepted image type
func ValidateContentType(contentType string) error {
	if contentType == "" {
		return fmt.Errorf("%w: content type cannot be empty", ErrInvalidFile)
	}
	if !AllowedContentTypes[contentType] {
		return fmt.Errorf("%w: content type %s is not allowed", ErrInvalidFile, contentType)
	}
	return nil
}

// UploadAvatar stores the image under a fresh key and returns its public URL.
func (a *Avatars) UploadAvatar(ctx context.Context, filename, contentType string, body io.Reader, size int64) (string, error) {
	if err := ValidateFilename(filename); err != nil {
		return "", err
	}
	if err := ValidateContentType(contentType); err != nil {
		return "", err
	}
	if size <= 0 || size > MaxAvatarSize {
		return "", fmt.Errorf("%w: avatar must be between 1 and %d bytes", ErrInvalidFile, MaxAvatarSize)
	}

	key := avatarPrefix + uuid.NewString() + "-" + filename
	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(a.bucket),
		Key:           aws.String(key),
		Body:          body,
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(size),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload avatar %s: %w", key, err)
	}

	a.logger.Info("Avatar uploaded", "key", key, "size", size)
	return a.PublicURL(key), nil
}

// PublicURL is the address browsers load key from
func (a *Avatars) PublicURL(key string) string {
	return a.publicURL + "/" + strings.TrimLeft(key, "/")
}

// Delete removes an object, used to clean up after a failed registration
func (a *Avatars) Delete(ctx context.Context, key string) error {
	if key == "" {
		return fmt.Errorf("%w: file key cannot be empty", ErrInvalidFile)
	}
	_, err := a.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete file %s: %w", key, err)
	}
	return nil
}

// KeyFromURL recovers the object key from a URL built by PublicURL
func (a *Avatars) KeyFromURL(url string) (string, bool) {
	prefix := a.publicURL + "/"
	if !strings.HasPrefix(url, prefix) {
		return "", false
	}
	return strings.TrimPrefix(url, prefix), true
}

// EnsureBucket creates the bucket if it doesn't already exist
func (a *Avatars) EnsureBucket(ctx context.Context) error {
	if _, err := a.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(a.bucket)}); err == nil {
		return nil
	}
	if _, err := a.client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(a.bucket)}); err != nil {
		return fmt.Errorf("failed to create bucket: %w", err)
	}
	a.logger.Info("Created S3 bucket", "bucket", a.bucket)
	return nil
}

// Health checks if the bucket is reachable
func (a *Avatars) Health(ctx context.Context) error {
	if _, err := a.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(a.bucket)}); err != nil {
		return fmt.Errorf("storage health check failed: %w", err)
	}
	return nil
}
