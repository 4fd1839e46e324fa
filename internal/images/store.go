// Package images stores product images in S3 or an S3-compatible bucket and
// hands back their public URLs.
package images

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"github.com/JonMunkholm/catalog/internal/config"
)

var (
	ErrUnsupportedType = errors.New("unsupported image type")
	ErrTooLarge        = errors.New("image too large")
)

// extensions maps accepted content types to the stored key suffix.
var extensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
	"image/gif":  ".gif",
}

// Supported reports whether contentType is an accepted image type.
func Supported(contentType string) bool {
	_, ok := extensions[baseType(contentType)]
	return ok
}

func baseType(contentType string) string {
	ct, _, _ := strings.Cut(contentType, ";")
	return strings.ToLower(strings.TrimSpace(ct))
}

// objectPutter is the part of *s3.Client the store needs.
type objectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Store uploads images to one bucket.
type Store struct {
	client  objectPutter
	bucket  string
	prefix  string
	baseURL string
	maxSize int64
}

// NewS3Store builds a Store from the AWS default credential chain. A custom
// endpoint switches the client to path-style addressing.
func NewS3Store(ctx context.Context, cfg config.ImagesConfig) (*Store, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return newStore(client, cfg), nil
}

func newStore(client objectPutter, cfg config.ImagesConfig) *Store {
	base := cfg.PublicBaseURL
	switch {
	case base != "":
	case cfg.Endpoint != "":
		base = strings.TrimRight(cfg.Endpoint, "/") + "/" + cfg.Bucket
	default:
		base = fmt.Sprintf("https://%s.s3.amazonaws.com", cfg.Bucket)
	}
	return &Store{
		client:  client,
		bucket:  cfg.Bucket,
		prefix:  cfg.KeyPrefix,
		baseURL: strings.TrimRight(base, "/"),
		maxSize: cfg.MaxSize,
	}
}

// MaxSize is the largest accepted image in bytes; 0 means unlimited.
func (s *Store) MaxSize() int64 {
	return s.maxSize
}

// Upload stores body under a fresh key and returns its public URL. size may
// be -1 when unknown.
func (s *Store) Upload(ctx context.Context, contentType string, body io.Reader, size int64) (string, error) {
	ct := baseType(contentType)
	ext, ok := extensions[ct]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedType, contentType)
	}
	if s.maxSize > 0 && size > s.maxSize {
		return "", fmt.Errorf("%w: %d bytes exceeds limit of %d", ErrTooLarge, size, s.maxSize)
	}

	key := s.prefix + uuid.NewString() + ext
	input := &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(ct),
	}
	if size >= 0 {
		input.ContentLength = aws.Int64(size)
	}

	if _, err := s.client.PutObject(ctx, input); err != nil {
		return "", fmt.Errorf("image storage: put %s: %w", key, err)
	}
	return s.baseURL + "/" + key, nil
}
