package publish

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/wayfind-go/wayfind/internal/errors"
	"github.com/wayfind-go/wayfind/pkg/export"
)

// S3Client is the narrow S3 surface the publisher uses. *s3.Client
// satisfies it; tests supply fakes.
type S3Client interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	s3.ListObjectsV2APIClient
}

// S3 publishes an export to an AWS S3 bucket.
type S3 struct {
	client S3Client
	bucket string
	prefix string
	prune  bool
	logger *slog.Logger
}

var _ Publisher = (*S3)(nil)

// S3Option configures an S3 publisher.
type S3Option func(*S3)

// WithPrune deletes bucket objects under the prefix that the export no
// longer produces.
func WithPrune() S3Option {
	return func(s *S3) { s.prune = true }
}

// WithLogger sets the publisher's logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) S3Option {
	return func(s *S3) { s.logger = l }
}

// NewS3 creates an S3 publisher.
//
// Parameters:
//   - client: AWS S3 client from aws-sdk-go-v2
//   - bucket: S3 bucket name
//   - prefix: key prefix inside the bucket (e.g. "www"), may be empty
func NewS3(client S3Client, bucket, prefix string, opts ...S3Option) *S3 {
	s := &S3{
		client: client,
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Publish uploads every exported file, then prunes stale objects when
// configured. Page files carry their manifest sha256 as object metadata.
func (s *S3) Publish(ctx context.Context, m *export.Manifest, dir string) error {
	if s.bucket == "" {
		return errors.New("E301").
			WithDetail("No bucket configured.")
	}

	files, err := listFiles(dir)
	if err != nil {
		return err
	}

	digests := make(map[string]string, len(m.Pages))
	for _, p := range m.Pages {
		digests[p.File] = p.SHA256
	}
	generatedAt := m.GeneratedAt.UTC().Format(time.RFC3339)

	uploaded := make(map[string]bool, len(files))
	for _, rel := range files {
		if err := ctx.Err(); err != nil {
			return err
		}

		data, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(rel)))
		if err != nil {
			return errors.New("E302").Wrap(err)
		}

		key := s.keyFor(rel)
		metadata := map[string]string{
			"generated-at": generatedAt,
		}
		if sum, ok := digests[rel]; ok {
			metadata["sha256"] = sum
		}

		_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:      aws.String(s.bucket),
			Key:         aws.String(key),
			Body:        bytes.NewReader(data),
			ContentType: aws.String(contentTypeFor(rel)),
			Metadata:    metadata,
		})
		if err != nil {
			return errors.New("E302").
				WithDetail("Key: " + key).
				Wrap(err)
		}
		uploaded[key] = true
		s.logger.Debug("uploaded object", "key", key, "bytes", len(data))
	}

	if !s.prune {
		return nil
	}
	return s.pruneStale(ctx, uploaded)
}

// pruneStale deletes objects under the prefix that this publish did not
// upload.
func (s *S3) pruneStale(ctx context.Context, uploaded map[string]bool) error {
	input := &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
	}
	if s.prefix != "" {
		input.Prefix = aws.String(s.prefix + "/")
	}

	var stale []string
	paginator := s3.NewListObjectsV2Paginator(s.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return errors.New("E302").Wrap(err)
		}
		for _, obj := range page.Contents {
			if obj.Key == nil {
				continue
			}
			if !uploaded[*obj.Key] {
				stale = append(stale, *obj.Key)
			}
		}
	}

	for _, key := range stale {
		_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(key),
		})
		if err != nil {
			return errors.New("E302").
				WithDetail("Key: " + key).
				Wrap(err)
		}
		s.logger.Debug("pruned stale object", "key", key)
	}
	return nil
}

func (s *S3) keyFor(rel string) string {
	if s.prefix == "" {
		return rel
	}
	return path.Join(s.prefix, rel)
}
