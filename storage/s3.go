package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"

	"github.com/edgehive/device-registry/interfaces"
)

// S3Store persists a snapshot as a single object in Amazon S3 or a compatible
// object store.
type S3Store struct {
	client *s3.S3
	bucket string
	key    string
	log    *slog.Logger
}

// NewS3Store creates an S3-backed persistent store. If accessKey and
// secretKey are empty the default credential chain is used.
func NewS3Store(bucket, key, region, endpoint, accessKey, secretKey string, log *slog.Logger) (*S3Store, error) {
	cfg := aws.Config{Region: aws.String(region)}
	if endpoint != "" {
		cfg.Endpoint = aws.String(endpoint)
		cfg.S3ForcePathStyle = aws.Bool(true)
	}
	if accessKey != "" && secretKey != "" {
		cfg.Credentials = credentials.NewStaticCredentials(accessKey, secretKey, "")
	}

	sess, err := session.NewSession(&cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}

	return &S3Store{
		client: s3.New(sess),
		bucket: bucket,
		key:    strings.TrimPrefix(key, "/"),
		log:    log,
	}, nil
}

// Load fetches the snapshot object. A missing object reports
// interfaces.ErrAbsent.
func (s *S3Store) Load(ctx context.Context) ([]byte, error) {
	out, err := s.client.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key),
	})
	if err != nil {
		var aerr awserr.Error
		if errors.As(err, &aerr) && (aerr.Code() == s3.ErrCodeNoSuchKey || aerr.Code() == "NotFound") {
			return nil, interfaces.ErrAbsent
		}
		return nil, fmt.Errorf("failed to fetch snapshot object: %w", err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot object: %w", err)
	}
	s.log.Debug("loaded snapshot from S3",
		slog.String("bucket", s.bucket),
		slog.String("key", s.key),
		slog.Int("size", len(data)))
	return data, nil
}

// Save uploads the snapshot, replacing any previous object.
func (s *S3Store) Save(ctx context.Context, data []byte) error {
	_, err := s.client.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key),
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		return fmt.Errorf("failed to store snapshot object: %w", err)
	}
	s.log.Debug("saved snapshot to S3",
		slog.String("bucket", s.bucket),
		slog.String("key", s.key),
		slog.Int("size", len(data)))
	return nil
}

// Name returns a unique identifier for this backend.
func (s *S3Store) Name() string {
	return fmt.Sprintf("s3-%s", s.bucket)
}
