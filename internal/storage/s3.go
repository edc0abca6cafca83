package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/rs/zerolog/log"

	"github.com/fpang/swipe-story/internal/triage"
)

// DefaultPresignExpiry is how long presigned GET URLs stay valid.
const DefaultPresignExpiry = 15 * time.Minute

// projectTagging is the URL-encoded object tagging applied at upload, for
// cost allocation.
const projectTagging = "Project=swipe-story"

// tagKey is the object tag carrying the triage outcome.
const tagKey = "swipe:tag"

// S3API is the subset of the S3 client used by S3Store.
type S3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	PutObjectTagging(ctx context.Context, in *s3.PutObjectTaggingInput, optFns ...func(*s3.Options)) (*s3.PutObjectTaggingOutput, error)
}

// Presigner creates presigned GET requests.
type Presigner interface {
	PresignGetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// S3Store keeps blobs in an S3 bucket.
type S3Store struct {
	client    S3API
	presigner Presigner
	bucket    string
	expiry    time.Duration
}

var (
	_ Store     = (*S3Store)(nil)
	_ Tagger    = (*S3Store)(nil)
	_ Presigner = (*s3.PresignClient)(nil)
)

// NewS3Store wraps client for bucket. presigner may be nil, in which case
// URL returns "" and blobs are streamed through Open.
func NewS3Store(client S3API, presigner Presigner, bucket string, expiry time.Duration) *S3Store {
	if expiry <= 0 {
		expiry = DefaultPresignExpiry
	}
	return &S3Store{client: client, presigner: presigner, bucket: bucket, expiry: expiry}
}

func (s *S3Store) Put(ctx context.Context, key string, r io.Reader, contentType string) error {
	in := &s3.PutObjectInput{
		Bucket:  &s.bucket,
		Key:     &key,
		Body:    r,
		Tagging: aws.String(projectTagging),
	}
	if contentType != "" {
		in.ContentType = &contentType
	}
	if _, err := s.client.PutObject(ctx, in); err != nil {
		return fmt.Errorf("S3 PutObject %s: %w", key, err)
	}
	log.Debug().Str("bucket", s.bucket).Str("key", key).Msg("Uploaded to S3")
	return nil
}

func (s *S3Store) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	result, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: &s.bucket, Key: &key,
	})
	if err != nil {
		var nsk *s3types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, fmt.Errorf("S3 GetObject %s: %w", key, ErrNotExist)
		}
		return nil, fmt.Errorf("S3 GetObject %s: %w", key, err)
	}
	return result.Body, nil
}

// URL creates a presigned GET URL valid for the store's expiry.
func (s *S3Store) URL(ctx context.Context, key string) (string, error) {
	if s.presigner == nil {
		return "", nil
	}
	result, err := s.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: &s.bucket, Key: &key,
	}, s3.WithPresignExpires(s.expiry))
	if err != nil {
		return "", fmt.Errorf("presign GetObject: %w", err)
	}
	return result.URL, nil
}

func (s *S3Store) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: &s.bucket, Key: &key,
	})
	if err != nil {
		return fmt.Errorf("S3 DeleteObject %s: %w", key, err)
	}
	return nil
}

// Tag replaces the object's tag set with the project tag and the triage
// outcome. PutObjectTagging is a full replacement, so the project tag is
// written again.
func (s *S3Store) Tag(ctx context.Context, key string, tag triage.Tag) error {
	_, err := s.client.PutObjectTagging(ctx, &s3.PutObjectTaggingInput{
		Bucket: &s.bucket,
		Key:    &key,
		Tagging: &s3types.Tagging{
			TagSet: []s3types.Tag{
				{Key: aws.String("Project"), Value: aws.String("swipe-story")},
				{Key: aws.String(tagKey), Value: aws.String(tag.String())},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("PutObjectTagging %s: %w", key, err)
	}
	log.Debug().Str("key", key).Str("tag", tag.String()).Msg("Blob tagged")
	return nil
}
