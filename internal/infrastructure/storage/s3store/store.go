package s3store

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/aws/aws-sdk-go/service/s3/s3manager/s3manageriface"
)

type Config struct {
	Region        string
	Bucket        string
	AccessKey     string
	SecretKey     string
	PublicBaseURL string
}

type objectDeleter interface {
	DeleteObjectWithContext(ctx aws.Context, input *s3.DeleteObjectInput, opts ...request.Option) (*s3.DeleteObjectOutput, error)
}

type Store struct {
	uploader      s3manageriface.UploaderAPI
	deleter       objectDeleter
	bucket        string
	publicBaseURL string
}

func New(cfg Config) (*Store, error) {
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}
	awsCfg := &aws.Config{Region: aws.String(cfg.Region)}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		awsCfg.Credentials = credentials.NewStaticCredentials(cfg.AccessKey, cfg.SecretKey, "")
	}
	sess, err := session.NewSession(awsCfg)
	if err != nil {
		return nil, fmt.Errorf("create aws session: %w", err)
	}
	return newStore(s3manager.NewUploader(sess), s3.New(sess), cfg), nil
}

func newStore(uploader s3manageriface.UploaderAPI, deleter objectDeleter, cfg Config) *Store {
	base := strings.TrimRight(strings.TrimSpace(cfg.PublicBaseURL), "/")
	if base == "" {
		base = fmt.Sprintf("https://%s.s3.amazonaws.com", cfg.Bucket)
	}
	return &Store{
		uploader:      uploader,
		deleter:       deleter,
		bucket:        cfg.Bucket,
		publicBaseURL: base,
	}
}

func (s *Store) Save(ctx context.Context, key, contentType string, data io.Reader) error {
	input := &s3manager.UploadInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   data,
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}
	if _, err := s.uploader.UploadWithContext(ctx, input); err != nil {
		return fmt.Errorf("upload %s to s3: %w", key, err)
	}
	return nil
}

// Delete succeeds for missing objects; S3 does not report them.
func (s *Store) Delete(ctx context.Context, key string) error {
	_, err := s.deleter.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("delete %s from s3: %w", key, err)
	}
	return nil
}

func (s *Store) URL(key string) string {
	return s.publicBaseURL + "/" + strings.TrimLeft(key, "/")
}
