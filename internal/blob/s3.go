package blob

import (
	"context"
	"fmt"
	"io"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Uploader stores an opaque blob and returns its public URL.
type Uploader interface {
	Upload(ctx context.Context, folder string, filename string, contentType string, body io.Reader) (string, error)
}

type Config struct {
	Bucket        string
	Region        string
	PublicBaseURL string
}

type S3Store struct {
	client  *s3.Client
	bucket  string
	baseURL string
}

func NewS3Store(ctx context.Context, config Config) (*S3Store, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(config.Region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	baseURL := config.PublicBaseURL
	if baseURL == "" {
		baseURL = fmt.Sprintf("https://%s.s3.%s.amazonaws.com", config.Bucket, config.Region)
	}
	return &S3Store{
		client:  s3.NewFromConfig(awsCfg),
		bucket:  config.Bucket,
		baseURL: baseURL,
	}, nil
}

func (s *S3Store) Upload(ctx context.Context, folder string, filename string, contentType string, body io.Reader) (string, error) {
	key := path.Join(folder, filename)
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload %q: %w", key, err)
	}
	return s.baseURL + "/" + key, nil
}
