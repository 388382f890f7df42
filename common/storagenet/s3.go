package storagenet

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Config holds the bucket settings for S3Store.
type S3Config struct {
	Bucket       string
	Region       string
	BaseEndpoint string // for S3-compatible stores such as MinIO
	AccessKey    string
	SecretKey    string
}

// objectPutter is the subset of *s3.Client S3Store uses.
type objectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Store is a Network over an S3-compatible bucket. Storage is free, so
// Price is always zero and funding never happens. Objects are keyed by the
// base64url SHA-256 of their content.
type S3Store struct {
	client objectPutter
	bucket string
}

// NewS3Store builds an S3 client from cfg. Static credentials are used when
// an access key is set, otherwise the default AWS credential chain.
func NewS3Store(ctx context.Context, cfg S3Config) (*S3Store, error) {
	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.BaseEndpoint != "" {
			o.BaseEndpoint = aws.String(cfg.BaseEndpoint)
			o.UsePathStyle = true
		}
	})

	return &S3Store{client: client, bucket: cfg.Bucket}, nil
}

func (s *S3Store) Price(context.Context, int) (*big.Int, error) {
	return new(big.Int), nil
}

func (s *S3Store) Balance(context.Context) (*big.Int, error) {
	return new(big.Int), nil
}

func (s *S3Store) Fund(context.Context, *big.Int) (string, error) {
	return "", errors.New("s3 storage does not take funding")
}

// Upload puts data under its content hash. The Content-Type tag becomes the
// object content type; other tags become object metadata.
func (s *S3Store) Upload(ctx context.Context, data []byte, tags []Tag) (string, error) {
	sum := sha256.Sum256(data)
	key := base64.RawURLEncoding.EncodeToString(sum[:])

	input := &s3.PutObjectInput{
		Bucket:   aws.String(s.bucket),
		Key:      aws.String(key),
		Body:     bytes.NewReader(data),
		Metadata: map[string]string{},
	}
	for _, t := range tags {
		if strings.EqualFold(t.Name, "Content-Type") {
			input.ContentType = aws.String(t.Value)
			continue
		}
		input.Metadata[strings.ToLower(t.Name)] = t.Value
	}

	if _, err := s.client.PutObject(ctx, input); err != nil {
		return "", fmt.Errorf("put object %s: %w", key, err)
	}
	return key, nil
}
