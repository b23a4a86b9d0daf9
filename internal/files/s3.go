package files

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Config configures an S3-compatible bucket (AWS, MinIO).
type S3Config struct {
	Bucket    string
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
	// PublicURL is the base clients download from. Defaults to
	// <Endpoint>/<Bucket> when empty.
	PublicURL string
}

type objectPutter interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Store uploads photos to an object storage bucket.
type S3Store struct {
	client    objectPutter
	bucket    string
	publicURL string
	now       func() time.Time
}

// NewS3Store builds an S3 client from static credentials when provided and
// the default AWS credential chain otherwise.
func NewS3Store(ctx context.Context, cfg S3Config) (*S3Store, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	publicURL := cfg.PublicURL
	if publicURL == "" {
		base := strings.TrimRight(cfg.Endpoint, "/")
		if base == "" {
			base = fmt.Sprintf("https://s3.%s.amazonaws.com", cfg.Region)
		}
		publicURL = base + "/" + cfg.Bucket
	}

	return newS3Store(client, cfg.Bucket, publicURL), nil
}

func newS3Store(client objectPutter, bucket, publicURL string) *S3Store {
	return &S3Store{client: client, bucket: bucket, publicURL: publicURL, now: time.Now}
}

// Store puts the upload under photos/<unique name>.
func (s *S3Store) Store(ctx context.Context, upload Upload) (string, error) {
	key := "photos/" + objectName(s.now(), upload.Name)
	in := &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   upload.Body,
	}
	if upload.ContentType != "" {
		in.ContentType = aws.String(upload.ContentType)
	}
	if upload.Size > 0 {
		in.ContentLength = aws.Int64(upload.Size)
	}
	if _, err := s.client.PutObject(ctx, in); err != nil {
		return "", fmt.Errorf("put object %s: %w", key, err)
	}
	return joinURL(s.publicURL, key), nil
}
