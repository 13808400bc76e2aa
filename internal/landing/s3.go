package landing

import (
	"context"
	"io"

	"cda/pkg/errors"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3API is the subset of the S3 client used by S3Store
type S3API interface {
	s3.ListObjectsV2APIClient
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Store serves landing objects from a bucket
type S3Store struct {
	client S3API
	bucket string
}

// NewS3Store wraps an existing client
func NewS3Store(client S3API, bucket string) *S3Store {
	return &S3Store{client: client, bucket: bucket}
}

// DialS3 builds a client from the default AWS credential chain
func DialS3(ctx context.Context, bucket, region, profile string) (*S3Store, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if profile != "" {
		opts = append(opts, awsconfig.WithSharedConfigProfile(profile))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeAuthenticationFailed, "Failed to load AWS configuration").
			WithContext("profile", profile).
			WithSuggestions("Configure the AWS CLI or set AWS_PROFILE")
	}

	return NewS3Store(s3.NewFromConfig(cfg), bucket), nil
}

// List returns every key under prefix
func (s *S3Store) List(ctx context.Context, prefix string) ([]string, error) {
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(prefix),
	})

	var keys []string
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeSourceUnavailable, "Failed to list landing bucket").
				WithContext("bucket", s.bucket).
				WithContext("prefix", prefix).
				AsRecoverable()
		}
		for _, obj := range page.Contents {
			keys = append(keys, aws.ToString(obj.Key))
		}
	}
	return keys, nil
}

// Open streams the object body
func (s *S3Store) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSourceUnavailable, "Failed to read landing object").
			WithContext("bucket", s.bucket).
			WithContext("key", key)
	}
	return out.Body, nil
}
