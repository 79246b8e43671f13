package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"supplychain/internal/config"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Uploader stores delivery signatures in a bucket
type S3Uploader struct {
	Client           *s3.Client
	Bucket           string
	Region           string
	CloudFrontDomain string
	Timeout          time.Duration
}

// LoadAWSConfig builds the SDK config. Static keys are used when present,
// otherwise the default credential chain applies.
func LoadAWSConfig(ctx context.Context, region, accessKeyID, secretAccessKey string) (aws.Config, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if accessKeyID != "" && secretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(accessKeyID, secretAccessKey, "")))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return cfg, nil
}

func NewS3Uploader(ctx context.Context, cfg config.S3Config) (*S3Uploader, error) {
	sdkConfig, err := LoadAWSConfig(ctx, cfg.Region, cfg.AccessKeyID, cfg.SecretAccessKey)
	if err != nil {
		return nil, err
	}

	return &S3Uploader{
		Client:           s3.NewFromConfig(sdkConfig),
		Bucket:           cfg.Bucket,
		Region:           cfg.Region,
		CloudFrontDomain: cfg.CloudFrontDomain,
		Timeout:          cfg.UploadTimeout,
	}, nil
}

// Upload puts one object and returns its URL
func (u *S3Uploader) Upload(ctx context.Context, key string, body io.Reader, contentType string) (string, error) {
	if u.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, u.Timeout)
		defer cancel()
	}

	_, err := u.Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(u.Bucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload file to S3: %w", err)
	}
	return ObjectURL(u.Bucket, u.Region, u.CloudFrontDomain, key), nil
}

// ObjectURL prefers the CloudFront domain when one is configured
func ObjectURL(bucket, region, cloudFrontDomain, key string) string {
	if cloudFrontDomain != "" {
		return fmt.Sprintf("https://%s/%s", cloudFrontDomain, key)
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", bucket, region, key)
}

// DisabledStore rejects uploads when no bucket is configured
type DisabledStore struct{}

func (DisabledStore) Upload(context.Context, string, io.Reader, string) (string, error) {
	return "", ErrDisabled
}

// ErrDisabled is returned by DisabledStore
var ErrDisabled = errors.New("object storage is not configured")
