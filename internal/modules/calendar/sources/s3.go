package sources

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"

	"github.com/aristath/tradecal/internal/modules/calendar"
)

// S3Config holds the connection settings for an S3-compatible bucket (AWS, R2, MinIO)
type S3Config struct {
	Endpoint        string // Custom endpoint; empty uses AWS
	Region          string
	AccessKeyID     string
	SecretAccessKey string
}

// NewS3Client builds an S3 client from static credentials. A custom endpoint
// switches to path-style addressing.
func NewS3Client(ctx context.Context, cfg S3Config) (*s3.Client, error) {
	if cfg.AccessKeyID == "" || cfg.SecretAccessKey == "" {
		return nil, errors.New("s3 credentials are required")
	}
	region := cfg.Region
	if region == "" {
		region = "auto"
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(region),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load s3 config: %w", err)
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	}), nil
}

// S3Source downloads the CSV dataset from an object in a bucket
type S3Source struct {
	downloader *manager.Downloader
	bucket     string
	key        string
	log        zerolog.Logger
}

// NewS3Source creates a source reading bucket/key through client
func NewS3Source(client manager.DownloadAPIClient, bucket, key string, log zerolog.Logger) *S3Source {
	return &S3Source{
		downloader: manager.NewDownloader(client, func(d *manager.Downloader) {
			d.Concurrency = 1
		}),
		bucket: bucket,
		key:    key,
		log:    log.With().Str("source", "s3").Logger(),
	}
}

// Name implements calendar.Source
func (s *S3Source) Name() string { return "s3" }

// Load implements calendar.Source
func (s *S3Source) Load(ctx context.Context) (*calendar.Registry, error) {
	buf := manager.NewWriteAtBuffer([]byte{})
	n, err := s.downloader.Download(ctx, buf, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key),
	})
	if err != nil {
		return nil, fmt.Errorf("s3 source: download s3://%s/%s: %w", s.bucket, s.key, err)
	}

	reg, err := calendar.Load(bytes.NewReader(buf.Bytes()))
	if err != nil {
		return nil, fmt.Errorf("s3 source s3://%s/%s: %w", s.bucket, s.key, err)
	}

	s.log.Debug().
		Str("bucket", s.bucket).
		Str("key", s.key).
		Int64("bytes", n).
		Int("records", reg.Len()).
		Msg("Downloaded calendar object")

	return reg.WithSource(s.Name()), nil
}
