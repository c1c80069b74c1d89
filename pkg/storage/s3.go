package storage

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/noah-isme/case-assignment-api/pkg/config"
)

type s3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type s3Presigner interface {
	PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// S3Storage stores exports in an S3-compatible bucket and hands out presigned GET URLs.
type S3Storage struct {
	client    s3API
	presigner s3Presigner
	bucket    string
	ttl       time.Duration
}

// NewS3Storage builds a client from static credentials. A non-empty endpoint
// switches to path-style addressing for S3-compatible providers.
func NewS3Storage(ctx context.Context, cfg config.S3Config, ttl time.Duration) (*S3Storage, error) {
	creds := credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithCredentialsProvider(creds),
		awsconfig.WithRegion(cfg.Region),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return newS3Storage(client, s3.NewPresignClient(client), cfg.Bucket, ttl), nil
}

func newS3Storage(client s3API, presigner s3Presigner, bucket string, ttl time.Duration) *S3Storage {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &S3Storage{client: client, presigner: presigner, bucket: bucket, ttl: ttl}
}

// Put uploads data under key.
func (s *S3Storage) Put(ctx context.Context, key, contentType string, data []byte) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(int64(len(data))),
	})
	if err != nil {
		return fmt.Errorf("upload export to s3: %w", err)
	}
	return nil
}

// DownloadURL presigns a GET for key.
func (s *S3Storage) DownloadURL(ctx context.Context, key string) (string, time.Time, error) {
	req, err := s.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(s.ttl))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("presign export url: %w", err)
	}
	return req.URL, time.Now().Add(s.ttl).UTC(), nil
}
