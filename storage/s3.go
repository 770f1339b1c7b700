package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// S3Config configures an S3 compatible backend. Endpoint is optional and
// selects a non-AWS service such as MinIO.
type S3Config struct {
	Region       string
	Endpoint     string
	AccessKey    string
	SecretKey    string
	UsePathStyle bool
}

// S3 stores objects in S3 and signs URLs with SigV4 presigning.
type S3 struct {
	client  *s3.Client
	presign *s3.PresignClient
}

// NewS3 returns an S3 backend with static credentials.
func NewS3(cfg S3Config) (*S3, error) {
	if cfg.Region == "" {
		return nil, errors.New("storage: s3 region is required")
	}
	if cfg.AccessKey == "" || cfg.SecretKey == "" {
		return nil, errors.New("storage: s3 credentials are required")
	}
	opts := s3.Options{
		Region:       cfg.Region,
		UsePathStyle: cfg.UsePathStyle,
		Credentials: aws.CredentialsProviderFunc(func(context.Context) (aws.Credentials, error) {
			return aws.Credentials{
				AccessKeyID:     cfg.AccessKey,
				SecretAccessKey: cfg.SecretKey,
				Source:          "aplus",
			}, nil
		}),
	}
	if cfg.Endpoint != "" {
		opts.BaseEndpoint = aws.String(cfg.Endpoint)
	}
	client := s3.New(opts)
	return &S3{client: client, presign: s3.NewPresignClient(client)}, nil
}

// Put uploads data and returns its locator.
func (s *S3) Put(ctx context.Context, bucket, p string, data []byte, contentType string) (string, error) {
	clean, err := Clean(bucket, p)
	if err != nil {
		return "", err
	}
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(bucket),
		Key:           aws.String(clean),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("storage: s3 put %s/%s: %w", bucket, clean, err)
	}
	return Locator(bucket, clean), nil
}

// Get downloads an object.
func (s *S3) Get(ctx context.Context, bucket, p string) ([]byte, error) {
	clean, err := Clean(bucket, p)
	if err != nil {
		return nil, err
	}
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(clean),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%w: %s/%s", ErrNotFound, bucket, clean)
		}
		return nil, fmt.Errorf("storage: s3 get %s/%s: %w", bucket, clean, err)
	}
	defer out.Body.Close()
	return io.ReadAll(out.Body)
}

// SignedURL presigns a GET request valid for ttl.
func (s *S3) SignedURL(ctx context.Context, bucket, p string, ttl time.Duration) (string, error) {
	clean, err := Clean(bucket, p)
	if err != nil {
		return "", err
	}
	req, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(clean),
	}, s3.WithPresignExpires(ttl))
	if err != nil {
		return "", fmt.Errorf("storage: s3 presign %s/%s: %w", bucket, clean, err)
	}
	return req.URL, nil
}

func isNotFound(err error) bool {
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var re *awshttp.ResponseError
	return errors.As(err, &re) && re.HTTPStatusCode() == http.StatusNotFound
}
