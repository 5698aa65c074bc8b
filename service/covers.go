package service

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

// CoverStore keeps book cover images in an S3 bucket under covers/<bookID>/.
type CoverStore struct {
	client *s3.Client
	bucket string
}

func NewCoverStore(ctx context.Context, bucket, region, accessKeyID, secretAccessKey string) (*CoverStore, error) {
	if bucket == "" {
		return nil, fmt.Errorf("AWS_S3_BUCKET is required")
	}
	opts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if accessKeyID != "" && secretAccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(accessKeyID, secretAccessKey, ""),
		))
	}
	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, err
	}
	return &CoverStore{client: s3.NewFromConfig(cfg), bucket: bucket}, nil
}

// CoverKey builds the object key of a new cover upload.
func CoverKey(bookID, filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	return "covers/" + bookID + "/" + uuid.New().String() + ext
}

// Upload stores a cover for bookID and returns its object key.
func (s *CoverStore) Upload(ctx context.Context, bookID, filename string, body io.Reader, contentType string) (string, error) {
	key := CoverKey(bookID, filename)
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", err
	}
	return key, nil
}

func (s *CoverStore) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	return err
}

// Open returns the cover body and content type. Caller must close the reader.
func (s *CoverStore) Open(ctx context.Context, key string) (io.ReadCloser, string, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, "", err
	}
	return out.Body, aws.ToString(out.ContentType), nil
}
