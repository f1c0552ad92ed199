package report

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Archive stores a rendered report and returns a link to it.
type Archive interface {
	Upload(ctx context.Context, name, contentType string, data []byte) (string, error)
}

// S3Archive uploads reports to a bucket and links them with a presigned
// GET URL.
type S3Archive struct {
	client    *s3.Client
	presign   *s3.PresignClient
	bucket    string
	prefix    string
	linkValid time.Duration
}

// NewS3Archive creates an archive. Links stay valid for linkValid, which
// S3 caps at seven days.
func NewS3Archive(client *s3.Client, bucket, prefix string, linkValid time.Duration) *S3Archive {
	if linkValid <= 0 || linkValid > 7*24*time.Hour {
		linkValid = 7 * 24 * time.Hour
	}
	return &S3Archive{
		client:    client,
		presign:   s3.NewPresignClient(client),
		bucket:    bucket,
		prefix:    prefix,
		linkValid: linkValid,
	}
}

// Upload implements Archive.
func (a *S3Archive) Upload(ctx context.Context, name, contentType string, data []byte) (string, error) {
	key := path.Join(a.prefix, name)
	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
		Metadata: map[string]string{
			"generated_at": time.Now().UTC().Format(time.RFC3339),
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload report to S3: %w", err)
	}

	req, err := a.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(a.linkValid))
	if err != nil {
		return "", fmt.Errorf("presign report link: %w", err)
	}
	return req.URL, nil
}
