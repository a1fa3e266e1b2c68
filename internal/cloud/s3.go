package cloud

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog/log"
)

// ObjectAPI is the subset of the S3 client used here.
type ObjectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Client uploads and downloads directory exports.
type S3Client struct {
	client ObjectAPI
	bucket string
}

// NewS3Client creates an S3 client for the given bucket using the default
// AWS credential chain.
func NewS3Client(ctx context.Context, bucket, region string) (*S3Client, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}
	return NewS3ClientFromAPI(s3.NewFromConfig(cfg), bucket), nil
}

// NewS3ClientFromAPI wraps an existing client.
func NewS3ClientFromAPI(api ObjectAPI, bucket string) *S3Client {
	return &S3Client{client: api, bucket: bucket}
}

// Bucket returns the target bucket.
func (c *S3Client) Bucket() string { return c.bucket }

// DefaultKey builds "exports/<date>/<base name of localPath>".
func DefaultKey(localPath string, now time.Time) string {
	return path.Join("exports", now.UTC().Format("2006-01-02"), path.Base(strings.ReplaceAll(localPath, "\\", "/")))
}

// ContentTypeFor returns the content type and encoding for an export file.
func ContentTypeFor(localPath string) (contentType, encoding string) {
	switch {
	case strings.HasSuffix(localPath, ".jsonl.gz"), strings.HasSuffix(localPath, ".ndjson.gz"):
		return "application/x-ndjson", "gzip"
	case strings.HasSuffix(localPath, ".gz"):
		return "application/gzip", ""
	case strings.HasSuffix(localPath, ".jsonl"), strings.HasSuffix(localPath, ".ndjson"):
		return "application/x-ndjson", ""
	default:
		return "application/json", ""
	}
}

// UploadFile streams a local file to key.
func (c *S3Client) UploadFile(ctx context.Context, key, localPath string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}

	contentType, encoding := ContentTypeFor(localPath)
	in := &s3.PutObjectInput{
		Bucket:        aws.String(c.bucket),
		Key:           aws.String(key),
		Body:          f,
		ContentLength: aws.Int64(info.Size()),
		ContentType:   aws.String(contentType),
	}
	if encoding != "" {
		in.ContentEncoding = aws.String(encoding)
	}

	if _, err := c.client.PutObject(ctx, in); err != nil {
		return fmt.Errorf("uploading s3://%s/%s: %w", c.bucket, key, err)
	}
	log.Info().Str("bucket", c.bucket).Str("key", key).Int64("bytes", info.Size()).Msg("export uploaded")
	return nil
}

// DownloadFile copies key into localPath.
func (c *S3Client) DownloadFile(ctx context.Context, key, localPath string) error {
	resp, err := c.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("getting S3 object %s: %w", key, err)
	}
	defer resp.Body.Close()

	f, err := os.Create(localPath)
	if err != nil {
		return err
	}
	_, err = io.Copy(f, resp.Body)
	if closeErr := f.Close(); closeErr != nil && err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(localPath)
		return fmt.Errorf("writing %s: %w", localPath, err)
	}
	return nil
}
