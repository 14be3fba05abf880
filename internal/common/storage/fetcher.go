package storage

import (
	"context"
	"fmt"
	"io"
	"unicode/utf8"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"data-quality/internal/common/errors"
	"data-quality/internal/common/logger"
	"data-quality/internal/common/metrics"
)

// ObjectGetter is the part of *s3.Client the fetcher uses.
type ObjectGetter interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// Fetcher reads document bodies from one bucket.
type Fetcher struct {
	client ObjectGetter
	bucket string
	logger logger.Logger
}

func NewFetcher(client ObjectGetter, bucket string, log logger.Logger) *Fetcher {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &Fetcher{
		client: client,
		bucket: bucket,
		logger: log.With(map[string]interface{}{"bucket": bucket}),
	}
}

// Fetch returns the object stored under key decoded as UTF-8 text. Any
// failure is logged and reported as empty content.
func (f *Fetcher) Fetch(ctx context.Context, key string) string {
	content, err := f.fetch(ctx, key)
	if err != nil {
		metrics.ContentFetchFailures.Inc()
		f.logger.Error("failed to fetch document content", map[string]interface{}{
			"key":   key,
			"error": errors.NewContentFetchFailedError(key, err),
		})
		return ""
	}
	return content
}

func (f *Fetcher) fetch(ctx context.Context, key string) (string, error) {
	out, err := f.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(f.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return "", err
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return "", fmt.Errorf("read object body: %w", err)
	}
	if !utf8.Valid(data) {
		return "", fmt.Errorf("object is not valid UTF-8")
	}
	return string(data), nil
}
