// internal/common/storage/s3.go
package storage

import (
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"data-quality/internal/common/config"
)

// NewS3Client connects to a MinIO (or any S3 compatible) endpoint with
// static credentials and path-style addressing. The client is safe for
// concurrent use and should be built once.
func NewS3Client(cfg config.MinIOConfig) *s3.Client {
	return s3.NewFromConfig(aws.Config{Region: cfg.Region}, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(cfg.URL())
		o.Credentials = credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")
		o.UsePathStyle = true
	})
}
