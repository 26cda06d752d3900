// Package storage mirrors dataset entries into a MinIO or S3 bucket.
package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/Brownie44l1/anidex/internal/conf"
	"github.com/Brownie44l1/anidex/internal/errors"
	"github.com/Brownie44l1/anidex/internal/feedback"
)

type objectPutter interface {
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64,
		opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

// Mirror uploads recorded images under "<label>/<file>". It implements feedback.Sink.
type Mirror struct {
	client objectPutter
	bucket string
}

// New connects to the bucket, creating it when missing.
func New(ctx context.Context, settings conf.MinioSettings) (*Mirror, error) {
	cli, err := minio.New(settings.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(settings.AccessKey, settings.SecretKey, ""),
		Secure: settings.UseSSL,
		Region: settings.Region,
	})
	if err != nil {
		return nil, integrationError(err, settings.Bucket, "connect")
	}

	exists, err := cli.BucketExists(ctx, settings.Bucket)
	if err != nil {
		return nil, integrationError(err, settings.Bucket, "bucket check")
	}
	if !exists {
		if err := cli.MakeBucket(ctx, settings.Bucket, minio.MakeBucketOptions{Region: settings.Region}); err != nil {
			return nil, integrationError(err, settings.Bucket, "make bucket")
		}
	}

	return &Mirror{client: cli, bucket: settings.Bucket}, nil
}

func integrationError(err error, bucket, op string) error {
	return errors.New(fmt.Errorf("minio %s failed: %w", op, err)).
		Component("storage").
		Category(errors.CategoryIntegration).
		Context("bucket", bucket).
		Build()
}

// Name implements feedback.Sink.
func (m *Mirror) Name() string { return "minio" }

// Publish implements feedback.Sink.
func (m *Mirror) Publish(ctx context.Context, rec feedback.Record, image []byte) error {
	_, err := m.client.PutObject(ctx, m.bucket, rec.Filename, bytes.NewReader(image), int64(len(image)),
		minio.PutObjectOptions{
			ContentType: http.DetectContentType(image),
			UserMetadata: map[string]string{
				"predicted-label": rec.PredictedLabel,
				"outcome":         string(rec.Outcome),
			},
		})
	if err != nil {
		return integrationError(err, m.bucket, "put object")
	}
	return nil
}
