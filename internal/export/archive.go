package export

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Archiver stores published artifacts.
type Archiver interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
}

// Archive keeps published artifacts in an S3-compatible bucket.
type Archive struct {
	client *minio.Client
	bucket string
}

func NewArchive(endpoint, accessKey, secretKey, bucket string, useSSL bool) (*Archive, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client: %w", err)
	}
	return &Archive{client: client, bucket: bucket}, nil
}

// EnsureBucket creates the bucket on first use.
func (a *Archive) EnsureBucket(ctx context.Context) error {
	exists, err := a.client.BucketExists(ctx, a.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", a.bucket, err)
	}
	if exists {
		return nil
	}
	if err := a.client.MakeBucket(ctx, a.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("create bucket %s: %w", a.bucket, err)
	}
	return nil
}

func (a *Archive) Put(ctx context.Context, key string, data []byte, contentType string) error {
	_, err := a.client.PutObject(ctx, a.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	return nil
}

// ArchiveKey places artifacts under funnel and page, newest last.
func ArchiveKey(page Page, filename string, at time.Time) string {
	funnel := page.FunnelID
	if funnel == "" {
		funnel = "unassigned"
	}
	return path.Join("funnels", funnel, "pages", page.ID, at.UTC().Format("20060102T150405Z")+"-"+filename)
}
