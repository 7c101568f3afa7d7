// Package storage archives the original invoice PDFs in S3-compatible
// object storage. Like the database, it is optional: the service keeps
// working when no bucket is configured.
package storage

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

var (
	Client     *minio.Client
	BucketName string
)

// Init configures the MinIO client from MINIO_* environment variables and
// verifies the bucket exists.
func Init() error {
	endpoint := os.Getenv("MINIO_ENDPOINT")
	if endpoint == "" {
		endpoint = "minio:9000"
	}

	accessKey := os.Getenv("MINIO_ACCESS_KEY")
	secretKey := os.Getenv("MINIO_SECRET_KEY")
	if accessKey == "" || secretKey == "" {
		return fmt.Errorf("no object storage credentials configured")
	}

	BucketName = os.Getenv("MINIO_BUCKET")
	if BucketName == "" {
		BucketName = "facturas"
	}

	useSSL := os.Getenv("MINIO_USE_SSL") == "true"

	var err error
	Client, err = minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return fmt.Errorf("failed to create MinIO client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	exists, err := Client.BucketExists(ctx, BucketName)
	if err != nil {
		return fmt.Errorf("failed to check bucket: %w", err)
	}
	if !exists {
		return fmt.Errorf("bucket %s does not exist", BucketName)
	}
	return nil
}

// Documents stores invoice PDFs keyed by invoice ID. Implements the
// processor's DocumentStore.
type Documents struct{}

// NewDocuments returns the document store, or nil when storage is not
// initialized.
func NewDocuments() *Documents {
	if Client == nil {
		return nil
	}
	return &Documents{}
}

// SaveDocument uploads an invoice PDF under YYYY/MM/{id}.pdf. The
// original filename is kept as object metadata only; IDs make the layout
// collision-free.
func (d *Documents) SaveDocument(ctx context.Context, id, filename string, data []byte) error {
	now := time.Now()
	objectName := fmt.Sprintf("%d/%02d/%s.pdf", now.Year(), now.Month(), id)

	_, err := Client.PutObject(ctx, BucketName, objectName,
		bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{
			ContentType:  "application/pdf",
			UserMetadata: map[string]string{"original-name": path.Base(filename)},
		})
	if err != nil {
		return fmt.Errorf("failed to upload document %s: %w", id, err)
	}
	return nil
}

// DeleteDocument removes an invoice PDF wherever it was stored.
func (d *Documents) DeleteDocument(ctx context.Context, id string) error {
	// The object name embeds the upload month, so locate it by listing.
	for object := range Client.ListObjects(ctx, BucketName, minio.ListObjectsOptions{Recursive: true}) {
		if object.Err != nil {
			return fmt.Errorf("listing documents: %w", object.Err)
		}
		if path.Base(object.Key) == id+".pdf" {
			return Client.RemoveObject(ctx, BucketName, object.Key, minio.RemoveObjectOptions{})
		}
	}
	return nil
}

// PresignedURL generates a temporary download link for a stored document.
func PresignedURL(ctx context.Context, objectName string) (string, error) {
	if Client == nil {
		return "", fmt.Errorf("object storage not initialized")
	}
	url, err := Client.PresignedGetObject(ctx, BucketName, objectName, 24*time.Hour, nil)
	if err != nil {
		return "", fmt.Errorf("failed to generate presigned URL: %w", err)
	}
	return url.String(), nil
}
