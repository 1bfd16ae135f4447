// Package s3util stores exported images in S3 and hands back presigned
// download URLs.
package s3util

import (
	"bytes"
	"context"
	"fmt"
	"time"

	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// DefaultURLExpiry is how long presigned export URLs stay valid.
const DefaultURLExpiry = 15 * time.Minute

// PutObjectAPI is the subset of the S3 client used for uploads.
type PutObjectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// PresignGetAPI is the subset of the presign client used for download URLs.
type PresignGetAPI interface {
	PresignGetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// Exporter uploads edited images under <sessionId>/edited/.
type Exporter struct {
	client    PutObjectAPI
	presigner PresignGetAPI
	bucket    string
	expiry    time.Duration
}

// NewExporter returns an Exporter writing to bucket.
func NewExporter(client PutObjectAPI, presigner PresignGetAPI, bucket string) *Exporter {
	return &Exporter{client: client, presigner: presigner, bucket: bucket, expiry: DefaultURLExpiry}
}

// Bucket returns the target bucket name.
func (e *Exporter) Bucket() string { return e.bucket }

// ExportKey returns a fresh object key for an edited image of sessionID.
func ExportKey(sessionID string) string {
	if sessionID == "" {
		sessionID = "anonymous"
	}
	return fmt.Sprintf("%s/edited/%s.jpg", sessionID, uuid.NewString())
}

// UploadExport stores data as a JPEG and returns its key and a presigned GET
// URL.
func (e *Exporter) UploadExport(ctx context.Context, sessionID string, data []byte) (key, url string, err error) {
	key = ExportKey(sessionID)
	contentType := "image/jpeg"
	_, err = e.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      &e.bucket,
		Key:         &key,
		Body:        bytes.NewReader(data),
		ContentType: &contentType,
		Tagging:     ProjectTagging(),
	})
	if err != nil {
		return "", "", fmt.Errorf("upload export to S3: %w", err)
	}
	log.Info().Str("key", key).Int("bytes", len(data)).Msg("Edited image uploaded to S3")

	url, err = GeneratePresignedURL(ctx, e.presigner, e.bucket, key, e.expiry)
	if err != nil {
		return key, "", err
	}
	return key, url, nil
}

// GeneratePresignedURL creates a pre-signed GET URL for an S3 object.
func GeneratePresignedURL(ctx context.Context, presignClient PresignGetAPI, bucket, key string, expiry time.Duration) (string, error) {
	result, err := presignClient.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: &bucket, Key: &key,
	}, func(opts *s3.PresignOptions) {
		opts.Expires = expiry
	})
	if err != nil {
		return "", fmt.Errorf("presign GetObject: %w", err)
	}
	return result.URL, nil
}
