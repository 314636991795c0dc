package provider

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

const s3CallTimeout = 30 * time.Second

// S3Credentials configure an S3-compatible backend (MinIO, Supabase, AWS).
type S3Credentials struct {
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
	Region          string
	UseSSL          bool
}

// S3Provider stores objects in an S3-compatible bucket via minio-go.
type S3Provider struct {
	client *minio.Client
	bucket string
}

// NewS3Provider builds a provider from explicit credentials.
func NewS3Provider(creds S3Credentials) (*S3Provider, error) {
	client, err := minio.New(creds.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(creds.AccessKeyID, creds.SecretAccessKey, ""),
		Secure: creds.UseSSL,
		Region: creds.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create s3 client: %w", err)
	}
	return &S3Provider{client: client, bucket: creds.Bucket}, nil
}

// NewS3ProviderFromClient wraps an already constructed MinIO client.
func NewS3ProviderFromClient(client *minio.Client, bucket string) *S3Provider {
	return &S3Provider{client: client, bucket: bucket}
}

// Name identifies the backend kind.
func (p *S3Provider) Name() string { return "s3" }

// Upload stores the object under a fresh key and reports what was written.
func (p *S3Provider) Upload(ctx context.Context, obj Object) (Stored, error) {
	ctx, cancel := context.WithTimeout(ctx, s3CallTimeout)
	defer cancel()

	fileID := newObjectID()
	_, err := p.client.PutObject(ctx, p.bucket, fileID, bytes.NewReader(obj.Content), obj.Size(), minio.PutObjectOptions{
		ContentType: obj.MimeType,
	})
	if err != nil {
		return Stored{}, classifyS3Error(err)
	}

	return Stored{
		FileID:   fileID,
		Size:     obj.Size(),
		MimeType: obj.MimeType,
		Filename: obj.Filename,
		Provider: p.Name(),
	}, nil
}

// Download fetches the object contents.
func (p *S3Provider) Download(ctx context.Context, fileID string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, s3CallTimeout)
	defer cancel()

	object, err := p.client.GetObject(ctx, p.bucket, fileID, minio.GetObjectOptions{})
	if err != nil {
		return nil, classifyS3Error(err)
	}
	defer object.Close()

	data, err := io.ReadAll(object)
	if err != nil {
		return nil, classifyS3Error(err)
	}
	return data, nil
}

// Delete removes the object. Deleting a missing object is not an error at
// the S3 level, matching the idempotent semantics the sweep relies on.
func (p *S3Provider) Delete(ctx context.Context, fileID string) error {
	ctx, cancel := context.WithTimeout(ctx, s3CallTimeout)
	defer cancel()

	if err := p.client.RemoveObject(ctx, p.bucket, fileID, minio.RemoveObjectOptions{}); err != nil {
		return classifyS3Error(err)
	}
	return nil
}

// Stat reports object size and content type without fetching the body.
func (p *S3Provider) Stat(ctx context.Context, fileID string) (Stored, error) {
	ctx, cancel := context.WithTimeout(ctx, s3CallTimeout)
	defer cancel()

	info, err := p.client.StatObject(ctx, p.bucket, fileID, minio.StatObjectOptions{})
	if err != nil {
		return Stored{}, classifyS3Error(err)
	}

	return Stored{
		FileID:   fileID,
		Size:     info.Size,
		MimeType: info.ContentType,
		Provider: p.Name(),
	}, nil
}

func classifyS3Error(err error) error {
	var resp minio.ErrorResponse
	if errors.As(err, &resp) {
		switch resp.StatusCode {
		case http.StatusNotFound:
			return fmt.Errorf("%w: %s", ErrObjectNotFound, resp.Code)
		case http.StatusBadRequest, http.StatusForbidden, http.StatusConflict, http.StatusUnprocessableEntity:
			return fmt.Errorf("%w: %s", ErrRejected, resp.Code)
		}
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}
