// Package storage wraps S3-compatible object storage for photo uploads.
package storage

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"sticker-album-backend/internal/config"
)

// presigned upload links stay valid for this long
const uploadExpiry = 5 * time.Minute

// PhotoStorage stores user photos and issues pre-signed upload URLs.
type PhotoStorage struct {
	client    *s3.Client
	presigner *s3.PresignClient
	bucket    string
	region    string
	publicURL string
}

// New creates a photo storage from configuration. A custom endpoint
// (MinIO and friends) switches the client to path-style addressing.
func New(ctx context.Context, cfg config.AWSConfig) (*PhotoStorage, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return &PhotoStorage{
		client:    client,
		presigner: s3.NewPresignClient(client),
		bucket:    cfg.S3Bucket,
		region:    cfg.Region,
		publicURL: strings.TrimRight(cfg.PublicURL, "/"),
	}, nil
}

// UploadTicket is a pre-signed PUT grant for a single object.
type UploadTicket struct {
	UploadURL string `json:"upload_url"`
	Key       string `json:"key"`
	PublicURL string `json:"public_url"`
	ExpiresIn int    `json:"expires_in"`
}

// PresignUpload issues a pre-signed PUT URL for the given key.
func (ps *PhotoStorage) PresignUpload(ctx context.Context, key, contentType string) (*UploadTicket, error) {
	req, err := ps.presigner.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(ps.bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
	}, func(opts *s3.PresignOptions) {
		opts.Expires = uploadExpiry
	})
	if err != nil {
		return nil, fmt.Errorf("failed to presign upload: %w", err)
	}

	return &UploadTicket{
		UploadURL: req.URL,
		Key:       key,
		PublicURL: ps.PublicObjectURL(key),
		ExpiresIn: int(uploadExpiry.Seconds()),
	}, nil
}

// Upload stores an object directly, used for server-side uploads.
func (ps *PhotoStorage) Upload(ctx context.Context, key, contentType string, data []byte) (string, error) {
	_, err := ps.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(ps.bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
		Body:        bytes.NewReader(data),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload object: %w", err)
	}
	return ps.PublicObjectURL(key), nil
}

// ExtensionForContentType maps an image content type to the file
// extension used in object keys. Unknown types fall back to .jpg.
func ExtensionForContentType(contentType string) string {
	switch contentType {
	case "image/png":
		return ".png"
	case "image/webp":
		return ".webp"
	case "image/gif":
		return ".gif"
	case "image/heic":
		return ".heic"
	default:
		return ".jpg"
	}
}

// PublicObjectURL returns the URL clients use to fetch an object.
func (ps *PhotoStorage) PublicObjectURL(key string) string {
	if ps.publicURL != "" {
		return ps.publicURL + "/" + key
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", ps.bucket, ps.region, key)
}
