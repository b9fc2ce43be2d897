package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"resumebuilder/internal/config"
)

const pdfContentType = "application/pdf"

// ObjectStore is the subset of object storage used for archived PDFs.
type ObjectStore interface {
	PutPDF(ctx context.Context, key string, data []byte) error
	PresignedURL(ctx context.Context, key string, ttl time.Duration, filename string) (string, error)
	DeleteObject(ctx context.Context, key string) error
}

// Client wraps two MinIO clients: one for the internal endpoint used for
// writes, one for the public endpoint that presigned links must point at.
type Client struct {
	internalClient *minio.Client
	publicClient   *minio.Client
	bucketName     string
}

// NewClient connects to MinIO and makes sure the bucket exists.
func NewClient(ctx context.Context, cfg config.MinIOConfig) (*Client, error) {
	internalClient, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("init internal minio client: %w", err)
	}

	publicHost, publicSecure, err := parsePublicEndpoint(cfg.PublicEndpoint)
	if err != nil {
		return nil, err
	}

	publicClient, err := minio.New(publicHost, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: publicSecure,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("init public minio client: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	exists, err := internalClient.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket %q: %w", cfg.Bucket, err)
	}
	if !exists {
		if !cfg.AutoCreateBucket {
			return nil, fmt.Errorf("bucket %q does not exist (auto create disabled)", cfg.Bucket)
		}
		if err := internalClient.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{Region: cfg.Region}); err != nil {
			return nil, fmt.Errorf("make bucket %q: %w", cfg.Bucket, err)
		}
	}

	return &Client{
		internalClient: internalClient,
		publicClient:   publicClient,
		bucketName:     cfg.Bucket,
	}, nil
}

func parsePublicEndpoint(raw string) (host string, secure bool, err error) {
	parsed, err := url.Parse(raw)
	if err != nil {
		return "", false, fmt.Errorf("parse minio public endpoint: %w", err)
	}
	if parsed.Host == "" {
		return "", false, fmt.Errorf("invalid minio public endpoint %q, host missing", raw)
	}
	return parsed.Host, parsed.Scheme == "https", nil
}

// PDFObjectKey returns a fresh key for an archived PDF owned by userID.
func PDFObjectKey(userID uint) string {
	return fmt.Sprintf("generated-resumes/%d/%s.pdf", userID, uuid.NewString())
}

// PutPDF uploads data under key.
func (c *Client) PutPDF(ctx context.Context, key string, data []byte) error {
	opts := minio.PutObjectOptions{ContentType: pdfContentType}
	if _, err := c.internalClient.PutObject(ctx, c.bucketName, key, bytes.NewReader(data), int64(len(data)), opts); err != nil {
		return fmt.Errorf("put object %q: %w", key, err)
	}
	return nil
}

// PresignedURL returns a time limited download link. A non-empty filename is
// sent back as an attachment disposition.
func (c *Client) PresignedURL(ctx context.Context, key string, ttl time.Duration, filename string) (string, error) {
	var params url.Values
	if filename != "" {
		params = url.Values{}
		params.Set("response-content-disposition", mime.FormatMediaType("attachment", map[string]string{"filename": filename}))
	}
	presigned, err := c.publicClient.PresignedGetObject(ctx, c.bucketName, key, ttl, params)
	if err != nil {
		return "", fmt.Errorf("generate presigned url for %q: %w", key, err)
	}
	return presigned.String(), nil
}

// DeleteObject removes key. Missing objects count as deleted.
func (c *Client) DeleteObject(ctx context.Context, key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil
	}
	if err := c.internalClient.RemoveObject(ctx, c.bucketName, key, minio.RemoveObjectOptions{}); err != nil {
		if isMissingObject(err) {
			return nil
		}
		return fmt.Errorf("remove object %q: %w", key, err)
	}
	return nil
}

// isMissingObject reports whether err is MinIO's answer for an absent key.
func isMissingObject(err error) bool {
	var resp minio.ErrorResponse
	if !errors.As(err, &resp) {
		return false
	}
	return resp.Code == "NoSuchKey" || resp.StatusCode == http.StatusNotFound
}
