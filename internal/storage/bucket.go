// Package storage uploads profile images to an HTTP object-storage bucket.
package storage

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// DefaultBucket holds patient profile images.
const DefaultBucket = "profile-images"

// BucketClient PUTs objects to <endpoint>/object/<bucket>/<name>.
type BucketClient struct {
	httpClient *resty.Client
	bucket     string
	publicURL  string
	logger     *zap.Logger
}

// NewBucketClient publicURL defaults to endpoint when empty.
func NewBucketClient(endpoint, bucket, apiKey, publicURL string, logger *zap.Logger) *BucketClient {
	endpoint = strings.TrimRight(endpoint, "/")
	if bucket == "" {
		bucket = DefaultBucket
	}
	if publicURL == "" {
		publicURL = endpoint
	}
	client := resty.New().
		SetBaseURL(endpoint).
		SetTimeout(30 * time.Second).
		SetRetryCount(3).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(3 * time.Second)
	if apiKey != "" {
		client.SetAuthToken(apiKey)
	}
	return &BucketClient{
		httpClient: client,
		bucket:     bucket,
		publicURL:  strings.TrimRight(publicURL, "/"),
		logger:     logger,
	}
}

// Upload stores body under name, overwriting any existing object, and returns its public URL.
func (c *BucketClient) Upload(ctx context.Context, name, contentType string, body []byte) (string, error) {
	if name == "" {
		return "", fmt.Errorf("object name is required")
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	objectPath := "/object/" + c.bucket + "/" + url.PathEscape(name)

	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetHeader("Content-Type", contentType).
		SetHeader("x-upsert", "true").
		SetBody(body).
		Put(objectPath)
	if err != nil {
		c.logger.Error("Object upload failed", zap.String("object", name), zap.Error(err))
		return "", fmt.Errorf("upload %s: %w", name, err)
	}
	if resp.IsError() {
		c.logger.Error("Object upload rejected",
			zap.String("object", name),
			zap.Int("status", resp.StatusCode()),
			zap.String("body", resp.String()),
		)
		return "", fmt.Errorf("upload %s: status %d", name, resp.StatusCode())
	}

	c.logger.Info("Object uploaded", zap.String("object", name), zap.Int("bytes", len(body)))
	return c.PublicURL(name), nil
}

// PublicURL is <public>/<bucket>/<name>.
func (c *BucketClient) PublicURL(name string) string {
	return c.publicURL + "/" + c.bucket + "/" + url.PathEscape(name)
}
