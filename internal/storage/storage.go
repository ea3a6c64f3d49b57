// Package storage keeps station artwork in a local directory or an S3-compatible bucket.
package storage

import (
	"context"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"

	"stationhub/internal/config"
)

// ImageCacheControl is sent with every uploaded image.
const ImageCacheControl = "public, max-age=604800"

type Client struct {
	backend       StorageProvider
	bucketImages  string
	publicBaseURL string
}

func New(cfg *config.Config) *Client {
	var backend StorageProvider

	if cfg.Storage.Provider == "s3" {
		s3Config := &aws.Config{
			Credentials:      credentials.NewStaticCredentials(cfg.Storage.KeyID, cfg.Storage.AppKey, ""),
			Endpoint:         aws.String(cfg.Storage.Endpoint),
			Region:           aws.String(cfg.Storage.Region),
			S3ForcePathStyle: aws.Bool(true),
		}
		sess := session.Must(session.NewSession(s3Config))
		backend = &S3Provider{api: s3.New(sess)}
	} else {
		backend = NewLocalProvider(cfg.Storage.LocalStorage)
	}

	return NewWithProvider(backend, cfg.Storage.BucketImages, cfg.Storage.PublicBaseURL)
}

// NewWithProvider wires a client around an existing backend.
func NewWithProvider(backend StorageProvider, bucketImages, publicBaseURL string) *Client {
	return &Client{
		backend:       backend,
		bucketImages:  bucketImages,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
	}
}

// UploadImage stores an image and returns its public URL.
func (c *Client) UploadImage(ctx context.Context, key string, body io.ReadSeeker, contentType string) (string, error) {
	if err := c.backend.Put(ctx, c.bucketImages, key, body, contentType, ImageCacheControl); err != nil {
		return "", err
	}
	return c.PublicURL(key), nil
}

// DownloadImage opens a stored image. The caller closes Body.
func (c *Client) DownloadImage(ctx context.Context, key string) (*FileObject, error) {
	return c.backend.Get(ctx, c.bucketImages, key)
}

// DeleteImage removes an image. Missing keys are not an error.
func (c *Client) DeleteImage(ctx context.Context, key string) error {
	return c.backend.Delete(ctx, c.bucketImages, key)
}

func (c *Client) ImageExists(ctx context.Context, key string) (bool, error) {
	return c.backend.Exists(ctx, c.bucketImages, key)
}

// ListImages returns image keys under prefix.
func (c *Client) ListImages(ctx context.Context, prefix string) ([]string, error) {
	return c.backend.List(ctx, c.bucketImages, prefix)
}

// PublicURL maps a key to the URL clients should load it from.
func (c *Client) PublicURL(key string) string {
	return c.publicBaseURL + "/" + strings.TrimLeft(key, "/")
}

// KeyFromURL is the inverse of PublicURL. ok is false for foreign URLs.
func (c *Client) KeyFromURL(url string) (key string, ok bool) {
	prefix := c.publicBaseURL + "/"
	if !strings.HasPrefix(url, prefix) {
		return "", false
	}
	return strings.TrimPrefix(url, prefix), true
}

// PruneImages deletes every image under prefix for which keep returns false
// and reports how many were removed.
func (c *Client) PruneImages(ctx context.Context, prefix string, keep func(key string) bool) (int, error) {
	keys, err := c.ListImages(ctx, prefix)
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, key := range keys {
		if keep(key) {
			continue
		}
		if err := c.DeleteImage(ctx, key); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}
