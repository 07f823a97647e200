// Package storage turns object paths of registration images into URLs the
// image fetcher can download.
package storage

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kozaktomas/roll-call/internal/config"
)

// ErrEmptyPath is returned when no object path is given.
var ErrEmptyPath = errors.New("empty object path")

// URLSigner returns a URL that grants read access to the object at path for ttl.
type URLSigner interface {
	SignedURL(ctx context.Context, path string, ttl time.Duration) (string, error)
}

// NewSigner picks the public signer when a public base URL is configured and
// the S3 presigner otherwise.
func NewSigner(ctx context.Context, cfg *config.StorageConfig) (URLSigner, error) {
	if cfg.UsesPublicImages() {
		return NewPublicURLSigner(cfg.PublicBaseURL), nil
	}
	return NewS3Signer(ctx, cfg)
}

func objectKey(path string) (string, error) {
	key := strings.TrimLeft(strings.TrimSpace(path), "/")
	if key == "" {
		return "", ErrEmptyPath
	}
	return key, nil
}

// PublicURLSigner serves objects from a public bucket; the ttl is ignored.
type PublicURLSigner struct {
	baseURL string
}

// NewPublicURLSigner creates a signer rooted at baseURL.
func NewPublicURLSigner(baseURL string) *PublicURLSigner {
	return &PublicURLSigner{baseURL: strings.TrimSuffix(baseURL, "/")}
}

func (s *PublicURLSigner) SignedURL(_ context.Context, path string, _ time.Duration) (string, error) {
	key, err := objectKey(path)
	if err != nil {
		return "", err
	}
	segments := strings.Split(key, "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	return fmt.Sprintf("%s/%s", s.baseURL, strings.Join(segments, "/")), nil
}
