// Package imagefetch downloads images over HTTP with a bounded deadline,
// retries transient failures and checks that the payload decodes as an image.
package imagefetch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"

	"github.com/kozaktomas/roll-call/internal/constants"
)

// Reason classifies a fetch failure.
type Reason string

const (
	ReasonTimeout  Reason = "timeout"
	ReasonNetwork  Reason = "network"
	ReasonStatus   Reason = "status"
	ReasonEmpty    Reason = "empty"
	ReasonTooLarge Reason = "too_large"
	ReasonDecode   Reason = "decode"
)

// FetchError describes why an image could not be fetched.
type FetchError struct {
	URL        string
	Reason     Reason
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	switch {
	case e.StatusCode != 0:
		return fmt.Sprintf("fetch image: %s (status %d)", e.Reason, e.StatusCode)
	case e.Err != nil:
		return fmt.Sprintf("fetch image: %s: %v", e.Reason, e.Err)
	default:
		return fmt.Sprintf("fetch image: %s", e.Reason)
	}
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Fetcher returns the raw bytes of a decodable image.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Options configures an HTTPFetcher. Zero values fall back to defaults.
type Options struct {
	Timeout       time.Duration
	Retries       int
	MaxBytes      int64
	RetryInterval time.Duration
	Client        *http.Client
}

// HTTPFetcher fetches images with net/http.
type HTTPFetcher struct {
	client        *http.Client
	timeout       time.Duration
	retries       int
	maxBytes      int64
	retryInterval time.Duration
}

// New creates an HTTPFetcher.
func New(opts Options) *HTTPFetcher {
	f := &HTTPFetcher{
		client:        opts.Client,
		timeout:       opts.Timeout,
		retries:       opts.Retries,
		maxBytes:      opts.MaxBytes,
		retryInterval: opts.RetryInterval,
	}
	if f.client == nil {
		f.client = &http.Client{}
	}
	if f.timeout <= 0 {
		f.timeout = constants.DefaultFetchTimeout
	}
	if f.retries < 0 {
		f.retries = 0
	}
	if f.maxBytes <= 0 {
		f.maxBytes = constants.MaxImageBytes
	}
	if f.retryInterval <= 0 {
		f.retryInterval = 250 * time.Millisecond
	}
	return f
}

// Fetch downloads url. Network errors, 429 and 5xx responses are retried until the
// retry budget or the fetch deadline runs out. Every failure is a *FetchError.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = f.retryInterval
	b.MaxElapsedTime = 0 // bounded by ctx

	var data []byte
	operation := func() error {
		body, err := f.fetchOnce(ctx, url)
		if err != nil {
			return err
		}
		data = body
		return nil
	}

	err := backoff.Retry(operation, backoff.WithContext(backoff.WithMaxRetries(b, uint64(f.retries)), ctx))
	if err == nil {
		return data, nil
	}

	var fetchErr *FetchError
	if errors.As(err, &fetchErr) {
		return nil, fetchErr
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return nil, &FetchError{URL: url, Reason: ReasonTimeout, Err: err}
	}
	return nil, &FetchError{URL: url, Reason: ReasonNetwork, Err: err}
}

func (f *HTTPFetcher) fetchOnce(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, backoff.Permanent(&FetchError{URL: url, Reason: ReasonNetwork, Err: err})
	}

	resp, err := f.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, backoff.Permanent(&FetchError{URL: url, Reason: ReasonTimeout, Err: ctx.Err()})
		}
		return nil, &FetchError{URL: url, Reason: ReasonNetwork, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		statusErr := &FetchError{URL: url, Reason: ReasonStatus, StatusCode: resp.StatusCode}
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return nil, statusErr
		}
		return nil, backoff.Permanent(statusErr)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		if ctx.Err() != nil {
			return nil, backoff.Permanent(&FetchError{URL: url, Reason: ReasonTimeout, Err: ctx.Err()})
		}
		return nil, &FetchError{URL: url, Reason: ReasonNetwork, Err: err}
	}
	if int64(len(body)) > f.maxBytes {
		return nil, backoff.Permanent(&FetchError{URL: url, Reason: ReasonTooLarge})
	}
	if len(body) == 0 {
		return nil, backoff.Permanent(&FetchError{URL: url, Reason: ReasonEmpty})
	}
	if _, _, err := image.DecodeConfig(bytes.NewReader(body)); err != nil {
		return nil, backoff.Permanent(&FetchError{URL: url, Reason: ReasonDecode, Err: err})
	}

	return body, nil
}
