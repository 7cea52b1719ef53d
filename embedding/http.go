package embedding

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hupe1980/findmymeow/codec"
)

var _ Provider = (*HTTPProvider)(nil)

const (
	defaultMaxRetries       = 3
	defaultBackoff          = time.Second
	defaultMaxResponseBytes = 8 << 20
)

// HTTPOptions configures HTTPProvider.
type HTTPOptions struct {
	// Client defaults to an http.Client with a 30s timeout.
	Client *http.Client

	// MaxRetries is the number of retries after the first attempt.
	MaxRetries int

	// Backoff is the initial retry delay; it doubles per attempt.
	Backoff time.Duration

	// APIKey is sent as bearer token when set.
	APIKey string

	// Codec decodes the response. Defaults to codec.Default.
	Codec codec.Codec

	// MaxResponseBytes bounds the response body. Defaults to 8 MiB.
	MaxResponseBytes int64
}

// HTTPProvider posts the raw image bytes to a model server and expects
//
//	{"embeddings": [[0.1, ...], [0.2, ...]]}
//
// with one vector per detected subject. 429 and 5xx responses are retried
// with exponential backoff; other 4xx responses fail immediately.
type HTTPProvider struct {
	url  string
	opts HTTPOptions
}

// NewHTTPProvider creates a provider for url.
func NewHTTPProvider(url string, optFns ...func(o *HTTPOptions)) *HTTPProvider {
	opts := HTTPOptions{
		MaxRetries:       defaultMaxRetries,
		Backoff:          defaultBackoff,
		Codec:            codec.Default,
		MaxResponseBytes: defaultMaxResponseBytes,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Codec == nil {
		opts.Codec = codec.Default
	}
	if opts.MaxResponseBytes <= 0 {
		opts.MaxResponseBytes = defaultMaxResponseBytes
	}
	if opts.Client == nil {
		opts.Client = &http.Client{Timeout: 30 * time.Second}
	}

	return &HTTPProvider{url: url, opts: opts}
}

type embedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// DetectAndEmbed implements Provider.
func (p *HTTPProvider) DetectAndEmbed(ctx context.Context, image []byte) ([][]float32, error) {
	var lastErr error

	for attempt := 0; attempt <= p.opts.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := p.opts.Backoff << (attempt - 1)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}

		vectors, retry, err := p.do(ctx, image)
		if err == nil {
			return vectors, nil
		}
		if !retry {
			return nil, err
		}
		lastErr = err
	}

	return nil, lastErr
}

func (p *HTTPProvider) do(ctx context.Context, image []byte) ([][]float32, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(image))
	if err != nil {
		return nil, false, fmt.Errorf("embedding: create request: %w", err)
	}
	req.Header.Set("Content-Type", http.DetectContentType(image))
	req.Header.Set("Accept", "application/json")
	if p.opts.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.opts.APIKey)
	}

	resp, err := p.opts.Client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, false, ctx.Err()
		}
		return nil, true, fmt.Errorf("embedding: request failed: %w", err)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, p.opts.MaxResponseBytes+1))
	resp.Body.Close()
	if err != nil {
		return nil, true, fmt.Errorf("embedding: read response: %w", err)
	}
	if int64(len(body)) > p.opts.MaxResponseBytes {
		return nil, false, fmt.Errorf("embedding: response exceeds %d bytes", p.opts.MaxResponseBytes)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, true, fmt.Errorf("embedding: rate limited (429)")
	case resp.StatusCode >= 500:
		return nil, true, fmt.Errorf("embedding: server error %d: %s", resp.StatusCode, string(body))
	case resp.StatusCode != http.StatusOK:
		return nil, false, fmt.Errorf("embedding: API error %d: %s", resp.StatusCode, string(body))
	}

	var out embedResponse
	if err := p.opts.Codec.Unmarshal(body, &out); err != nil {
		return nil, false, fmt.Errorf("embedding: unmarshal response: %w", err)
	}

	return out.Embeddings, false, nil
}
