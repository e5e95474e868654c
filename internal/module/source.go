package module

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	maxResourceSize        = 1 << 20 // 1MB
	defaultResourceTimeout = 10 * time.Second
)

// Source fetches module and page resources by path.
type Source interface {
	Fetch(ctx context.Context, path string) ([]byte, error)
}

// FSSource serves resources from a filesystem (a directory, an embed.FS or
// an fstest.MapFS in tests).
type FSSource struct {
	FS fs.FS
}

// Fetch reads path from the filesystem. Context cancellation is not observed;
// local reads are not cancellable.
func (s FSSource) Fetch(_ context.Context, path string) ([]byte, error) {
	data, err := fs.ReadFile(s.FS, strings.TrimPrefix(path, "/"))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return data, nil
}

// HTTPSource fetches resources relative to a base URL.
//
// Timeouts are applied per request via the context; response bodies are
// limited to 1MB.
type HTTPSource struct {
	base       *url.URL
	timeout    time.Duration
	httpClient *http.Client
}

// NewHTTPSource creates an [HTTPSource] rooted at baseURL. A zero timeout
// uses 10 seconds.
func NewHTTPSource(baseURL string, timeout time.Duration) (*HTTPSource, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid asset URL: %w", err)
	}
	if u.Scheme == "" {
		return nil, fmt.Errorf("asset URL must have a scheme (http:// or https://)")
	}
	if !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	if timeout <= 0 {
		timeout = defaultResourceTimeout
	}
	return &HTTPSource{
		base:    u,
		timeout: timeout,
		httpClient: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        20,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     60 * time.Second,
			},
		},
	}, nil
}

// Fetch GETs path relative to the base URL.
// Non-2xx responses are reported as errors.
func (s *HTTPSource) Fetch(ctx context.Context, path string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	ref, err := url.Parse(strings.TrimPrefix(path, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid resource path %q: %w", path, err)
	}
	target := s.base.ResolveReference(ref)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("fetch %s: unexpected status %d", target, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResourceSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	return body, nil
}
