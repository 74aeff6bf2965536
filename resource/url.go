package resource

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"time"
)

var _ Resource = (*URL)(nil)

// DefaultHeadTimeout bounds the HEAD requests behind Exists and Size.
const DefaultHeadTimeout = 30 * time.Second

// URL is a read-only Resource fetched over HTTP(S).
type URL struct {
	url         *url.URL
	client      *http.Client
	headTimeout time.Duration
}

// URLOption configures a URL resource.
type URLOption func(*URL)

// WithHTTPClient sets the HTTP client used for requests.
func WithHTTPClient(client *http.Client) URLOption {
	return func(u *URL) {
		if client != nil {
			u.client = client
		}
	}
}

// WithHeadTimeout sets how long Exists and Size wait for a HEAD response.
// Non-positive values are ignored. Open is bounded by its context only.
func WithHeadTimeout(d time.Duration) URLOption {
	return func(u *URL) {
		if d > 0 {
			u.headTimeout = d
		}
	}
}

// NewURL creates a URL resource. Only http and https schemes are accepted.
func NewURL(rawURL string, opts ...URLOption) (*URL, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid url %q: %w", rawURL, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("unsupported url scheme %q", parsed.Scheme)
	}

	u := &URL{url: parsed, client: http.DefaultClient, headTimeout: DefaultHeadTimeout}
	for _, opt := range opts {
		opt(u)
	}
	return u, nil
}

// String returns the URL.
func (u *URL) String() string {
	return u.url.String()
}

// Name returns the last path element of the URL.
func (u *URL) Name() string {
	name := path.Base(u.url.Path)
	if name == "/" || name == "." || name == "" {
		return u.url.Host
	}
	return name
}

// Exists issues a HEAD request and reports whether it succeeded. A request
// that outlives the head timeout counts as missing.
func (u *URL) Exists() bool {
	resp, err := u.head()
	if err != nil {
		return false
	}
	_ = resp.Body.Close()
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}

// Size returns the Content-Length reported by a HEAD request, when present.
// The size is unknown when the request outlives the head timeout.
func (u *URL) Size() (int64, bool) {
	resp, err := u.head()
	if err != nil {
		return 0, false
	}
	_ = resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 || resp.ContentLength < 0 {
		return 0, false
	}
	return resp.ContentLength, true
}

// IsReadOnly always returns true.
func (u *URL) IsReadOnly() bool {
	return true
}

// Open issues a GET request and returns the response body.
func (u *URL) Open(ctx context.Context) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.url.String(), nil)
	if err != nil {
		return nil, ioError("open", u.url.String(), err)
	}
	resp, err := u.client.Do(req)
	if err != nil {
		return nil, ioError("open", u.url.String(), err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_ = resp.Body.Close()
		return nil, ioError("open", u.url.String(), fmt.Errorf("unexpected status %s", resp.Status))
	}
	return resp.Body, nil
}

func (u *URL) head() (*http.Response, error) {
	ctx, cancel := context.WithTimeout(context.Background(), u.headTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, u.url.String(), nil)
	if err != nil {
		return nil, err
	}
	return u.client.Do(req)
}
