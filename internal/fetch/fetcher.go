// Package fetch turns a URL into sanitized text under an allow-list,
// a content-type check, a timeout, and a byte cap.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hyperjump/kioku/internal/ingest"
)

const (
	defaultTimeout  = 10 * time.Second
	defaultMaxBytes = 2_500_000
	userAgent       = "kioku/1.0 (+https://kioku.local)"
)

// Fetcher resolves a URL into sanitized text.
type Fetcher interface {
	FetchText(ctx context.Context, rawURL string) (string, error)
}

// HTTPFetcher fetches over HTTP(S). Only hosts on the allow-list are fetched
// (exact match or subdomain); an empty list allows all hosts. Responses are
// read up to maxBytes and must carry a textual content type.
type HTTPFetcher struct {
	allowedDomains []string
	maxBytes       int64
	client         *http.Client
}

// Option configures an HTTPFetcher.
type Option func(*HTTPFetcher)

// WithAllowedDomains sets the host allow-list. Entries are lower-cased and
// trimmed; blank entries are dropped.
func WithAllowedDomains(domains []string) Option {
	return func(f *HTTPFetcher) {
		f.allowedDomains = f.allowedDomains[:0]
		for _, d := range domains {
			d = strings.ToLower(strings.TrimSpace(d))
			if d != "" {
				f.allowedDomains = append(f.allowedDomains, d)
			}
		}
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(f *HTTPFetcher) {
		if d > 0 {
			f.client.Timeout = d
		}
	}
}

// WithMaxBytes caps how many response bytes are read.
func WithMaxBytes(n int64) Option {
	return func(f *HTTPFetcher) {
		if n > 0 {
			f.maxBytes = n
		}
	}
}

// NewHTTPFetcher creates a fetcher with the default timeout and byte cap.
func NewHTTPFetcher(opts ...Option) *HTTPFetcher {
	f := &HTTPFetcher{
		maxBytes: defaultMaxBytes,
		client:   &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// FetchText fetches rawURL and returns its sanitized text content.
// Failures (disallowed host, bad status, unsupported content type, timeout)
// are returned as errors and isolated per URL by the caller.
func (f *HTTPFetcher) FetchText(ctx context.Context, rawURL string) (string, error) {
	if !f.domainAllowed(rawURL) {
		return "", fmt.Errorf("domain not allowlisted")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,text/plain;q=0.9,*/*;q=0.5")
	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	ctype := strings.ToLower(resp.Header.Get("Content-Type"))
	if !textualContentType(ctype) {
		if ctype == "" {
			ctype = "unknown"
		}
		return "", fmt.Errorf("unsupported content-type: %s", ctype)
	}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes))
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}
	return ingest.Sanitize(string(raw)), nil
}

func textualContentType(ctype string) bool {
	for _, want := range []string{"text", "json", "xml", "html"} {
		if strings.Contains(ctype, want) {
			return true
		}
	}
	return false
}

func (f *HTTPFetcher) domainAllowed(rawURL string) bool {
	if len(f.allowedDomains) == 0 {
		return true
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	host := strings.ToLower(strings.TrimSpace(u.Hostname()))
	for _, d := range f.allowedDomains {
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}
