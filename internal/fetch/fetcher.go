package fetch

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const (
	DefaultTimeout      = 5 * time.Second
	DefaultMaxBodyBytes = 10 * 1024 * 1024
	DefaultUserAgent    = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
)

// ErrNotHTML is returned when the server declares a non-HTML content type.
var ErrNotHTML = errors.New("fetch: response is not html")

// Error describes a failed page fetch.
type Error struct {
	URL string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Config tunes the Fetcher. Zero fields take the package defaults.
type Config struct {
	Timeout      time.Duration
	MaxBodyBytes int64
	UserAgent    string

	// RatePerSecond limits outbound requests; 0 disables limiting.
	RatePerSecond float64
	Burst         int
}

// Fetcher downloads pages for feature extraction.
type Fetcher struct {
	client  *http.Client
	cfg     Config
	limiter *rate.Limiter
}

func New(cfg Config) *Fetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}

	tr := &http.Transport{
		// Phishing kits are often served with broken or self-signed certs;
		// the page still has to be scored.
		TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
	}

	f := &Fetcher{
		client: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: tr,
		},
		cfg: cfg,
	}
	if cfg.RatePerSecond > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		f.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), burst)
	}
	return f
}

// FetchPage downloads the HTML at targetURL. Every failure comes back as
// *Error; the HTTP status code is not inspected.
func (f *Fetcher) FetchPage(ctx context.Context, targetURL string) (string, error) {
	body, err := f.fetch(ctx, targetURL)
	if err != nil {
		return "", &Error{URL: targetURL, Err: err}
	}
	return body, nil
}

func (f *Fetcher) fetch(ctx context.Context, targetURL string) (string, error) {
	if f.limiter != nil {
		if err := f.limiter.Wait(ctx); err != nil {
			return "", err
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, targetURL, nil)
	if err != nil {
		return "", err
	}

	req.Header.Set("User-Agent", f.cfg.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if !isHTML(resp.Header.Get("Content-Type")) {
		return "", ErrNotHTML
	}

	bodyBytes, err := io.ReadAll(io.LimitReader(resp.Body, f.cfg.MaxBodyBytes))
	if err != nil {
		return "", err
	}
	return string(bodyBytes), nil
}

// isHTML accepts a missing content type; servers that omit it usually
// serve markup.
func isHTML(contentType string) bool {
	if contentType == "" {
		return true
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.Contains(strings.ToLower(contentType), "html")
	}
	return mediaType == "text/html" || mediaType == "application/xhtml+xml"
}
