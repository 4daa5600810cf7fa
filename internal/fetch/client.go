// Package fetch provides the HTTP collaborator that retrieves target pages.
// It owns all network policy (timeouts, retries, TLS) so the analysis core
// stays free of I/O.
package fetch

import (
	"context"
	"crypto/tls"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	xhtml "golang.org/x/net/html"

	"github.com/formhawk/formhawk/internal/errors"
)

// maxBodySize caps how much of a response is read. Form analysis does not
// need more than this, and it bounds memory per target.
const maxBodySize = 10 << 20 // 10 MiB

// Config holds configuration for the fetch client.
type Config struct {
	Timeout             time.Duration
	MaxIdleConns        int
	MaxIdleConnsPerHost int
	UserAgent           string
	Headers             map[string]string
	SkipTLSVerify       bool
	Retry               errors.RetryConfig
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Timeout:             15 * time.Second,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		UserAgent:           "formhawk/1.0 (+https://github.com/formhawk/formhawk)",
		SkipTLSVerify:       false,
		Retry:               errors.DefaultRetryConfig(),
	}
}

// Client fetches target pages over HTTP.
type Client struct {
	client    *http.Client
	userAgent string
	headers   map[string]string
	cookies   []*http.Cookie
	retrier   *errors.Retrier
	mu        sync.RWMutex
}

// New creates a fetch client.
func New(config Config) *Client {
	if config.Timeout <= 0 {
		config.Timeout = 15 * time.Second
	}

	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   5 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          config.MaxIdleConns,
		MaxIdleConnsPerHost:   config.MaxIdleConnsPerHost,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		ForceAttemptHTTP2:     true,
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: config.SkipTLSVerify,
		},
	}

	return &Client{
		client: &http.Client{
			Transport: transport,
			Timeout:   config.Timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return http.ErrUseLastResponse
				}
				return nil
			},
		},
		userAgent: config.UserAgent,
		headers:   config.Headers,
		retrier:   errors.NewRetrier(config.Retry),
	}
}

// SetCookies sets cookies for all requests.
func (c *Client) SetCookies(cookies []*http.Cookie) {
	c.mu.Lock()
	c.cookies = cookies
	c.mu.Unlock()
}

// SetHeaders sets custom headers for all requests.
func (c *Client) SetHeaders(headers map[string]string) {
	c.mu.Lock()
	c.headers = headers
	c.mu.Unlock()
}

// Result contains the outcome of fetching one target page.
type Result struct {
	URL         string
	FinalURL    string
	StatusCode  int
	ContentType string
	HTML        string
	Title       string
	Duration    time.Duration
}

// Get fetches a target page, retrying transient failures, and returns its
// raw HTML. Non-HTML responses and HTTP error statuses are returned as
// typed errors.
func (c *Client) Get(ctx context.Context, targetURL string) (*Result, error) {
	var result *Result

	err := c.retrier.Do(ctx, func(ctx context.Context) error {
		r, err := c.get(ctx, targetURL)
		if err != nil {
			return err
		}
		result = r
		return nil
	})
	if err != nil {
		return nil, errors.Categorize(err, targetURL)
	}
	return result, nil
}

func (c *Client) get(ctx context.Context, targetURL string) (*Result, error) {
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, targetURL, nil)
	if err != nil {
		return nil, errors.NewScanError(errors.ClientError, targetURL, "request_creation", "failed to create request", err)
	}

	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")

	c.mu.RLock()
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}
	for _, cookie := range c.cookies {
		req.AddCookie(cookie)
	}
	c.mu.RUnlock()

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, errors.Categorize(err, targetURL)
	}
	defer resp.Body.Close()

	if httpErr := errors.CategorizeHTTPStatus(resp.StatusCode, targetURL); httpErr != nil {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, httpErr
	}

	contentType := resp.Header.Get("Content-Type")
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, errors.NewNetworkError(targetURL, "read_body", err)
	}

	html := string(body)
	if !isHTML(contentType, html) {
		return nil, errors.NewParseError(targetURL, "content_check", nil)
	}

	return &Result{
		URL:         targetURL,
		FinalURL:    resp.Request.URL.String(),
		StatusCode:  resp.StatusCode,
		ContentType: contentType,
		HTML:        html,
		Title:       extractTitle(html),
		Duration:    time.Since(start),
	}, nil
}

// isHTML decides whether a response body should be handed to the analyzer.
func isHTML(contentType, body string) bool {
	ct := strings.ToLower(contentType)
	if strings.Contains(ct, "text/html") || strings.Contains(ct, "application/xhtml") {
		return true
	}
	if ct != "" && !strings.Contains(ct, "text/") {
		return false
	}

	// No usable content type; sniff the body.
	head := strings.ToLower(body)
	if len(head) > 1024 {
		head = head[:1024]
	}
	return strings.Contains(head, "<html") ||
		strings.Contains(head, "<!doctype html") ||
		strings.Contains(head, "<form")
}

// extractTitle pulls the document title via a streaming tokenizer, avoiding
// a full parse for pages that later fail analysis.
func extractTitle(html string) string {
	tokenizer := xhtml.NewTokenizer(strings.NewReader(html))
	inTitle := false

	for {
		switch tokenizer.Next() {
		case xhtml.ErrorToken:
			return ""
		case xhtml.StartTagToken:
			name, _ := tokenizer.TagName()
			if string(name) == "title" {
				inTitle = true
			}
		case xhtml.TextToken:
			if inTitle {
				return strings.TrimSpace(string(tokenizer.Text()))
			}
		case xhtml.EndTagToken:
			name, _ := tokenizer.TagName()
			if string(name) == "title" {
				return ""
			}
			if string(name) == "head" {
				return ""
			}
		}
	}
}
