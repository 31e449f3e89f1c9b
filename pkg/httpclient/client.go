package httpclient

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// maxBodySize bounds how much of a response body is read
const maxBodySize = 8 << 20

// Response is a fully read HTTP response
type Response struct {
	StatusCode int
	Body       []byte
}

// OK reports a 2xx status
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Client issues single GET requests, optionally through a reverse proxy
// that mirrors the upstream path. It never retries: retry policy belongs
// to the caller.
type Client struct {
	httpClient *http.Client
	proxies    []string
	proxyHost  string
	userAgent  string
}

// NewClient creates a new HTTP client. Requests whose host equals
// proxyHost are rewritten onto one of proxies.
func NewClient(proxies []string, proxyHost string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		proxies:   proxies,
		proxyHost: proxyHost,
		userAgent: "movie-discovery-service/1.0",
	}
}

// getRandomProxy returns a random proxy URL or empty string if none available
func (c *Client) getRandomProxy() string {
	if len(c.proxies) == 0 {
		return ""
	}
	return c.proxies[rand.Intn(len(c.proxies))]
}

// convertToProxyURL rewrites a catalog URL onto a proxy
func (c *Client) convertToProxyURL(originalURL string) (string, bool) {
	proxy := c.getRandomProxy()
	if proxy == "" {
		return originalURL, false
	}

	parsed, err := url.Parse(originalURL)
	if err != nil {
		return originalURL, false
	}

	if c.proxyHost == "" || !strings.EqualFold(parsed.Hostname(), c.proxyHost) {
		return originalURL, false
	}

	return strings.TrimRight(proxy, "/") + parsed.RequestURI(), true
}

// Get performs one GET request and reads the body. Only transport
// failures are returned as errors; any status code is a Response.
func (c *Client) Get(ctx context.Context, targetURL string, header http.Header) (*Response, error) {
	finalURL, useProxy := c.convertToProxyURL(targetURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, finalURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	for k, v := range header {
		req.Header[k] = v
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Warn().
			Err(err).
			Bool("proxy", useProxy).
			Str("host", req.URL.Host).
			Str("path", req.URL.Path).
			Msg("Request failed")
		return nil, err
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	resp.Body.Close() // 立即关闭，不使用 defer
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	return &Response{StatusCode: resp.StatusCode, Body: body}, nil
}

// HasProxy returns true if proxies are configured
func (c *Client) HasProxy() bool {
	return len(c.proxies) > 0
}

// ProxyCount returns the number of configured proxies
func (c *Client) ProxyCount() int {
	return len(c.proxies)
}
