// Package pagesource fetches web pages for extraction. The HTTP client here
// covers server-rendered pages; sites that only paint content with a browser
// need a rendering source in front of it.
package pagesource

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// minContentBytes is the smallest body considered a real page. Anything
// shorter is an error page or a bot wall.
const minContentBytes = 500

const defaultMaxBodyBytes = 4 << 20

// Page is a fetched page ready for content processing. Success is false when
// the fetch failed or returned too little to work with; Error then says why.
type Page struct {
	URL        string
	Title      string
	HTML       []byte
	Text       string
	Screenshot []byte
	Success    bool
	Error      string
}

// Client fetches pages over plain HTTP with a bounded retry on transient
// failures.
type Client struct {
	HTTPClient *http.Client
	UserAgent  string
	// MaxAttempts includes the initial attempt. Minimum 1.
	MaxAttempts int
	// Timeout bounds each attempt.
	Timeout time.Duration
	// MaxBodyBytes caps how much of a response body is read. Zero means the
	// package default.
	MaxBodyBytes int64
}

func (c *Client) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}

// Fetch retrieves url. Fetch failures come back as an unsuccessful Page, not
// an error; the error return is reserved for a cancelled context.
func (c *Client) Fetch(ctx context.Context, pageURL string) (Page, error) {
	page := Page{URL: pageURL}

	parsed, err := url.Parse(pageURL)
	if err != nil || !isHTTPScheme(parsed) {
		page.Error = fmt.Sprintf("unsupported URL: %q", pageURL)
		return page, nil
	}

	attempts := c.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}
	var lastErr error
	for i := 0; i < attempts; i++ {
		body, fetchErr := c.tryOnce(ctx, pageURL)
		if fetchErr == nil {
			if len(body) <= minContentBytes {
				page.Error = fmt.Sprintf("page returned only %d bytes", len(body))
				return page, nil
			}
			page.HTML = body
			page.Success = true
			return page, nil
		}
		if ctx.Err() != nil {
			return Page{}, ctx.Err()
		}
		lastErr = fetchErr
		if !isTransient(fetchErr) || i == attempts-1 {
			break
		}
		backoff := time.Duration(i+1) * 200 * time.Millisecond
		log.Warn().Str("url", pageURL).Err(fetchErr).Dur("backoff", backoff).Msg("fetch failed, retrying")
		select {
		case <-ctx.Done():
			return Page{}, ctx.Err()
		case <-time.After(backoff):
		}
	}

	page.Error = lastErr.Error()
	return page, nil
}

func (c *Client) tryOnce(ctx context.Context, pageURL string) ([]byte, error) {
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	if c.UserAgent != "" {
		req.Header.Set("User-Agent", c.UserAgent)
	}

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 && resp.StatusCode <= 599 {
		return nil, fmt.Errorf("server error: %d", resp.StatusCode)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !isAllowedHTMLContentType(ct) {
		return nil, fmt.Errorf("unsupported content type: %s", ct)
	}

	limit := c.MaxBodyBytes
	if limit <= 0 {
		limit = defaultMaxBodyBytes
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, limit))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return body, nil
}

// isTransient treats HTTP 5xx and deadline expiry as retryable.
func isTransient(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	return strings.Contains(err.Error(), "server error:")
}

func isHTTPScheme(u *url.URL) bool {
	if u == nil {
		return false
	}
	scheme := strings.ToLower(u.Scheme)
	return scheme == "http" || scheme == "https"
}

func isAllowedHTMLContentType(ct string) bool {
	ct = strings.ToLower(strings.TrimSpace(ct))
	return strings.HasPrefix(ct, "text/html") || strings.HasPrefix(ct, "application/xhtml+xml")
}
