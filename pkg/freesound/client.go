// Package freesound is a small client for the Freesound v2 REST API. It covers
// the two calls the sound engine needs: paginated text search and fetching a
// preview file.
//
// Requests are throttled through a token-bucket limiter so that bursts of
// multi-page sweeps stay within the API's per-minute quota.
//
// Typical usage:
//
//	c := freesound.New(freesound.WithRateLimit(60))
//	page, err := c.Search(ctx, token, freesound.SearchRequest{Query: "door chime", Page: 1})
//	data, err := c.Download(ctx, previewURL)
package freesound

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"golang.org/x/time/rate"
)

// ---- constants ----

const (
	// DefaultBaseURL is the public API root.
	DefaultBaseURL = "https://freesound.org/apiv2"

	// DefaultPageSize is the number of results requested per search page.
	DefaultPageSize = 15

	// SearchFields selects the result fields returned by text search.
	SearchFields = "id,name,previews,download,url,username"

	defaultSearchTimeout   = 10 * time.Second
	defaultDownloadTimeout = 30 * time.Second
	searchEndpoint         = "/search/text/"

	// maxDownloadBytes caps the size of a single preview download.
	maxDownloadBytes = 64 << 20

	// errBodyLimit is how much of an error response body is kept.
	errBodyLimit = 512
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ---- options ----

// Option is a functional option for configuring a [Client].
type Option func(*Client)

// WithBaseURL overrides the API root. Intended for tests and proxies.
func WithBaseURL(u string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(u, "/")
	}
}

// WithTimeout sets the per-request timeout for search calls. Default 10 s.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.searchClient.Timeout = d
		}
	}
}

// WithDownloadTimeout sets the per-request timeout for preview downloads.
// Default 30 s.
func WithDownloadTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.downloadClient.Timeout = d
		}
	}
}

// WithRateLimit throttles all requests to perMinute requests per minute with a
// small burst allowance. Zero or negative disables throttling.
func WithRateLimit(perMinute int) Option {
	return func(c *Client) {
		if perMinute <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 0)
			return
		}
		burst := min(perMinute, 5)
		c.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), burst)
	}
}

// WithHTTPClient replaces the transport used for both search and download.
// The timeouts of the supplied client are preserved.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.searchClient = hc
			dl := *hc
			c.downloadClient = &dl
		}
	}
}

// ---- client ----

// Client talks to the Freesound API. It is safe for concurrent use.
type Client struct {
	baseURL        string
	searchClient   *http.Client
	downloadClient *http.Client
	limiter        *rate.Limiter
}

// New creates a Client. Without options it targets [DefaultBaseURL] and does
// not throttle.
func New(opts ...Option) *Client {
	c := &Client{
		baseURL:        DefaultBaseURL,
		searchClient:   &http.Client{Timeout: defaultSearchTimeout},
		downloadClient: &http.Client{Timeout: defaultDownloadTimeout},
		limiter:        rate.NewLimiter(rate.Inf, 0),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Search fetches one page of text-search results. token is the API key sent
// as "Authorization: Token <key>". A 401 response yields an error matching
// [ErrUnauthorized].
func (c *Client) Search(ctx context.Context, token string, req SearchRequest) (*SearchResponse, error) {
	if token == "" {
		return nil, ErrUnauthorized
	}
	if req.Page <= 0 {
		req.Page = 1
	}
	if req.PageSize <= 0 {
		req.PageSize = DefaultPageSize
	}

	q := url.Values{}
	q.Set("query", req.Query)
	q.Set("page", strconv.Itoa(req.Page))
	q.Set("page_size", strconv.Itoa(req.PageSize))
	q.Set("fields", SearchFields)
	endpoint := c.baseURL + searchEndpoint + "?" + q.Encode()

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("freesound: search: wait for rate limiter: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("freesound: create search request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Token "+token)
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.searchClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("freesound: GET %s: %w", searchEndpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, statusError("search", resp)
	}

	var out SearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("freesound: decode search response: %w", err)
	}
	return &out, nil
}

// Download fetches the file at rawURL, typically a preview URL returned by
// [Sound.BestPreview]. Previews are public and need no token.
func (c *Client) Download(ctx context.Context, rawURL string) ([]byte, error) {
	if rawURL == "" {
		return nil, errors.New("freesound: download: empty URL")
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("freesound: download: wait for rate limiter: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("freesound: create download request: %w", err)
	}

	resp, err := c.downloadClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("freesound: GET preview: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, statusError("download", resp)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxDownloadBytes+1))
	if err != nil {
		return nil, fmt.Errorf("freesound: read preview: %w", err)
	}
	if len(data) > maxDownloadBytes {
		return nil, fmt.Errorf("freesound: preview exceeds %d bytes", maxDownloadBytes)
	}
	return data, nil
}

func statusError(op string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, errBodyLimit))
	return &StatusError{Op: op, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
}
