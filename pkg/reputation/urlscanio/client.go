// Package urlscanio provides a reputation.ThreatFeed backed by the search API
// of urlscan.io: a host matches when earlier public scans of it were judged
// malicious.
package urlscanio

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"qrshield/pkg/reputation"
	"qrshield/pkg/serrors"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// DefaultBaseURL is the public urlscan.io API.
const DefaultBaseURL = "https://urlscan.io/api/v1"

// Client talks to the urlscan.io REST API. It is safe for concurrent use.
type Client struct {
	httpClient *http.Client  // httpClient performs HTTP requests to urlscan.io
	baseURL    string        // baseURL is the API root without a trailing slash
	token      string        // token is the API key for urlscan.io
	limiter    *rate.Limiter // limiter paces outbound requests, may be nil
}

// Ensure Client conforms to the reputation.ThreatFeed interface at compile time.
var _ reputation.ThreatFeed = (*Client)(nil)

// Options configures a Client.
type Options struct {
	HTTPClient *http.Client
	// BaseURL defaults to DefaultBaseURL.
	BaseURL string
	// Token is the urlscan.io API key.
	Token string
	// Limiter paces outbound requests. Nil means unpaced.
	Limiter *rate.Limiter
}

// New constructs a Client.
func New(opts Options) *Client {
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}

	return &Client{
		httpClient: opts.HTTPClient,
		baseURL:    strings.TrimSuffix(opts.BaseURL, "/"),
		token:      opts.Token,
		limiter:    opts.Limiter,
	}
}

// ParseRateLimit extracts urlscan.io rate‑limit information from the HTTP
// response headers and converts it into a reputation.RateLimitStatus.
func ParseRateLimit(h http.Header) (reputation.RateLimitStatus, error) {
	atoi := func(s string) int {
		if s == "" {
			return 0
		}
		if n, err := strconv.Atoi(s); err == nil {
			return n
		}

		return 0
	}
	limit := atoi(h.Get("X-Rate-Limit-Limit"))
	remaining := atoi(h.Get("X-Rate-Limit-Remaining"))

	resetStr := h.Get("X-Rate-Limit-Reset")
	resetAt, err := time.Parse(time.RFC3339Nano, resetStr)
	if err != nil {
		return reputation.RateLimitStatus{}, fmt.Errorf("could not parse reset at: %w", err)
	}

	return reputation.RateLimitStatus{Limit: limit, Remaining: remaining, ResetAt: resetAt}, nil
}

// SearchResult is the part of a search hit the feed uses.
type SearchResult struct {
	ID   string `json:"_id"`
	Page struct {
		URL    string `json:"url"`
		Domain string `json:"domain"`
	} `json:"page"`
}

// Search runs a search query and returns its hits, the total hit count and
// the rate-limit status reported with the response.
func (c *Client) Search(ctx context.Context, query string, size int) ([]SearchResult, int, reputation.RateLimitStatus, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, 0, reputation.RateLimitStatus{}, serrors.Wrap(serrors.ErrRateLimited, err, "urlscan.io request budget exhausted")
		}
	}

	// https://docs.urlscan.io/apis/urlscan-openapi/search/search
	q := url.Values{"q": {query}, "size": {strconv.Itoa(size)}}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/search/?"+q.Encode(), nil)
	if err != nil {
		return nil, 0, reputation.RateLimitStatus{}, fmt.Errorf("could not create request: %w", err)
	}
	if c.token != "" {
		req.Header.Set("Api-Key", c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, reputation.RateLimitStatus{}, fmt.Errorf("could not send request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	// quota headers are informational, a missing reset leaves rl zero
	rl, _ := ParseRateLimit(resp.Header)
	b, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, 0, rl, fmt.Errorf("could not read response body: %w", err)
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, 0, rl, serrors.RateLimited(rl.ResetAt, "rate limited: %s", strings.TrimSpace(string(b)))
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, 0, rl, fmt.Errorf("search failed: %s", strings.TrimSpace(string(b)))
	}

	// successful
	var sr struct {
		Results []SearchResult `json:"results"`
		Total   int            `json:"total"`
	}
	if err := json.Unmarshal(b, &sr); err != nil {
		return nil, 0, rl, fmt.Errorf("could not decode response: %w", err)
	}

	return sr.Results, sr.Total, rl, nil
}

// Lookup implements reputation.ThreatFeed. Matches is the number of past
// scans of host that urlscan.io flagged as malicious.
func (c *Client) Lookup(ctx context.Context, host string) (reputation.FeedResult, error) {
	query := fmt.Sprintf("page.domain:%q AND verdicts.malicious:true", host)

	results, total, _, err := c.Search(ctx, query, 10)
	if err != nil {
		return reputation.FeedResult{}, err
	}
	if total < len(results) {
		total = len(results)
	}

	if total == 0 {
		return reputation.FeedResult{Status: reputation.StatusClean}, nil
	}

	return reputation.FeedResult{Matches: total, Status: reputation.StatusListed}, nil
}
