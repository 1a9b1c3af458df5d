// Package urlhaus provides a reputation.ThreatFeed backed by the abuse.ch
// URLhaus host API.
package urlhaus

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"qrshield/pkg/reputation"
	"qrshield/pkg/serrors"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"golang.org/x/time/rate"
)

// DefaultBaseURL is the public URLhaus API.
const DefaultBaseURL = "https://urlhaus-api.abuse.ch/v1"

// Client queries URLhaus. It is safe for concurrent use.
type Client struct {
	httpClient *http.Client
	baseURL    string
	authKey    string
	limiter    *rate.Limiter
}

var _ reputation.ThreatFeed = (*Client)(nil)

// Options configures a Client.
type Options struct {
	HTTPClient *http.Client
	// BaseURL defaults to DefaultBaseURL.
	BaseURL string
	// AuthKey is sent as the Auth-Key header.
	AuthKey string
	// Limiter paces outbound requests. Nil means unpaced.
	Limiter *rate.Limiter
}

// New creates a Client.
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
		authKey:    opts.AuthKey,
		limiter:    opts.Limiter,
	}
}

// Lookup implements reputation.ThreatFeed. Only URLs URLhaus still reports
// online count as matches.
func (c *Client) Lookup(ctx context.Context, host string) (reputation.FeedResult, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return reputation.FeedResult{}, serrors.Wrap(serrors.ErrRateLimited, err, "urlhaus request budget exhausted")
		}
	}

	// https://urlhaus-api.abuse.ch/#hostinfo
	form := url.Values{"host": {host}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/host/", strings.NewReader(form.Encode()))
	if err != nil {
		return reputation.FeedResult{}, fmt.Errorf("could not create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if c.authKey != "" {
		req.Header.Set("Auth-Key", c.authKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return reputation.FeedResult{}, fmt.Errorf("could not send request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	b, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return reputation.FeedResult{}, fmt.Errorf("could not read response body: %w", err)
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		return reputation.FeedResult{}, serrors.With(serrors.ErrRateLimited, "rate limited: %s", strings.TrimSpace(string(b)))
	}
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return reputation.FeedResult{}, serrors.With(serrors.ErrUnauthorized, "urlhaus rejected the auth key")
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return reputation.FeedResult{}, fmt.Errorf("host lookup failed: %s", strings.TrimSpace(string(b)))
	}

	hr, err := decodeHostResponse(b)
	if err != nil {
		return reputation.FeedResult{}, fmt.Errorf("could not decode response: %w", err)
	}

	switch hr.queryStatus {
	case "no_results":
		return reputation.FeedResult{Status: reputation.StatusClean}, nil
	case "ok":
	default:
		return reputation.FeedResult{}, fmt.Errorf("host lookup failed: query_status %q", hr.queryStatus)
	}

	out := reputation.FeedResult{Status: reputation.StatusClean}
	for _, status := range hr.urlStatuses {
		if status == "online" {
			out.Matches++
		}
	}
	if out.Matches > 0 {
		out.Status = reputation.StatusListed
	}

	return out, nil
}

type hostResponse struct {
	queryStatus string
	urlStatuses []string
}

func decodeHostResponse(b []byte) (hostResponse, error) {
	var out hostResponse

	d := jx.DecodeBytes(b)
	err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "query_status":
			v, err := d.Str()
			if err != nil {
				return errors.Wrap(err, "query_status")
			}
			out.queryStatus = v

			return nil
		case "urls":
			if d.Next() != jx.Array {
				return d.Skip()
			}

			return d.Arr(func(d *jx.Decoder) error {
				return d.Obj(func(d *jx.Decoder, key string) error {
					if key != "url_status" {
						return d.Skip()
					}
					v, err := d.Str()
					if err != nil {
						return errors.Wrap(err, "url_status")
					}
					out.urlStatuses = append(out.urlStatuses, v)

					return nil
				})
			})
		default:
			return d.Skip()
		}
	})
	if err != nil {
		return hostResponse{}, err
	}

	return out, nil
}
