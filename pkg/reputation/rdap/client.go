// Package rdap provides a reputation.DomainAge backed by RDAP domain
// lookups, using the registration event of the domain object.
package rdap

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"qrshield/pkg/reputation"
	"qrshield/pkg/serrors"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"golang.org/x/time/rate"
)

// DefaultBaseURL is the rdap.org bootstrap redirector.
const DefaultBaseURL = "https://rdap.org"

// Client looks up domain registration dates. It is safe for concurrent use.
type Client struct {
	httpClient *http.Client
	baseURL    string
	limiter    *rate.Limiter
	now        func() time.Time
}

var _ reputation.DomainAge = (*Client)(nil)

// Options configures a Client.
type Options struct {
	// HTTPClient must follow redirects, rdap.org answers with one to the registry.
	HTTPClient *http.Client
	// BaseURL defaults to DefaultBaseURL.
	BaseURL string
	// Limiter paces outbound requests. Nil means unpaced.
	Limiter *rate.Limiter
	// Now defaults to time.Now.
	Now func() time.Time
}

// New creates a Client.
func New(opts Options) *Client {
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Client{
		httpClient: opts.HTTPClient,
		baseURL:    strings.TrimSuffix(opts.BaseURL, "/"),
		limiter:    opts.Limiter,
		now:        opts.Now,
	}
}

// Age implements reputation.DomainAge. Domains the registry does not know
// and records without a registration event are reported as unknown.
func (c *Client) Age(ctx context.Context, domain string) (int, bool, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return 0, false, serrors.Wrap(serrors.ErrRateLimited, err, "rdap request budget exhausted")
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/domain/"+url.PathEscape(domain), nil)
	if err != nil {
		return 0, false, fmt.Errorf("could not create request: %w", err)
	}
	req.Header.Set("Accept", "application/rdap+json, application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, false, fmt.Errorf("could not send request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	b, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return 0, false, fmt.Errorf("could not read response body: %w", err)
	}
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return 0, false, nil
	case resp.StatusCode == http.StatusTooManyRequests:
		return 0, false, serrors.With(serrors.ErrRateLimited, "rate limited: %s", strings.TrimSpace(string(b)))
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return 0, false, fmt.Errorf("domain lookup failed: %d %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}

	registered, err := registrationDate(b)
	if err != nil {
		return 0, false, fmt.Errorf("could not decode response: %w", err)
	}
	if registered.IsZero() {
		return 0, false, nil
	}

	days := int(c.now().Sub(registered).Hours() / 24)
	if days < 0 {
		days = 0
	}

	return days, true, nil
}

// registrationDate returns the date of the "registration" event, or the zero
// time when there is none.
func registrationDate(b []byte) (time.Time, error) {
	var registered time.Time

	d := jx.DecodeBytes(b)
	err := d.Obj(func(d *jx.Decoder, key string) error {
		if key != "events" || d.Next() != jx.Array {
			return d.Skip()
		}

		return d.Arr(func(d *jx.Decoder) error {
			var action, date string
			if err := d.Obj(func(d *jx.Decoder, key string) error {
				var err error
				switch key {
				case "eventAction":
					action, err = d.Str()
				case "eventDate":
					date, err = d.Str()
				default:
					err = d.Skip()
				}

				return err
			}); err != nil {
				return errors.Wrap(err, "event")
			}

			if action != "registration" || date == "" {
				return nil
			}
			t, err := time.Parse(time.RFC3339, date)
			if err != nil {
				return errors.Wrapf(err, "registration date %q", date)
			}
			registered = t

			return nil
		})
	})
	if err != nil {
		return time.Time{}, err
	}

	return registered, nil
}
