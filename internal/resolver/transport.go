package resolver

import (
	"net"
	"net/http"
	"time"
)

// Transport issues a single HTTP request without following redirects.
// *http.Client satisfies it when configured like NewHTTPClient.
type Transport interface {
	Do(req *http.Request) (*http.Response, error)
}

// ClientOptions configures NewHTTPClient.
type ClientOptions struct {
	// DialTimeout bounds TCP connection setup.
	DialTimeout time.Duration
	// TLSHandshakeTimeout bounds the TLS handshake.
	TLSHandshakeTimeout time.Duration
	// MaxIdleConnsPerHost bounds pooled connections per destination.
	MaxIdleConnsPerHost int
}

// NewHTTPClient returns a client that never follows redirects, ignores proxy
// settings and refuses to dial blocked addresses.
func NewHTTPClient(opts ClientOptions) *http.Client {
	dialer := &net.Dialer{
		Timeout:   opts.DialTimeout,
		KeepAlive: 30 * time.Second,
		Control:   dialControl,
	}

	transport := &http.Transport{
		Proxy:               nil,
		DialContext:         dialer.DialContext,
		TLSHandshakeTimeout: opts.TLSHandshakeTimeout,
		MaxIdleConnsPerHost: opts.MaxIdleConnsPerHost,
		IdleConnTimeout:     90 * time.Second,
		ForceAttemptHTTP2:   true,
	}

	return &http.Client{
		Transport: transport,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			// redirects are followed hop by hop by the resolver
			return http.ErrUseLastResponse
		},
	}
}
