package resolver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"time"

	"github.com/miekg/dns"
)

// DNSResolver resolves host names by querying a single DNS server directly.
type DNSResolver struct {
	server string
	client *dns.Client
}

var _ HostResolver = (*DNSResolver)(nil)

// NewDNSResolver creates a resolver querying server ("host:port") over UDP.
func NewDNSResolver(server string, timeout time.Duration) *DNSResolver {
	if _, _, err := net.SplitHostPort(server); err != nil {
		server = net.JoinHostPort(server, "53")
	}

	return &DNSResolver{
		server: server,
		client: &dns.Client{Net: "udp", Timeout: timeout},
	}
}

// LookupNetIP implements HostResolver. network is "ip", "ip4" or "ip6".
func (r *DNSResolver) LookupNetIP(ctx context.Context, network, host string) ([]netip.Addr, error) {
	var qtypes []uint16
	switch network {
	case "ip4":
		qtypes = []uint16{dns.TypeA}
	case "ip6":
		qtypes = []uint16{dns.TypeAAAA}
	default:
		qtypes = []uint16{dns.TypeA, dns.TypeAAAA}
	}

	var (
		addrs []netip.Addr
		errs  []error
	)
	for _, qtype := range qtypes {
		found, err := r.query(ctx, host, qtype)
		if err != nil {
			errs = append(errs, err)

			continue
		}
		addrs = append(addrs, found...)
	}

	if len(addrs) == 0 {
		if len(errs) > 0 {
			return nil, errors.Join(errs...)
		}

		return nil, &net.DNSError{Err: "no such host", Name: host, Server: r.server, IsNotFound: true}
	}

	return addrs, nil
}

func (r *DNSResolver) query(ctx context.Context, host string, qtype uint16) ([]netip.Addr, error) {
	m := new(dns.Msg)
	m.SetQuestion(dns.Fqdn(host), qtype)
	m.RecursionDesired = true

	in, _, err := r.client.ExchangeContext(ctx, m, r.server)
	if err != nil {
		return nil, fmt.Errorf("dns %s query for %q: %w", dns.TypeToString[qtype], host, err)
	}
	if in.Rcode != dns.RcodeSuccess && in.Rcode != dns.RcodeNameError {
		return nil, fmt.Errorf("dns %s query for %q: %s", dns.TypeToString[qtype], host, dns.RcodeToString[in.Rcode])
	}

	var out []netip.Addr
	for _, rr := range in.Answer {
		var ip net.IP
		switch v := rr.(type) {
		case *dns.A:
			ip = v.A
		case *dns.AAAA:
			ip = v.AAAA
		default:
			continue
		}
		if addr, ok := netip.AddrFromSlice(ip); ok {
			out = append(out, addr.Unmap())
		}
	}

	return out, nil
}
