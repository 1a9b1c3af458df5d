package resolver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"strings"
	"syscall"
)

var (
	// ErrBlockedHost is returned for host names that always point at the local machine.
	ErrBlockedHost = errors.New("blocked host")
	// ErrBlockedAddress is returned when a host is or resolves to a non-public address.
	ErrBlockedAddress = errors.New("blocked address")
)

// blockedPrefixes lists special-purpose ranges not covered by the netip predicates.
var blockedPrefixes = []netip.Prefix{ //nolint: gochecknoglobals
	netip.MustParsePrefix("0.0.0.0/8"),
	netip.MustParsePrefix("100.64.0.0/10"),
	netip.MustParsePrefix("192.0.0.0/24"),
	netip.MustParsePrefix("198.18.0.0/15"),
	netip.MustParsePrefix("240.0.0.0/4"),
	netip.MustParsePrefix("64:ff9b::/96"),
}

// HostResolver resolves host names to addresses. *net.Resolver satisfies it.
type HostResolver interface {
	LookupNetIP(ctx context.Context, network, host string) ([]netip.Addr, error)
}

// IsBlocked reports whether addr is private, loopback, link-local,
// unspecified, multicast or otherwise not publicly routable.
func IsBlocked(addr netip.Addr) bool {
	addr = addr.Unmap()
	if !addr.IsValid() ||
		addr.IsLoopback() ||
		addr.IsPrivate() ||
		addr.IsLinkLocalUnicast() ||
		addr.IsLinkLocalMulticast() ||
		addr.IsInterfaceLocalMulticast() ||
		addr.IsMulticast() ||
		addr.IsUnspecified() {
		return true
	}

	for _, p := range blockedPrefixes {
		if p.Contains(addr) {
			return true
		}
	}

	return false
}

// Guard rejects hosts that are or resolve to blocked addresses.
type Guard struct {
	resolver HostResolver
}

// NewGuard creates a Guard. A nil resolver uses net.DefaultResolver.
func NewGuard(resolver HostResolver) *Guard {
	if resolver == nil {
		resolver = net.DefaultResolver
	}

	return &Guard{resolver: resolver}
}

// Check returns nil when every address of host is public.
func (g *Guard) Check(ctx context.Context, host string) error {
	host = strings.TrimSuffix(strings.ToLower(host), ".")
	if host == "" || host == "localhost" || strings.HasSuffix(host, ".localhost") {
		return fmt.Errorf("%w: %q", ErrBlockedHost, host)
	}

	if addr, err := netip.ParseAddr(host); err == nil {
		if IsBlocked(addr) {
			return fmt.Errorf("%w: %s", ErrBlockedAddress, addr)
		}

		return nil
	}

	addrs, err := g.resolver.LookupNetIP(ctx, "ip", host)
	if err != nil {
		return fmt.Errorf("could not resolve %q: %w", host, err)
	}
	if len(addrs) == 0 {
		return fmt.Errorf("could not resolve %q: no addresses", host)
	}
	for _, addr := range addrs {
		if IsBlocked(addr) {
			return fmt.Errorf("%w: %s resolves to %s", ErrBlockedAddress, host, addr)
		}
	}

	return nil
}

// dialControl re-checks the address actually dialed, so a DNS answer that
// changed after Check cannot reach a blocked address.
func dialControl(_, address string, _ syscall.RawConn) error {
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return fmt.Errorf("%w: %q", ErrBlockedAddress, address)
	}

	addr, err := netip.ParseAddr(host)
	if err != nil || IsBlocked(addr) {
		return fmt.Errorf("%w: %s", ErrBlockedAddress, host)
	}

	return nil
}
