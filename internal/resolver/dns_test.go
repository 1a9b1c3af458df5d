package resolver_test

import (
	"context"
	"errors"
	"net"
	"net/netip"
	"qrshield/internal/resolver"
	"testing"
	"time"

	"github.com/miekg/dns"
	"github.com/stretchr/testify/require"
)

func startDNS(t *testing.T, records map[string]string) string {
	t.Helper()

	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)

	started := make(chan struct{})
	server := &dns.Server{
		PacketConn:        pc,
		NotifyStartedFunc: func() { close(started) },
		Handler: dns.HandlerFunc(func(w dns.ResponseWriter, r *dns.Msg) {
			m := new(dns.Msg)
			m.SetReply(r)

			q := r.Question[0]
			value, ok := records[q.Name]
			if !ok {
				m.SetRcode(r, dns.RcodeNameError)
				_ = w.WriteMsg(m)

				return
			}

			addr := netip.MustParseAddr(value)
			hdr := dns.RR_Header{Name: q.Name, Class: dns.ClassINET, Ttl: 60}
			switch {
			case q.Qtype == dns.TypeA && addr.Is4():
				hdr.Rrtype = dns.TypeA
				m.Answer = append(m.Answer, &dns.A{Hdr: hdr, A: addr.AsSlice()})
			case q.Qtype == dns.TypeAAAA && addr.Is6():
				hdr.Rrtype = dns.TypeAAAA
				m.Answer = append(m.Answer, &dns.AAAA{Hdr: hdr, AAAA: addr.AsSlice()})
			}
			_ = w.WriteMsg(m)
		}),
	}

	go func() {
		_ = server.ActivateAndServe()
	}()
	t.Cleanup(func() {
		_ = server.Shutdown()
	})

	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("dns server did not start")
	}

	return pc.LocalAddr().String()
}

func TestDNSResolver_LookupNetIP(t *testing.T) {
	ctx := context.Background()
	addr := startDNS(t, map[string]string{
		"public.example.":   "93.184.216.34",
		"internal.example.": "10.0.0.1",
		"v6.example.":       "2606:4700::1111",
	})
	r := resolver.NewDNSResolver(addr, time.Second)

	addrs, err := r.LookupNetIP(ctx, "ip", "public.example")
	require.NoError(t, err)
	require.Equal(t, []netip.Addr{netip.MustParseAddr("93.184.216.34")}, addrs)

	addrs, err = r.LookupNetIP(ctx, "ip6", "v6.example")
	require.NoError(t, err)
	require.Equal(t, []netip.Addr{netip.MustParseAddr("2606:4700::1111")}, addrs)

	_, err = r.LookupNetIP(ctx, "ip", "missing.example")
	var dnsErr *net.DNSError
	require.True(t, errors.As(err, &dnsErr))
	require.True(t, dnsErr.IsNotFound)

	g := resolver.NewGuard(r)
	require.NoError(t, g.Check(ctx, "public.example"))
	require.ErrorIs(t, g.Check(ctx, "internal.example"), resolver.ErrBlockedAddress)
}

func TestNewDNSResolver_DefaultPort(t *testing.T) {
	// nothing listens on port 53 of this address, the lookup fails fast on timeout
	r := resolver.NewDNSResolver("127.0.0.1", 50*time.Millisecond)

	_, err := r.LookupNetIP(context.Background(), "ip4", "public.example")
	require.Error(t, err)
}
