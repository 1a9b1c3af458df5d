package resolver

import (
	"fmt"
	"net"
	"net/url"
	"strings"
	"unicode"

	"golang.org/x/net/idna"
)

// NormalizeURL returns the canonical form of a URL used for loop detection,
// cache keys and as the chain entry:
//   - Lower-case the scheme and host, convert IDN hosts to their ASCII form
//   - Ensure path is present; empty path becomes "/"
//   - Drop default ports (http:80, https:443), keep non-default ports
//   - Remove the fragment
//
// Path and query are kept byte for byte since the origin may treat "/a" and
// "/a/" or reordered parameters differently.
func NormalizeURL(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", fmt.Errorf("could not parse URL: %w", err)
	}
	if !u.IsAbs() {
		return "", fmt.Errorf("could not parse URL: %q is not absolute", raw)
	}

	// lowercase scheme
	u.Scheme = strings.ToLower(u.Scheme)

	if u.Opaque == "" && u.Host != "" {
		// if no path, make it "/"
		if u.Path == "" {
			u.Path = "/"
		}

		host, port := u.Hostname(), u.Port()
		host = asciiHost(strings.ToLower(host))
		if (u.Scheme == "http" && port == "80") || (u.Scheme == "https" && port == "443") {
			port = ""
		}
		switch {
		case port != "":
			u.Host = net.JoinHostPort(host, port)
		case strings.Contains(host, ":"):
			u.Host = "[" + host + "]"
		default:
			u.Host = host
		}
	}

	// remove fragment
	u.Fragment = ""
	u.RawFragment = ""

	return u.String(), nil
}

func asciiHost(host string) string {
	for _, r := range host {
		if r > unicode.MaxASCII {
			if ascii, err := idna.Lookup.ToASCII(host); err == nil {
				return ascii
			}

			return host
		}
	}

	return host
}
