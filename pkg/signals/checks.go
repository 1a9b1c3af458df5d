package signals

import (
	"fmt"
	"net/netip"
	"net/url"
	"path"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/net/idna"
	"golang.org/x/net/publicsuffix"
)

const (
	// DefaultMaxLength is the URL length ceiling.
	DefaultMaxLength = 200

	// maxTyposquatDistance is the largest edit distance still reported as a typosquat.
	maxTyposquatDistance = 2

	// shortenerMaxLabel and shortenerMaxTLD bound the unknown shortener heuristic.
	shortenerMaxLabel = 5
	shortenerMaxTLD   = 2

	// percentDensity is the share of the URL taken by %XX escapes above which it is obfuscated.
	percentDensity = 0.3
	// minPercentEscapes avoids flagging short URLs with one or two escapes.
	minPercentEscapes = 3
)

var (
	base64Run     = regexp.MustCompile(`[A-Za-z0-9+_-]{32,}={0,2}`) //nolint: gochecknoglobals
	hexRun        = regexp.MustCompile(`[0-9a-fA-F]{32,}`)          //nolint: gochecknoglobals
	percentEscape = regexp.MustCompile(`%[0-9a-fA-F]{2}`)           //nolint: gochecknoglobals
)

func lastLabel(host string) string {
	if i := strings.LastIndexByte(host, '.'); i >= 0 {
		return host[i+1:]
	}

	return host
}

func isIPLiteral(host string) bool {
	_, err := netip.ParseAddr(host)

	return err == nil
}

func (e *Extractor) checkTLD(s *Set) {
	if isIPLiteral(s.Host) {
		return
	}

	tld := lastLabel(s.Host)
	if _, ok := e.tlds[tld]; ok {
		s.SuspiciousTLD = tld
		_, s.ExtensionTLD = extensionTLDs[tld]
	}
}

// unicodeHost returns the Unicode form of host, decoding any punycode labels.
func unicodeHost(host string) string {
	decoded, err := idna.Punycode.ToUnicode(host)
	if err != nil {
		return host
	}

	return decoded
}

func hasNonASCII(s string) bool {
	for _, r := range s {
		if r > unicode.MaxASCII {
			return true
		}
	}

	return false
}

func checkIDN(s *Set) {
	decoded := unicodeHost(s.Host)
	if strings.Contains(s.Host, "xn--") || hasNonASCII(s.Host) {
		s.Punycode = decoded
	}

	seen := map[rune]struct{}{}
	for _, r := range decoded {
		latin, ok := lookalikes[r]
		if !ok {
			continue
		}
		if _, dup := seen[r]; dup {
			continue
		}
		seen[r] = struct{}{}
		s.Homoglyphs = append(s.Homoglyphs, fmt.Sprintf("%c (U+%04X) looks like %c", r, r, latin))
	}
}

// registrableLabel returns the label directly left of the public suffix, in Unicode.
func registrableLabel(host string) string {
	etld1, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		parts := strings.Split(host, ".")
		if len(parts) < 2 {
			return unicodeHost(host)
		}
		etld1 = strings.Join(parts[len(parts)-2:], ".")
	}

	label, _, _ := strings.Cut(etld1, ".")

	return unicodeHost(label)
}

func (e *Extractor) checkTyposquat(s *Set) {
	if isIPLiteral(s.Host) {
		return
	}

	label := registrableLabel(s.Host)
	if label == "" {
		return
	}

	var best *Typosquat
	for _, brand := range e.brands {
		d := levenshtein(label, brand)
		if d == 0 {
			// the legitimate domain itself
			return
		}
		if d <= maxTyposquatDistance && (best == nil || d < best.Distance) {
			best = &Typosquat{Brand: brand, Distance: d}
		}
	}
	s.Typosquat = best
}

func (e *Extractor) checkShortener(s *Set) {
	if isIPLiteral(s.Host) {
		return
	}

	if e.shorteners != nil {
		if known, reputable := e.shorteners.Lookup(s.Host); known {
			s.Shortener = ShortenerKnown
			s.ReputableShort = reputable

			return
		}
	}

	labels := strings.Split(s.Host, ".")
	if len(labels) != 2 {
		return
	}
	if len(labels[0]) > shortenerMaxLabel || len(labels[1]) > shortenerMaxTLD {
		return
	}
	s.Shortener = ShortenerUnknown
}

func matchKeywords(lowered string) []KeywordMatch {
	var out []KeywordMatch
	for _, cat := range keywordCategories {
		for _, kw := range cat.Words {
			if strings.Contains(lowered, kw) {
				out = append(out, KeywordMatch{Category: cat.Name, Keyword: kw})
			}
		}
	}

	return out
}

func checkObfuscation(u *url.URL, raw string) []string {
	var out []string

	if escapes := len(percentEscape.FindAllStringIndex(raw, -1)); escapes >= minPercentEscapes {
		density := float64(escapes*3) / float64(len(raw))
		if density > percentDensity {
			out = append(out, fmt.Sprintf("percent-encoding density %.0f%%", density*100))
		}
	}

	tail := u.EscapedPath() + "?" + u.RawQuery + u.Opaque
	if run := hexRun.FindString(tail); run != "" {
		out = append(out, fmt.Sprintf("hex run of %d chars", len(run)))
	}
	for _, run := range base64Run.FindAllString(tail, -1) {
		if isHex(run) || !looksBase64(run) {
			continue
		}
		out = append(out, fmt.Sprintf("base64-like run of %d chars", len(run)))

		break
	}

	if u.User != nil {
		out = append(out, "credentials in authority")
	}

	return out
}

func isHex(run string) bool {
	return len(hexRun.FindString(run)) == len(run)
}

// looksBase64 requires mixed classes so long plain words and slugs are not matched.
func looksBase64(run string) bool {
	var upper, lower, digit bool
	for _, r := range run {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		}
	}

	return upper && lower && digit
}

func checkExtensions(s *Set, u *url.URL) {
	ext := strings.ToLower(path.Ext(u.Path))
	if ext == "" {
		return
	}

	if _, ok := executableExtensions[ext]; ok {
		s.Executable = ext

		return
	}
	if _, ok := archiveExtensions[ext]; !ok {
		return
	}
	s.Archive = ext

	for key, values := range u.Query() {
		if payloadQuery(key) {
			s.ArchivePayload = true

			return
		}
		for _, v := range values {
			if payloadQuery(v) {
				s.ArchivePayload = true

				return
			}
		}
	}
}

func payloadQuery(v string) bool {
	v = strings.ToLower(v)
	for _, kw := range payloadKeywords {
		if strings.Contains(v, kw) {
			return true
		}
	}

	return false
}

// levenshtein computes the edit distance between a and b over runes.
func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}

	return prev[len(rb)]
}
