// Package signals computes structural and lexical observations about a URL.
//
// Extraction is pure and synchronous: it performs no I/O, never mutates its
// input and always terminates. Lookups that depend on externally refreshed
// data (known shorteners) are injected through ShortenerList.
package signals

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"qrshield/pkg/domain"
)

// Signal names, in check order.
const (
	NameHTTPS           = "is_https"
	NameDangerousScheme = "dangerous_scheme"
	NameSuspiciousTLD   = "suspicious_tld"
	NameExtensionTLD    = "extension_tld"
	NamePunycode        = "punycode"
	NameHomograph       = "homograph"
	NameTyposquat       = "typosquat"
	NameShortener       = "shortener"
	NameKeywords        = "suspicious_keywords"
	NameObfuscation     = "obfuscation"
	NameLongURL         = "long_url"
	NameExecutable      = "executable"
	NameArchive         = "archive"
	NameIPHost          = "ip_host"
)

// ErrInvalidURL is returned by Parse for input that is not an absolute URL.
var ErrInvalidURL = errors.New("invalid URL")

// ShortenerKind classifies a host with respect to URL shortening services.
type ShortenerKind string

const (
	// ShortenerNone means the host does not look like a shortener.
	ShortenerNone ShortenerKind = "none"
	// ShortenerKnown means the host is on the shortener list.
	ShortenerKnown ShortenerKind = "known"
	// ShortenerUnknown means the host looks like a shortener but is not listed.
	ShortenerUnknown ShortenerKind = "unknown"
)

// ShortenerList answers whether a host belongs to a known shortening service.
// Subdomains of a listed domain match. Reputable services are reported separately.
type ShortenerList interface {
	Lookup(host string) (known bool, reputable bool)
}

// Typosquat describes the brand a registrable label is suspiciously close to.
type Typosquat struct {
	Brand    string
	Distance int
}

// KeywordMatch is one suspicious keyword found in the URL.
type KeywordMatch struct {
	Category string
	Keyword  string
}

// Set is the fixed set of observations computed for one URL. The zero value
// of each field means the check did not trigger.
type Set struct {
	URL    string
	Scheme string
	Host   string

	HTTPS           bool
	DangerousScheme bool
	SuspiciousTLD   string
	ExtensionTLD    bool
	Punycode        string
	Homoglyphs      []string
	Typosquat       *Typosquat
	Shortener       ShortenerKind
	ReputableShort  bool
	Keywords        []KeywordMatch
	Obfuscation     []string
	Length          int
	LongURL         bool
	Executable      string
	Archive         string
	ArchivePayload  bool
	IPHost          bool
}

// KeywordCategories returns the distinct categories that matched, in category order.
func (s Set) KeywordCategories() []string {
	var out []string
	for _, m := range s.Keywords {
		if len(out) == 0 || out[len(out)-1] != m.Category {
			out = append(out, m.Category)
		}
	}

	return out
}

// List returns the triggered signals in check order. is_https is always
// present since both of its values carry meaning.
func (s Set) List() []domain.Signal {
	out := []domain.Signal{{Name: NameHTTPS, Value: strconv.FormatBool(s.HTTPS), Detail: s.Scheme}}

	if s.DangerousScheme {
		out = append(out, domain.Signal{Name: NameDangerousScheme, Value: "true", Detail: s.Scheme + ":"})
	}
	if s.SuspiciousTLD != "" {
		out = append(out, domain.Signal{Name: NameSuspiciousTLD, Value: "true", Detail: "." + s.SuspiciousTLD})
	}
	if s.ExtensionTLD {
		out = append(out, domain.Signal{Name: NameExtensionTLD, Value: "true", Detail: "." + s.SuspiciousTLD})
	}
	if s.Punycode != "" {
		out = append(out, domain.Signal{Name: NamePunycode, Value: "true", Detail: s.Punycode})
	}
	if len(s.Homoglyphs) > 0 {
		out = append(out, domain.Signal{Name: NameHomograph, Value: "true", Detail: strings.Join(s.Homoglyphs, ", ")})
	}
	if s.Typosquat != nil {
		out = append(out, domain.Signal{
			Name:   NameTyposquat,
			Value:  "true",
			Detail: fmt.Sprintf("%s (distance %d)", s.Typosquat.Brand, s.Typosquat.Distance),
		})
	}
	if s.Shortener != ShortenerNone && s.Shortener != "" {
		detail := s.Host
		if s.ReputableShort {
			detail += " (reputable)"
		}
		out = append(out, domain.Signal{Name: NameShortener, Value: string(s.Shortener), Detail: detail})
	}
	if len(s.Keywords) > 0 {
		words := make([]string, 0, len(s.Keywords))
		for _, m := range s.Keywords {
			words = append(words, m.Category+":"+m.Keyword)
		}
		out = append(out, domain.Signal{Name: NameKeywords, Value: strings.Join(s.KeywordCategories(), ","), Detail: strings.Join(words, ", ")})
	}
	if len(s.Obfuscation) > 0 {
		out = append(out, domain.Signal{Name: NameObfuscation, Value: "true", Detail: strings.Join(s.Obfuscation, ", ")})
	}
	if s.LongURL {
		out = append(out, domain.Signal{Name: NameLongURL, Value: "true", Detail: strconv.Itoa(s.Length) + " chars"})
	}
	if s.Executable != "" {
		out = append(out, domain.Signal{Name: NameExecutable, Value: "true", Detail: s.Executable})
	}
	if s.Archive != "" {
		value := "true"
		if s.ArchivePayload {
			value = "payload"
		}
		out = append(out, domain.Signal{Name: NameArchive, Value: value, Detail: s.Archive})
	}
	if s.IPHost {
		out = append(out, domain.Signal{Name: NameIPHost, Value: "true", Detail: s.Host})
	}

	return out
}

// Options configures an Extractor. Empty lists fall back to the built-in defaults.
type Options struct {
	// SuspiciousTLDs is the TLD deny-list, without leading dots.
	SuspiciousTLDs []string
	// Brands are registrable labels checked for typosquatting, e.g. "paypal".
	Brands []string
	// Shorteners is the known shortener lookup. Nil disables known matching.
	Shorteners ShortenerList
	// MaxLength is the URL length ceiling. Zero means DefaultMaxLength.
	MaxLength int
}

// Extractor computes signal sets. It is safe for concurrent use.
type Extractor struct {
	tlds       map[string]struct{}
	brands     []string
	shorteners ShortenerList
	maxLength  int
}

// New creates an Extractor.
func New(opts Options) *Extractor {
	tlds := opts.SuspiciousTLDs
	if len(tlds) == 0 {
		tlds = DefaultSuspiciousTLDs
	}
	brands := opts.Brands
	if len(brands) == 0 {
		brands = DefaultBrands
	}
	maxLength := opts.MaxLength
	if maxLength <= 0 {
		maxLength = DefaultMaxLength
	}

	set := make(map[string]struct{}, len(tlds))
	for _, t := range tlds {
		set[strings.TrimPrefix(strings.ToLower(strings.TrimSpace(t)), ".")] = struct{}{}
	}
	lowered := make([]string, 0, len(brands))
	for _, b := range brands {
		lowered = append(lowered, strings.ToLower(strings.TrimSpace(b)))
	}

	return &Extractor{
		tlds:       set,
		brands:     lowered,
		shorteners: opts.Shorteners,
		maxLength:  maxLength,
	}
}

// Parse validates raw as an absolute URL. http(s) URLs must carry a host.
func Parse(raw string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("%w: empty input", ErrInvalidURL)
	}

	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidURL, err)
	}
	if !u.IsAbs() {
		return nil, fmt.Errorf("%w: not absolute", ErrInvalidURL)
	}
	if (u.Scheme == "http" || u.Scheme == "https") && u.Hostname() == "" {
		return nil, fmt.Errorf("%w: missing host", ErrInvalidURL)
	}

	return u, nil
}

// IsDangerousScheme reports whether scheme is anything other than http or https.
func IsDangerousScheme(scheme string) bool {
	scheme = strings.ToLower(scheme)

	return scheme != "http" && scheme != "https"
}

// Extract runs every check against u.
func (e *Extractor) Extract(u *url.URL) Set {
	raw := u.String()
	host := strings.TrimSuffix(strings.ToLower(u.Hostname()), ".")

	s := Set{
		URL:       raw,
		Scheme:    strings.ToLower(u.Scheme),
		Host:      host,
		Shortener: ShortenerNone,
		Length:    len(raw),
	}

	s.HTTPS = s.Scheme == "https"
	s.DangerousScheme = IsDangerousScheme(s.Scheme)

	if host != "" {
		e.checkTLD(&s)
		checkIDN(&s)
		e.checkTyposquat(&s)
		e.checkShortener(&s)
		s.IPHost = isIPLiteral(host)
	}

	s.Keywords = matchKeywords(strings.ToLower(raw))
	s.Obfuscation = checkObfuscation(u, raw)
	s.LongURL = s.Length > e.maxLength
	checkExtensions(&s, u)

	return s
}
