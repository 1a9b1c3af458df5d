package reputation

import (
	"context"
	"errors"
	"net/netip"
	"qrshield/pkg/cache"
	"qrshield/pkg/domain"
	"qrshield/pkg/logger"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/publicsuffix"
	"golang.org/x/sync/errgroup"
)

// DefaultTimeout bounds one Service.Lookup.
const DefaultTimeout = 3 * time.Second

// ErrNoFeeds is returned by an empty MultiFeed.
var ErrNoFeeds = errors.New("no threat feeds configured")

// MultiFeed queries every feed concurrently and sums their matches. It fails
// only when no feed answered.
type MultiFeed []ThreatFeed

var _ ThreatFeed = MultiFeed(nil)

// Lookup implements ThreatFeed.
func (m MultiFeed) Lookup(ctx context.Context, host string) (FeedResult, error) {
	if len(m) == 0 {
		return FeedResult{}, ErrNoFeeds
	}

	results := make([]FeedResult, len(m))
	errs := make([]error, len(m))

	var g errgroup.Group
	for i, feed := range m {
		g.Go(func() error {
			results[i], errs[i] = feed.Lookup(ctx, host)

			return nil
		})
	}
	_ = g.Wait()

	out := FeedResult{Status: StatusClean}
	answered := false
	for i := range m {
		if errs[i] != nil {
			logger.Warn(ctx, "threat feed lookup failed", zap.String("host", host), zap.Error(errs[i]))

			continue
		}
		answered = true
		out.Matches += results[i].Matches
	}
	if !answered {
		return FeedResult{}, errors.Join(errs...)
	}
	if out.Matches > 0 {
		out.Status = StatusListed
	}

	return out, nil
}

// AgeRecord is the cached form of a DomainAge answer.
type AgeRecord struct {
	Days  int  `json:"days"`
	Known bool `json:"known"`
}

// CachedAge memoizes successful DomainAge answers, including unknown ones.
type CachedAge struct {
	next  DomainAge
	cache *cache.TTL[AgeRecord]
}

var _ DomainAge = (*CachedAge)(nil)

// NewCachedAge wraps next with c.
func NewCachedAge(next DomainAge, c *cache.TTL[AgeRecord]) *CachedAge {
	return &CachedAge{next: next, cache: c}
}

// Age implements DomainAge.
func (c *CachedAge) Age(ctx context.Context, domainName string) (int, bool, error) {
	key := cache.Key("age:" + domainName)
	if rec, ok := c.cache.Get(ctx, key); ok {
		return rec.Days, rec.Known, nil
	}

	days, known, err := c.next.Age(ctx, domainName)
	if err != nil {
		return 0, false, err
	}
	if err := c.cache.Set(ctx, key, AgeRecord{Days: days, Known: known}); err != nil {
		logger.Warn(ctx, "could not cache domain age", zap.String("domain", domainName), zap.Error(err))
	}

	return days, known, nil
}

// Options configures a Service. Nil collaborators are skipped.
type Options struct {
	Feed    ThreatFeed
	Age     DomainAge
	Timeout time.Duration
}

// Service consults the configured collaborators about a host.
type Service struct {
	feed    ThreatFeed
	age     DomainAge
	timeout time.Duration
}

// New creates a Service.
func New(opts Options) *Service {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}

	return &Service{feed: opts.Feed, age: opts.Age, timeout: opts.Timeout}
}

// Enabled reports whether any collaborator is configured.
func (s *Service) Enabled() bool {
	return s != nil && (s.feed != nil || s.age != nil)
}

// Lookup queries the feed and the domain age of host concurrently. It returns
// nil when nothing is configured. Collaborator errors are logged and leave the
// corresponding fields unknown.
func (s *Service) Lookup(ctx context.Context, host string) *domain.Reputation {
	if !s.Enabled() || host == "" {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	rep := &domain.Reputation{}

	var g errgroup.Group
	if s.feed != nil {
		g.Go(func() error {
			res, err := s.feed.Lookup(ctx, host)
			if err != nil {
				logger.Warn(ctx, "threat feed unavailable", zap.String("host", host), zap.Error(err))

				return nil
			}
			rep.FeedChecked = true
			rep.FeedMatches = res.Matches
			rep.FeedStatus = res.Status

			return nil
		})
	}
	if registrable, ok := RegistrableDomain(host); s.age != nil && ok {
		g.Go(func() error {
			days, known, err := s.age.Age(ctx, registrable)
			if err != nil {
				logger.Warn(ctx, "domain age unavailable", zap.String("domain", registrable), zap.Error(err))

				return nil
			}
			rep.AgeKnown = known
			rep.DomainAgeDays = days

			return nil
		})
	}
	_ = g.Wait()

	return rep
}

// RegistrableDomain returns the eTLD+1 of host. IP literals and hosts
// without a registrable part report false.
func RegistrableDomain(host string) (string, bool) {
	host = strings.TrimSuffix(strings.ToLower(strings.Trim(host, "[]")), ".")
	if host == "" {
		return "", false
	}
	if _, err := netip.ParseAddr(host); err == nil {
		return "", false
	}

	registrable, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return "", false
	}

	return registrable, true
}
