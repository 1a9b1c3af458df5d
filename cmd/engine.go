package main

import (
	"context"
	"net/http"
	"qrshield/internal/analyzer"
	"qrshield/internal/config"
	"qrshield/internal/resolver"
	"qrshield/pkg/cache"
	"qrshield/pkg/domain"
	"qrshield/pkg/logger"
	"qrshield/pkg/reputation"
	"qrshield/pkg/reputation/lists"
	"qrshield/pkg/reputation/rdap"
	"qrshield/pkg/reputation/urlhaus"
	"qrshield/pkg/reputation/urlscanio"
	"qrshield/pkg/signals"
	"qrshield/pkg/storage"
	"qrshield/pkg/storage/memory"
	"qrshield/pkg/storage/postgres"
	"qrshield/pkg/storage/redis"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	expansionsNamespace = "expansions"
	domainAgeNamespace  = "domain_age"
)

// engine bundles the analysis pipeline shared by the serve and check commands.
type engine struct {
	Analyzer   analyzer.Analyzer
	Shorteners *lists.File
	close      []func()
}

// Close releases the cache backend connections.
func (e *engine) Close() {
	for i := len(e.close) - 1; i >= 0; i-- {
		e.close[i]()
	}
}

// cacheStores opens the configured cache backend. A durable backend that
// cannot be reached degrades to process memory.
func cacheStores(ctx context.Context, cfg *config.Config) (storage.Store, storage.Store, func()) {
	switch cfg.Cache.Backend {
	case "redis":
		client, err := redis.Open(ctx, redis.Options{
			Addr:         cfg.Redis.Addr,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			DialTimeout:  cfg.Redis.DialTimeout,
			ReadTimeout:  cfg.Redis.ReadTimeout,
			WriteTimeout: cfg.Redis.WriteTimeout,
		})
		if err != nil {
			logger.Warn(ctx, "redis cache unavailable, falling back to memory", zap.Error(err))

			break
		}

		return redis.New(client, expansionsNamespace), redis.New(client, domainAgeNamespace), func() {
			logger.Info(ctx, "closing redis client...")
			if err := client.Close(); err != nil {
				logger.Warn(ctx, "could not close redis client", zap.Error(err))
			}
		}
	case "postgres":
		pgsql, err := postgres.New(ctx, postgresOptions(cfg))
		if err != nil {
			logger.Warn(ctx, "postgres cache unavailable, falling back to memory", zap.Error(err))

			break
		}

		return pgsql.Namespace(expansionsNamespace), pgsql.Namespace(domainAgeNamespace), func() {
			logger.Info(ctx, "closing postgres client...")
			_ = pgsql.Close()
		}
	case "memory", "":
	default:
		logger.Warn(ctx, "unknown cache backend, using memory", zap.String("backend", cfg.Cache.Backend))
	}

	return memory.New(), memory.New(), func() {}
}

// shortenerList loads the configured shortener list, or the built-in one.
func shortenerList(ctx context.Context, cfg *config.Config) *lists.File {
	if cfg.Lists.ShortenersPath == "" {
		return lists.Default()
	}

	f, err := lists.Load(cfg.Lists.ShortenersPath)
	if err != nil {
		logger.Warn(ctx, "could not load shortener list, using built-in list",
			zap.String("path", cfg.Lists.ShortenersPath), zap.Error(err))

		return lists.Default()
	}
	logger.Info(ctx, "loaded shortener list", zap.String("path", cfg.Lists.ShortenersPath), zap.Int("hosts", f.Len()))

	return f
}

// reloadLists re-reads f every interval until ctx is done.
func reloadLists(ctx context.Context, f *lists.File, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := f.Reload(); err != nil {
				logger.Warn(ctx, "could not reload shortener list", zap.Error(err))

				continue
			}
			logger.Debug(ctx, "reloaded shortener list", zap.Int("hosts", f.Len()))
		}
	}
}

func limiter(rps float64) *rate.Limiter {
	if rps <= 0 {
		return nil
	}

	return rate.NewLimiter(rate.Limit(rps), 1)
}

// newReputation wires the enabled collaborators. It returns nil when none is enabled.
func newReputation(cfg *config.Config, ageStore storage.Store) *reputation.Service {
	httpClient := &http.Client{Timeout: cfg.Reputation.Timeout}

	var feeds reputation.MultiFeed
	if cfg.Reputation.URLhaus.Enabled {
		feeds = append(feeds, urlhaus.New(urlhaus.Options{
			HTTPClient: httpClient,
			BaseURL:    cfg.Reputation.URLhaus.BaseURL,
			AuthKey:    cfg.Reputation.URLhaus.AuthKey,
			Limiter:    limiter(cfg.Reputation.URLhaus.RPS),
		}))
	}
	if cfg.Reputation.URLScan.Enabled {
		feeds = append(feeds, urlscanio.New(urlscanio.Options{
			HTTPClient: httpClient,
			BaseURL:    cfg.Reputation.URLScan.BaseURL,
			Token:      cfg.Reputation.URLScan.Token,
			Limiter:    limiter(cfg.Reputation.URLScan.RPS),
		}))
	}

	opts := reputation.Options{Timeout: cfg.Reputation.Timeout}
	if len(feeds) > 0 {
		opts.Feed = feeds
	}
	if cfg.Reputation.RDAP.Enabled {
		ages := cache.New[reputation.AgeRecord](ageStore, cache.Options{
			Name:       domainAgeNamespace,
			MaxAge:     cfg.Cache.DomainAgeMaxAge,
			MaxEntries: cfg.Cache.MaxEntries,
		})
		opts.Age = reputation.NewCachedAge(rdap.New(rdap.Options{
			HTTPClient: httpClient,
			BaseURL:    cfg.Reputation.RDAP.BaseURL,
			Limiter:    limiter(cfg.Reputation.RDAP.RPS),
		}), ages)
	}

	svc := reputation.New(opts)
	if !svc.Enabled() {
		return nil
	}

	return svc
}

// newEngine builds the extractor, resolver, reputation collaborators and analyzer.
func newEngine(ctx context.Context, cfg *config.Config, mp metric.MeterProvider) (*engine, error) {
	expansionStore, ageStore, closeStores := cacheStores(ctx, cfg)
	e := &engine{close: []func(){closeStores}}

	e.Shorteners = shortenerList(ctx, cfg)
	extractor := signals.New(signals.Options{
		Shorteners: e.Shorteners,
	})

	var hostResolver resolver.HostResolver
	if cfg.Resolver.DNSServer != "" {
		hostResolver = resolver.NewDNSResolver(cfg.Resolver.DNSServer, cfg.Resolver.DNSTimeout)
	}
	res, err := resolver.New(resolver.Options{
		Transport: resolver.NewHTTPClient(resolver.ClientOptions{
			DialTimeout:         cfg.Resolver.HopTimeout,
			TLSHandshakeTimeout: cfg.Resolver.HopTimeout,
			MaxIdleConnsPerHost: cfg.Resolver.MaxIdleConnsPerHost,
		}),
		HostResolver: hostResolver,
		Cache: cache.New[domain.RedirectExpansion](expansionStore, cache.Options{
			Name:       expansionsNamespace,
			MaxAge:     cfg.Cache.MaxAge,
			MaxEntries: cfg.Cache.MaxEntries,
		}),
		MaxHops:       cfg.Resolver.MaxHops,
		Deadline:      cfg.Resolver.Deadline,
		HopTimeout:    cfg.Resolver.HopTimeout,
		UserAgent:     cfg.Resolver.UserAgent,
		MeterProvider: mp,
	})
	if err != nil {
		e.Close()

		return nil, err
	}

	deps := analyzer.Deps{Extractor: extractor, Resolver: res}
	if svc := newReputation(cfg, ageStore); svc != nil {
		deps.Reputation = svc
	}

	options := analyzer.NewOptions(cfg)
	options.MeterProvider = mp
	e.Analyzer, err = analyzer.New(deps, options)
	if err != nil {
		e.Close()

		return nil, err
	}

	return e, nil
}
