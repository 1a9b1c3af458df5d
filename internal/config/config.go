package config

import (
	"fmt"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config represents the application configuration structure.
// It contains settings for the environment, HTTP server, the redirect resolver,
// cache backends, rate limiting, reputation collaborators and graceful shutdown behavior.
type Config struct {
	// Environment specifies the current running environment (development, production, etc.)
	Environment string `env:"ENVIRONMENT" env-default:"development" yaml:"environment"`
	// LogLevel overrides the environment's default log level (debug, info, warn, error)
	LogLevel string `env:"LOG_LEVEL" env-default:"" yaml:"logLevel"`

	// HTTP contains all HTTP server related configurations
	HTTP struct {
		// Addr is the address and port the HTTP server will listen on
		Addr string `env:"HTTP_ADDR" env-default:":8080" yaml:"addr"`
		// ReadTimeout is the maximum duration for reading the entire request, including the body
		ReadTimeout time.Duration `env:"HTTP_READ_TIMEOUT" env-default:"1m" yaml:"readTimeout"`
		// ReadHeaderTimeout is the amount of time allowed to read request headers
		ReadHeaderTimeout time.Duration `env:"HTTP_READ_HEADER_TIMEOUT" env-default:"10s" yaml:"readHeaderTimeout"`
		// WriteTimeout is the maximum duration before timing out writes of the response
		WriteTimeout time.Duration `env:"HTTP_WRITE_TIMEOUT" env-default:"2m" yaml:"writeTimeout"`
		// IdleTimeout is the maximum amount of time to wait for the next request when keep-alives are enabled
		IdleTimeout time.Duration `env:"HTTP_IDLE_TIMEOUT" env-default:"2m" yaml:"idleTimeout"`
		// RequestTimeout is the maximum time allowed for processing a single request
		RequestTimeout time.Duration `env:"HTTP_REQUEST_TIMEOUT" env-default:"15s" yaml:"requestTimeout"`
		// MaxHeaderBytes controls the maximum number of bytes the server will read parsing the request header
		MaxHeaderBytes int `env:"HTTP_MAX_HEADER_BYTES" env-default:"0" yaml:"maxHeaderBytes"`
		// MetricsPath defines the URL path where metrics are exposed
		MetricsPath string `env:"HTTP_METRICS_PATH" env-default:"/metrics" yaml:"metricsPath"`
		// MaxURLLength is the longest URL accepted by the API
		MaxURLLength int `env:"HTTP_MAX_URL_LENGTH" env-default:"2048" yaml:"maxUrlLength"`
	} `yaml:"http"`

	// JWT configures optional bearer authentication
	JWT struct {
		// Enabled makes a valid bearer token mandatory on the v1 API
		Enabled bool `env:"JWT_ENABLED" env-default:"false" yaml:"enabled"`
		// PublicKey is the PEM encoded RSA key tokens are verified with
		PublicKey string `env:"JWT_PUBLIC_KEY" yaml:"publicKey"`
		// PrivateKey is the PEM encoded RSA key used by the jwt command to sign tokens
		PrivateKey string `env:"JWT_PRIVATE_KEY" yaml:"privateKey"`
	} `yaml:"jwt"`

	// Resolver configures redirect chain expansion
	Resolver struct {
		// MaxHops is the number of redirects after which expansion stops
		MaxHops int `env:"RESOLVER_MAX_HOPS" env-default:"10" yaml:"maxHops"`
		// Deadline bounds a whole expansion
		Deadline time.Duration `env:"RESOLVER_DEADLINE" env-default:"10s" yaml:"deadline"`
		// HopTimeout bounds a single HEAD or GET probe
		HopTimeout time.Duration `env:"RESOLVER_HOP_TIMEOUT" env-default:"1s" yaml:"hopTimeout"`
		// UserAgent is sent with every probe
		UserAgent string `env:"RESOLVER_USER_AGENT" env-default:"qrshield-resolver/1.0" yaml:"userAgent"`
		// DNSServer, when set, is queried directly for the SSRF guard instead of the system resolver
		DNSServer string `env:"RESOLVER_DNS_SERVER" env-default:"" yaml:"dnsServer"`
		// DNSTimeout bounds a single DNS query to DNSServer
		DNSTimeout time.Duration `env:"RESOLVER_DNS_TIMEOUT" env-default:"2s" yaml:"dnsTimeout"`
		// MaxIdleConnsPerHost bounds pooled probe connections per destination
		MaxIdleConnsPerHost int `env:"RESOLVER_MAX_IDLE_CONNS_PER_HOST" env-default:"2" yaml:"maxIdleConnsPerHost"`
	} `yaml:"resolver"`

	// Cache configures the expansion and domain age caches
	Cache struct {
		// Backend is one of memory, redis or postgres
		Backend string `env:"CACHE_BACKEND" env-default:"memory" yaml:"backend"`
		// MaxAge is how long a redirect expansion stays valid
		MaxAge time.Duration `env:"CACHE_MAX_AGE" env-default:"24h" yaml:"maxAge"`
		// MaxEntries bounds each cache namespace
		MaxEntries int `env:"CACHE_MAX_ENTRIES" env-default:"1000" yaml:"maxEntries"`
		// DomainAgeMaxAge is how long an RDAP answer stays valid
		DomainAgeMaxAge time.Duration `env:"CACHE_DOMAIN_AGE_MAX_AGE" env-default:"168h" yaml:"domainAgeMaxAge"`
	} `yaml:"cache"`

	// Redis contains the connection settings of the redis cache backend
	Redis struct {
		// Addr is the host:port of the redis server
		Addr string `env:"REDIS_ADDR" env-default:"localhost:6379" yaml:"addr"`
		// Password for redis authentication
		Password string `env:"REDIS_PASSWORD" env-default:"" yaml:"password"`
		// DB is the redis logical database
		DB int `env:"REDIS_DB" env-default:"0" yaml:"db"`
		// DialTimeout bounds connection setup
		DialTimeout time.Duration `env:"REDIS_DIAL_TIMEOUT" env-default:"2s" yaml:"dialTimeout"`
		// ReadTimeout bounds a single read
		ReadTimeout time.Duration `env:"REDIS_READ_TIMEOUT" env-default:"1s" yaml:"readTimeout"`
		// WriteTimeout bounds a single write
		WriteTimeout time.Duration `env:"REDIS_WRITE_TIMEOUT" env-default:"1s" yaml:"writeTimeout"`
	} `yaml:"redis"`

	// RateLimit configures per-client admission control on the v1 API
	RateLimit struct {
		// Enabled turns the limiter on
		Enabled bool `env:"RATE_LIMIT_ENABLED" env-default:"true" yaml:"enabled"`
		// Limit is the number of requests a client may make per window
		Limit int `env:"RATE_LIMIT_LIMIT" env-default:"30" yaml:"limit"`
		// Window is the fixed window length
		Window time.Duration `env:"RATE_LIMIT_WINDOW" env-default:"1m" yaml:"window"`
	} `yaml:"rateLimit"`

	// Reputation configures the optional external collaborators
	Reputation struct {
		// Timeout bounds all lookups of one analysis
		Timeout time.Duration `env:"REPUTATION_TIMEOUT" env-default:"3s" yaml:"timeout"`
		// URLhaus is the abuse.ch host lookup
		URLhaus struct {
			Enabled bool    `env:"REPUTATION_URLHAUS_ENABLED" env-default:"false" yaml:"enabled"`
			AuthKey string  `env:"REPUTATION_URLHAUS_AUTH_KEY" env-default:"" yaml:"authKey"`
			BaseURL string  `env:"REPUTATION_URLHAUS_BASE_URL" env-default:"" yaml:"baseUrl"`
			RPS     float64 `env:"REPUTATION_URLHAUS_RPS" env-default:"5" yaml:"rps"`
		} `yaml:"urlhaus"`
		// URLScan is the urlscan.io search API
		URLScan struct {
			Enabled bool    `env:"REPUTATION_URLSCAN_ENABLED" env-default:"false" yaml:"enabled"`
			Token   string  `env:"REPUTATION_URLSCAN_TOKEN" env-default:"" yaml:"token"`
			BaseURL string  `env:"REPUTATION_URLSCAN_BASE_URL" env-default:"" yaml:"baseUrl"`
			RPS     float64 `env:"REPUTATION_URLSCAN_RPS" env-default:"1" yaml:"rps"`
		} `yaml:"urlscan"`
		// RDAP provides domain registration dates
		RDAP struct {
			Enabled bool    `env:"REPUTATION_RDAP_ENABLED" env-default:"false" yaml:"enabled"`
			BaseURL string  `env:"REPUTATION_RDAP_BASE_URL" env-default:"" yaml:"baseUrl"`
			RPS     float64 `env:"REPUTATION_RDAP_RPS" env-default:"2" yaml:"rps"`
		} `yaml:"rdap"`
	} `yaml:"reputation"`

	// Lists configures host lists refreshed out of band
	Lists struct {
		// ShortenersPath is the known shortener list; empty uses the built-in list
		ShortenersPath string `env:"LISTS_SHORTENERS_PATH" env-default:"" yaml:"shortenersPath"`
		// ReloadInterval is how often the list file is re-read; 0 disables reloading
		ReloadInterval time.Duration `env:"LISTS_RELOAD_INTERVAL" env-default:"5m" yaml:"reloadInterval"`
	} `yaml:"lists"`

	// Database contains all database connection related configurations
	Database struct {
		// Username for database authentication
		Username string `env:"DATABASE_USERNAME" env-default:"myuser" yaml:"username"`
		// Password for database authentication
		Password string `env:"DATABASE_PASSWORD" env-default:"mypassword" yaml:"password"`
		// Host is the database server hostname or IP address
		Host string `env:"DATABASE_HOST" env-default:"localhost" yaml:"host"`
		// Port is the database server port number
		Port int `env:"DATABASE_PORT" env-default:"5432" yaml:"port"`
		// SslMode defines the SSL mode for the database connection
		SslMode string `env:"DATABASE_SSL_MODE" env-default:"disable" yaml:"sslMode"`
		// DatabaseName is the name of the database to connect to
		DatabaseName string `env:"DATABASE_NAME" env-default:"qrshield" yaml:"name"`
		// MaxOpenConnections limits the number of open connections to the database
		MaxOpenConnections int `env:"DATABASE_MAX_OPEN_CONNECTIONS" env-default:"10" yaml:"maxOpenConnections"`
		// MaxIdleConnections limits the number of connections in the idle connection pool
		MaxIdleConnections int `env:"DATABASE_MAX_IDLE_CONNECTIONS" env-default:"8" yaml:"maxIdleConnections"`
		// ConnMaxLifetime is the maximum amount of time a connection may be reused
		ConnMaxLifetime time.Duration `env:"DATABASE_CONNECTION_MAX_LIFETIME" env-default:"3m" yaml:"connMaxLifetime"`
		// ConnMaxIdleTime is the maximum amount of time a connection may be idle
		ConnMaxIdleTime time.Duration `env:"DATABASE_CONNECTION_MAX_IDLE_TIME" env-default:"3m" yaml:"connMaxIdleTime"`
	} `yaml:"database"`

	// GracefulShutdownTimeout is the maximum duration to wait for ongoing requests to complete during shutdown
	GracefulShutdownTimeout time.Duration `env:"GRACEFUL_SHUTDOWN_TIMEOUT" env-default:"10s" yaml:"gracefulShutdownTimeout"` //nolint: lll
}

// Load receives the path for yaml config file and returns a filled Config struct.
func Load(configPath string) (*Config, error) {
	var cfg Config
	err := cleanenv.ReadConfig(configPath, &cfg)
	if err != nil {
		return nil, fmt.Errorf("could not read config: %w", err)
	}

	return &cfg, nil
}
