package config

import (
	"fmt"
	"net/url"
	"time"

	pkgconfig "github.com/Salle79/Litium/pkg/config"
	"github.com/Salle79/Litium/pkg/httpclient"
)

// Search engine implementations selectable through SEARCH_ENGINE.
const (
	EngineElasticsearch = "elasticsearch"
	EngineMemory        = "memory"
)

// Config holds all configuration for the search service.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat   string `env:"LOG_FORMAT" envDefault:"json"`

	// HTTP server
	HTTPPort           int `env:"SEARCH_HTTP_PORT" envDefault:"8010"`
	RequestTimeoutSecs int `env:"SEARCH_REQUEST_TIMEOUT_SECONDS" envDefault:"10"`

	// Storefront-facing HTTP policy
	CORSAllowedOrigins   []string `env:"CORS_ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`
	RateLimitRPS         float64  `env:"RATE_LIMIT_RPS" envDefault:"50"`
	RateLimitBurst       int      `env:"RATE_LIMIT_BURST" envDefault:"100"`
	TagTermsCacheSeconds int      `env:"TAG_TERMS_CACHE_SECONDS" envDefault:"60"`

	// Search engine selection (elasticsearch or memory)
	SearchEngine string `env:"SEARCH_ENGINE" envDefault:"elasticsearch"`

	// Elasticsearch
	ElasticsearchURL      string `env:"ELASTICSEARCH_URL" envDefault:"http://localhost:9200"`
	ElasticsearchIndex    string `env:"ELASTICSEARCH_INDEX" envDefault:"litium_products"`
	ElasticsearchUsername string `env:"ELASTICSEARCH_USERNAME"`
	ElasticsearchPassword string `env:"ELASTICSEARCH_PASSWORD"`

	// Facets
	FacetValueLimit       int    `env:"FACET_VALUE_LIMIT" envDefault:"200"`
	PriceTermsLimit       int    `env:"PRICE_TERMS_LIMIT" envDefault:"10000"`
	PriceHistogramBuckets int    `env:"PRICE_HISTOGRAM_BUCKETS" envDefault:"5"`
	BrandTagName          string `env:"BRAND_TAG_NAME" envDefault:"brand"`

	// Market context (PostgreSQL). Empty uses the seed file.
	DatabaseURL           string `env:"DATABASE_URL"`
	DatabaseRunMigrations bool   `env:"DATABASE_RUN_MIGRATIONS" envDefault:"false"`
	DBMaxConns            int32  `env:"DB_MAX_CONNS" envDefault:"10"`
	SlowQueryThresholdMs  int    `env:"LOG_SLOW_QUERY_MS" envDefault:"200"`

	// Field definitions (Redis). Empty uses the seed file.
	RedisURL string `env:"REDIS_URL"`

	// YAML seed for the in-process stores
	FieldDefinitionsFile string `env:"FIELD_DEFINITIONS_FILE"`

	// Kafka. No brokers disables consumers and analytics events.
	KafkaBrokers       []string `env:"KAFKA_BROKERS" envSeparator:","`
	KafkaConsumerGroup string   `env:"KAFKA_CONSUMER_GROUP" envDefault:"search-service"`

	// Circuit breaker around the Elasticsearch transport
	CBMaxRequests  uint32  `env:"CIRCUIT_BREAKER_MAX_REQUESTS" envDefault:"1"`
	CBInterval     int     `env:"CIRCUIT_BREAKER_INTERVAL_SECONDS" envDefault:"60"`
	CBTimeout      int     `env:"CIRCUIT_BREAKER_TIMEOUT_SECONDS" envDefault:"30"`
	CBFailureRatio float64 `env:"CIRCUIT_BREAKER_FAILURE_RATIO" envDefault:"0.5"`
	CBMinRequests  uint32  `env:"CIRCUIT_BREAKER_MIN_REQUESTS" envDefault:"5"`

	// OpenTelemetry
	OTELEnabled    bool    `env:"OTEL_ENABLED" envDefault:"false"`
	OTELEndpoint   string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4318"`
	OTELSampleRate float64 `env:"OTEL_SAMPLE_RATE" envDefault:"1.0"`

	// Pprof debug endpoints (IP allowlist in CIDR notation)
	PprofAllowedCIDRs []string `env:"PPROF_ALLOWED_CIDRS" envDefault:"127.0.0.0/8,::1/128" envSeparator:","`
}

// Load reads configuration from environment variables.
func Load(opts ...pkgconfig.Option) (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg, opts...); err != nil {
		return nil, fmt.Errorf("load search config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validate checks configuration invariants.
func (c *Config) validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}
	switch c.SearchEngine {
	case EngineElasticsearch:
		if c.ElasticsearchURL == "" {
			return fmt.Errorf("ELASTICSEARCH_URL is required for the elasticsearch engine")
		}
		if _, err := url.ParseRequestURI(c.ElasticsearchURL); err != nil {
			return fmt.Errorf("invalid ELASTICSEARCH_URL %q: %w", c.ElasticsearchURL, err)
		}
		if c.ElasticsearchIndex == "" {
			return fmt.Errorf("ELASTICSEARCH_INDEX is required for the elasticsearch engine")
		}
	case EngineMemory:
	default:
		return fmt.Errorf("unsupported SEARCH_ENGINE %q", c.SearchEngine)
	}
	if c.FacetValueLimit < 1 {
		return fmt.Errorf("FACET_VALUE_LIMIT must be positive, got %d", c.FacetValueLimit)
	}
	if c.PriceTermsLimit < 1 {
		return fmt.Errorf("PRICE_TERMS_LIMIT must be positive, got %d", c.PriceTermsLimit)
	}
	if c.PriceHistogramBuckets < 1 {
		return fmt.Errorf("PRICE_HISTOGRAM_BUCKETS must be positive, got %d", c.PriceHistogramBuckets)
	}
	if c.RequestTimeoutSecs < 1 {
		return fmt.Errorf("SEARCH_REQUEST_TIMEOUT_SECONDS must be positive, got %d", c.RequestTimeoutSecs)
	}
	switch c.LogFormat {
	case "json", "text":
	default:
		return fmt.Errorf("LOG_FORMAT must be json or text, got %q", c.LogFormat)
	}
	if c.RateLimitRPS < 0 {
		return fmt.Errorf("RATE_LIMIT_RPS must not be negative, got %f", c.RateLimitRPS)
	}
	if c.RateLimitRPS > 0 && c.RateLimitBurst < 1 {
		return fmt.Errorf("RATE_LIMIT_BURST must be positive, got %d", c.RateLimitBurst)
	}
	if c.DatabaseURL != "" {
		if _, err := url.Parse(c.DatabaseURL); err != nil {
			return fmt.Errorf("invalid DATABASE_URL: %w", err)
		}
	}
	if c.RedisURL != "" {
		if _, err := url.Parse(c.RedisURL); err != nil {
			return fmt.Errorf("invalid REDIS_URL: %w", err)
		}
	}
	if c.CBFailureRatio <= 0 || c.CBFailureRatio > 1.0 {
		return fmt.Errorf("CIRCUIT_BREAKER_FAILURE_RATIO must be in (0, 1], got %f", c.CBFailureRatio)
	}
	if c.OTELSampleRate < 0 || c.OTELSampleRate > 1.0 {
		return fmt.Errorf("OTEL_SAMPLE_RATE must be between 0.0 and 1.0, got %f", c.OTELSampleRate)
	}
	return nil
}

// CircuitBreaker returns the breaker settings for the Elasticsearch transport.
func (c *Config) CircuitBreaker() httpclient.CircuitBreakerConfig {
	return httpclient.CircuitBreakerConfig{
		Name:         "elasticsearch",
		MaxRequests:  c.CBMaxRequests,
		Interval:     time.Duration(c.CBInterval) * time.Second,
		Timeout:      time.Duration(c.CBTimeout) * time.Second,
		FailureRatio: c.CBFailureRatio,
		MinRequests:  c.CBMinRequests,
	}
}

// RequestTimeout returns the per-request deadline of the HTTP server.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSecs) * time.Second
}

// SlowQueryThreshold returns the duration above which SQL queries are logged.
func (c *Config) SlowQueryThreshold() time.Duration {
	return time.Duration(c.SlowQueryThresholdMs) * time.Millisecond
}
