package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgconfig "github.com/Salle79/Litium/pkg/config"
)

// load reads the configuration from envs only, ignoring the process environment.
func load(envs map[string]string) (*Config, error) {
	if envs == nil {
		envs = map[string]string{}
	}
	return Load(pkgconfig.WithEnvironment(envs))
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := load(nil)

	require.NoError(t, err)
	assert.Equal(t, 8010, cfg.HTTPPort)
	assert.Equal(t, EngineElasticsearch, cfg.SearchEngine)
	assert.Equal(t, "http://localhost:9200", cfg.ElasticsearchURL)
	assert.Equal(t, "litium_products", cfg.ElasticsearchIndex)
	assert.Equal(t, 200, cfg.FacetValueLimit)
	assert.Equal(t, 5, cfg.PriceHistogramBuckets)
	assert.Equal(t, "brand", cfg.BrandTagName)
	assert.Equal(t, "search-service", cfg.KafkaConsumerGroup)
	assert.Empty(t, cfg.KafkaBrokers)
	assert.Empty(t, cfg.DatabaseURL)
	assert.Equal(t, 10*time.Second, cfg.RequestTimeout())
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, []string{"*"}, cfg.CORSAllowedOrigins)
	assert.Equal(t, float64(50), cfg.RateLimitRPS)
	assert.Equal(t, 100, cfg.RateLimitBurst)
	assert.Equal(t, 60, cfg.TagTermsCacheSeconds)
}

func TestLoad_FromEnv(t *testing.T) {
	cfg, err := load(map[string]string{
		"SEARCH_ENGINE":           "memory",
		"FACET_VALUE_LIMIT":       "50",
		"PRICE_HISTOGRAM_BUCKETS": "8",
		"BRAND_TAG_NAME":          "manufacturer",
		"KAFKA_BROKERS":           "kafka-1:9092,kafka-2:9092",
		"DATABASE_URL":            "postgres://litium@db:5432/litium",
		"REDIS_URL":               "redis://cache:6379/0",
	})

	require.NoError(t, err)
	assert.Equal(t, EngineMemory, cfg.SearchEngine)
	assert.Equal(t, 50, cfg.FacetValueLimit)
	assert.Equal(t, 8, cfg.PriceHistogramBuckets)
	assert.Equal(t, "manufacturer", cfg.BrandTagName)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "postgres://litium@db:5432/litium", cfg.DatabaseURL)
	assert.Equal(t, "redis://cache:6379/0", cfg.RedisURL)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		envs map[string]string
		want string
	}{
		{"http port", map[string]string{"SEARCH_HTTP_PORT": "0"}, "invalid HTTP port"},
		{"engine", map[string]string{"SEARCH_ENGINE": "solr"}, "unsupported SEARCH_ENGINE"},
		{"elasticsearch url", map[string]string{"ELASTICSEARCH_URL": "not a url"}, "invalid ELASTICSEARCH_URL"},
		{"facet limit", map[string]string{"FACET_VALUE_LIMIT": "0"}, "FACET_VALUE_LIMIT"},
		{"histogram buckets", map[string]string{"PRICE_HISTOGRAM_BUCKETS": "-1"}, "PRICE_HISTOGRAM_BUCKETS"},
		{"breaker ratio", map[string]string{"CIRCUIT_BREAKER_FAILURE_RATIO": "1.5"}, "CIRCUIT_BREAKER_FAILURE_RATIO"},
		{"sample rate", map[string]string{"OTEL_SAMPLE_RATE": "2"}, "OTEL_SAMPLE_RATE"},
		{"log format", map[string]string{"LOG_FORMAT": "xml"}, "LOG_FORMAT"},
		{"rate limit", map[string]string{"RATE_LIMIT_RPS": "-1"}, "RATE_LIMIT_RPS"},
		{"burst", map[string]string{"RATE_LIMIT_BURST": "0"}, "RATE_LIMIT_BURST"},
		{"parse", map[string]string{"FACET_VALUE_LIMIT": "many"}, "load search config"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := load(tt.envs)

			assert.Nil(t, cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoad_MemoryEngineIgnoresElasticsearchURL(t *testing.T) {
	_, err := load(map[string]string{
		"SEARCH_ENGINE":     "memory",
		"ELASTICSEARCH_URL": "",
	})
	assert.NoError(t, err)
}

func TestConfig_CircuitBreaker(t *testing.T) {
	cfg, err := load(nil)
	require.NoError(t, err)

	cb := cfg.CircuitBreaker()
	assert.Equal(t, "elasticsearch", cb.Name)
	assert.Equal(t, 60*time.Second, cb.Interval)
	assert.Equal(t, 30*time.Second, cb.Timeout)
	assert.Equal(t, 0.5, cb.FailureRatio)
	assert.Equal(t, uint32(5), cb.MinRequests)
}
