package httpclient

import (
	"net"
	"net/http"
	"time"
)

// Config holds HTTP transport configuration.
type Config struct {
	DialTimeout     time.Duration
	MaxConnsPerHost int
}

// DefaultConfig returns sensible defaults for the HTTP transport.
func DefaultConfig() Config {
	return Config{
		DialTimeout:     10 * time.Second,
		MaxConnsPerHost: 100,
	}
}

// NewTransport creates a pooled transport for calls to a single backend.
func NewTransport(cfg Config) *http.Transport {
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = DefaultConfig().DialTimeout
	}
	if cfg.MaxConnsPerHost <= 0 {
		cfg.MaxConnsPerHost = DefaultConfig().MaxConnsPerHost
	}
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   cfg.DialTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   cfg.MaxConnsPerHost,
		MaxConnsPerHost:       cfg.MaxConnsPerHost,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
}
