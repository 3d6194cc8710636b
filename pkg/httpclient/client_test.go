package httpclient

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 10*time.Second, cfg.DialTimeout)
	assert.Equal(t, 100, cfg.MaxConnsPerHost)
}

func TestNewTransport_AppliesConfig(t *testing.T) {
	tr := NewTransport(Config{DialTimeout: time.Second, MaxConnsPerHost: 7})
	assert.Equal(t, 7, tr.MaxConnsPerHost)
	assert.Equal(t, 7, tr.MaxIdleConnsPerHost)
	assert.True(t, tr.ForceAttemptHTTP2)
}

func TestNewTransport_ZeroConfigUsesDefaults(t *testing.T) {
	tr := NewTransport(Config{})
	assert.Equal(t, DefaultConfig().MaxConnsPerHost, tr.MaxConnsPerHost)
}

func TestNewTransport_RoundTrip(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	client := &http.Client{Transport: NewTransport(DefaultConfig())}
	resp, err := client.Get(server.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}
