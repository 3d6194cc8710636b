package httpclient

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sony/gobreaker/v2"
)

// CircuitBreakerConfig configures a BreakerTransport.
type CircuitBreakerConfig struct {
	// Name labels metrics and logs.
	Name string
	// MaxRequests is how many trial requests pass while half-open.
	MaxRequests uint32
	// Interval resets the counts while closed. Zero never resets.
	Interval time.Duration
	// Timeout is how long the breaker stays open.
	Timeout time.Duration
	// FailureRatio trips the breaker once MinRequests have been counted.
	FailureRatio float64
	MinRequests  uint32
}

// DefaultCircuitBreakerConfig trips at half of at least five requests failing
// and lets a trial request through after thirty seconds.
func DefaultCircuitBreakerConfig(name string) CircuitBreakerConfig {
	return CircuitBreakerConfig{
		Name:         name,
		MaxRequests:  1,
		Interval:     time.Minute,
		Timeout:      30 * time.Second,
		FailureRatio: 0.5,
		MinRequests:  5,
	}
}

// Request results counted per breaker.
const (
	resultSuccess  = "success"
	resultFailure  = "failure"
	resultRejected = "rejected"
)

var (
	breakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state: 0 closed, 1 half-open, 2 open.",
		},
		[]string{"name"},
	)

	breakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Requests seen by a circuit breaker, by result.",
		},
		[]string{"name", "result"},
	)
)

func stateValue(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}

// ErrCircuitOpen is returned while the breaker rejects requests.
var ErrCircuitOpen = gobreaker.ErrOpenState

// errUnhealthyStatus marks responses that count as failures but are still
// handed to the caller.
var errUnhealthyStatus = errors.New("unhealthy response status")

// unhealthy reports whether a status says the backend is failing or
// overloaded. Other 4xx answers are the caller's fault.
func unhealthy(status int) bool {
	return status >= http.StatusInternalServerError || status == http.StatusTooManyRequests
}

// BreakerTransport is an http.RoundTripper guarded by a circuit breaker.
// Transport errors, 5xx and 429 responses count as failures. Failed
// responses are still returned so the caller can read the error body.
type BreakerTransport struct {
	base    http.RoundTripper
	breaker *gobreaker.CircuitBreaker[*http.Response]
	logger  *slog.Logger
	name    string
}

// NewBreakerTransport wraps base. A nil base uses http.DefaultTransport.
func NewBreakerTransport(base http.RoundTripper, cfg CircuitBreakerConfig, logger *slog.Logger) *BreakerTransport {
	if base == nil {
		base = http.DefaultTransport
	}
	breakerState.WithLabelValues(cfg.Name).Set(0)

	return &BreakerTransport{
		base: base,
		breaker: gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
			Name:        cfg.Name,
			MaxRequests: cfg.MaxRequests,
			Interval:    cfg.Interval,
			Timeout:     cfg.Timeout,
			ReadyToTrip: func(c gobreaker.Counts) bool {
				return c.Requests >= cfg.MinRequests &&
					float64(c.TotalFailures)/float64(c.Requests) >= cfg.FailureRatio
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				logger.Warn("circuit breaker state change",
					slog.String("breaker", name),
					slog.String("from", from.String()),
					slog.String("to", to.String()),
				)
				breakerState.WithLabelValues(name).Set(stateValue(to))
			},
			// Requests abandoned by the caller say nothing about backend health.
			IsExcluded: func(err error) bool {
				return errors.Is(err, context.Canceled)
			},
		}),
		logger: logger,
		name:   cfg.Name,
	}
}

// RoundTrip sends req unless the breaker is open.
func (t *BreakerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.breaker.Execute(func() (*http.Response, error) {
		resp, err := t.base.RoundTrip(req)
		if err != nil {
			return nil, err
		}
		if unhealthy(resp.StatusCode) {
			return resp, errUnhealthyStatus
		}
		return resp, nil
	})

	switch {
	case err == nil:
		breakerRequests.WithLabelValues(t.name, resultSuccess).Inc()
		return resp, nil
	case errors.Is(err, errUnhealthyStatus):
		breakerRequests.WithLabelValues(t.name, resultFailure).Inc()
		return resp, nil
	case errors.Is(err, ErrCircuitOpen), errors.Is(err, gobreaker.ErrTooManyRequests):
		breakerRequests.WithLabelValues(t.name, resultRejected).Inc()
		t.logger.WarnContext(req.Context(), "circuit breaker rejected request",
			slog.String("breaker", t.name),
			slog.String("url", req.URL.Redacted()),
		)
		return nil, fmt.Errorf("%s: %w", t.name, err)
	case errors.Is(err, context.Canceled):
		return nil, err
	default:
		breakerRequests.WithLabelValues(t.name, resultFailure).Inc()
		return nil, err
	}
}

// State returns the current breaker state.
func (t *BreakerTransport) State() gobreaker.State {
	return t.breaker.State()
}
