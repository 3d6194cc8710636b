package database

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func describe(c prometheus.Collector) []string {
	ch := make(chan *prometheus.Desc, 32)
	c.Describe(ch)
	close(ch)

	var out []string
	for d := range ch {
		out = append(out, d.String())
	}
	return out
}

func TestPoolCollector_Describe(t *testing.T) {
	descs := describe(NewPoolCollector(nil, "search"))
	require.Len(t, descs, 8)

	for _, name := range []string{
		"db_pool_acquired_connections",
		"db_pool_idle_connections",
		"db_pool_total_connections",
		"db_pool_max_connections",
		"db_pool_acquire_count_total",
		"db_pool_acquire_duration_seconds_total",
		"db_pool_empty_acquire_count_total",
		"db_pool_canceled_acquire_count_total",
	} {
		found := false
		for _, d := range descs {
			if strings.Contains(d, `"`+name+`"`) {
				found = true
				break
			}
		}
		assert.True(t, found, "missing descriptor %s", name)
	}
}

func TestRegisterPoolMetrics(t *testing.T) {
	reg := prometheus.NewPedanticRegistry()

	require.NoError(t, RegisterPoolMetrics(reg, nil, "search"))

	err := RegisterPoolMetrics(reg, nil, "search")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "register pool metrics")
}

func TestOutcome(t *testing.T) {
	assert.Equal(t, OutcomeOK, outcome(nil))
	assert.Equal(t, OutcomeNoRows, outcome(fmt.Errorf("get market: %w", pgx.ErrNoRows)))
	assert.Equal(t, OutcomeError, outcome(errors.New("connection reset")))
}
