package metrics_test

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/NeapolitanIcecream/openbridge/internal/metrics"
)

func TestCountersIncrement(t *testing.T) {
	metrics.EmptyCompletionRetriesTotal.Inc()
	metrics.DegradedRequestsTotal.Inc()
	metrics.RequestsTotal.WithLabelValues("/v1/responses", "POST", "200").Inc()

	assert.GreaterOrEqual(t, testutil.ToFloat64(metrics.EmptyCompletionRetriesTotal), float64(1))
	assert.GreaterOrEqual(t, testutil.ToFloat64(metrics.DegradedRequestsTotal), float64(1))
}
