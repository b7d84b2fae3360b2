package prom

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsRecordAfterCreate(t *testing.T) {
	require.NoError(t, Create("test-host", "test", "dailymass"))
	// second call must not fail on duplicate registration
	require.NoError(t, Create("test-host", "test", "dailymass"))

	AddDispatch("success")
	AddDispatch("success")
	AddDispatch("failed")
	AddInboundIntent("STOP")

	dispatched := MetricCollectionCounterVec[SystemDelivery+MetricDispatchedTotal]
	assert.Equal(t, float64(2), testutil.ToFloat64(dispatched.WithLabelValues("success")))
	assert.Equal(t, float64(1), testutil.ToFloat64(dispatched.WithLabelValues("failed")))

	intents := MetricCollectionCounterVec[SystemInbound+MetricIntentTotal]
	assert.Equal(t, float64(1), testutil.ToFloat64(intents.WithLabelValues("STOP")))

	assert.NotPanics(t, func() {
		AddTickDuration(0.2)
		AddGenerationDuration(1.5, "English")
		AddHistogram("missing", "metric", 1)
	})
}
