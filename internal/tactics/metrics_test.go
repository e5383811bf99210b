package tactics

import (
	"context"
	"testing"

	"github.com/hddf2/pilot/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestWithMeter_CountsTicks(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	a, err := New(DefaultConfig(), WithMeter(provider.Meter("test")))
	require.NoError(t, err)

	own := core.AircraftState{ID: "a1", Z: -2000, TAS: 250}
	for i := 0; i < 3; i++ {
		_, err := a.Step(single(own, float64(i)))
		require.NoError(t, err)
	}

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	got := map[string]bool{}
	var ticks int64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			got[m.Name] = true
			if sum, ok := m.Data.(metricdata.Sum[int64]); ok && m.Name == "agent.ticks" {
				for _, dp := range sum.DataPoints {
					ticks += dp.Value
				}
			}
		}
	}
	assert.True(t, got["agent.tick.duration"])
	assert.Equal(t, int64(3), ticks)
}
