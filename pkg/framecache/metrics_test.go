package framecache

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/user/framecache/pkg/mediatime"
	"github.com/user/framecache/pkg/mocks"
)

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect failed: %v", err)
	}
	out := make(map[string]metricdata.Metrics)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m
		}
	}
	return out
}

// sumByAttr returns the counter value for the data point whose attribute key has value.
func sumByAttr(t *testing.T, m metricdata.Metrics, key, value string) int64 {
	t.Helper()
	sum, ok := m.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("%s is %T, want Sum[int64]", m.Name, m.Data)
	}
	for _, dp := range sum.DataPoints {
		if v, ok := dp.Attributes.Value(attribute.Key(key)); ok && v.AsString() == value {
			return dp.Value
		}
	}
	return 0
}

func TestManager_Metrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer provider.Shutdown(context.Background())

	media := mocks.NewMedia(frameDur, 11*mediatime.Second, 5*mediatime.Second)
	media.Packets[100].Key = false
	opts := DefaultOptions()
	opts.MeterProvider = provider
	m, err := New(mocks.NewMediaOpener(map[string]*mocks.Media{"v": media}), opts)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer m.Close(context.Background())

	mustRequest(t, m, "v", 2*mediatime.Second)
	mustRequest(t, m, "v", 3*mediatime.Second)
	mustRequest(t, m, "v", 10*mediatime.Second)

	got := collect(t, reader)

	tests := []struct {
		metric, key, value string
		expected           int64
	}{
		{requestsMetricName, "result", "hit", 1},
		{requestsMetricName, "result", "miss", 2},
		{extractionsMetricName, "result", "success", 2},
		{extractionsMetricName, "result", "failure", 0},
		{evictionsMetricName, "kind", "run", 1},
	}
	for _, tt := range tests {
		if v := sumByAttr(t, got[tt.metric], tt.key, tt.value); v != tt.expected {
			t.Errorf("%s{%s=%s} = %d, want %d", tt.metric, tt.key, tt.value, v, tt.expected)
		}
	}

	gauge, ok := got[openFramesMetricName].Data.(metricdata.Gauge[int64])
	if !ok || len(gauge.DataPoints) != 1 {
		t.Fatalf("%s missing or malformed: %+v", openFramesMetricName, got[openFramesMetricName])
	}
	if v := gauge.DataPoints[0].Value; v != 60 {
		t.Errorf("%s = %d, want 60", openFramesMetricName, v)
	}
}
