package main

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/user/framecache/pkg/ports"
)

// reportMetrics collects the cache metrics once and logs every data point.
func reportMetrics(ctx context.Context, reader *sdkmetric.ManualReader, log ports.Logger) {
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(ctx, &rm); err != nil {
		log.Warn("Failed to collect metrics: %s", err)
		return
	}

	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			switch data := m.Data.(type) {
			case metricdata.Sum[int64]:
				for _, dp := range data.DataPoints {
					log.Info("Metric %s%s = %d", m.Name, attrs(dp.Attributes.ToSlice()), dp.Value)
				}
			case metricdata.Gauge[int64]:
				for _, dp := range data.DataPoints {
					log.Info("Metric %s%s = %d", m.Name, attrs(dp.Attributes.ToSlice()), dp.Value)
				}
			}
		}
	}
}

// attrs renders attributes as {k=v,...}, or "" when there are none.
func attrs(kvs []attribute.KeyValue) string {
	if len(kvs) == 0 {
		return ""
	}
	parts := make([]string, len(kvs))
	for i, kv := range kvs {
		parts[i] = string(kv.Key) + "=" + kv.Value.Emit()
	}
	return "{" + strings.Join(parts, ",") + "}"
}
