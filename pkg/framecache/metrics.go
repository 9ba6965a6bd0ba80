package framecache

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/user/framecache/pkg/framecache"

const (
	requestsMetricName    = "framecache.requests"
	extractionsMetricName = "framecache.extractions"
	evictionsMetricName   = "framecache.evictions"
	openFramesMetricName  = "framecache.open_frames"
)

var (
	resultHit     = metric.WithAttributes(attribute.String("result", "hit"))
	resultMiss    = metric.WithAttributes(attribute.String("result", "miss"))
	resultSuccess = metric.WithAttributes(attribute.String("result", "success"))
	resultFailure = metric.WithAttributes(attribute.String("result", "failure"))
	kindRun       = metric.WithAttributes(attribute.String("kind", "run"))
	kindFrame     = metric.WithAttributes(attribute.String("kind", "frame"))
)

// metrics mirrors cache counters to OpenTelemetry. Nothing reads them back.
type metrics struct {
	requests     metric.Int64Counter
	extractions  metric.Int64Counter
	evictions    metric.Int64Counter
	registration metric.Registration
}

func newMetrics(provider metric.MeterProvider, openFrames func() int) (*metrics, error) {
	meter := provider.Meter(meterName)

	requests, err := meter.Int64Counter(requestsMetricName,
		metric.WithDescription("Run requests served by the frame cache."),
		metric.WithUnit("{request}"))
	if err != nil {
		return nil, fmt.Errorf("create %s counter: %w", requestsMetricName, err)
	}

	extractions, err := meter.Int64Counter(extractionsMetricName,
		metric.WithDescription("Keyframe runs decoded by the frame cache."),
		metric.WithUnit("{run}"))
	if err != nil {
		return nil, fmt.Errorf("create %s counter: %w", extractionsMetricName, err)
	}

	evictions, err := meter.Int64Counter(evictionsMetricName,
		metric.WithDescription("Runs and frames evicted behind the safety window."),
		metric.WithUnit("{item}"))
	if err != nil {
		return nil, fmt.Errorf("create %s counter: %w", evictionsMetricName, err)
	}

	gauge, err := meter.Int64ObservableGauge(openFramesMetricName,
		metric.WithDescription("Decoded frames currently held by the frame cache."),
		metric.WithUnit("{frame}"))
	if err != nil {
		return nil, fmt.Errorf("create %s gauge: %w", openFramesMetricName, err)
	}

	registration, err := meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		o.ObserveInt64(gauge, int64(openFrames()))
		return nil
	}, gauge)
	if err != nil {
		return nil, fmt.Errorf("register %s callback: %w", openFramesMetricName, err)
	}

	return &metrics{
		requests:     requests,
		extractions:  extractions,
		evictions:    evictions,
		registration: registration,
	}, nil
}

func (m *metrics) hit(ctx context.Context) {
	m.requests.Add(ctx, 1, resultHit)
}

func (m *metrics) miss(ctx context.Context) {
	m.requests.Add(ctx, 1, resultMiss)
}

func (m *metrics) extracted(ctx context.Context, err error) {
	if err != nil {
		m.extractions.Add(ctx, 1, resultFailure)
		return
	}
	m.extractions.Add(ctx, 1, resultSuccess)
}

func (m *metrics) evicted(ctx context.Context, runs, frames int) {
	if runs > 0 {
		m.evictions.Add(ctx, int64(runs), kindRun)
	}
	if frames > 0 {
		m.evictions.Add(ctx, int64(frames), kindFrame)
	}
}

func (m *metrics) close() error {
	return m.registration.Unregister()
}
