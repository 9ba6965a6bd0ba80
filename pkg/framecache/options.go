package framecache

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"github.com/user/framecache/pkg/adapters/logger"
	"github.com/user/framecache/pkg/extractor"
	"github.com/user/framecache/pkg/mediatime"
	"github.com/user/framecache/pkg/ports"
)

// DefaultSafetyWindow is how far behind the newest request frames are kept.
const DefaultSafetyWindow = mediatime.Second

// Options configures a Manager. Start from DefaultOptions: a zero
// SafetyWindow evicts right behind the newest request and a zero
// VerifyKeyframes trusts container sync flags.
type Options struct {
	// SafetyWindow is the trailing source-time margin kept before eviction.
	// Absorbs slightly out-of-order requests from concurrent renderers.
	// Negative values are treated as zero.
	SafetyWindow mediatime.Time

	// VerifyKeyframes asks the packet source to confirm keyframes from their payload.
	VerifyKeyframes bool

	// Extractor decodes runs. Defaults to extractor.NewForward with no frame cap.
	Extractor extractor.Extractor

	// Logger receives cache diagnostics. Defaults to a no-op logger.
	Logger ports.Logger

	// MeterProvider records cache metrics. Defaults to the global provider.
	MeterProvider metric.MeterProvider
}

// DefaultOptions returns Options with default values.
func DefaultOptions() Options {
	return Options{
		SafetyWindow:    DefaultSafetyWindow,
		VerifyKeyframes: true,
	}
}

func (o Options) withDefaults() Options {
	if o.SafetyWindow < 0 {
		o.SafetyWindow = 0
	}
	if o.Extractor == nil {
		o.Extractor = extractor.NewForward(extractor.Options{})
	}
	if o.Logger == nil {
		o.Logger = logger.NewNoop()
	}
	if o.MeterProvider == nil {
		o.MeterProvider = otel.GetMeterProvider()
	}
	return o
}
