// Package summarizer provides summary generation for render jobs.
package summarizer

import (
	"time"

	"github.com/user/framecache/pkg/framecache"
	"github.com/user/framecache/pkg/mediatime"
)

// Summary contains all data collected during a render job.
type Summary struct {
	// Metadata
	GeneratedAt time.Time

	// Job and its inputs
	Job JobInfo

	// Requested frames
	Frames FrameInfo

	// Cache behavior over the job
	Cache framecache.Stats

	// Output details
	Output OutputInfo
}

// JobInfo describes the job that ran.
type JobInfo struct {
	Kind    string // frames, sheet, clip or juxtapose
	Sources []string
	Codec   string
	Elapsed time.Duration
}

// FrameInfo describes the requested timestamps.
type FrameInfo struct {
	Count   int
	Start   mediatime.Time
	End     mediatime.Time
	FPS     float64
	Retries int
}

// OutputInfo describes what the job wrote.
type OutputInfo struct {
	Path     string
	Files    int
	Bytes    int64
	Width    int
	Height   int
	Duration mediatime.Time // Video outputs only
}

// NewSummary creates a new Summary with the current timestamp.
func NewSummary() *Summary {
	return &Summary{
		GeneratedAt: time.Now(),
	}
}

// Builder provides a fluent interface for building a Summary.
type Builder struct {
	summary *Summary
}

// NewBuilder creates a new Builder.
func NewBuilder() *Builder {
	return &Builder{
		summary: NewSummary(),
	}
}

// WithJob sets job information.
func (b *Builder) WithJob(kind, codec string, sources ...string) *Builder {
	b.summary.Job.Kind = kind
	b.summary.Job.Codec = codec
	b.summary.Job.Sources = sources
	return b
}

// WithElapsed sets the wall-clock time the job took.
func (b *Builder) WithElapsed(d time.Duration) *Builder {
	b.summary.Job.Elapsed = d
	return b
}

// WithFrames sets frame request information.
func (b *Builder) WithFrames(frames FrameInfo) *Builder {
	b.summary.Frames = frames
	return b
}

// WithCache sets cache statistics.
func (b *Builder) WithCache(stats framecache.Stats) *Builder {
	b.summary.Cache = stats
	return b
}

// WithOutput sets output information.
func (b *Builder) WithOutput(output OutputInfo) *Builder {
	b.summary.Output = output
	return b
}

// Build returns the constructed Summary.
func (b *Builder) Build() *Summary {
	return b.summary
}

// HitRate returns the share of requests served without extraction, or 0
// when nothing was requested.
func (s *Summary) HitRate() float64 {
	total := s.Cache.Hits + s.Cache.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Cache.Hits) / float64(total)
}
