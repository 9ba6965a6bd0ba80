// Package fetch implements the frame fetch stage: a worker pool that reads
// frames for a list of timestamps through the frame cache.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/user/framecache/pkg/framerun"
	"github.com/user/framecache/pkg/mediatime"
	"github.com/user/framecache/pkg/pipeline"
	"github.com/user/framecache/pkg/ports"
)

// DefaultMaxRetries bounds how often one timestamp is requested again after
// its run was trimmed before the frame could be read.
const DefaultMaxRetries = 3

// ErrFrameUnavailable is returned when a frame stays out of reach after all retries.
var ErrFrameUnavailable = errors.New("fetch: frame unavailable")

// RunRequester resolves the cached run covering a timestamp.
type RunRequester interface {
	RequestRun(ctx context.Context, source string, ts mediatime.Time) (*framerun.Run, error)
}

// Stage fetches frames through a RunRequester.
type Stage struct {
	cache      RunRequester
	logger     ports.Logger
	numWorkers int
	maxRetries int
}

// NewStage creates a new fetch stage.
func NewStage(cache RunRequester, logger ports.Logger, numWorkers, maxRetries int) *Stage {
	if numWorkers <= 0 {
		numWorkers = runtime.NumCPU()
	}
	if maxRetries < 0 {
		maxRetries = DefaultMaxRetries
	}
	return &Stage{
		cache:      cache,
		logger:     logger.WithComponent("fetch"),
		numWorkers: numWorkers,
		maxRetries: maxRetries,
	}
}

// Execute fetches every requested timestamp. Frames are returned in request order.
func (s *Stage) Execute(ctx context.Context, input pipeline.FetchInput) (pipeline.FetchResult, error) {
	if len(input.Timestamps) == 0 {
		return pipeline.FetchResult{Frames: []pipeline.FetchedFrame{}}, nil
	}

	numWorkers := s.numWorkers
	if numWorkers > len(input.Timestamps) {
		numWorkers = len(input.Timestamps)
	}
	s.logger.Debug("Fetching %d frames from %s with %d workers", len(input.Timestamps), input.Source, numWorkers)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	jobs := make(chan int, len(input.Timestamps))
	results := make(chan pipeline.FetchedFrame, len(input.Timestamps))
	errChan := make(chan error, numWorkers)
	var retries atomic.Int64

	var wg sync.WaitGroup
	for w := 0; w < numWorkers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				if ctx.Err() != nil {
					return
				}

				frame, n, err := s.fetch(ctx, input.Source, input.Timestamps[idx])
				retries.Add(int64(n))
				if err != nil {
					select {
					case errChan <- fmt.Errorf("fetch frame %d at %s: %w", idx, input.Timestamps[idx], err):
					default:
					}
					cancel()
					return
				}

				results <- pipeline.FetchedFrame{
					Index:     idx,
					Requested: input.Timestamps[idx],
					Timestamp: frame.Timestamp,
					Image:     frame.Image,
				}
			}
		}()
	}

	// Jobs are queued in request order so concurrent requests stay close to
	// each other on the timeline.
	for i := range input.Timestamps {
		jobs <- i
	}
	close(jobs)

	go func() {
		wg.Wait()
		close(results)
		close(errChan)
	}()

	frames := make([]pipeline.FetchedFrame, 0, len(input.Timestamps))
	for f := range results {
		frames = append(frames, f)
	}

	if err := <-errChan; err != nil {
		return pipeline.FetchResult{}, err
	}
	if err := ctx.Err(); err != nil && len(frames) < len(input.Timestamps) {
		return pipeline.FetchResult{}, err
	}

	sort.Slice(frames, func(i, j int) bool {
		return frames[i].Index < frames[j].Index
	})

	result := pipeline.FetchResult{Frames: frames, Retries: int(retries.Load())}
	s.logger.Debug("Fetched %d frames (%d retries)", len(frames), result.Retries)
	return result, nil
}

// fetch reads the frame shown at ts, requesting the run again if another
// request's eviction trimmed it in between.
func (s *Stage) fetch(ctx context.Context, source string, ts mediatime.Time) (ports.Frame, int, error) {
	retries := 0
	for {
		run, err := s.cache.RequestRun(ctx, source, ts)
		if err != nil {
			return ports.Frame{}, retries, err
		}

		if f, ok := run.FrameAt(ts); ok {
			return f, retries, nil
		}
		// Past the last decoded frame the last frame stays on screen.
		if ts > run.EndTimestamp() {
			if f, ok := run.FrameAt(run.EndTimestamp()); ok {
				return f, retries, nil
			}
		}

		if retries >= s.maxRetries {
			return ports.Frame{}, retries, ErrFrameUnavailable
		}
		retries++
		s.logger.Debug("Frame at %s was trimmed from run at %s, requesting again", ts, run.StartTimestamp())
	}
}
