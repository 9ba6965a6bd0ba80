// Package framecache shares decoded frame runs between concurrent renderers.
//
// A Manager keys runs by source and keyframe timestamp. Concurrent requests
// for the same keyframe wait on a single extraction. Before every lookup the
// manager evicts frames that fall behind the requested timestamp by more than
// the safety window, so memory stays bounded while playback moves forward.
package framecache

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/user/framecache/pkg/extractor"
	"github.com/user/framecache/pkg/framerun"
	"github.com/user/framecache/pkg/mediatime"
	"github.com/user/framecache/pkg/ports"
)

// Stats is a snapshot of cache state and lifetime counters.
type Stats struct {
	Sources       int
	Runs          int
	InFlight      int
	OpenFrames    int
	Hits          int64
	Misses        int64
	Extractions   int64
	Failures      int64
	RunsEvicted   int64
	FramesEvicted int64
}

// entry is a run slot. It is registered before extraction starts so that
// concurrent requests for the same keyframe find it and wait on done.
type entry struct {
	done chan struct{}
	run  *framerun.Run
	err  error
}

func newEntry() *entry {
	return &entry{done: make(chan struct{})}
}

func (e *entry) resolved() bool {
	select {
	case <-e.done:
		return true
	default:
		return false
	}
}

func (e *entry) wait(ctx context.Context) (*framerun.Run, error) {
	select {
	case <-e.done:
		return e.run, e.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// sourceCache holds the open media and runs of one source.
type sourceCache struct {
	name    string
	media   ports.Media
	runs    map[mediatime.Time]*entry
	pending sync.WaitGroup
}

// Manager is a concurrency-safe cache of frame runs.
type Manager struct {
	opener    ports.MediaOpener
	extractor extractor.Extractor
	window    mediatime.Time
	verify    bool
	logger    ports.Logger
	metrics   *metrics

	opening singleflight.Group

	mu      sync.Mutex
	sources map[string]*sourceCache
	closed  bool
	stats   Stats
}

// New creates a Manager that opens sources through opener.
func New(opener ports.MediaOpener, opts Options) (*Manager, error) {
	opts = opts.withDefaults()

	m := &Manager{
		opener:    opener,
		extractor: opts.Extractor,
		window:    opts.SafetyWindow,
		verify:    opts.VerifyKeyframes,
		logger:    opts.Logger.WithComponent("framecache"),
		sources:   make(map[string]*sourceCache),
	}

	met, err := newMetrics(opts.MeterProvider, func() int { return m.Stats().OpenFrames })
	if err != nil {
		return nil, err
	}
	m.metrics = met

	return m, nil
}

// RequestRun returns a run that covers ts in source, extracting it if needed.
//
// Runs behind ts by more than the safety window are evicted first. The
// returned run may later be trimmed by requests for later timestamps, so
// callers that miss a frame in it should request again.
func (m *Manager) RequestRun(ctx context.Context, source string, ts mediatime.Time) (*framerun.Run, error) {
	for {
		sc, err := m.source(ctx, source)
		if err != nil {
			return nil, err
		}

		m.sweep(ctx, sc, ts)

		key, err := sc.media.KeyPacket(ctx, ts, ports.KeyPacketOptions{Verify: m.verify})
		if err != nil {
			return nil, fmt.Errorf("find keyframe for %s at %s: %w", source, ts, err)
		}
		if key == nil {
			return nil, fmt.Errorf("%w: %s at %s", ErrNoKeyframeFound, source, ts)
		}

		run, err := m.runFor(ctx, sc, *key, ts)
		if err == errSourceFlushed {
			continue
		}
		return run, err
	}
}

// runFor looks up or extracts the run keyed at key. It loops when a cached
// run was trimmed past ts and has to be replaced.
func (m *Manager) runFor(ctx context.Context, sc *sourceCache, key ports.Packet, ts mediatime.Time) (*framerun.Run, error) {
	for {
		e, created, err := m.lookupOrCreate(ctx, sc, key)
		if err != nil {
			return nil, err
		}

		run, err := e.wait(ctx)
		if err != nil {
			return nil, err
		}

		if created {
			m.metrics.miss(ctx)
			return run, nil
		}

		// A run that never reached ts cannot be helped by decoding it again,
		// so past the end it is still a hit: one extraction per keyframe.
		if run.HasFrame(ts) || ts > run.EndTimestamp() {
			m.recordHit(ctx)
			return run, nil
		}

		m.discard(sc, key.Timestamp, e, ts)
	}
}

// lookupOrCreate returns the entry for key, registering a new one and
// starting its extraction when none exists. Lookup and registration share one
// critical section, so a keyframe is never extracted twice concurrently.
func (m *Manager) lookupOrCreate(ctx context.Context, sc *sourceCache, key ports.Packet) (*entry, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, false, ErrClosed
	}
	if m.sources[sc.name] != sc {
		return nil, false, errSourceFlushed
	}

	if e, ok := sc.runs[key.Timestamp]; ok {
		return e, false, nil
	}

	e := newEntry()
	sc.runs[key.Timestamp] = e
	sc.pending.Add(1)
	m.stats.Misses++
	m.stats.Extractions++

	go m.extract(context.WithoutCancel(ctx), sc, key, e)

	return e, true, nil
}

// extract runs detached from the requesting caller so that one waiter
// giving up does not fail the others.
func (m *Manager) extract(ctx context.Context, sc *sourceCache, key ports.Packet, e *entry) {
	defer sc.pending.Done()

	m.logger.Debug("Extracting run for %s at keyframe %s", sc.name, key.Timestamp)
	run, err := m.decodeRun(ctx, sc, key)

	m.mu.Lock()
	if err != nil {
		m.stats.Failures++
		// Only remove what we registered. A flush may already have dropped it.
		if sc.runs[key.Timestamp] == e {
			delete(sc.runs, key.Timestamp)
		}
	}
	e.run, e.err = run, err
	close(e.done)
	m.mu.Unlock()

	m.metrics.extracted(ctx, err)
	if err != nil {
		m.logger.Warn("Extraction failed for %s at keyframe %s: %v", sc.name, key.Timestamp, err)
		return
	}
	m.logger.Debug("Extracted %d frames for %s at keyframe %s", run.OpenFrameCount(), sc.name, key.Timestamp)
}

func (m *Manager) decodeRun(ctx context.Context, sc *sourceCache, key ports.Packet) (*framerun.Run, error) {
	fail := func(err error) (*framerun.Run, error) {
		return nil, &ExtractionError{Source: sc.name, Keyframe: key.Timestamp, Err: err}
	}

	decoder, err := sc.media.NewDecoder()
	if err != nil {
		return fail(fmt.Errorf("create decoder: %w", err))
	}
	defer decoder.Close()

	run, err := m.extractor.ExtractRun(ctx, sc.name, key, sc.media, decoder)
	if err != nil {
		return fail(err)
	}
	if run.StartTimestamp() != key.Timestamp {
		run.PrepareForDeletion()
		return fail(fmt.Errorf("%w: run starts at %s, keyframe at %s", framerun.ErrInvalidRun, run.StartTimestamp(), key.Timestamp))
	}
	return run, nil
}

// discard drops a run that no longer covers ts so it can be extracted again.
func (m *Manager) discard(sc *sourceCache, keyTs mediatime.Time, e *entry, ts mediatime.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if sc.runs[keyTs] != e {
		return
	}
	delete(sc.runs, keyTs)
	e.run.PrepareForDeletion()
	m.stats.RunsEvicted++

	if e.run.HasFrame(ts) {
		panic(fmt.Errorf("%w: deleted run for %s at %s still covers %s", ErrInvariantViolation, sc.name, keyTs, ts))
	}
	m.logger.Debug("Run for %s at keyframe %s was trimmed past %s, extracting again", sc.name, keyTs, ts)
}

func (m *Manager) recordHit(ctx context.Context) {
	m.mu.Lock()
	m.stats.Hits++
	m.mu.Unlock()
	m.metrics.hit(ctx)
}

// source returns the cache for a source, opening its media on first use.
// Concurrent first requests share one open.
func (m *Manager) source(ctx context.Context, source string) (*sourceCache, error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, ErrClosed
	}
	if sc, ok := m.sources[source]; ok {
		m.mu.Unlock()
		return sc, nil
	}
	m.mu.Unlock()

	v, err, _ := m.opening.Do(source, func() (interface{}, error) {
		m.mu.Lock()
		if sc, ok := m.sources[source]; ok {
			m.mu.Unlock()
			return sc, nil
		}
		m.mu.Unlock()

		media, err := m.opener.Open(context.WithoutCancel(ctx), source)
		if err != nil {
			return nil, fmt.Errorf("open source %s: %w", source, err)
		}

		sc := &sourceCache{
			name:  source,
			media: media,
			runs:  make(map[mediatime.Time]*entry),
		}

		m.mu.Lock()
		if m.closed {
			m.mu.Unlock()
			_ = media.Close()
			return nil, ErrClosed
		}
		m.sources[source] = sc
		m.mu.Unlock()

		m.logger.Debug("Opened source %s (%s)", source, media.Codec())
		return sc, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*sourceCache), nil
}

// Flush waits for in-flight extractions of source, releases its runs and
// closes its media. Later requests reopen the source.
func (m *Manager) Flush(ctx context.Context, source string) error {
	m.mu.Lock()
	sc, ok := m.sources[source]
	if ok {
		delete(m.sources, source)
	}
	m.mu.Unlock()

	if !ok {
		return nil
	}
	return m.release(ctx, sc)
}

// Close flushes every source. Requests made afterwards return ErrClosed.
func (m *Manager) Close(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	m.closed = true
	sources := make([]*sourceCache, 0, len(m.sources))
	for _, sc := range m.sources {
		sources = append(sources, sc)
	}
	m.sources = make(map[string]*sourceCache)
	m.mu.Unlock()

	var firstErr error
	for _, sc := range sources {
		if err := m.release(ctx, sc); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if err := m.metrics.close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

// release tears down a source cache that is no longer registered.
func (m *Manager) release(ctx context.Context, sc *sourceCache) error {
	done := make(chan error, 1)
	go func() {
		sc.pending.Wait()

		m.mu.Lock()
		var runs []*framerun.Run
		for keyTs, e := range sc.runs {
			if e.err == nil && e.run != nil {
				runs = append(runs, e.run)
			}
			delete(sc.runs, keyTs)
		}
		m.mu.Unlock()

		for _, run := range runs {
			run.PrepareForDeletion()
		}
		m.logger.Debug("Flushed %d runs for %s", len(runs), sc.name)

		if err := sc.media.Close(); err != nil {
			done <- fmt.Errorf("close source %s: %w", sc.name, err)
			return
		}
		done <- nil
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stats returns a snapshot of the cache.
func (m *Manager) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.stats
	s.Sources = len(m.sources)
	for _, sc := range m.sources {
		for _, e := range sc.runs {
			if !e.resolved() {
				s.InFlight++
				continue
			}
			s.Runs++
		}
	}
	s.OpenFrames = m.openFramesLocked()
	return s
}

// Codec reports the codec of an open source, or "" when the source has not
// been opened or was flushed.
func (m *Manager) Codec(source string) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	if sc, ok := m.sources[source]; ok {
		return sc.media.Codec()
	}
	return ""
}
