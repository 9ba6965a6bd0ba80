package framecache

import (
	"context"
	"errors"

	"github.com/user/framecache/pkg/mediatime"
)

// errSourceFlushed signals that a source was flushed while a request was
// using it. The request starts over and reopens the source.
var errSourceFlushed = errors.New("framecache: source flushed")

// sweep evicts everything in sc that falls behind ts by more than the safety
// window. Whole runs ending before the threshold are deleted; the rest are
// trimmed from the front. In-flight extractions are left alone.
//
// Only the requested source is swept. Other sources advance on their own
// timelines.
func (m *Manager) sweep(ctx context.Context, sc *sourceCache, ts mediatime.Time) {
	threshold := ts - m.window

	m.mu.Lock()
	if m.sources[sc.name] != sc {
		m.mu.Unlock()
		return
	}

	var runs, frames int
	for keyTs, e := range sc.runs {
		if !e.resolved() || e.err != nil {
			continue
		}
		if e.run.EndTimestamp() < threshold {
			e.run.PrepareForDeletion()
			delete(sc.runs, keyTs)
			runs++
			continue
		}
		frames += e.run.DeleteFramesBeforeTimestamp(threshold)
	}
	m.stats.RunsEvicted += int64(runs)
	m.stats.FramesEvicted += int64(frames)
	open := m.openFramesLocked()
	m.mu.Unlock()

	m.metrics.evicted(ctx, runs, frames)
	m.logger.Debug("Cache stats: %d open frames", open)
}

// openFramesLocked counts retained frames across all sources.
// m.mu must be held.
func (m *Manager) openFramesLocked() int {
	n := 0
	for _, sc := range m.sources {
		for _, e := range sc.runs {
			if e.resolved() && e.run != nil {
				n += e.run.OpenFrameCount()
			}
		}
	}
	return n
}
