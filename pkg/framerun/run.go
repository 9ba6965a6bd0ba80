// Package framerun holds a run of decoded frames that starts at a keyframe.
//
// A Run is created by an extractor, shared through the cache, trimmed from the
// front as playback moves on, and finally released. It is safe for concurrent
// use: render workers read frames while eviction sweeps trim the same run.
package framerun

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/user/framecache/pkg/mediatime"
	"github.com/user/framecache/pkg/ports"
)

// ErrInvalidRun is returned when frames handed to New break run ordering.
var ErrInvalidRun = errors.New("framerun: invalid run")

// State is the lifecycle state of a Run.
type State int

const (
	// Open runs serve frames and may be trimmed.
	Open State = iota
	// Deleted runs hold no frames. Terminal.
	Deleted
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case Open:
		return "open"
	case Deleted:
		return "deleted"
	default:
		return "unknown"
	}
}

// Run owns the decoded frames from one keyframe onwards.
type Run struct {
	source string
	start  mediatime.Time
	end    mediatime.Time

	mu     sync.RWMutex
	frames []ports.Frame
	from   mediatime.Time // coverage floor, raised by front trims
	state  State
}

// New creates an open run keyed at start.
// Frames must be non-empty, sorted by timestamp and not earlier than start.
func New(source string, start mediatime.Time, frames []ports.Frame) (*Run, error) {
	if len(frames) == 0 {
		return nil, fmt.Errorf("%w: no frames", ErrInvalidRun)
	}

	for i, f := range frames {
		if f.Timestamp < start {
			return nil, fmt.Errorf("%w: frame %d at %s precedes keyframe at %s", ErrInvalidRun, i, f.Timestamp, start)
		}
		if i > 0 && f.Timestamp < frames[i-1].Timestamp {
			return nil, fmt.Errorf("%w: frame %d at %s is out of order", ErrInvalidRun, i, f.Timestamp)
		}
	}

	owned := make([]ports.Frame, len(frames))
	copy(owned, frames)

	return &Run{
		source: source,
		start:  start,
		end:    owned[len(owned)-1].Timestamp,
		frames: owned,
		from:   owned[0].Timestamp,
		state:  Open,
	}, nil
}

// Source returns the identifier of the video this run was decoded from.
func (r *Run) Source() string {
	return r.source
}

// StartTimestamp returns the keyframe timestamp the run is keyed by.
// It stays fixed even after the keyframe itself has been trimmed.
func (r *Run) StartTimestamp() mediatime.Time {
	return r.start
}

// EndTimestamp returns the timestamp of the last frame of the run.
// Front trimming never changes it.
func (r *Run) EndTimestamp() mediatime.Time {
	return r.end
}

// State returns the current lifecycle state.
func (r *Run) State() State {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state
}

// OpenFrameCount returns the number of frames currently retained.
func (r *Run) OpenFrameCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.frames)
}

// HasFrame reports whether the run can serve a frame for ts.
func (r *Run) HasFrame(ts mediatime.Time) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.covers(ts)
}

// FrameAt returns the retained frame displayed at ts: the one with the
// greatest timestamp not after ts.
func (r *Run) FrameAt(ts mediatime.Time) (ports.Frame, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if !r.covers(ts) {
		return ports.Frame{}, false
	}

	// First frame strictly after ts; covers guarantees i > 0.
	i := sort.Search(len(r.frames), func(i int) bool {
		return r.frames[i].Timestamp > ts
	})
	return r.frames[i-1], true
}

// Frames returns a copy of the retained frames.
func (r *Run) Frames() []ports.Frame {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]ports.Frame, len(r.frames))
	copy(out, r.frames)
	return out
}

// covers must be called with mu held.
func (r *Run) covers(ts mediatime.Time) bool {
	if r.state != Open || len(r.frames) == 0 {
		return false
	}
	if ts < r.from {
		return false
	}
	last := r.frames[len(r.frames)-1]
	return ts <= last.Timestamp || ts < last.Timestamp+last.Duration
}

// DeleteFramesBeforeTimestamp raises the coverage floor to threshold and
// drops every frame whose display ends at or before it. The frame shown at
// threshold is kept even when its timestamp is earlier, so coverage of
// timestamps at or after threshold does not change. Returns how many frames
// were dropped.
func (r *Run) DeleteFramesBeforeTimestamp(threshold mediatime.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != Open || threshold <= r.from {
		return 0
	}
	r.from = threshold

	// First frame after threshold; the one before it is on screen at threshold.
	j := sort.Search(len(r.frames), func(i int) bool {
		return r.frames[i].Timestamp > threshold
	})
	n := j - 1
	if n < 0 {
		n = 0
	}
	if j == len(r.frames) && j > 0 {
		last := r.frames[j-1]
		if last.Timestamp < threshold && last.Timestamp+last.Duration <= threshold {
			n = j
		}
	}
	if n == 0 {
		return 0
	}

	// Copy the tail so the dropped prefix is not pinned by the backing array.
	kept := make([]ports.Frame, len(r.frames)-n)
	copy(kept, r.frames[n:])
	r.frames = kept
	return n
}

// PrepareForDeletion drops every frame and moves the run to Deleted.
// Calling it more than once is a no-op.
func (r *Run) PrepareForDeletion() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frames = nil
	r.state = Deleted
}
