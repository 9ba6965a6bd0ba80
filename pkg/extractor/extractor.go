// Package extractor decodes a frame run forward from a keyframe.
package extractor

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/user/framecache/pkg/framerun"
	"github.com/user/framecache/pkg/ports"
)

var (
	// ErrNotKeyframe is returned when extraction is asked to start on a delta packet.
	ErrNotKeyframe = errors.New("extractor: start packet is not a keyframe")
	// ErrNoFrames is returned when decoding produced nothing usable.
	ErrNoFrames = errors.New("extractor: no frames decoded")
)

// Extractor materializes a frame run starting at a keyframe.
type Extractor interface {
	// ExtractRun decodes forward from key using packets and decoder.
	// The returned run is keyed at key.Timestamp.
	ExtractRun(ctx context.Context, source string, key ports.Packet, packets ports.PacketSource, decoder ports.SampleDecoder) (*framerun.Run, error)
}

// Func is a function adapter for the Extractor interface.
type Func func(ctx context.Context, source string, key ports.Packet, packets ports.PacketSource, decoder ports.SampleDecoder) (*framerun.Run, error)

// ExtractRun implements Extractor.
func (f Func) ExtractRun(ctx context.Context, source string, key ports.Packet, packets ports.PacketSource, decoder ports.SampleDecoder) (*framerun.Run, error) {
	return f(ctx, source, key, packets, decoder)
}

// Options configures the forward extractor.
type Options struct {
	// MaxFrames caps how many frames a run may hold. 0 means until the next keyframe.
	MaxFrames int
}

// Forward decodes from a keyframe up to, but excluding, the next keyframe.
type Forward struct {
	opts Options
}

// NewForward creates a forward extractor.
func NewForward(opts Options) *Forward {
	return &Forward{opts: opts}
}

// ExtractRun implements Extractor.
func (e *Forward) ExtractRun(ctx context.Context, source string, key ports.Packet, packets ports.PacketSource, decoder ports.SampleDecoder) (*framerun.Run, error) {
	if !key.Key {
		return nil, ErrNotKeyframe
	}

	var frames []ports.Frame

	pkt := &key
	for pkt != nil {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		decoded, err := decoder.Decode(ctx, *pkt)
		if err != nil {
			return nil, fmt.Errorf("decode packet %d at %s: %w", pkt.Index, pkt.Timestamp, err)
		}
		frames = append(frames, decoded...)

		if e.opts.MaxFrames > 0 && len(frames) >= e.opts.MaxFrames {
			break
		}

		next, err := packets.NextPacket(ctx, *pkt)
		if err != nil {
			return nil, fmt.Errorf("read packet after %d: %w", pkt.Index, err)
		}
		if next == nil || next.Key {
			break
		}
		pkt = next
	}

	tail, err := decoder.Flush(ctx)
	if err != nil {
		return nil, fmt.Errorf("flush decoder: %w", err)
	}
	frames = append(frames, tail...)

	frames = presentable(frames, key)
	if len(frames) == 0 {
		return nil, ErrNoFrames
	}
	if e.opts.MaxFrames > 0 && len(frames) > e.opts.MaxFrames {
		frames = frames[:e.opts.MaxFrames]
	}

	return framerun.New(source, key.Timestamp, frames)
}

// presentable sorts frames into presentation order and drops any that
// precede the keyframe (leading pictures that reference the previous run).
func presentable(frames []ports.Frame, key ports.Packet) []ports.Frame {
	sort.SliceStable(frames, func(i, j int) bool {
		return frames[i].Timestamp < frames[j].Timestamp
	})

	i := sort.Search(len(frames), func(i int) bool {
		return frames[i].Timestamp >= key.Timestamp
	})
	return frames[i:]
}

// Ensure Forward implements Extractor
var _ Extractor = (*Forward)(nil)
