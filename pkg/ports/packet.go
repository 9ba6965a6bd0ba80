// Package ports defines interfaces for external dependencies.
package ports

import (
	"context"

	"github.com/user/framecache/pkg/mediatime"
)

// Packet is one encoded sample of a video track.
type Packet struct {
	Timestamp mediatime.Time // Presentation timestamp
	Duration  mediatime.Time
	Key       bool // Container marks this sample as a sync sample
	Index     int  // Position in decode order
	Data      []byte
}

// KeyPacketOptions configures keyframe lookup.
type KeyPacketOptions struct {
	// Verify requires the payload itself to prove it is a keyframe,
	// not just the container's sync flag.
	Verify bool
}

// PacketSource abstracts a demuxed video track.
type PacketSource interface {
	// KeyPacket returns the keyframe at or before ts.
	// Returns nil without error when no such keyframe exists.
	KeyPacket(ctx context.Context, ts mediatime.Time, opts KeyPacketOptions) (*Packet, error)

	// NextPacket returns the packet following after in decode order.
	// Returns nil without error at the end of the stream.
	NextPacket(ctx context.Context, after Packet) (*Packet, error)
}

// Media is an opened video source.
type Media interface {
	PacketSource

	// Codec returns the codec name of the video track (e.g. "av1").
	Codec() string

	// NewDecoder creates a fresh decoder for this media's track.
	// Each decoder is used by a single extraction.
	NewDecoder() (SampleDecoder, error)

	// Close releases the media.
	Close() error
}

// MediaOpener opens video sources by identifier (path or URL).
type MediaOpener interface {
	Open(ctx context.Context, source string) (Media, error)
}
