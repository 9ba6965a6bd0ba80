package ports

import (
	"context"
	"image"

	"github.com/user/framecache/pkg/mediatime"
)

// Frame represents a decoded video frame with timing information.
type Frame struct {
	Image     image.Image
	Timestamp mediatime.Time
	Duration  mediatime.Time
}

// SampleDecoder abstracts decoding of encoded packets into frames.
type SampleDecoder interface {
	// Decode feeds one packet to the decoder.
	// A decoder may return zero frames while it buffers reference data.
	Decode(ctx context.Context, packet Packet) ([]Frame, error)

	// Flush drains frames still buffered in the decoder.
	Flush(ctx context.Context) ([]Frame, error)

	// Close releases decoder resources.
	Close()
}
