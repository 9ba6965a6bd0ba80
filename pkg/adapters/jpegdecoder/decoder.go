// Package jpegdecoder decodes Motion-JPEG samples. Every sample is a
// complete JPEG image, so frames come out one per packet.
package jpegdecoder

import (
	"context"
	"errors"
	"fmt"

	"github.com/user/framecache/pkg/ports"
)

// ErrEmptySample is returned for a packet without data.
var ErrEmptySample = errors.New("jpegdecoder: empty sample")

// Decoder implements ports.SampleDecoder on top of a ports.Renderer.
type Decoder struct {
	renderer ports.Renderer
}

// New creates a decoder that uses renderer to decode JPEG payloads.
func New(renderer ports.Renderer) *Decoder {
	return &Decoder{renderer: renderer}
}

// Decode returns the single frame contained in packet.
func (d *Decoder) Decode(ctx context.Context, packet ports.Packet) ([]ports.Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(packet.Data) == 0 {
		return nil, ErrEmptySample
	}

	img, err := d.renderer.DecodeImage(packet.Data, ports.FormatJPEG)
	if err != nil {
		return nil, fmt.Errorf("decode sample %d: %w", packet.Index, err)
	}

	return []ports.Frame{{
		Image:     img,
		Timestamp: packet.Timestamp,
		Duration:  packet.Duration,
	}}, nil
}

// Flush has nothing to drain.
func (d *Decoder) Flush(ctx context.Context) ([]ports.Frame, error) {
	return nil, nil
}

// Close is a no-op.
func (d *Decoder) Close() {}

var _ ports.SampleDecoder = (*Decoder)(nil)
