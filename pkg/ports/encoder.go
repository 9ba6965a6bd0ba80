package ports

import (
	"image"

	"github.com/user/framecache/pkg/mediatime"
)

// VideoEncoder abstracts video encoding operations.
type VideoEncoder interface {
	// Begin initializes the encoder with the specified dimensions and frame rate.
	Begin(width, height int, fps float64, opts EncoderOptions) error

	// EncodeFrame encodes a single frame presented at ts.
	EncodeFrame(img image.Image, ts mediatime.Time) error

	// End finalizes encoding and returns the video as an MP4 file.
	End() ([]byte, error)
}

// EncoderOptions configures video encoding parameters.
type EncoderOptions struct {
	Bitrate int // Target bitrate in kbps
	Quality int // CRF value: 0-63 (lower is higher quality)
	// KeyframeInterval is the maximum distance between keyframes in frames.
	// 0 leaves the choice to the encoder.
	KeyframeInterval int
}
