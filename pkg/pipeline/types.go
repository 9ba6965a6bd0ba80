package pipeline

import (
	"errors"
	"image"
	"image/color"

	"github.com/user/framecache/pkg/mediatime"
)

// ErrInvalidSpan is returned by Span.Timestamps for an empty or inverted span.
var ErrInvalidSpan = errors.New("pipeline: invalid span")

// =============================================================================
// Common Types
// =============================================================================

// Span selects timestamps from Start to End (inclusive) at FPS samples per second.
type Span struct {
	Start mediatime.Time
	End   mediatime.Time
	FPS   float64
}

// Timestamps expands the span into sample timestamps.
func (s Span) Timestamps() ([]mediatime.Time, error) {
	if s.FPS <= 0 || s.End < s.Start {
		return nil, ErrInvalidSpan
	}

	step := mediatime.FromSeconds(1 / s.FPS)
	if step <= 0 {
		return nil, ErrInvalidSpan
	}

	var out []mediatime.Time
	for i := 0; ; i++ {
		// Multiply rather than accumulate so rounding does not drift.
		ts := s.Start + mediatime.FromSeconds(float64(i)/s.FPS)
		if ts > s.End {
			break
		}
		out = append(out, ts)
	}
	return out, nil
}

// FetchedFrame is one frame read out of the cache.
type FetchedFrame struct {
	Index     int            // Position in the request list
	Requested mediatime.Time // Timestamp that was asked for
	Timestamp mediatime.Time // Presentation timestamp of the frame shown at Requested
	Image     image.Image
}

// =============================================================================
// Fetch Stage Types
// =============================================================================

// FetchInput lists the timestamps to read from one source.
type FetchInput struct {
	Source     string
	Timestamps []mediatime.Time
}

// FetchResult holds fetched frames in request order.
type FetchResult struct {
	Frames []FetchedFrame
	// Retries counts requests repeated because the run was trimmed before
	// the frame could be read.
	Retries int
}

// =============================================================================
// Export Stage Types
// =============================================================================

// ExportInput contains frames to write through a FrameSink.
type ExportInput struct {
	Frames   []FetchedFrame
	Width    int    // Output width; 0 keeps the decoded size
	Manifest string // Report listing requested and decoded timestamps; empty skips it
}

// ExportResult reports what was written.
type ExportResult struct {
	Saved int
}

// =============================================================================
// Sheet Stage Types
// =============================================================================

// SheetInput contains parameters for contact sheet rendering.
type SheetInput struct {
	Title      string
	Frames     []FetchedFrame
	Columns    int // Thumbnails per row (default: 4)
	ThumbWidth int // Thumbnail width (default: 240)
	Gap        int // Gap between thumbnails (default: 8)
	Padding    int // Padding around the sheet (default: 16)
	LabelSize  float64
	Theme      SheetTheme
}

// DefaultSheetInput returns SheetInput with default values.
func DefaultSheetInput() SheetInput {
	return SheetInput{
		Columns:    4,
		ThumbWidth: 240,
		Gap:        8,
		Padding:    16,
		LabelSize:  12,
		Theme:      DefaultSheetTheme(),
	}
}

// SheetTheme defines contact sheet styling.
type SheetTheme struct {
	BackgroundColor color.Color
	BorderColor     color.Color
	TextColor       color.Color
}

// DefaultSheetTheme returns a default sheet theme.
func DefaultSheetTheme() SheetTheme {
	return SheetTheme{
		BackgroundColor: color.RGBA{R: 30, G: 30, B: 30, A: 255},
		BorderColor:     color.RGBA{R: 80, G: 80, B: 80, A: 255},
		TextColor:       color.White,
	}
}

// SheetResult contains the rendered sheet.
type SheetResult struct {
	Image   image.Image
	Rows    int
	Columns int
}

// =============================================================================
// Clip Stage Types
// =============================================================================

// ClipInput contains parameters for re-encoding fetched frames.
type ClipInput struct {
	Frames           []FetchedFrame
	FPS              float64
	Quality          int // CRF: 0-63 (lower is higher quality)
	Bitrate          int // Target bitrate in kbps
	KeyframeInterval int // Frames between keyframes; 0 leaves it to the encoder
}

// DefaultClipInput returns ClipInput with default values.
func DefaultClipInput() ClipInput {
	return ClipInput{
		FPS:              30.0,
		Quality:          30,
		Bitrate:          1000,
		KeyframeInterval: 30,
	}
}

// ClipResult contains the encoded clip.
type ClipResult struct {
	VideoData  []byte
	FrameCount int
	Duration   mediatime.Time
}
