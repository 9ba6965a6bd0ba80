// Package smartencoder selects a video encoder for an output codec,
// falling back to AV1 when H.264 is unavailable.
package smartencoder

import (
	"errors"
	"fmt"
	"strings"

	"github.com/user/framecache/pkg/adapters/av1encoder"
	"github.com/user/framecache/pkg/adapters/h264encoder"
	"github.com/user/framecache/pkg/ports"
)

// Codec represents the output video codec.
type Codec string

const (
	// CodecH264 represents H.264/AVC.
	CodecH264 Codec = "h264"
	// CodecAV1 represents AV1.
	CodecAV1 Codec = "av1"
)

// Backend represents the encoding backend used.
type Backend string

const (
	// BackendFFmpeg encodes H.264 through an ffmpeg process.
	BackendFFmpeg Backend = "ffmpeg"
	// BackendLibaom encodes AV1 in process with libaom.
	BackendLibaom Backend = "libaom"
)

// Info describes the selected encoder.
type Info struct {
	Codec          Codec
	Backend        Backend
	RequestedCodec Codec
	FallbackUsed   bool
}

// Options configures encoder selection.
type Options struct {
	// FFmpegPath is an optional custom path to the ffmpeg binary.
	FFmpegPath string
	// NoFallback makes a missing H.264 encoder an error instead of
	// switching to AV1.
	NoFallback bool
	// Logger receives the fallback warning.
	Logger ports.Logger
}

var (
	// ErrNoEncoderAvailable is returned when H.264 is requested without
	// fallback and no ffmpeg can be found.
	ErrNoEncoderAvailable = errors.New("smartencoder: no encoder available")

	// ErrUnknownCodec is returned by ParseCodec for unsupported names.
	ErrUnknownCodec = errors.New("smartencoder: unknown codec")
)

// ParseCodec maps a user supplied codec name. Empty selects AV1.
func ParseCodec(s string) (Codec, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "av1", "av01":
		return CodecAV1, nil
	case "h264", "h.264", "avc", "avc1":
		return CodecH264, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownCodec, s)
	}
}

// New returns an encoder for the preferred codec.
func New(preferred Codec, opts Options) (ports.VideoEncoder, Info, error) {
	if preferred != CodecH264 {
		return av1encoder.New(), Info{
			Codec:          CodecAV1,
			Backend:        BackendLibaom,
			RequestedCodec: preferred,
		}, nil
	}

	if enc, err := h264encoder.New(opts.FFmpegPath); err == nil {
		return enc, Info{
			Codec:          CodecH264,
			Backend:        BackendFFmpeg,
			RequestedCodec: CodecH264,
		}, nil
	}

	if opts.NoFallback {
		return nil, Info{RequestedCodec: CodecH264}, ErrNoEncoderAvailable
	}

	if opts.Logger != nil {
		opts.Logger.Warn("H.264 encoder not available, falling back to AV1")
	}
	return av1encoder.New(), Info{
		Codec:          CodecAV1,
		Backend:        BackendLibaom,
		RequestedCodec: CodecH264,
		FallbackUsed:   true,
	}, nil
}

// IsH264Available reports whether H.264 encoding can run.
func IsH264Available(ffmpegPath string) bool {
	return h264encoder.IsAvailable(ffmpegPath)
}
