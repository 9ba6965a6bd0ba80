// Package smartdecoder picks a sample decoder for a video track based on
// its codec and on which backends are available on this machine.
package smartdecoder

import (
	"errors"
	"fmt"

	"github.com/user/framecache/pkg/adapters/av1decoder"
	"github.com/user/framecache/pkg/adapters/codecdetect"
	"github.com/user/framecache/pkg/adapters/h264decoder"
	"github.com/user/framecache/pkg/adapters/jpegdecoder"
	"github.com/user/framecache/pkg/adapters/mp4source"
	"github.com/user/framecache/pkg/ports"
)

// Codec represents the video codec type (re-exported from codecdetect).
type Codec = codecdetect.Codec

// Backend represents the decoding backend used.
type Backend string

const (
	// BackendFFmpeg represents FFmpeg-based decoding.
	BackendFFmpeg Backend = "ffmpeg"
	// BackendLibaom represents libaom for AV1 decoding.
	BackendLibaom Backend = "libaom"
	// BackendImage represents per-sample still image decoding.
	BackendImage Backend = "image"
)

// Info contains information about the selected decoder.
type Info struct {
	// Codec is the detected codec.
	Codec Codec
	// Backend is the decoding backend being used.
	Backend Backend
}

// Options configures the smart decoder behavior.
type Options struct {
	// FFmpegPath is an optional custom path to the ffmpeg binary.
	FFmpegPath string
	// Renderer decodes Motion-JPEG samples. Required for MJPEG tracks.
	Renderer ports.Renderer
}

var (
	// ErrUnsupportedCodec is returned when the codec is not supported.
	ErrUnsupportedCodec = errors.New("smartdecoder: unsupported codec")
	// ErrNoDecoderAvailable is returned when no decoder is available for the codec.
	ErrNoDecoderAvailable = errors.New("smartdecoder: no decoder available")
)

// Factory creates a fresh decoder per extraction.
//
// The selection flow:
//   - AV1: libaom decoder
//   - H.264: ffmpeg subprocess, if ffmpeg can be found
//   - MJPEG: still image decoder on the configured renderer
type Factory struct {
	opts Options
}

// New creates a decoder factory.
func New(opts Options) *Factory {
	return &Factory{opts: opts}
}

// Select reports which backend would decode codec, without creating a decoder.
func (f *Factory) Select(codec Codec) (Info, error) {
	switch codec {
	case codecdetect.CodecAV1:
		return Info{Codec: codec, Backend: BackendLibaom}, nil

	case codecdetect.CodecH264:
		if !h264decoder.IsAvailable(f.opts.FFmpegPath) {
			return Info{}, fmt.Errorf("%w: %s needs ffmpeg", ErrNoDecoderAvailable, codec)
		}
		return Info{Codec: codec, Backend: BackendFFmpeg}, nil

	case codecdetect.CodecMJPEG:
		if f.opts.Renderer == nil {
			return Info{}, fmt.Errorf("%w: %s needs a renderer", ErrNoDecoderAvailable, codec)
		}
		return Info{Codec: codec, Backend: BackendImage}, nil

	default:
		return Info{}, ErrUnsupportedCodec
	}
}

// NewDecoder implements mp4source.DecoderFactory.
func (f *Factory) NewDecoder(track codecdetect.Track) (ports.SampleDecoder, error) {
	info, err := f.Select(track.Codec)
	if err != nil {
		return nil, err
	}

	switch info.Backend {
	case BackendLibaom:
		d, err := av1decoder.NewSampleDecoder()
		if err != nil {
			return nil, err
		}
		return d, nil
	case BackendFFmpeg:
		d, err := h264decoder.New(track, f.opts.FFmpegPath)
		if err != nil {
			return nil, err
		}
		return d, nil
	default:
		return jpegdecoder.New(f.opts.Renderer), nil
	}
}

// IsH264Available checks if H.264 decoding is available.
func (f *Factory) IsH264Available() bool {
	return h264decoder.IsAvailable(f.opts.FFmpegPath)
}

// IsAV1Available always returns true (libaom is always linked).
func IsAV1Available() bool {
	return true
}

// Ensure Factory implements mp4source.DecoderFactory
var _ mp4source.DecoderFactory = (*Factory)(nil)
