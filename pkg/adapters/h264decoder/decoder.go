// Package h264decoder decodes H.264 samples by piping the elementary stream
// of one run through an ffmpeg process.
package h264decoder

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"os/exec"
	"sort"

	"github.com/user/framecache/pkg/adapters/codecdetect"
	"github.com/user/framecache/pkg/mediatime"
	"github.com/user/framecache/pkg/ports"
)

var (
	// ErrDecodeFailed is returned when ffmpeg output cannot be turned into frames.
	ErrDecodeFailed = errors.New("h264decoder: decode failed")

	// ErrFFmpegNotFound is returned when no ffmpeg binary can be located.
	ErrFFmpegNotFound = errors.New("h264decoder: ffmpeg not found in PATH")

	// ErrUnknownSize is returned when the track does not declare its dimensions.
	ErrUnknownSize = errors.New("h264decoder: track size unknown")
)

// Decoder buffers the packets of a run as an Annex B stream and decodes
// them all on Flush. Frames come out of ffmpeg in presentation order.
type Decoder struct {
	ffmpegPath    string
	width, height int
	parameterSets []byte

	stream  bytes.Buffer
	packets []ports.Packet
}

// New creates a decoder for track using the ffmpeg binary at ffmpegPath,
// or one found on the system when ffmpegPath is empty.
func New(track codecdetect.Track, ffmpegPath string) (*Decoder, error) {
	path, err := FindFFmpeg(ffmpegPath)
	if err != nil {
		return nil, err
	}
	return newDecoder(track, path)
}

func newDecoder(track codecdetect.Track, ffmpegPath string) (*Decoder, error) {
	if track.Width <= 0 || track.Height <= 0 {
		return nil, ErrUnknownSize
	}
	return &Decoder{
		ffmpegPath:    ffmpegPath,
		width:         track.Width,
		height:        track.Height,
		parameterSets: track.ParameterSets,
	}, nil
}

// Decode appends packet to the pending stream. It never returns frames.
func (d *Decoder) Decode(ctx context.Context, packet ports.Packet) ([]ports.Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Parameter sets go in front of every keyframe so a run decodes on its own.
	if packet.Key {
		d.stream.Write(d.parameterSets)
	}
	d.stream.Write(avccToAnnexB(packet.Data))
	d.packets = append(d.packets, ports.Packet{
		Timestamp: packet.Timestamp,
		Duration:  packet.Duration,
	})
	return nil, nil
}

// Flush decodes the buffered stream and returns its frames.
func (d *Decoder) Flush(ctx context.Context) ([]ports.Frame, error) {
	if len(d.packets) == 0 {
		return nil, nil
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, d.ffmpegPath,
		"-hide_banner",
		"-loglevel", "error",
		"-f", "h264",
		"-i", "pipe:0",
		"-vsync", "passthrough",
		"-f", "rawvideo",
		"-pix_fmt", "rgba",
		"pipe:1",
	)
	cmd.Stdin = bytes.NewReader(d.stream.Bytes())
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: ffmpeg: %v: %s", ErrDecodeFailed, err, stderr.String())
	}

	frames, err := d.split(stdout.Bytes())
	d.stream.Reset()
	d.packets = nil
	return frames, err
}

// split cuts raw RGBA output into frames and assigns presentation times.
func (d *Decoder) split(raw []byte) ([]ports.Frame, error) {
	frameSize := d.width * d.height * 4
	if len(raw)%frameSize != 0 {
		return nil, fmt.Errorf("%w: %d bytes of output is not a whole number of %dx%d frames", ErrDecodeFailed, len(raw), d.width, d.height)
	}

	timing := make([]ports.Packet, len(d.packets))
	copy(timing, d.packets)
	sort.Slice(timing, func(i, j int) bool {
		return timing[i].Timestamp < timing[j].Timestamp
	})

	n := len(raw) / frameSize
	if n > len(timing) {
		n = len(timing)
	}

	frames := make([]ports.Frame, n)
	for i := 0; i < n; i++ {
		img := image.NewRGBA(image.Rect(0, 0, d.width, d.height))
		copy(img.Pix, raw[i*frameSize:(i+1)*frameSize])
		frames[i] = ports.Frame{
			Image:     img,
			Timestamp: timing[i].Timestamp,
			Duration:  timing[i].Duration,
		}
	}
	return frames, nil
}

// Close discards buffered packets.
func (d *Decoder) Close() {
	d.stream.Reset()
	d.packets = nil
}

// PendingDuration returns the presentation span of buffered packets.
func (d *Decoder) PendingDuration() mediatime.Time {
	if len(d.packets) == 0 {
		return 0
	}
	first, last := d.packets[0], d.packets[0]
	for _, p := range d.packets {
		if p.Timestamp < first.Timestamp {
			first = p
		}
		if p.Timestamp > last.Timestamp {
			last = p
		}
	}
	return last.Timestamp + last.Duration - first.Timestamp
}

// Ensure Decoder implements ports.SampleDecoder
var _ ports.SampleDecoder = (*Decoder)(nil)
