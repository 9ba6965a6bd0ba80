// Package h264encoder encodes frames to H.264 with an ffmpeg process and
// muxes the elementary stream into a fragmented MP4.
package h264encoder

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	"io"
	"os/exec"
	"strconv"
	"sync"

	xdraw "golang.org/x/image/draw"

	"github.com/user/framecache/pkg/adapters/h264decoder"
	"github.com/user/framecache/pkg/mediatime"
	"github.com/user/framecache/pkg/ports"
)

// Encoder implements ports.VideoEncoder on top of ffmpeg's libx264.
// Frames are piped as raw RGBA; presentation timestamps are kept on the Go
// side and applied when muxing, so variable frame spacing survives.
type Encoder struct {
	ffmpegPath string

	mu     sync.Mutex
	width  int
	height int
	fps    float64
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout bytes.Buffer
	stderr bytes.Buffer
	stamps []mediatime.Time
}

// New locates ffmpeg (ffmpegPath wins when set) and returns an encoder.
func New(ffmpegPath string) (*Encoder, error) {
	path, err := h264decoder.FindFFmpeg(ffmpegPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFFmpegNotFound, err)
	}
	return &Encoder{ffmpegPath: path}, nil
}

// IsAvailable reports whether an ffmpeg binary can be found.
func IsAvailable(ffmpegPath string) bool {
	_, err := h264decoder.FindFFmpeg(ffmpegPath)
	return err == nil
}

// Begin starts the ffmpeg process.
func (e *Encoder) Begin(width, height int, fps float64, opts ports.EncoderOptions) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.cmd != nil {
		return ErrAlreadyStarted
	}
	if width <= 0 || height <= 0 || fps <= 0 {
		return fmt.Errorf("invalid geometry %dx%d @ %v fps", width, height, fps)
	}
	// yuv420p needs even dimensions
	width &^= 1
	height &^= 1

	e.width, e.height, e.fps = width, height, fps
	e.stamps = e.stamps[:0]
	e.stdout.Reset()
	e.stderr.Reset()

	cmd := exec.Command(e.ffmpegPath, buildArgs(width, height, fps, opts)...)
	cmd.Stdout = &e.stdout
	cmd.Stderr = &e.stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("stdin pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start ffmpeg: %w", err)
	}
	e.cmd = cmd
	e.stdin = stdin
	return nil
}

// buildArgs returns the ffmpeg arguments for a raw RGBA to Annex B encode.
// Quality uses the 0-63 scale shared with the AV1 encoder and is mapped
// onto x264's 0-51 CRF range.
func buildArgs(width, height int, fps float64, opts ports.EncoderOptions) []string {
	args := []string{
		"-hide_banner", "-loglevel", "error",
		"-f", "rawvideo",
		"-pix_fmt", "rgba",
		"-s", fmt.Sprintf("%dx%d", width, height),
		"-r", strconv.FormatFloat(fps, 'f', -1, 64),
		"-i", "pipe:0",
		"-c:v", "libx264",
		"-preset", "fast",
		"-profile:v", "baseline",
		"-pix_fmt", "yuv420p",
		"-bf", "0",
		"-x264-params", "aud=1",
	}

	crf := 23
	if opts.Quality > 0 && opts.Quality <= 63 {
		crf = opts.Quality * 51 / 63
	}
	args = append(args, "-crf", strconv.Itoa(crf))

	if opts.Bitrate > 0 {
		args = append(args, "-b:v", fmt.Sprintf("%dk", opts.Bitrate))
	}
	if opts.KeyframeInterval > 0 {
		args = append(args, "-g", strconv.Itoa(opts.KeyframeInterval))
	}

	return append(args, "-f", "h264", "pipe:1")
}

// EncodeFrame writes one frame presented at ts. Frames of a different
// size are scaled to the encoder geometry.
func (e *Encoder) EncodeFrame(img image.Image, ts mediatime.Time) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.stdin == nil {
		return ErrNotInitialized
	}

	rgba := image.NewRGBA(image.Rect(0, 0, e.width, e.height))
	b := img.Bounds()
	if b.Dx() == e.width && b.Dy() == e.height {
		draw.Draw(rgba, rgba.Bounds(), img, b.Min, draw.Src)
	} else {
		xdraw.ApproxBiLinear.Scale(rgba, rgba.Bounds(), img, b, xdraw.Src, nil)
	}

	if _, err := e.stdin.Write(rgba.Pix); err != nil {
		return fmt.Errorf("%w: %v: %s", ErrEncodingFailed, err, e.stderr.String())
	}
	e.stamps = append(e.stamps, ts)
	return nil
}

// End waits for ffmpeg and returns the muxed MP4. The encoder can be
// started again afterwards.
func (e *Encoder) End() ([]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.stdin == nil {
		return nil, ErrNotInitialized
	}

	e.stdin.Close()
	err := e.cmd.Wait()
	e.stdin = nil
	e.cmd = nil
	if err != nil {
		return nil, fmt.Errorf("%w: %v: %s", ErrEncodingFailed, err, e.stderr.String())
	}

	units := splitAccessUnits(e.stdout.Bytes())
	if len(units) != len(e.stamps) {
		return nil, fmt.Errorf("%w: %d frames in, %d access units out",
			ErrEncodingFailed, len(e.stamps), len(units))
	}

	frames := make([]encodedFrame, len(units))
	for i, au := range units {
		frames[i] = encodedFrame{
			data:       au,
			timestamp:  e.stamps[i],
			isKeyframe: isIDR(au),
		}
	}

	return buildMP4(frames, e.width, e.height, e.fps)
}

var _ ports.VideoEncoder = (*Encoder)(nil)
