// Package juxtapose renders two videos side by side, reading both through
// one shared frame cache.
package juxtapose

import (
	"context"
	"errors"
	"fmt"
	"image"

	"golang.org/x/image/draw"

	"github.com/user/framecache/pkg/framerun"
	"github.com/user/framecache/pkg/mediatime"
	"github.com/user/framecache/pkg/ports"
)

// ErrInvalidOptions is returned for a non-positive frame rate or an inverted range.
var ErrInvalidOptions = errors.New("juxtapose: invalid options")

// Options configures the juxtapose operation.
type Options struct {
	// Gap is the horizontal gap between the two videos in pixels.
	Gap int
	// FPS is the output frame rate.
	FPS float64
	// Quality is the encoding quality (CRF 0-63, lower is better).
	Quality int
	// Bitrate is the target bitrate in kbps (0 = auto).
	Bitrate int
}

// DefaultOptions returns default options.
func DefaultOptions() Options {
	return Options{
		Gap:     10,
		FPS:     30.0,
		Quality: 30,
		Bitrate: 0,
	}
}

// RunRequester resolves the cached run covering a timestamp.
type RunRequester interface {
	RequestRun(ctx context.Context, source string, ts mediatime.Time) (*framerun.Run, error)
}

// Input names the two sources and the time range to render.
type Input struct {
	Left  string
	Right string
	Start mediatime.Time
	// End of the range; 0 renders until both sources have ended.
	End        mediatime.Time
	OutputPath string
}

// Result describes the written video.
type Result struct {
	FrameCount int
	Duration   mediatime.Time
	FileSize   int64
	Width      int
	Height     int
}

// Stage renders a side-by-side comparison.
type Stage struct {
	cache   RunRequester
	encoder ports.VideoEncoder
	fs      ports.FileSystem
	logger  ports.Logger
	opts    Options
}

// New creates a juxtapose stage.
func New(cache RunRequester, encoder ports.VideoEncoder, fs ports.FileSystem, logger ports.Logger, opts Options) *Stage {
	return &Stage{
		cache:   cache,
		encoder: encoder,
		fs:      fs,
		logger:  logger.WithComponent("juxtapose"),
		opts:    opts,
	}
}

// side tracks one source of the comparison.
type side struct {
	source string
	frame  image.Image
	ended  bool
}

// advance moves the side to the frame shown at ts. Once a request lands
// past the last decoded frame of the final run, the side holds that frame.
func (s *side) advance(ctx context.Context, cache RunRequester, ts mediatime.Time) error {
	if s.ended {
		return nil
	}

	run, err := cache.RequestRun(ctx, s.source, ts)
	if err != nil {
		return fmt.Errorf("%s at %s: %w", s.source, ts, err)
	}

	if ts > run.EndTimestamp() {
		s.ended = true
		if f, ok := run.FrameAt(run.EndTimestamp()); ok {
			s.frame = f.Image
		}
		if s.frame == nil {
			return fmt.Errorf("%s at %s: last frame unavailable", s.source, ts)
		}
		return nil
	}

	f, ok := run.FrameAt(ts)
	if !ok {
		return fmt.Errorf("%s at %s: frame unavailable", s.source, ts)
	}
	s.frame = f.Image
	return nil
}

// Execute renders the comparison and writes it to input.OutputPath.
// The shorter video holds its last frame until the longer one finishes.
func (s *Stage) Execute(ctx context.Context, input Input) (Result, error) {
	if s.opts.FPS <= 0 || (input.End != 0 && input.End < input.Start) {
		return Result{}, ErrInvalidOptions
	}

	left := &side{source: input.Left}
	right := &side{source: input.Right}
	var (
		result Result
		canvas *image.RGBA
		leftW  int
	)

	s.logger.Debug("Comparing %s and %s", input.Left, input.Right)

	for i := 0; ; i++ {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}

		ts := input.Start + mediatime.FromSeconds(float64(i)/s.opts.FPS)
		if input.End != 0 && ts > input.End {
			break
		}

		// Both sources are requested at every step so each keeps its own
		// eviction cursor in the shared cache.
		if err := left.advance(ctx, s.cache, ts); err != nil {
			return Result{}, fmt.Errorf("left video: %w", err)
		}
		if err := right.advance(ctx, s.cache, ts); err != nil {
			return Result{}, fmt.Errorf("right video: %w", err)
		}

		if canvas == nil {
			lb, rb := left.frame.Bounds(), right.frame.Bounds()
			leftW = lb.Dx()
			result.Width = lb.Dx() + s.opts.Gap + rb.Dx()
			result.Height = max(lb.Dy(), rb.Dy())
			canvas = image.NewRGBA(image.Rect(0, 0, result.Width, result.Height))

			if err := s.encoder.Begin(result.Width, result.Height, s.opts.FPS, ports.EncoderOptions{
				Quality: s.opts.Quality,
				Bitrate: s.opts.Bitrate,
			}); err != nil {
				return Result{}, fmt.Errorf("init encoder: %w", err)
			}
		}

		compose(canvas, left.frame, right.frame, leftW+s.opts.Gap)

		rel := ts - input.Start
		if err := s.encoder.EncodeFrame(canvas, rel); err != nil {
			return Result{}, fmt.Errorf("encode frame at %s: %w", rel, err)
		}
		result.FrameCount++
		result.Duration = rel + mediatime.FromSeconds(1/s.opts.FPS)

		if input.End == 0 && left.ended && right.ended {
			break
		}
	}

	data, err := s.encoder.End()
	if err != nil {
		return Result{}, fmt.Errorf("end encoding: %w", err)
	}
	if err := s.fs.WriteFile(input.OutputPath, data); err != nil {
		return Result{}, fmt.Errorf("write output: %w", err)
	}
	result.FileSize = int64(len(data))

	s.logger.Debug("Wrote %d frames to %s", result.FrameCount, input.OutputPath)
	return result, nil
}

// compose draws both frames vertically centered on a black background.
func compose(dst *image.RGBA, left, right image.Image, rightX int) {
	draw.Draw(dst, dst.Bounds(), image.Black, image.Point{}, draw.Src)

	height := dst.Bounds().Dy()
	lb, rb := left.Bounds(), right.Bounds()

	leftY := (height - lb.Dy()) / 2
	draw.Draw(dst, image.Rect(0, leftY, lb.Dx(), leftY+lb.Dy()), left, lb.Min, draw.Src)

	rightY := (height - rb.Dy()) / 2
	draw.Draw(dst, image.Rect(rightX, rightY, rightX+rb.Dx(), rightY+rb.Dy()), right, rb.Min, draw.Src)
}
