// Package clip implements the clip stage: fetched frames are re-encoded
// into a standalone video.
package clip

import (
	"context"
	"errors"
	"fmt"

	"github.com/user/framecache/pkg/mediatime"
	"github.com/user/framecache/pkg/pipeline"
	"github.com/user/framecache/pkg/ports"
)

// ErrNoFrames is returned when there is nothing to encode.
var ErrNoFrames = errors.New("clip: no frames to encode")

// Stage encodes fetched frames into a video.
type Stage struct {
	encoder ports.VideoEncoder
	logger  ports.Logger
}

// NewStage creates a new clip stage.
func NewStage(encoder ports.VideoEncoder, logger ports.Logger) *Stage {
	return &Stage{
		encoder: encoder,
		logger:  logger.WithComponent("clip"),
	}
}

// Execute encodes all frames. The output timeline starts at the first
// requested timestamp, so a clip cut at 12s begins at 0.
func (s *Stage) Execute(ctx context.Context, input pipeline.ClipInput) (pipeline.ClipResult, error) {
	result := pipeline.ClipResult{}

	if len(input.Frames) == 0 {
		return result, ErrNoFrames
	}

	// Get dimensions from first frame
	bounds := input.Frames[0].Image.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	opts := ports.EncoderOptions{
		Bitrate:          input.Bitrate,
		Quality:          input.Quality,
		KeyframeInterval: input.KeyframeInterval,
	}

	s.logger.Debug("Encoding %d frames at %.1f fps", len(input.Frames), input.FPS)
	if err := s.encoder.Begin(width, height, input.FPS, opts); err != nil {
		return result, fmt.Errorf("begin encoding: %w", err)
	}

	origin := input.Frames[0].Requested
	var last mediatime.Time
	for _, frame := range input.Frames {
		select {
		case <-ctx.Done():
			return result, ctx.Err()
		default:
		}

		last = frame.Requested - origin
		if err := s.encoder.EncodeFrame(frame.Image, last); err != nil {
			return result, fmt.Errorf("encode frame at %s: %w", last, err)
		}
	}

	data, err := s.encoder.End()
	if err != nil {
		return result, fmt.Errorf("end encoding: %w", err)
	}
	s.logger.Debug("Video encoded: %d bytes", len(data))

	result.VideoData = data
	result.FrameCount = len(input.Frames)
	result.Duration = last
	if input.FPS > 0 {
		result.Duration += mediatime.FromSeconds(1 / input.FPS)
	}

	return result, nil
}
