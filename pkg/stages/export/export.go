// Package export implements the frame export stage.
package export

import (
	"bytes"
	"context"
	"fmt"

	"github.com/user/framecache/pkg/pipeline"
	"github.com/user/framecache/pkg/ports"
)

// Stage writes fetched frames through a FrameSink.
type Stage struct {
	renderer ports.Renderer
	sink     ports.FrameSink
	logger   ports.Logger
}

// NewStage creates a new export stage.
func NewStage(renderer ports.Renderer, sink ports.FrameSink, logger ports.Logger) *Stage {
	return &Stage{
		renderer: renderer,
		sink:     sink,
		logger:   logger.WithComponent("export"),
	}
}

// Execute saves every frame, resized to input.Width when set.
func (s *Stage) Execute(ctx context.Context, input pipeline.ExportInput) (pipeline.ExportResult, error) {
	result := pipeline.ExportResult{}
	if !s.sink.Enabled() {
		return result, nil
	}

	for _, frame := range input.Frames {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		img := frame.Image
		if b := img.Bounds(); input.Width > 0 && input.Width != b.Dx() && b.Dx() > 0 {
			height := b.Dy() * input.Width / b.Dx()
			if height < 1 {
				height = 1
			}
			img = s.renderer.ResizeImage(img, input.Width, height)
		}

		if err := s.sink.SaveFrame(frame.Index, frame.Timestamp, img); err != nil {
			return result, fmt.Errorf("save frame %d: %w", frame.Index, err)
		}
		result.Saved++
	}

	if input.Manifest != "" {
		if err := s.sink.SaveReport(input.Manifest, manifest(input.Frames)); err != nil {
			return result, fmt.Errorf("save manifest: %w", err)
		}
	}

	s.logger.Debug("Saved %d frames", result.Saved)
	return result, nil
}

// manifest renders one tab separated line per frame:
// index, requested seconds, decoded seconds.
func manifest(frames []pipeline.FetchedFrame) []byte {
	var buf bytes.Buffer
	buf.WriteString("index\trequested\tdecoded\n")
	for _, f := range frames {
		fmt.Fprintf(&buf, "%d\t%.6f\t%.6f\n", f.Index, f.Requested.Seconds(), f.Timestamp.Seconds())
	}
	return buf.Bytes()
}
