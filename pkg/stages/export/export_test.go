package export

import (
	"context"
	"errors"
	"image"
	"testing"

	"github.com/user/framecache/pkg/adapters/logger"
	"github.com/user/framecache/pkg/mediatime"
	"github.com/user/framecache/pkg/mocks"
	"github.com/user/framecache/pkg/pipeline"
)

func frames(n int) []pipeline.FetchedFrame {
	out := make([]pipeline.FetchedFrame, n)
	for i := range out {
		ts := mediatime.Time(i) * 100 * mediatime.Millisecond
		out[i] = pipeline.FetchedFrame{
			Index:     i,
			Requested: ts,
			Timestamp: ts,
			Image:     image.NewRGBA(image.Rect(0, 0, 640, 360)),
		}
	}
	return out
}

func TestStage_Execute(t *testing.T) {
	tests := []struct {
		name       string
		width      int
		wantWidth  int
		wantHeight int
	}{
		{"original size", 0, 640, 360},
		{"same width", 640, 640, 360},
		{"resized", 320, 320, 180},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sink := mocks.NewFrameSink(true)
			stage := NewStage(&mocks.Renderer{}, sink, logger.NewNoop())

			result, err := stage.Execute(context.Background(), pipeline.ExportInput{Frames: frames(3), Width: tt.width})
			if err != nil {
				t.Fatalf("Execute failed: %v", err)
			}
			if result.Saved != 3 || sink.FrameCount() != 3 {
				t.Fatalf("saved %d (sink has %d), want 3", result.Saved, sink.FrameCount())
			}

			saved := sink.Frames[2]
			if saved.Timestamp != 200*mediatime.Millisecond {
				t.Errorf("Timestamp = %s, want 200ms", saved.Timestamp)
			}
			b := saved.Image.Bounds()
			if b.Dx() != tt.wantWidth || b.Dy() != tt.wantHeight {
				t.Errorf("size = %dx%d, want %dx%d", b.Dx(), b.Dy(), tt.wantWidth, tt.wantHeight)
			}
		})
	}
}

func TestStage_Execute_Manifest(t *testing.T) {
	sink := mocks.NewFrameSink(true)
	input := pipeline.ExportInput{Frames: frames(2), Manifest: "frames.tsv"}
	input.Frames[1].Timestamp = 66667

	if _, err := NewStage(&mocks.Renderer{}, sink, logger.NewNoop()).Execute(context.Background(), input); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	want := "index\trequested\tdecoded\n0\t0.000000\t0.000000\n1\t0.100000\t0.066667\n"
	if got := string(sink.Reports["frames.tsv"]); got != want {
		t.Errorf("manifest = %q, want %q", got, want)
	}
}

func TestStage_Execute_DisabledSink(t *testing.T) {
	sink := mocks.NewFrameSink(false)
	result, err := NewStage(&mocks.Renderer{}, sink, logger.NewNoop()).Execute(context.Background(), pipeline.ExportInput{Frames: frames(2)})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if result.Saved != 0 || sink.FrameCount() != 0 {
		t.Error("expected nothing to be saved")
	}
}

func TestStage_Execute_SinkError(t *testing.T) {
	saveErr := errors.New("disk full")
	sink := mocks.NewFrameSink(true)
	sink.SaveFrameFunc = func(index int, ts mediatime.Time, img image.Image) error {
		return saveErr
	}

	_, err := NewStage(&mocks.Renderer{}, sink, logger.NewNoop()).Execute(context.Background(), pipeline.ExportInput{Frames: frames(1)})
	if !errors.Is(err, saveErr) {
		t.Errorf("Execute() error = %v, want %v", err, saveErr)
	}
}

func TestStage_Execute_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewStage(&mocks.Renderer{}, mocks.NewFrameSink(true), logger.NewNoop()).Execute(ctx, pipeline.ExportInput{Frames: frames(1)})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Execute() error = %v, want context.Canceled", err)
	}
}
