package summarizer

import (
	"strings"
	"testing"
	"time"

	"github.com/user/framecache/pkg/framecache"
	"github.com/user/framecache/pkg/mediatime"
	"github.com/user/framecache/pkg/mocks"
)

func TestNewSummary(t *testing.T) {
	before := time.Now()
	summary := NewSummary()
	after := time.Now()

	if summary.GeneratedAt.Before(before) || summary.GeneratedAt.After(after) {
		t.Errorf("GeneratedAt should be between %v and %v, got %v",
			before, after, summary.GeneratedAt)
	}
}

func TestBuilder_WithJob(t *testing.T) {
	summary := NewBuilder().
		WithJob("juxtapose", "h264", "a.mp4", "b.mp4").
		WithElapsed(2 * time.Second).
		Build()

	if summary.Job.Kind != "juxtapose" {
		t.Errorf("expected kind 'juxtapose', got %q", summary.Job.Kind)
	}
	if summary.Job.Codec != "h264" {
		t.Errorf("expected codec 'h264', got %q", summary.Job.Codec)
	}
	if len(summary.Job.Sources) != 2 || summary.Job.Sources[1] != "b.mp4" {
		t.Errorf("unexpected sources %v", summary.Job.Sources)
	}
	if summary.Job.Elapsed != 2*time.Second {
		t.Errorf("expected elapsed 2s, got %v", summary.Job.Elapsed)
	}
}

func TestBuilder_FullChain(t *testing.T) {
	summary := NewBuilder().
		WithJob("clip", "av1", "input.mp4").
		WithFrames(FrameInfo{Count: 30, Start: mediatime.Second, End: 2 * mediatime.Second, FPS: 30}).
		WithCache(framecache.Stats{Hits: 28, Misses: 2}).
		WithOutput(OutputInfo{Path: "clip.mp4", Bytes: 4096, Duration: mediatime.Second}).
		Build()

	if summary.Frames.Count != 30 {
		t.Errorf("expected 30 frames, got %d", summary.Frames.Count)
	}
	if summary.Cache.Hits != 28 {
		t.Errorf("expected 28 hits, got %d", summary.Cache.Hits)
	}
	if summary.Output.Path != "clip.mp4" {
		t.Errorf("expected path 'clip.mp4', got %q", summary.Output.Path)
	}
}

func TestSummary_HitRate(t *testing.T) {
	tests := []struct {
		name  string
		stats framecache.Stats
		want  float64
	}{
		{"empty", framecache.Stats{}, 0},
		{"all hits", framecache.Stats{Hits: 4}, 1},
		{"mixed", framecache.Stats{Hits: 3, Misses: 1}, 0.75},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &Summary{Cache: tt.stats}
			if got := s.HitRate(); got != tt.want {
				t.Errorf("HitRate() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestWriter_Write(t *testing.T) {
	fs := mocks.NewFileSystem()
	formatter := FormatFunc(func(s *Summary) string {
		return "kind=" + s.Job.Kind
	})

	w := NewWriter(formatter, fs)
	if err := w.Write("out/summary.md", &Summary{Job: JobInfo{Kind: "frames"}}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	data, ok := fs.GetFile("out/summary.md")
	if !ok {
		t.Fatal("summary file was not written")
	}
	if !strings.Contains(string(data), "kind=frames") {
		t.Errorf("unexpected content %q", data)
	}
}
