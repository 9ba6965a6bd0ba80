package fetch

import (
	"context"
	"errors"
	"image"
	"sync"
	"testing"

	"github.com/user/framecache/pkg/framecache"
	"github.com/user/framecache/pkg/framerun"
	"github.com/user/framecache/pkg/mediatime"
	"github.com/user/framecache/pkg/mocks"
	"github.com/user/framecache/pkg/pipeline"
	"github.com/user/framecache/pkg/ports"
)

const frameDur = 100 * mediatime.Millisecond

// requesterFunc adapts a function to RunRequester.
type requesterFunc func(ctx context.Context, source string, ts mediatime.Time) (*framerun.Run, error)

func (f requesterFunc) RequestRun(ctx context.Context, source string, ts mediatime.Time) (*framerun.Run, error) {
	return f(ctx, source, ts)
}

func makeRun(t *testing.T, start mediatime.Time, n int) *framerun.Run {
	t.Helper()
	frames := make([]ports.Frame, n)
	for i := range frames {
		frames[i] = ports.Frame{
			Image:     image.NewRGBA(image.Rect(0, 0, 1, 1)),
			Timestamp: start + mediatime.Time(i)*frameDur,
			Duration:  frameDur,
		}
	}
	run, err := framerun.New("v", start, frames)
	if err != nil {
		t.Fatalf("framerun.New failed: %v", err)
	}
	return run
}

func newCache(t *testing.T, media *mocks.Media) *framecache.Manager {
	t.Helper()
	m, err := framecache.New(mocks.NewMediaOpener(map[string]*mocks.Media{"v": media}), framecache.DefaultOptions())
	if err != nil {
		t.Fatalf("framecache.New failed: %v", err)
	}
	t.Cleanup(func() { _ = m.Close(context.Background()) })
	return m
}

func TestStage_Execute(t *testing.T) {
	media := mocks.NewMedia(frameDur, 10*mediatime.Second, 2*mediatime.Second)
	cache := newCache(t, media)
	stage := NewStage(cache, mocks.NewLogger(), 4, DefaultMaxRetries)

	span := pipeline.Span{Start: 0, End: 9900 * mediatime.Millisecond, FPS: 10}
	timestamps, err := span.Timestamps()
	if err != nil {
		t.Fatalf("Timestamps failed: %v", err)
	}

	result, err := stage.Execute(context.Background(), pipeline.FetchInput{Source: "v", Timestamps: timestamps})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	if len(result.Frames) != 100 {
		t.Fatalf("len(Frames) = %d, want 100", len(result.Frames))
	}
	for i, f := range result.Frames {
		if f.Index != i {
			t.Errorf("Frames[%d].Index = %d", i, f.Index)
		}
		if f.Timestamp != timestamps[i] {
			t.Errorf("Frames[%d].Timestamp = %s, want %s", i, f.Timestamp, timestamps[i])
		}
		if f.Image == nil {
			t.Errorf("Frames[%d] has no image", i)
		}
	}
}

func TestStage_ExecuteBetweenFrames(t *testing.T) {
	media := mocks.NewMedia(frameDur, 5*mediatime.Second, mediatime.Second)
	stage := NewStage(newCache(t, media), mocks.NewLogger(), 1, DefaultMaxRetries)

	result, err := stage.Execute(context.Background(), pipeline.FetchInput{
		Source:     "v",
		Timestamps: []mediatime.Time{1250 * mediatime.Millisecond},
	})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if got := result.Frames[0].Timestamp; got != 1200*mediatime.Millisecond {
		t.Errorf("Timestamp = %s, want 1.2s", got)
	}
}

func TestStage_ExecuteEmpty(t *testing.T) {
	stage := NewStage(requesterFunc(func(ctx context.Context, source string, ts mediatime.Time) (*framerun.Run, error) {
		t.Error("unexpected request")
		return nil, nil
	}), mocks.NewLogger(), 2, DefaultMaxRetries)

	result, err := stage.Execute(context.Background(), pipeline.FetchInput{Source: "v"})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if len(result.Frames) != 0 {
		t.Errorf("expected no frames, got %d", len(result.Frames))
	}
}

func TestStage_RetriesTrimmedRun(t *testing.T) {
	var mu sync.Mutex
	calls := 0
	requester := requesterFunc(func(ctx context.Context, source string, ts mediatime.Time) (*framerun.Run, error) {
		mu.Lock()
		defer mu.Unlock()
		calls++
		run := makeRun(t, 0, 20)
		if calls == 1 {
			// Another request swept past ts before this one could read it.
			run.DeleteFramesBeforeTimestamp(mediatime.Second)
		}
		return run, nil
	})
	stage := NewStage(requester, mocks.NewLogger(), 1, DefaultMaxRetries)

	result, err := stage.Execute(context.Background(), pipeline.FetchInput{
		Source:     "v",
		Timestamps: []mediatime.Time{500 * mediatime.Millisecond},
	})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if result.Retries != 1 {
		t.Errorf("Retries = %d, want 1", result.Retries)
	}
	if calls != 2 {
		t.Errorf("requests = %d, want 2", calls)
	}
}

func TestStage_RetriesExhausted(t *testing.T) {
	requester := requesterFunc(func(ctx context.Context, source string, ts mediatime.Time) (*framerun.Run, error) {
		run := makeRun(t, 0, 20)
		run.DeleteFramesBeforeTimestamp(mediatime.Second)
		return run, nil
	})
	stage := NewStage(requester, mocks.NewLogger(), 1, 2)

	_, err := stage.Execute(context.Background(), pipeline.FetchInput{
		Source:     "v",
		Timestamps: []mediatime.Time{500 * mediatime.Millisecond},
	})
	if !errors.Is(err, ErrFrameUnavailable) {
		t.Errorf("Execute() error = %v, want ErrFrameUnavailable", err)
	}
}

func TestStage_HoldsLastFrame(t *testing.T) {
	media := mocks.NewMedia(frameDur, 3*mediatime.Second, mediatime.Second)
	stage := NewStage(newCache(t, media), mocks.NewLogger(), 1, DefaultMaxRetries)

	result, err := stage.Execute(context.Background(), pipeline.FetchInput{
		Source:     "v",
		Timestamps: []mediatime.Time{2 * mediatime.Second, 3500 * mediatime.Millisecond},
	})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if got := result.Frames[1].Timestamp; got != 2900*mediatime.Millisecond {
		t.Errorf("Timestamp = %s, want last frame at 2.9s", got)
	}
}

func TestStage_PropagatesCacheErrors(t *testing.T) {
	media := mocks.NewMedia(frameDur, 3*mediatime.Second, mediatime.Second)
	stage := NewStage(newCache(t, media), mocks.NewLogger(), 2, DefaultMaxRetries)

	_, err := stage.Execute(context.Background(), pipeline.FetchInput{
		Source:     "v",
		Timestamps: []mediatime.Time{0, -mediatime.Second},
	})
	if !errors.Is(err, framecache.ErrNoKeyframeFound) {
		t.Errorf("Execute() error = %v, want ErrNoKeyframeFound", err)
	}
}

func TestStage_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	stage := NewStage(requesterFunc(func(ctx context.Context, source string, ts mediatime.Time) (*framerun.Run, error) {
		return nil, ctx.Err()
	}), mocks.NewLogger(), 2, DefaultMaxRetries)

	_, err := stage.Execute(ctx, pipeline.FetchInput{Source: "v", Timestamps: []mediatime.Time{0, frameDur}})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Execute() error = %v, want context.Canceled", err)
	}
}
