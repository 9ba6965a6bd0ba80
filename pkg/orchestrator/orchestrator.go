// Package orchestrator coordinates the render stages of a job.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/user/framecache/pkg/framecache"
	"github.com/user/framecache/pkg/mediatime"
	"github.com/user/framecache/pkg/pipeline"
	"github.com/user/framecache/pkg/ports"
	"github.com/user/framecache/pkg/summarizer"
)

// ErrUnknownJob is returned for a job kind the orchestrator cannot run.
var ErrUnknownJob = errors.New("orchestrator: unknown job")

// ManifestName is the report a frames job writes next to its frames.
const ManifestName = "frames.tsv"

// JobKind selects what happens to fetched frames.
type JobKind string

const (
	JobFrames JobKind = "frames" // Write each frame through the sink
	JobSheet  JobKind = "sheet"  // Render a contact sheet image
	JobClip   JobKind = "clip"   // Re-encode the frames as a video
)

// Config contains all configuration for one job.
type Config struct {
	Kind       JobKind
	Source     string
	OutputPath string // Sheet image or clip video; informational for frames

	// Sampling. Timestamps, when set, replace Span.
	Span       pipeline.Span
	Timestamps []mediatime.Time

	// Frames
	ExportWidth int

	// Sheet
	Sheet        pipeline.SheetInput
	SheetFormat  ports.ImageFormat
	SheetQuality int

	// Clip
	Clip pipeline.ClipInput
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		Kind:         JobFrames,
		Span:         pipeline.Span{FPS: 1},
		Sheet:        pipeline.DefaultSheetInput(),
		SheetFormat:  ports.FormatPNG,
		SheetQuality: 90,
		Clip:         pipeline.DefaultClipInput(),
	}
}

// Cache is the part of the frame cache the orchestrator reports on.
type Cache interface {
	Stats() framecache.Stats
	Codec(source string) string
}

// Orchestrator coordinates the execution of the render stages.
type Orchestrator struct {
	fetchStage  pipeline.Stage[pipeline.FetchInput, pipeline.FetchResult]
	exportStage pipeline.Stage[pipeline.ExportInput, pipeline.ExportResult]
	sheetStage  pipeline.Stage[pipeline.SheetInput, pipeline.SheetResult]
	clipStage   pipeline.Stage[pipeline.ClipInput, pipeline.ClipResult]
	renderer    ports.Renderer
	cache       Cache
	fs          ports.FileSystem
	logger      ports.Logger
}

// New creates a new Orchestrator.
func New(
	fetchStage pipeline.Stage[pipeline.FetchInput, pipeline.FetchResult],
	exportStage pipeline.Stage[pipeline.ExportInput, pipeline.ExportResult],
	sheetStage pipeline.Stage[pipeline.SheetInput, pipeline.SheetResult],
	clipStage pipeline.Stage[pipeline.ClipInput, pipeline.ClipResult],
	renderer ports.Renderer,
	cache Cache,
	fs ports.FileSystem,
	logger ports.Logger,
) *Orchestrator {
	return &Orchestrator{
		fetchStage:  fetchStage,
		exportStage: exportStage,
		sheetStage:  sheetStage,
		clipStage:   clipStage,
		renderer:    renderer,
		cache:       cache,
		fs:          fs,
		logger:      logger,
	}
}

// Run fetches the configured frames and hands them to the job's stage.
func (o *Orchestrator) Run(ctx context.Context, config Config) (*summarizer.Summary, error) {
	started := time.Now()

	timestamps := config.Timestamps
	if len(timestamps) == 0 {
		ts, err := config.Span.Timestamps()
		if err != nil {
			return nil, fmt.Errorf("sampling %s: %w", config.Source, err)
		}
		timestamps = ts
	}

	switch config.Kind {
	case JobFrames, JobSheet, JobClip:
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownJob, config.Kind)
	}

	o.logger.Info("Starting %s job for %s", config.Kind, config.Source)

	// 1. Fetch frames
	fetched, err := o.fetchStage.Execute(ctx, pipeline.FetchInput{
		Source:     config.Source,
		Timestamps: timestamps,
	})
	if err != nil {
		o.logger.Error("Failed to fetch frames: %s", err)
		return nil, fmt.Errorf("fetch stage: %w", err)
	}

	// 2. Job stage
	var output summarizer.OutputInfo
	switch config.Kind {
	case JobFrames:
		output, err = o.runFrames(ctx, config, fetched)
	case JobSheet:
		output, err = o.runSheet(ctx, config, fetched)
	case JobClip:
		output, err = o.runClip(ctx, config, fetched)
	}
	if err != nil {
		return nil, err
	}

	o.logger.Info("Job completed successfully")

	summary := summarizer.NewBuilder().
		WithJob(string(config.Kind), o.cache.Codec(config.Source), config.Source).
		WithElapsed(time.Since(started)).
		WithFrames(summarizer.FrameInfo{
			Count:   len(timestamps),
			Start:   timestamps[0],
			End:     timestamps[len(timestamps)-1],
			FPS:     spanFPS(config),
			Retries: fetched.Retries,
		}).
		WithCache(o.cache.Stats()).
		WithOutput(output).
		Build()

	return summary, nil
}

func (o *Orchestrator) runFrames(ctx context.Context, config Config, fetched pipeline.FetchResult) (summarizer.OutputInfo, error) {
	exported, err := o.exportStage.Execute(ctx, pipeline.ExportInput{
		Frames:   fetched.Frames,
		Width:    config.ExportWidth,
		Manifest: ManifestName,
	})
	if err != nil {
		o.logger.Error("Failed to export frames: %s", err)
		return summarizer.OutputInfo{}, fmt.Errorf("export stage: %w", err)
	}
	return summarizer.OutputInfo{Path: config.OutputPath, Files: exported.Saved}, nil
}

func (o *Orchestrator) runSheet(ctx context.Context, config Config, fetched pipeline.FetchResult) (summarizer.OutputInfo, error) {
	input := config.Sheet
	input.Frames = fetched.Frames
	if input.Title == "" {
		input.Title = config.Source
	}

	sheet, err := o.sheetStage.Execute(ctx, input)
	if err != nil {
		o.logger.Error("Failed to render sheet: %s", err)
		return summarizer.OutputInfo{}, fmt.Errorf("sheet stage: %w", err)
	}

	data, err := o.renderer.EncodeImage(sheet.Image, config.SheetFormat, config.SheetQuality)
	if err != nil {
		return summarizer.OutputInfo{}, fmt.Errorf("encode sheet: %w", err)
	}
	if err := o.write(config.OutputPath, data); err != nil {
		return summarizer.OutputInfo{}, err
	}

	b := sheet.Image.Bounds()
	return summarizer.OutputInfo{
		Path:   config.OutputPath,
		Files:  1,
		Bytes:  int64(len(data)),
		Width:  b.Dx(),
		Height: b.Dy(),
	}, nil
}

func (o *Orchestrator) runClip(ctx context.Context, config Config, fetched pipeline.FetchResult) (summarizer.OutputInfo, error) {
	input := config.Clip
	input.Frames = fetched.Frames
	if fps := spanFPS(config); fps > 0 {
		input.FPS = fps
	}

	clip, err := o.clipStage.Execute(ctx, input)
	if err != nil {
		o.logger.Error("Failed to encode clip: %s", err)
		return summarizer.OutputInfo{}, fmt.Errorf("clip stage: %w", err)
	}
	if err := o.write(config.OutputPath, clip.VideoData); err != nil {
		return summarizer.OutputInfo{}, err
	}

	out := summarizer.OutputInfo{
		Path:     config.OutputPath,
		Files:    1,
		Bytes:    int64(len(clip.VideoData)),
		Duration: clip.Duration,
	}
	if len(fetched.Frames) > 0 && fetched.Frames[0].Image != nil {
		b := fetched.Frames[0].Image.Bounds()
		out.Width, out.Height = b.Dx(), b.Dy()
	}
	return out, nil
}

func (o *Orchestrator) write(path string, data []byte) error {
	if err := o.fs.WriteFile(path, data); err != nil {
		o.logger.Error("Failed to write output: %s", err)
		return fmt.Errorf("write output: %w", err)
	}
	o.logger.Info("Output saved to %s", path)
	return nil
}

// spanFPS is the sampling rate, or 0 for explicit timestamps.
func spanFPS(config Config) float64 {
	if len(config.Timestamps) > 0 {
		return 0
	}
	return config.Span.FPS
}
