package main

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"time"

	"github.com/ideamans/go-l10n"
	"github.com/urfave/cli/v2"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/user/framecache/pkg/adapters/av1encoder"
	"github.com/user/framecache/pkg/adapters/filesink"
	"github.com/user/framecache/pkg/adapters/ggrenderer"
	"github.com/user/framecache/pkg/adapters/logger"
	"github.com/user/framecache/pkg/adapters/mp4source"
	"github.com/user/framecache/pkg/adapters/nullsink"
	"github.com/user/framecache/pkg/adapters/osfilesystem"
	"github.com/user/framecache/pkg/adapters/smartdecoder"
	"github.com/user/framecache/pkg/adapters/smartencoder"
	"github.com/user/framecache/pkg/config"
	"github.com/user/framecache/pkg/framecache"
	"github.com/user/framecache/pkg/juxtapose"
	"github.com/user/framecache/pkg/mediatime"
	"github.com/user/framecache/pkg/orchestrator"
	"github.com/user/framecache/pkg/pipeline"
	"github.com/user/framecache/pkg/ports"
	"github.com/user/framecache/pkg/stages/clip"
	"github.com/user/framecache/pkg/stages/export"
	"github.com/user/framecache/pkg/stages/fetch"
	"github.com/user/framecache/pkg/stages/sheet"
	"github.com/user/framecache/pkg/summarizer"
)

// env holds the adapters shared by every job command.
type env struct {
	cfg      config.Config
	log      ports.Logger
	fs       *osfilesystem.FileSystem
	renderer *ggrenderer.Renderer
	decoders *smartdecoder.Factory
	cache    *framecache.Manager
	reader   *sdkmetric.ManualReader
	provider *sdkmetric.MeterProvider
}

// newEnv loads configuration, applies global flags and opens the cache.
func newEnv(c *cli.Context) (*env, error) {
	cfg := config.Defaults()
	if path := c.Path("config"); path != "" {
		loaded, err := config.LoadFromFile(path)
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		cfg = loaded
	}

	if c.IsSet("log-level") {
		cfg.LogLevel = c.String("log-level")
	}
	if c.IsSet("workers") {
		cfg.Workers = c.Int("workers")
	}
	if c.IsSet("window") {
		cfg.Cache.SafetyWindowMs = c.Int("window")
	}
	if c.Bool("no-verify") {
		cfg.Cache.VerifyKeyframes = false
	}
	if c.IsSet("ffmpeg") {
		cfg.FFmpegPath = c.String("ffmpeg")
	}

	var log ports.Logger
	if c.Bool("quiet") {
		log = logger.NewNoop()
	} else {
		log = logger.NewConsole(ports.ParseLogLevel(cfg.LogLevel))
	}

	e := &env{
		cfg:      cfg,
		log:      log,
		fs:       osfilesystem.New(),
		renderer: ggrenderer.New(),
	}
	e.decoders = smartdecoder.New(smartdecoder.Options{
		FFmpegPath: cfg.FFmpegPath,
		Renderer:   e.renderer,
	})

	opts := cfg.CacheOptions()
	opts.Logger = log.WithComponent("cache")
	if c.Bool("metrics") {
		e.reader = sdkmetric.NewManualReader()
		e.provider = sdkmetric.NewMeterProvider(sdkmetric.WithReader(e.reader))
		opts.MeterProvider = e.provider
	}

	cache, err := framecache.New(mp4source.NewOpener(e.fs, e.decoders), opts)
	if err != nil {
		return nil, err
	}
	e.cache = cache
	return e, nil
}

// close releases the cache and reports metrics if requested.
func (e *env) close(ctx context.Context) {
	ctx = context.WithoutCancel(ctx)
	if err := e.cache.Close(ctx); err != nil {
		e.log.Warn("Failed to close cache: %s", err)
	}
	if e.reader != nil {
		reportMetrics(ctx, e.reader, e.log)
		_ = e.provider.Shutdown(ctx)
	}
}

// writeSummary writes the Markdown summary when --summary is set.
func (e *env) writeSummary(c *cli.Context, summary *summarizer.Summary) {
	path := c.Path("summary")
	if path == "" || summary == nil {
		return
	}
	formatter := summarizer.NewMarkdownFormatter(
		summarizer.WithTranslator(l10n.T),
		summarizer.WithVersion(version),
	)
	if err := summarizer.NewWriter(formatter, e.fs).Write(path, summary); err != nil {
		e.log.Error("Failed to write summary: %s", err)
		return
	}
	e.log.Info("Summary saved to %s", path)
}

// encoder selects the output encoder, preferring --codec over the
// configured codec.
func (e *env) encoder(c *cli.Context, configured string) (ports.VideoEncoder, error) {
	name := configured
	if c.IsSet("codec") {
		name = c.String("codec")
	}
	codec, err := smartencoder.ParseCodec(name)
	if err != nil {
		return nil, cli.Exit(err.Error(), 2)
	}
	enc, info, err := smartencoder.New(codec, smartencoder.Options{
		FFmpegPath: e.cfg.FFmpegPath,
		Logger:     e.log,
	})
	if err != nil {
		return nil, err
	}
	e.log.Debug("Encoding with %s (%s)", string(info.Codec), string(info.Backend))
	return enc, nil
}

// runJob wires the render stages and runs one orchestrated job.
func runJob(c *cli.Context, kind orchestrator.JobKind, newSink func(*env) (ports.FrameSink, error), adjust func(*orchestrator.Config)) error {
	if c.Args().Len() != 1 {
		return cli.Exit(l10n.T("One video argument is required"), 2)
	}
	source := c.Args().First()

	e, err := newEnv(c)
	if err != nil {
		return err
	}
	defer e.close(c.Context)

	oc := e.cfg.ToOrchestratorConfig(kind)
	oc.Source = source
	oc.OutputPath = c.Path("output")
	if oc.OutputPath == "" {
		oc.OutputPath = e.cfg.Frames.Dir
	}
	if err := e.sampling(c, source, &oc); err != nil {
		return err
	}
	if adjust != nil {
		adjust(&oc)
	}

	sink, err := newSink(e)
	if err != nil {
		return err
	}

	var enc ports.VideoEncoder = av1encoder.New()
	if kind == orchestrator.JobClip {
		if enc, err = e.encoder(c, e.cfg.Clip.Codec); err != nil {
			return err
		}
	}

	log := e.log
	orch := orchestrator.New(
		fetch.NewStage(e.cache, log.WithComponent("fetch"), e.cfg.Workers, e.cfg.Retries),
		export.NewStage(e.renderer, sink, log.WithComponent("export")),
		sheet.NewStage(e.renderer, log.WithComponent("sheet")),
		clip.NewStage(enc, log.WithComponent("clip")),
		e.renderer,
		e.cache,
		e.fs,
		log,
	)

	summary, err := orch.Run(c.Context, oc)
	if err != nil {
		return err
	}
	e.writeSummary(c, summary)
	return nil
}

// sampling fills the timestamps of a job from --at or --start/--end/--fps.
// A missing --end defaults to the last frame of the video.
func (e *env) sampling(c *cli.Context, source string, oc *orchestrator.Config) error {
	if at := c.StringSlice("at"); len(at) > 0 {
		oc.Timestamps = make([]mediatime.Time, 0, len(at))
		for _, s := range at {
			v, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return cli.Exit(l10n.F("Invalid timestamp %q", s), 2)
			}
			oc.Timestamps = append(oc.Timestamps, mediatime.FromSeconds(v))
		}
		return nil
	}

	oc.Span = pipeline.Span{
		Start: mediatime.FromSeconds(c.Float64("start")),
		FPS:   c.Float64("fps"),
	}
	if c.IsSet("end") {
		oc.Span.End = mediatime.FromSeconds(c.Float64("end"))
		return nil
	}

	idx, err := e.index(source)
	if err != nil {
		return err
	}
	samples := idx.Samples
	last := samples[len(samples)-1]
	oc.Span.End = idx.Duration() - last.Duration
	return nil
}

func (e *env) index(source string) (*mp4source.Index, error) {
	f, err := e.fs.Open(source)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", source, err)
	}
	defer f.Close()
	idx, err := mp4source.ReadIndex(f)
	if err != nil {
		return nil, fmt.Errorf("index %s: %w", source, err)
	}
	return idx, nil
}

func runFrames(c *cli.Context) error {
	newSink := func(e *env) (ports.FrameSink, error) {
		dir := c.Path("output")
		if dir == "" {
			dir = e.cfg.Frames.Dir
		}
		format := e.cfg.Frames.Format
		if c.IsSet("format") {
			format = c.String("format")
		}
		if err := e.fs.MkdirAll(dir); err != nil {
			return nil, fmt.Errorf("create output directory: %w", err)
		}
		return filesink.New(dir, e.fs, e.renderer, ports.ParseImageFormat(format), e.cfg.Frames.Quality), nil
	}

	return runJob(c, orchestrator.JobFrames, newSink, func(oc *orchestrator.Config) {
		if c.IsSet("width") {
			oc.ExportWidth = c.Int("width")
		}
	})
}

// noSink is used by jobs that write a single output file.
func noSink(*env) (ports.FrameSink, error) {
	return nullsink.New(), nil
}

func runSheet(c *cli.Context) error {
	return runJob(c, orchestrator.JobSheet, noSink, func(oc *orchestrator.Config) {
		oc.Sheet.Title = c.String("title")
		if c.IsSet("columns") {
			oc.Sheet.Columns = c.Int("columns")
		}
		if c.IsSet("thumb-width") {
			oc.Sheet.ThumbWidth = c.Int("thumb-width")
		}
		if ext := filepath.Ext(oc.OutputPath); ext == ".jpg" || ext == ".jpeg" {
			oc.SheetFormat = ports.FormatJPEG
		}
	})
}

func runClip(c *cli.Context) error {
	return runJob(c, orchestrator.JobClip, noSink, func(oc *orchestrator.Config) {
		if c.IsSet("quality") {
			oc.Clip.Quality = c.Int("quality")
		}
		if c.IsSet("bitrate") {
			oc.Clip.Bitrate = c.Int("bitrate")
		}
	})
}

func runJuxtapose(c *cli.Context) error {
	if c.Args().Len() != 2 {
		return cli.Exit(l10n.T("Two video arguments are required"), 2)
	}
	left, right := c.Args().Get(0), c.Args().Get(1)
	output := c.Path("output")

	e, err := newEnv(c)
	if err != nil {
		return err
	}
	defer e.close(c.Context)

	opts := e.cfg.JuxtaposeOptions()
	if c.IsSet("fps") {
		opts.FPS = c.Float64("fps")
	}
	if c.IsSet("gap") {
		opts.Gap = c.Int("gap")
	}
	if c.IsSet("quality") {
		opts.Quality = c.Int("quality")
	}

	input := juxtapose.Input{
		Left:       left,
		Right:      right,
		Start:      mediatime.FromSeconds(c.Float64("start")),
		OutputPath: output,
	}
	if c.IsSet("end") {
		input.End = mediatime.FromSeconds(c.Float64("end"))
	}

	enc, err := e.encoder(c, e.cfg.Juxtapose.Codec)
	if err != nil {
		return err
	}

	started := time.Now()
	stage := juxtapose.New(e.cache, enc, e.fs, e.log.WithComponent("juxtapose"), opts)
	result, err := stage.Execute(c.Context, input)
	if err != nil {
		return err
	}

	e.log.Info("Output saved to %s", output)

	summary := summarizer.NewBuilder().
		WithJob("juxtapose", e.cache.Codec(left), left, right).
		WithElapsed(time.Since(started)).
		WithFrames(summarizer.FrameInfo{
			Count: result.FrameCount,
			Start: input.Start,
			End:   input.Start + result.Duration,
			FPS:   opts.FPS,
		}).
		WithCache(e.cache.Stats()).
		WithOutput(summarizer.OutputInfo{
			Path:     output,
			Files:    1,
			Bytes:    result.FileSize,
			Width:    result.Width,
			Height:   result.Height,
			Duration: result.Duration,
		}).
		Build()
	e.writeSummary(c, summary)
	return nil
}

func runKeyframes(c *cli.Context) error {
	if c.Args().Len() != 1 {
		return cli.Exit(l10n.T("One video argument is required"), 2)
	}
	source := c.Args().First()

	fs := osfilesystem.New()
	f, err := fs.Open(source)
	if err != nil {
		return fmt.Errorf("open %s: %w", source, err)
	}
	defer f.Close()

	idx, err := mp4source.ReadIndex(f)
	if err != nil {
		return fmt.Errorf("index %s: %w", source, err)
	}

	track := idx.Track
	fmt.Println(l10n.F("Codec: %s (%dx%d)", string(track.Codec), track.Width, track.Height))
	fmt.Println(l10n.F("Duration: %s", idx.Duration()))
	fmt.Println(l10n.F("Samples: %d", len(idx.Samples)))

	keyframes := idx.Keyframes()
	fmt.Println(l10n.F("Keyframes: %d", len(keyframes)))
	for _, ts := range keyframes {
		fmt.Println(sheet.FormatTimestamp(ts))
	}
	return nil
}
