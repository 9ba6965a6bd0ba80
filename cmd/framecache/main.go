// Package main provides the CLI entry point for framecache.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ideamans/go-l10n"
	"github.com/urfave/cli/v2"
)

var version = "dev"

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Fprintln(os.Stderr, l10n.T("Interrupted, shutting down..."))
		cancel()
	}()

	if err := newApp().RunContext(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	cli.VersionPrinter = func(c *cli.Context) {
		fmt.Println(l10n.F("framecache version %s", c.App.Version))
	}

	return &cli.App{
		Name:    "framecache",
		Usage:   l10n.T("Read frames out of video files through a keyframe run cache"),
		Version: version,
		Flags:   globalFlags(),
		Commands: []*cli.Command{
			framesCommand(),
			sheetCommand(),
			clipCommand(),
			juxtaposeCommand(),
			keyframesCommand(),
			{
				Name:  "version",
				Usage: l10n.T("Show version information"),
				Action: func(c *cli.Context) error {
					cli.VersionPrinter(c)
					return nil
				},
			},
		},
	}
}

func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.PathFlag{
			Name:     "config",
			Aliases:  []string{"c"},
			Usage:    l10n.T("YAML configuration file"),
			Category: l10n.T("Configuration"),
		},
		&cli.StringFlag{
			Name:     "log-level",
			Aliases:  []string{"l"},
			Usage:    l10n.T("Log level (debug, info, warn, error)"),
			Category: l10n.T("Logging"),
		},
		&cli.BoolFlag{
			Name:     "quiet",
			Aliases:  []string{"Q"},
			Usage:    l10n.T("Suppress all log output"),
			Category: l10n.T("Logging"),
		},
		&cli.BoolFlag{
			Name:     "metrics",
			Usage:    l10n.T("Print cache metrics when the job ends"),
			Category: l10n.T("Logging"),
		},
		&cli.IntFlag{
			Name:     "workers",
			Aliases:  []string{"w"},
			Usage:    l10n.T("Concurrent frame readers"),
			Category: l10n.T("Cache"),
		},
		&cli.IntFlag{
			Name:     "window",
			Usage:    l10n.T("Safety window behind the newest request in milliseconds"),
			Category: l10n.T("Cache"),
		},
		&cli.BoolFlag{
			Name:     "no-verify",
			Usage:    l10n.T("Trust container sync flags without checking keyframe payloads"),
			Category: l10n.T("Cache"),
		},
		&cli.StringFlag{
			Name:     "ffmpeg",
			Usage:    l10n.T("Path to ffmpeg for H.264 decoding"),
			Category: l10n.T("Cache"),
		},
		&cli.PathFlag{
			Name:     "summary",
			Aliases:  []string{"s"},
			Usage:    l10n.T("Output execution summary to file (Markdown format)"),
			Category: l10n.T("Output"),
		},
	}
}

// samplingFlags select which timestamps a job reads.
func samplingFlags() []cli.Flag {
	return []cli.Flag{
		&cli.Float64Flag{
			Name:     "start",
			Usage:    l10n.T("First timestamp in seconds"),
			Category: l10n.T("Sampling"),
		},
		&cli.Float64Flag{
			Name:     "end",
			Usage:    l10n.T("Last timestamp in seconds (default: end of video)"),
			Category: l10n.T("Sampling"),
		},
		&cli.Float64Flag{
			Name:     "fps",
			Aliases:  []string{"r"},
			Value:    1,
			Usage:    l10n.T("Samples per second"),
			Category: l10n.T("Sampling"),
		},
		&cli.StringSliceFlag{
			Name:     "at",
			Usage:    l10n.T("Explicit timestamps in seconds, replacing start/end/fps"),
			Category: l10n.T("Sampling"),
		},
	}
}

func outputFlag(usage string, required bool) cli.Flag {
	return &cli.PathFlag{
		Name:     "output",
		Aliases:  []string{"o"},
		Required: required,
		Usage:    usage,
		Category: l10n.T("Output"),
	}
}

func framesCommand() *cli.Command {
	return &cli.Command{
		Name:        "frames",
		Usage:       l10n.T("Save frames as image files"),
		Description: l10n.T("Decode frames at the sampled timestamps and save each as a PNG or JPEG file."),
		ArgsUsage:   "<video>",
		Flags: append(samplingFlags(),
			outputFlag(l10n.T("Output directory (default: ./frames)"), false),
			&cli.StringFlag{
				Name:     "format",
				Usage:    l10n.T("Image format (png, jpeg)"),
				Category: l10n.T("Output"),
			},
			&cli.IntFlag{
				Name:     "width",
				Usage:    l10n.T("Resize frames to this width, keeping the aspect ratio"),
				Category: l10n.T("Output"),
			},
		),
		Action: runFrames,
	}
}

func sheetCommand() *cli.Command {
	return &cli.Command{
		Name:        "sheet",
		Usage:       l10n.T("Render a contact sheet"),
		Description: l10n.T("Draw the sampled frames as a grid of labelled thumbnails in one image."),
		ArgsUsage:   "<video>",
		Flags: append(samplingFlags(),
			outputFlag(l10n.T("Output image path (required)"), true),
			&cli.StringFlag{
				Name:     "title",
				Usage:    l10n.T("Sheet title (default: video path)"),
				Category: l10n.T("Layout and Style"),
			},
			&cli.IntFlag{
				Name:     "columns",
				Usage:    l10n.T("Thumbnails per row"),
				Category: l10n.T("Layout and Style"),
			},
			&cli.IntFlag{
				Name:     "thumb-width",
				Usage:    l10n.T("Thumbnail width in pixels"),
				Category: l10n.T("Layout and Style"),
			},
		),
		Action: runSheet,
	}
}

func clipCommand() *cli.Command {
	return &cli.Command{
		Name:        "clip",
		Usage:       l10n.T("Re-encode a range as an MP4 clip"),
		Description: l10n.T("Decode the sampled frames and encode them as an MP4 at the sampling rate."),
		ArgsUsage:   "<video>",
		Flags: append(samplingFlags(),
			outputFlag(l10n.T("Output MP4 file path (required)"), true),
			&cli.IntFlag{
				Name:     "quality",
				Aliases:  []string{"q"},
				Usage:    l10n.T("Video CRF value (0-63, lower is better)"),
				Category: l10n.T("Video and Quality"),
			},
			&cli.StringFlag{
				Name:     "codec",
				Usage:    l10n.T("Output codec (av1, h264)"),
				Category: l10n.T("Video and Quality"),
			},
			&cli.IntFlag{
				Name:     "bitrate",
				Usage:    l10n.T("Target bitrate in kbps"),
				Category: l10n.T("Video and Quality"),
			},
		),
		Action: runClip,
	}
}

func juxtaposeCommand() *cli.Command {
	return &cli.Command{
		Name:        "juxtapose",
		Usage:       l10n.T("Create a side-by-side comparison video"),
		Description: l10n.T("Create a side-by-side comparison video from two input videos."),
		ArgsUsage:   "<left> <right>",
		Flags: []cli.Flag{
			outputFlag(l10n.T("Output MP4 file path (required)"), true),
			&cli.Float64Flag{
				Name:     "start",
				Usage:    l10n.T("First timestamp in seconds"),
				Category: l10n.T("Sampling"),
			},
			&cli.Float64Flag{
				Name:     "end",
				Usage:    l10n.T("Last timestamp in seconds (default: until both videos end)"),
				Category: l10n.T("Sampling"),
			},
			&cli.Float64Flag{
				Name:     "fps",
				Aliases:  []string{"r"},
				Usage:    l10n.T("Output frame rate"),
				Category: l10n.T("Video and Quality"),
			},
			&cli.IntFlag{
				Name:     "gap",
				Usage:    l10n.T("Gap between videos in pixels"),
				Category: l10n.T("Layout and Style"),
			},
			&cli.IntFlag{
				Name:     "quality",
				Aliases:  []string{"q"},
				Usage:    l10n.T("Video CRF value (0-63, lower is better)"),
				Category: l10n.T("Video and Quality"),
			},
			&cli.StringFlag{
				Name:     "codec",
				Usage:    l10n.T("Output codec (av1, h264)"),
				Category: l10n.T("Video and Quality"),
			},
		},
		Action: runJuxtapose,
	}
}

func keyframesCommand() *cli.Command {
	return &cli.Command{
		Name:        "keyframes",
		Usage:       l10n.T("List keyframes of a video"),
		Description: l10n.T("Print the codec, duration and keyframe timestamps of the video track."),
		ArgsUsage:   "<video>",
		Action:      runKeyframes,
	}
}
