// Package config provides configuration loading and management.
package config

import (
	"fmt"
	"image/color"
	"os"

	"github.com/user/framecache/pkg/extractor"
	"github.com/user/framecache/pkg/framecache"
	"github.com/user/framecache/pkg/juxtapose"
	"github.com/user/framecache/pkg/mediatime"
	"github.com/user/framecache/pkg/orchestrator"
	"github.com/user/framecache/pkg/pipeline"
	"github.com/user/framecache/pkg/ports"
	"gopkg.in/yaml.v3"
)

// Config represents the full configuration for framecache.
type Config struct {
	// Cache
	Cache CacheConfig `yaml:"cache"`

	// Fetching
	Workers int `yaml:"workers"`
	Retries int `yaml:"retries"`

	// Decoding
	FFmpegPath string `yaml:"ffmpeg_path"`

	// Logging
	LogLevel string `yaml:"log_level"`

	// Jobs
	Frames    FramesConfig    `yaml:"frames"`
	Sheet     SheetConfig     `yaml:"sheet"`
	Clip      ClipConfig      `yaml:"clip"`
	Juxtapose JuxtaposeConfig `yaml:"juxtapose"`
}

// CacheConfig represents frame cache settings.
type CacheConfig struct {
	SafetyWindowMs  int  `yaml:"safety_window_ms"`
	VerifyKeyframes bool `yaml:"verify_keyframes"`
	MaxRunFrames    int  `yaml:"max_run_frames"` // 0 decodes a run up to the next keyframe
}

// FramesConfig represents frame export settings.
type FramesConfig struct {
	Dir     string `yaml:"dir"`
	Format  string `yaml:"format"` // png or jpeg
	Quality int    `yaml:"quality"`
	Width   int    `yaml:"width"`
}

// SheetConfig represents contact sheet settings.
type SheetConfig struct {
	Columns    int         `yaml:"columns"`
	ThumbWidth int         `yaml:"thumb_width"`
	Gap        int         `yaml:"gap"`
	Padding    int         `yaml:"padding"`
	LabelSize  float64     `yaml:"label_size"`
	Format     string      `yaml:"format"`
	Quality    int         `yaml:"quality"`
	Theme      ThemeConfig `yaml:"theme"`
}

// ClipConfig represents clip encoding settings.
type ClipConfig struct {
	Codec            string `yaml:"codec"` // av1 or h264
	Quality          int    `yaml:"quality"`
	Bitrate          int    `yaml:"bitrate"`
	KeyframeInterval int    `yaml:"keyframe_interval"`
}

// JuxtaposeConfig represents side-by-side comparison settings.
type JuxtaposeConfig struct {
	Codec   string  `yaml:"codec"`
	Gap     int     `yaml:"gap"`
	FPS     float64 `yaml:"fps"`
	Quality int     `yaml:"quality"`
	Bitrate int     `yaml:"bitrate"`
}

// ThemeConfig represents theming options.
type ThemeConfig struct {
	BackgroundColor string `yaml:"background_color"`
	BorderColor     string `yaml:"border_color"`
	TextColor       string `yaml:"text_color"`
}

// Defaults returns a Config with default values.
func Defaults() Config {
	sheet := pipeline.DefaultSheetInput()
	clip := pipeline.DefaultClipInput()
	jux := juxtapose.DefaultOptions()

	return Config{
		Cache: CacheConfig{
			SafetyWindowMs:  int(framecache.DefaultSafetyWindow.Milliseconds()),
			VerifyKeyframes: true,
		},

		Workers: 4,
		Retries: 3,

		LogLevel: "info",

		Frames: FramesConfig{
			Dir:     "./frames",
			Format:  "png",
			Quality: 90,
		},

		Sheet: SheetConfig{
			Columns:    sheet.Columns,
			ThumbWidth: sheet.ThumbWidth,
			Gap:        sheet.Gap,
			Padding:    sheet.Padding,
			LabelSize:  sheet.LabelSize,
			Format:     "png",
			Quality:    90,
			Theme: ThemeConfig{
				BackgroundColor: "#1e1e1e",
				BorderColor:     "#505050",
				TextColor:       "#ffffff",
			},
		},

		Clip: ClipConfig{
			Codec:            "av1",
			Quality:          clip.Quality,
			Bitrate:          clip.Bitrate,
			KeyframeInterval: clip.KeyframeInterval,
		},

		Juxtapose: JuxtaposeConfig{
			Codec:   "av1",
			Gap:     jux.Gap,
			FPS:     jux.FPS,
			Quality: jux.Quality,
			Bitrate: jux.Bitrate,
		},
	}
}

// LoadFromFile loads configuration from a YAML file.
func LoadFromFile(path string) (Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}

	return cfg, nil
}

// ParseColor parses a hex color string ("#rrggbb") to color.Color.
// Malformed values yield black.
func ParseColor(hex string) color.Color {
	if len(hex) > 0 && hex[0] == '#' {
		hex = hex[1:]
	}
	if len(hex) != 6 {
		return color.Black
	}

	channel := func(hi, lo byte) uint8 {
		return hexValue(hi)<<4 | hexValue(lo)
	}
	return color.RGBA{
		R: channel(hex[0], hex[1]),
		G: channel(hex[2], hex[3]),
		B: channel(hex[4], hex[5]),
		A: 255,
	}
}

func hexValue(c byte) uint8 {
	switch {
	case c >= '0' && c <= '9':
		return c - '0'
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10
	default:
		return 0
	}
}

// CacheOptions converts the cache section to framecache.Options.
// Logger and meter provider are left for the caller.
func (c Config) CacheOptions() framecache.Options {
	opts := framecache.DefaultOptions()
	opts.SafetyWindow = mediatime.FromMilliseconds(int64(c.Cache.SafetyWindowMs))
	opts.VerifyKeyframes = c.Cache.VerifyKeyframes
	if c.Cache.MaxRunFrames > 0 {
		opts.Extractor = extractor.NewForward(extractor.Options{MaxFrames: c.Cache.MaxRunFrames})
	}
	return opts
}

// JuxtaposeOptions converts the juxtapose section to juxtapose.Options.
func (c Config) JuxtaposeOptions() juxtapose.Options {
	return juxtapose.Options{
		Gap:     c.Juxtapose.Gap,
		FPS:     c.Juxtapose.FPS,
		Quality: c.Juxtapose.Quality,
		Bitrate: c.Juxtapose.Bitrate,
	}
}

// ToOrchestratorConfig converts Config to orchestrator.Config for a job.
// Source, output path and sampling are set by the caller.
func (c Config) ToOrchestratorConfig(kind orchestrator.JobKind) orchestrator.Config {
	oc := orchestrator.DefaultConfig()
	oc.Kind = kind
	oc.ExportWidth = c.Frames.Width

	oc.Sheet.Columns = c.Sheet.Columns
	oc.Sheet.ThumbWidth = c.Sheet.ThumbWidth
	oc.Sheet.Gap = c.Sheet.Gap
	oc.Sheet.Padding = c.Sheet.Padding
	oc.Sheet.LabelSize = c.Sheet.LabelSize
	oc.Sheet.Theme = pipeline.SheetTheme{
		BackgroundColor: ParseColor(c.Sheet.Theme.BackgroundColor),
		BorderColor:     ParseColor(c.Sheet.Theme.BorderColor),
		TextColor:       ParseColor(c.Sheet.Theme.TextColor),
	}
	oc.SheetFormat = ports.ParseImageFormat(c.Sheet.Format)
	oc.SheetQuality = c.Sheet.Quality

	oc.Clip.Quality = c.Clip.Quality
	oc.Clip.Bitrate = c.Clip.Bitrate
	oc.Clip.KeyframeInterval = c.Clip.KeyframeInterval

	return oc
}
