package config

import (
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/user/framecache/pkg/extractor"
	"github.com/user/framecache/pkg/mediatime"
	"github.com/user/framecache/pkg/orchestrator"
	"github.com/user/framecache/pkg/ports"
)

func TestDefaults(t *testing.T) {
	cfg := Defaults()

	if cfg.Cache.SafetyWindowMs != 1000 {
		t.Errorf("expected 1000 ms safety window, got %d", cfg.Cache.SafetyWindowMs)
	}
	if !cfg.Cache.VerifyKeyframes {
		t.Error("expected keyframe verification by default")
	}
	if cfg.Workers != 4 || cfg.Retries != 3 {
		t.Errorf("unexpected workers/retries %d/%d", cfg.Workers, cfg.Retries)
	}
	if cfg.Sheet.Columns != 4 {
		t.Errorf("expected 4 sheet columns, got %d", cfg.Sheet.Columns)
	}
	if cfg.Clip.Codec != "av1" || cfg.Juxtapose.Codec != "av1" {
		t.Errorf("expected av1 output codecs, got %q/%q", cfg.Clip.Codec, cfg.Juxtapose.Codec)
	}
	if cfg.Juxtapose.FPS != 30 {
		t.Errorf("expected 30 fps, got %v", cfg.Juxtapose.FPS)
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "framecache.yaml")
	content := `
cache:
  safety_window_ms: 2500
  verify_keyframes: false
  max_run_frames: 12
workers: 8
log_level: debug
sheet:
  columns: 6
  theme:
    background_color: "#102030"
clip:
  codec: h264
  quality: 20
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Cache.SafetyWindowMs != 2500 || cfg.Cache.VerifyKeyframes {
		t.Errorf("unexpected cache config %+v", cfg.Cache)
	}
	if cfg.Workers != 8 {
		t.Errorf("expected 8 workers, got %d", cfg.Workers)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("expected debug level, got %q", cfg.LogLevel)
	}
	if cfg.Sheet.Columns != 6 {
		t.Errorf("expected 6 columns, got %d", cfg.Sheet.Columns)
	}
	if cfg.Clip.Codec != "h264" {
		t.Errorf("expected h264 clip codec, got %q", cfg.Clip.Codec)
	}
	// Unset fields keep their defaults.
	if cfg.Retries != 3 {
		t.Errorf("expected default retries, got %d", cfg.Retries)
	}
	if cfg.Sheet.ThumbWidth != 240 {
		t.Errorf("expected default thumb width, got %d", cfg.Sheet.ThumbWidth)
	}
	if cfg.Sheet.Theme.TextColor != "#ffffff" {
		t.Errorf("expected default text color, got %q", cfg.Sheet.Theme.TextColor)
	}

	opts := cfg.CacheOptions()
	if opts.SafetyWindow != 2500*mediatime.Millisecond {
		t.Errorf("expected 2.5s window, got %s", opts.SafetyWindow)
	}
	if opts.VerifyKeyframes {
		t.Error("expected verification disabled")
	}
	if _, ok := opts.Extractor.(*extractor.Forward); !ok {
		t.Errorf("expected a capped forward extractor, got %T", opts.Extractor)
	}
}

func TestLoadFromFile_Errors(t *testing.T) {
	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(bad, []byte("workers: [1, 2"), 0644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		path string
	}{
		{"missing file", filepath.Join(dir, "missing.yaml")},
		{"invalid yaml", bad},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := LoadFromFile(tt.path)
			if err == nil {
				t.Fatal("expected error")
			}
			if cfg.Workers != 4 {
				t.Errorf("expected defaults on error, got %d workers", cfg.Workers)
			}
		})
	}
}

func TestParseColor(t *testing.T) {
	tests := []struct {
		in   string
		want color.Color
	}{
		{"#ff8000", color.RGBA{R: 255, G: 128, B: 0, A: 255}},
		{"1E1E1E", color.RGBA{R: 30, G: 30, B: 30, A: 255}},
		{"", color.Black},
		{"#fff", color.Black},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := ParseColor(tt.in); got != tt.want {
				t.Errorf("ParseColor(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestConfig_CacheOptions_Uncapped(t *testing.T) {
	opts := Defaults().CacheOptions()
	if opts.Extractor != nil {
		t.Errorf("expected the cache default extractor, got %T", opts.Extractor)
	}
	if opts.SafetyWindow != mediatime.Second {
		t.Errorf("expected 1s window, got %s", opts.SafetyWindow)
	}
}

func TestConfig_ToOrchestratorConfig(t *testing.T) {
	cfg := Defaults()
	cfg.Frames.Width = 320
	cfg.Sheet.Format = "jpeg"
	cfg.Sheet.Theme.TextColor = "#000000"
	cfg.Clip.KeyframeInterval = 60

	oc := cfg.ToOrchestratorConfig(orchestrator.JobSheet)

	if oc.Kind != orchestrator.JobSheet {
		t.Errorf("expected sheet job, got %q", oc.Kind)
	}
	if oc.ExportWidth != 320 {
		t.Errorf("expected export width 320, got %d", oc.ExportWidth)
	}
	if oc.SheetFormat != ports.FormatJPEG {
		t.Error("expected JPEG sheet format")
	}
	if oc.Sheet.Theme.TextColor != (color.RGBA{A: 255}) {
		t.Errorf("unexpected text color %v", oc.Sheet.Theme.TextColor)
	}
	if oc.Clip.KeyframeInterval != 60 {
		t.Errorf("expected keyframe interval 60, got %d", oc.Clip.KeyframeInterval)
	}
}

func TestConfig_JuxtaposeOptions(t *testing.T) {
	cfg := Defaults()
	cfg.Juxtapose.Gap = 4

	opts := cfg.JuxtaposeOptions()
	if opts.Gap != 4 || opts.FPS != 30 {
		t.Errorf("unexpected options %+v", opts)
	}
}
