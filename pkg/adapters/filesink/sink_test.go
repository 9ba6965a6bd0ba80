package filesink

import (
	"errors"
	"image"
	"path/filepath"
	"testing"

	"github.com/user/framecache/pkg/mediatime"
	"github.com/user/framecache/pkg/mocks"
	"github.com/user/framecache/pkg/ports"
)

// testBaseDir is a platform-independent base directory for tests
var testBaseDir = filepath.Join("out")

func TestSink_Enabled(t *testing.T) {
	sink := New(testBaseDir, mocks.NewFileSystem(), &mocks.Renderer{}, ports.FormatPNG, 0)

	if !sink.Enabled() {
		t.Error("expected Enabled to return true")
	}
}

func TestSink_SaveFrame(t *testing.T) {
	tests := []struct {
		name     string
		format   ports.ImageFormat
		quality  int
		expected string
	}{
		{"png", ports.FormatPNG, 0, "frame-0003-1500ms.png"},
		{"jpeg", ports.FormatJPEG, 85, "frame-0003-1500ms.jpg"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := mocks.NewFileSystem()
			var gotFormat ports.ImageFormat
			var gotQuality int
			renderer := &mocks.Renderer{
				EncodeImageFunc: func(img image.Image, format ports.ImageFormat, quality int) ([]byte, error) {
					gotFormat, gotQuality = format, quality
					return []byte("encoded"), nil
				},
			}
			sink := New(testBaseDir, fs, renderer, tt.format, tt.quality)

			err := sink.SaveFrame(3, 1500*mediatime.Millisecond, image.NewRGBA(image.Rect(0, 0, 2, 2)))
			if err != nil {
				t.Fatalf("SaveFrame failed: %v", err)
			}

			path := filepath.Join(testBaseDir, "frames", tt.expected)
			if data, ok := fs.GetFile(path); !ok || string(data) != "encoded" {
				t.Errorf("expected encoded frame at %s", path)
			}
			if gotFormat != tt.format || gotQuality != tt.quality {
				t.Errorf("encoded with %d/%d, want %d/%d", gotFormat, gotQuality, tt.format, tt.quality)
			}
			if ok, _ := fs.Exists(filepath.Join(testBaseDir, "frames")); !ok {
				t.Error("expected frames directory to be created")
			}
		})
	}
}

func TestSink_SaveFrameEncodeError(t *testing.T) {
	encodeErr := errors.New("encode failed")
	renderer := &mocks.Renderer{
		EncodeImageFunc: func(img image.Image, format ports.ImageFormat, quality int) ([]byte, error) {
			return nil, encodeErr
		},
	}
	sink := New(testBaseDir, mocks.NewFileSystem(), renderer, ports.FormatPNG, 0)

	err := sink.SaveFrame(0, 0, image.NewRGBA(image.Rect(0, 0, 1, 1)))
	if !errors.Is(err, encodeErr) {
		t.Errorf("SaveFrame() error = %v, want %v", err, encodeErr)
	}
}

func TestSink_SaveReport(t *testing.T) {
	fs := mocks.NewFileSystem()
	sink := New(testBaseDir, fs, &mocks.Renderer{}, ports.FormatPNG, 0)

	if err := sink.SaveReport("frames.tsv", []byte("index\trequested\tdecoded\n")); err != nil {
		t.Fatalf("SaveReport failed: %v", err)
	}
	data, ok := fs.GetFile(filepath.Join(testBaseDir, "frames.tsv"))
	if !ok || string(data) != "index\trequested\tdecoded\n" {
		t.Errorf("unexpected report contents %q", data)
	}
}
