// Package filesink provides a file-based frame sink implementation.
package filesink

import (
	"fmt"
	"image"
	"path/filepath"

	"github.com/user/framecache/pkg/mediatime"
	"github.com/user/framecache/pkg/ports"
)

// Sink saves extracted frames and reports under a base directory.
type Sink struct {
	baseDir  string
	fs       ports.FileSystem
	renderer ports.Renderer
	format   ports.ImageFormat
	quality  int
}

// New creates a new FileSink writing frames in format.
// quality only applies to JPEG.
func New(baseDir string, fs ports.FileSystem, renderer ports.Renderer, format ports.ImageFormat, quality int) *Sink {
	return &Sink{
		baseDir:  baseDir,
		fs:       fs,
		renderer: renderer,
		format:   format,
		quality:  quality,
	}
}

// Enabled returns true as this sink saves output.
func (s *Sink) Enabled() bool {
	return true
}

// SaveFrame saves one frame as frames/frame-NNNN-<ms>ms.<ext>.
func (s *Sink) SaveFrame(index int, ts mediatime.Time, img image.Image) error {
	dir := filepath.Join(s.baseDir, "frames")
	if err := s.fs.MkdirAll(dir); err != nil {
		return err
	}
	data, err := s.renderer.EncodeImage(img, s.format, s.quality)
	if err != nil {
		return fmt.Errorf("encode frame %d: %w", index, err)
	}
	name := fmt.Sprintf("frame-%04d-%dms.%s", index, ts.Milliseconds(), s.format.Extension())
	return s.fs.WriteFile(filepath.Join(dir, name), data)
}

// SaveReport saves a text report as-is.
func (s *Sink) SaveReport(name string, data []byte) error {
	return s.fs.WriteFile(filepath.Join(s.baseDir, name), data)
}

// Ensure Sink implements ports.FrameSink
var _ ports.FrameSink = (*Sink)(nil)
