package ports

import (
	"image"

	"github.com/user/framecache/pkg/mediatime"
)

// FrameSink receives rendered output images.
type FrameSink interface {
	// Enabled returns true if the sink persists anything.
	Enabled() bool

	// SaveFrame saves one extracted frame.
	SaveFrame(index int, ts mediatime.Time, img image.Image) error

	// SaveReport saves a text report.
	SaveReport(name string, data []byte) error
}
