package mocks

import (
	"image"
	"sync"

	"github.com/user/framecache/pkg/mediatime"
	"github.com/user/framecache/pkg/ports"
)

// SavedFrame records a call to FrameSink.SaveFrame.
type SavedFrame struct {
	Index     int
	Timestamp mediatime.Time
	Image     image.Image
}

// FrameSink is a mock implementation of ports.FrameSink.
type FrameSink struct {
	mu sync.RWMutex

	enabled bool

	SaveFrameFunc func(index int, ts mediatime.Time, img image.Image) error

	Frames  map[int]SavedFrame
	Reports map[string][]byte
}

// NewFrameSink creates a new mock FrameSink.
func NewFrameSink(enabled bool) *FrameSink {
	return &FrameSink{
		enabled: enabled,
		Frames:  make(map[int]SavedFrame),
		Reports: make(map[string][]byte),
	}
}

func (m *FrameSink) Enabled() bool {
	return m.enabled
}

func (m *FrameSink) SaveFrame(index int, ts mediatime.Time, img image.Image) error {
	if m.SaveFrameFunc != nil {
		return m.SaveFrameFunc(index, ts, img)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Frames[index] = SavedFrame{Index: index, Timestamp: ts, Image: img}
	return nil
}

func (m *FrameSink) SaveReport(name string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Reports[name] = data
	return nil
}

// FrameCount returns the number of saved frames.
func (m *FrameSink) FrameCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.Frames)
}

var _ ports.FrameSink = (*FrameSink)(nil)
