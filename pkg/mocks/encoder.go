package mocks

import (
	"image"

	"github.com/user/framecache/pkg/mediatime"
	"github.com/user/framecache/pkg/ports"
)

// EncodeFrameCall records a call to VideoEncoder.EncodeFrame.
type EncodeFrameCall struct {
	Timestamp mediatime.Time
	Bounds    image.Rectangle
}

// VideoEncoder is a mock implementation of ports.VideoEncoder.
type VideoEncoder struct {
	BeginFunc       func(width, height int, fps float64, opts ports.EncoderOptions) error
	EncodeFrameFunc func(img image.Image, ts mediatime.Time) error
	EndFunc         func() ([]byte, error)

	// Recorded calls for verification
	BeginCalled      bool
	Width, Height    int
	FPS              float64
	Options          ports.EncoderOptions
	EncodeFrameCalls []EncodeFrameCall
	EndCalled        bool
}

func (m *VideoEncoder) Begin(width, height int, fps float64, opts ports.EncoderOptions) error {
	m.BeginCalled = true
	m.Width, m.Height, m.FPS, m.Options = width, height, fps, opts
	if m.BeginFunc != nil {
		return m.BeginFunc(width, height, fps, opts)
	}
	return nil
}

func (m *VideoEncoder) EncodeFrame(img image.Image, ts mediatime.Time) error {
	m.EncodeFrameCalls = append(m.EncodeFrameCalls, EncodeFrameCall{Timestamp: ts, Bounds: img.Bounds()})
	if m.EncodeFrameFunc != nil {
		return m.EncodeFrameFunc(img, ts)
	}
	return nil
}

func (m *VideoEncoder) End() ([]byte, error) {
	m.EndCalled = true
	if m.EndFunc != nil {
		return m.EndFunc()
	}
	return []byte("mock video data"), nil
}

var _ ports.VideoEncoder = (*VideoEncoder)(nil)
