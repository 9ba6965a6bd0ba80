package jpegdecoder

import (
	"context"
	"errors"
	"image"
	"image/color"
	"testing"

	"github.com/user/framecache/pkg/adapters/ggrenderer"
	"github.com/user/framecache/pkg/mediatime"
	"github.com/user/framecache/pkg/mocks"
	"github.com/user/framecache/pkg/ports"
)

func jpegSample(t *testing.T, r ports.Renderer, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: 200, G: 40, B: 40, A: 255})
		}
	}
	data, err := r.EncodeImage(img, ports.FormatJPEG, 90)
	if err != nil {
		t.Fatalf("EncodeImage failed: %v", err)
	}
	return data
}

func TestDecoder_Decode(t *testing.T) {
	r := ggrenderer.New()
	d := New(r)
	defer d.Close()

	packet := ports.Packet{
		Timestamp: 1500 * mediatime.Millisecond,
		Duration:  40 * mediatime.Millisecond,
		Key:       true,
		Data:      jpegSample(t, r, 32, 16),
	}

	frames, err := d.Decode(context.Background(), packet)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if len(frames) != 1 {
		t.Fatalf("len(frames) = %d, want 1", len(frames))
	}
	f := frames[0]
	if f.Timestamp != packet.Timestamp || f.Duration != packet.Duration {
		t.Errorf("timing = %s/%s, want %s/%s", f.Timestamp, f.Duration, packet.Timestamp, packet.Duration)
	}
	if b := f.Image.Bounds(); b.Dx() != 32 || b.Dy() != 16 {
		t.Errorf("size = %dx%d, want 32x16", b.Dx(), b.Dy())
	}

	tail, err := d.Flush(context.Background())
	if err != nil || len(tail) != 0 {
		t.Errorf("Flush() = %d frames, %v", len(tail), err)
	}
}

func TestDecoder_DecodeErrors(t *testing.T) {
	badData := errors.New("bad data")
	canceled, cancel := context.WithCancel(context.Background())
	cancel()

	tests := []struct {
		name     string
		ctx      context.Context
		packet   ports.Packet
		renderer *mocks.Renderer
		wantErr  error
	}{
		{
			name:     "empty",
			ctx:      context.Background(),
			renderer: &mocks.Renderer{},
			wantErr:  ErrEmptySample,
		},
		{
			name:   "renderer failure",
			ctx:    context.Background(),
			packet: ports.Packet{Data: []byte{0xFF, 0xD8}},
			renderer: &mocks.Renderer{
				DecodeImageFunc: func(data []byte, format ports.ImageFormat) (image.Image, error) {
					return nil, badData
				},
			},
			wantErr: badData,
		},
		{
			name:     "canceled",
			ctx:      canceled,
			packet:   ports.Packet{Data: []byte{0xFF, 0xD8}},
			renderer: &mocks.Renderer{},
			wantErr:  context.Canceled,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.renderer).Decode(tt.ctx, tt.packet)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Decode() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}
