package smartdecoder

import (
	"errors"
	"testing"

	"github.com/user/framecache/pkg/adapters/av1decoder"
	"github.com/user/framecache/pkg/adapters/codecdetect"
	"github.com/user/framecache/pkg/adapters/jpegdecoder"
	"github.com/user/framecache/pkg/mocks"
)

func TestFactory_Select(t *testing.T) {
	tests := []struct {
		name        string
		opts        Options
		codec       Codec
		wantBackend Backend
		wantErr     error
	}{
		{"av1", Options{}, codecdetect.CodecAV1, BackendLibaom, nil},
		{"mjpeg", Options{Renderer: &mocks.Renderer{}}, codecdetect.CodecMJPEG, BackendImage, nil},
		{"mjpeg without renderer", Options{}, codecdetect.CodecMJPEG, "", ErrNoDecoderAvailable},
		{"h264 with missing ffmpeg", Options{FFmpegPath: "/nonexistent/ffmpeg"}, codecdetect.CodecH264, "", ErrNoDecoderAvailable},
		{"unknown", Options{}, codecdetect.CodecUnknown, "", ErrUnsupportedCodec},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info, err := New(tt.opts).Select(tt.codec)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Select() error = %v, want %v", err, tt.wantErr)
			}
			if err == nil && info.Backend != tt.wantBackend {
				t.Errorf("Backend = %s, want %s", info.Backend, tt.wantBackend)
			}
		})
	}
}

func TestFactory_NewDecoderAV1(t *testing.T) {
	decoder, err := New(Options{}).NewDecoder(codecdetect.Track{Codec: codecdetect.CodecAV1})
	if err != nil {
		t.Fatalf("failed to create AV1 decoder: %v", err)
	}
	defer decoder.Close()

	if _, ok := decoder.(*av1decoder.Decoder); !ok {
		t.Errorf("expected *av1decoder.Decoder, got %T", decoder)
	}
}

func TestFactory_NewDecoderMJPEG(t *testing.T) {
	decoder, err := New(Options{Renderer: &mocks.Renderer{}}).NewDecoder(codecdetect.Track{Codec: codecdetect.CodecMJPEG})
	if err != nil {
		t.Fatalf("failed to create MJPEG decoder: %v", err)
	}
	if _, ok := decoder.(*jpegdecoder.Decoder); !ok {
		t.Errorf("expected *jpegdecoder.Decoder, got %T", decoder)
	}
}

func TestFactory_NewDecoderH264(t *testing.T) {
	f := New(Options{})
	if !f.IsH264Available() {
		t.Skip("ffmpeg not available")
	}

	decoder, err := f.NewDecoder(codecdetect.Track{Codec: codecdetect.CodecH264, Width: 64, Height: 48})
	if err != nil {
		t.Fatalf("failed to create H.264 decoder: %v", err)
	}
	decoder.Close()
}

func TestIsAV1Available(t *testing.T) {
	if !IsAV1Available() {
		t.Error("AV1 should always be available")
	}
}
