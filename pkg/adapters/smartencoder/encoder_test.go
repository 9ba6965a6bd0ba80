package smartencoder

import (
	"errors"
	"testing"

	"github.com/user/framecache/pkg/mocks"
)

func TestParseCodec(t *testing.T) {
	tests := []struct {
		in      string
		want    Codec
		wantErr bool
	}{
		{"", CodecAV1, false},
		{"AV1", CodecAV1, false},
		{"h264", CodecH264, false},
		{" avc ", CodecH264, false},
		{"vp9", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseCodec(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("unexpected error state: %v", err)
			}
			if tt.wantErr && !errors.Is(err, ErrUnknownCodec) {
				t.Errorf("expected ErrUnknownCodec, got %v", err)
			}
			if got != tt.want {
				t.Errorf("ParseCodec(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestNew_AV1(t *testing.T) {
	enc, info, err := New(CodecAV1, Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if enc == nil {
		t.Fatal("encoder is nil")
	}
	if info.Codec != CodecAV1 || info.Backend != BackendLibaom || info.FallbackUsed {
		t.Errorf("unexpected info %+v", info)
	}
}

func TestNew_H264Fallback(t *testing.T) {
	logger := mocks.NewLogger()

	enc, info, err := New(CodecH264, Options{FFmpegPath: "/nonexistent/ffmpeg", Logger: logger})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if enc == nil {
		t.Fatal("encoder is nil")
	}
	if info.Codec != CodecAV1 || !info.FallbackUsed || info.RequestedCodec != CodecH264 {
		t.Errorf("unexpected info %+v", info)
	}
	if !logger.Contains("warn: H.264 encoder not available") {
		t.Errorf("expected fallback warning, got %v", logger.Entries())
	}
}

func TestNew_H264NoFallback(t *testing.T) {
	_, _, err := New(CodecH264, Options{FFmpegPath: "/nonexistent/ffmpeg", NoFallback: true})
	if !errors.Is(err, ErrNoEncoderAvailable) {
		t.Errorf("expected ErrNoEncoderAvailable, got %v", err)
	}
}

func TestNew_H264(t *testing.T) {
	if !IsH264Available("") {
		t.Skip("ffmpeg not available")
	}

	_, info, err := New(CodecH264, Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if info.Codec != CodecH264 || info.Backend != BackendFFmpeg {
		t.Errorf("unexpected info %+v", info)
	}
}
