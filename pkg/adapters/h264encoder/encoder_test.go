package h264encoder

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"slices"
	"testing"

	"github.com/user/framecache/pkg/adapters/codecdetect"
	"github.com/user/framecache/pkg/adapters/mp4source"
	"github.com/user/framecache/pkg/mediatime"
	"github.com/user/framecache/pkg/ports"
)

func nal(header byte, payload ...byte) []byte {
	return append([]byte{0, 0, 0, 1, header}, payload...)
}

func concat(parts ...[]byte) []byte {
	var out []byte
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

func createTestImage(width, height, frameNum int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{
				R: uint8((x*255/width + frameNum*10) % 256),
				G: uint8((y*255/height + frameNum*5) % 256),
				B: uint8((x + y + frameNum*3) % 256),
				A: 255,
			})
		}
	}
	return img
}

func TestParseAnnexB(t *testing.T) {
	stream := []byte{0, 0, 0, 1, 0x67, 0x42, 0, 0, 1, 0x68, 0xCE, 0, 0, 0, 1, 0x65, 0x88, 0x84}
	got := parseAnnexB(stream)

	want := [][]byte{{0x67, 0x42}, {0x68, 0xCE}, {0x65, 0x88, 0x84}}
	if len(got) != len(want) {
		t.Fatalf("expected %d NAL units, got %d", len(want), len(got))
	}
	for i := range want {
		if !bytes.Equal(got[i], want[i]) {
			t.Errorf("NAL %d: got %x, want %x", i, got[i], want[i])
		}
	}
}

func TestSplitAccessUnits(t *testing.T) {
	aud := nal(0x09, 0xF0)
	sps := nal(0x67, 0x42)
	pps := nal(0x68, 0xCE)
	idr := nal(0x65, 0x88)
	p1 := nal(0x41, 0x9A)
	p2 := nal(0x41, 0x9B)
	// first_mb_in_slice != 0: second slice of the same picture
	p2b := nal(0x41, 0x40)

	tests := []struct {
		name   string
		stream []byte
		want   [][]byte
	}{
		{
			name:   "delimited",
			stream: concat(aud, sps, pps, idr, aud, p1, aud, p2),
			want:   [][]byte{concat(aud, sps, pps, idr), concat(aud, p1), concat(aud, p2)},
		},
		{
			name:   "undelimited",
			stream: concat(sps, pps, idr, p1, p2),
			want:   [][]byte{concat(sps, pps, idr), p1, p2},
		},
		{
			name:   "multi-slice picture",
			stream: concat(aud, idr, aud, p1, p2b),
			want:   [][]byte{concat(aud, idr), concat(aud, p1, p2b)},
		},
		{
			name:   "empty",
			stream: nil,
			want:   nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := splitAccessUnits(tt.stream)
			if len(got) != len(tt.want) {
				t.Fatalf("expected %d access units, got %d", len(tt.want), len(got))
			}
			for i := range tt.want {
				if !bytes.Equal(got[i], tt.want[i]) {
					t.Errorf("unit %d: got %x, want %x", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestIsIDR(t *testing.T) {
	if !isIDR(concat(nal(0x09, 0xF0), nal(0x65, 0x88))) {
		t.Error("expected IDR access unit")
	}
	if isIDR(concat(nal(0x09, 0xF0), nal(0x41, 0x9A))) {
		t.Error("expected non-IDR access unit")
	}
}

func TestToAVCC(t *testing.T) {
	au := concat(nal(0x09, 0xF0), nal(0x67, 0x42), nal(0x68, 0xCE), nal(0x06, 0x05), nal(0x65, 0x88, 0x84))
	got := toAVCC(au)

	want := []byte{0, 0, 0, 2, 0x06, 0x05, 0, 0, 0, 3, 0x65, 0x88, 0x84}
	if !bytes.Equal(got, want) {
		t.Errorf("got %x, want %x", got, want)
	}
}

func TestExtractSPSPPS_Missing(t *testing.T) {
	tests := []struct {
		name   string
		frames []encodedFrame
	}{
		{"no keyframe", []encodedFrame{{data: nal(0x67, 0x42)}}},
		{"no pps", []encodedFrame{{data: concat(nal(0x67, 0x42), nal(0x65, 0x88)), isKeyframe: true}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, _, err := extractSPSPPS(tt.frames); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestBuildMP4_NoFrames(t *testing.T) {
	if _, err := buildMP4(nil, 320, 240, 30); !errors.Is(err, ErrNoFrames) {
		t.Errorf("expected ErrNoFrames, got %v", err)
	}
}

func TestBuildArgs(t *testing.T) {
	tests := []struct {
		name    string
		opts    ports.EncoderOptions
		present [][2]string
		absent  []string
	}{
		{
			name:    "defaults",
			opts:    ports.EncoderOptions{},
			present: [][2]string{{"-crf", "23"}, {"-s", "320x240"}, {"-r", "29.97"}},
			absent:  []string{"-b:v", "-g"},
		},
		{
			name:    "best quality",
			opts:    ports.EncoderOptions{Quality: 63},
			present: [][2]string{{"-crf", "51"}},
		},
		{
			name:    "mid quality",
			opts:    ports.EncoderOptions{Quality: 30},
			present: [][2]string{{"-crf", "24"}},
		},
		{
			name:    "bitrate and gop",
			opts:    ports.EncoderOptions{Bitrate: 800, KeyframeInterval: 60},
			present: [][2]string{{"-b:v", "800k"}, {"-g", "60"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := buildArgs(320, 240, 29.97, tt.opts)
			for _, kv := range tt.present {
				i := slices.Index(args, kv[0])
				if i < 0 || i+1 >= len(args) || args[i+1] != kv[1] {
					t.Errorf("expected %s %s in %v", kv[0], kv[1], args)
				}
			}
			for _, flag := range tt.absent {
				if slices.Contains(args, flag) {
					t.Errorf("unexpected %s in %v", flag, args)
				}
			}
			if args[len(args)-1] != "pipe:1" {
				t.Errorf("expected output to stdout, got %v", args)
			}
		})
	}
}

func TestEncoder_NotInitialized(t *testing.T) {
	enc := &Encoder{ffmpegPath: "ffmpeg"}

	if err := enc.EncodeFrame(createTestImage(16, 16, 0), 0); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("expected ErrNotInitialized from EncodeFrame, got %v", err)
	}
	if _, err := enc.End(); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("expected ErrNotInitialized from End, got %v", err)
	}
}

func TestNew_MissingFFmpeg(t *testing.T) {
	_, err := New("/nonexistent/ffmpeg")
	if !errors.Is(err, ErrFFmpegNotFound) {
		t.Errorf("expected ErrFFmpegNotFound, got %v", err)
	}
}

func TestEncoder_RoundTrip(t *testing.T) {
	if !IsAvailable("") {
		t.Skip("ffmpeg not available")
	}

	enc, err := New("")
	if err != nil {
		t.Fatal(err)
	}

	const width, height, fps = 160, 120, 10.0
	if err := enc.Begin(width, height, fps, ports.EncoderOptions{Quality: 30, KeyframeInterval: 5}); err != nil {
		t.Fatalf("Begin failed: %v", err)
	}

	// Uneven spacing must survive muxing.
	stamps := []mediatime.Time{0, 100000, 200000, 450000, 500000, 600000, 700000, 800000, 900000, 1000000, 1100000, 1200000}
	for i, ts := range stamps {
		size := width
		if i == 3 {
			size = width * 2 // scaled down
		}
		if err := enc.EncodeFrame(createTestImage(size, size*height/width, i), ts); err != nil {
			t.Fatalf("EncodeFrame %d failed: %v", i, err)
		}
	}

	data, err := enc.End()
	if err != nil {
		t.Fatalf("End failed: %v", err)
	}

	idx, err := mp4source.ReadIndex(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("ReadIndex failed: %v", err)
	}
	if idx.Track.Codec != codecdetect.CodecH264 {
		t.Errorf("expected H.264 track, got %v", idx.Track.Codec)
	}
	if len(idx.Samples) != len(stamps) {
		t.Fatalf("expected %d samples, got %d", len(stamps), len(idx.Samples))
	}
	for i, s := range idx.Samples {
		if d := s.Timestamp - stamps[i]; d < -mediatime.Millisecond || d > mediatime.Millisecond {
			t.Errorf("sample %d at %s, want %s", i, s.Timestamp, stamps[i])
		}
	}
	if kf := idx.Keyframes(); len(kf) < 2 || kf[0] != 0 {
		t.Errorf("expected periodic keyframes starting at 0, got %v", kf)
	}

	// The encoder is reusable after End.
	if err := enc.Begin(width, height, fps, ports.EncoderOptions{}); err != nil {
		t.Fatalf("second Begin failed: %v", err)
	}
	if err := enc.EncodeFrame(createTestImage(width, height, 0), 0); err != nil {
		t.Fatal(err)
	}
	if _, err := enc.End(); err != nil {
		t.Fatalf("second End failed: %v", err)
	}
}
