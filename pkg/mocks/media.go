package mocks

import (
	"context"
	"image"
	"sync"

	"github.com/user/framecache/pkg/mediatime"
	"github.com/user/framecache/pkg/ports"
)

// Media is an in-memory implementation of ports.Media over a synthetic packet list.
type Media struct {
	mu sync.Mutex

	Packets   []ports.Packet
	CodecName string

	KeyPacketFunc  func(ctx context.Context, ts mediatime.Time, opts ports.KeyPacketOptions) (*ports.Packet, error)
	NewDecoderFunc func() (ports.SampleDecoder, error)
	CloseFunc      func() error

	// Recorded calls for verification
	KeyPacketCalls  int
	NextPacketCalls int
	Decoders        []*SampleDecoder
	CloseCalls      int
}

// NewMedia creates a stream of packets spaced frameDur apart over duration,
// with a keyframe every gop.
func NewMedia(frameDur, duration, gop mediatime.Time) *Media {
	var packets []ports.Packet
	for i, ts := 0, mediatime.Time(0); ts < duration; i, ts = i+1, ts+frameDur {
		packets = append(packets, ports.Packet{
			Timestamp: ts,
			Duration:  frameDur,
			Key:       ts%gop == 0,
			Index:     i,
			Data:      []byte{byte(i)},
		})
	}
	return &Media{Packets: packets, CodecName: "mock"}
}

func (m *Media) KeyPacket(ctx context.Context, ts mediatime.Time, opts ports.KeyPacketOptions) (*ports.Packet, error) {
	m.mu.Lock()
	m.KeyPacketCalls++
	m.mu.Unlock()

	if m.KeyPacketFunc != nil {
		return m.KeyPacketFunc(ctx, ts, opts)
	}

	var found *ports.Packet
	for i := range m.Packets {
		p := m.Packets[i]
		if p.Timestamp > ts {
			break
		}
		if p.Key {
			found = &p
		}
	}
	return found, nil
}

func (m *Media) NextPacket(ctx context.Context, after ports.Packet) (*ports.Packet, error) {
	m.mu.Lock()
	m.NextPacketCalls++
	m.mu.Unlock()

	next := after.Index + 1
	if next >= len(m.Packets) {
		return nil, nil
	}
	p := m.Packets[next]
	return &p, nil
}

func (m *Media) Codec() string {
	return m.CodecName
}

func (m *Media) NewDecoder() (ports.SampleDecoder, error) {
	if m.NewDecoderFunc != nil {
		return m.NewDecoderFunc()
	}
	d := &SampleDecoder{}
	m.mu.Lock()
	m.Decoders = append(m.Decoders, d)
	m.mu.Unlock()
	return d, nil
}

func (m *Media) Close() error {
	m.mu.Lock()
	m.CloseCalls++
	m.mu.Unlock()
	if m.CloseFunc != nil {
		return m.CloseFunc()
	}
	return nil
}

// DecoderCount returns how many decoders have been created.
func (m *Media) DecoderCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Decoders)
}

// Closed returns the number of Close calls.
func (m *Media) Closed() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.CloseCalls
}

var _ ports.Media = (*Media)(nil)

// SampleDecoder is a mock implementation of ports.SampleDecoder.
// By default every packet decodes to one 1x1 frame at the packet's timestamp.
type SampleDecoder struct {
	mu sync.Mutex

	DecodeFunc func(ctx context.Context, packet ports.Packet) ([]ports.Frame, error)
	FlushFunc  func(ctx context.Context) ([]ports.Frame, error)

	// Recorded calls for verification
	DecodeCalls []mediatime.Time
	FlushCalled bool
	Closed      bool
}

func (m *SampleDecoder) Decode(ctx context.Context, packet ports.Packet) ([]ports.Frame, error) {
	m.mu.Lock()
	m.DecodeCalls = append(m.DecodeCalls, packet.Timestamp)
	m.mu.Unlock()

	if m.DecodeFunc != nil {
		return m.DecodeFunc(ctx, packet)
	}
	return []ports.Frame{{
		Image:     image.NewRGBA(image.Rect(0, 0, 1, 1)),
		Timestamp: packet.Timestamp,
		Duration:  packet.Duration,
	}}, nil
}

func (m *SampleDecoder) Flush(ctx context.Context) ([]ports.Frame, error) {
	m.mu.Lock()
	m.FlushCalled = true
	m.mu.Unlock()

	if m.FlushFunc != nil {
		return m.FlushFunc(ctx)
	}
	return nil, nil
}

func (m *SampleDecoder) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Closed = true
}

var _ ports.SampleDecoder = (*SampleDecoder)(nil)

// MediaOpener is a mock implementation of ports.MediaOpener.
type MediaOpener struct {
	mu sync.Mutex

	Media    map[string]*Media
	OpenFunc func(ctx context.Context, source string) (ports.Media, error)

	// Recorded calls for verification
	OpenCalls map[string]int
}

// NewMediaOpener creates an opener serving the given media by source.
func NewMediaOpener(media map[string]*Media) *MediaOpener {
	return &MediaOpener{
		Media:     media,
		OpenCalls: make(map[string]int),
	}
}

func (m *MediaOpener) Open(ctx context.Context, source string) (ports.Media, error) {
	m.mu.Lock()
	m.OpenCalls[source]++
	m.mu.Unlock()

	if m.OpenFunc != nil {
		return m.OpenFunc(ctx, source)
	}
	media, ok := m.Media[source]
	if !ok {
		return nil, ErrNotFound
	}
	return media, nil
}

// Opens returns how many times source was opened.
func (m *MediaOpener) Opens(source string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.OpenCalls[source]
}

var _ ports.MediaOpener = (*MediaOpener)(nil)
