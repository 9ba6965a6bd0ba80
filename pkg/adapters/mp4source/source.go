// Package mp4source demuxes the video track of MP4 files into packets.
package mp4source

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/user/framecache/pkg/adapters/codecdetect"
	"github.com/user/framecache/pkg/mediatime"
	"github.com/user/framecache/pkg/ports"
)

// ErrClosed is returned when reading from closed media.
var ErrClosed = errors.New("mp4source: media closed")

// DecoderFactory creates sample decoders for a track.
type DecoderFactory interface {
	NewDecoder(track codecdetect.Track) (ports.SampleDecoder, error)
}

// DecoderFactoryFunc is a function adapter for DecoderFactory.
type DecoderFactoryFunc func(track codecdetect.Track) (ports.SampleDecoder, error)

// NewDecoder implements DecoderFactory.
func (f DecoderFactoryFunc) NewDecoder(track codecdetect.Track) (ports.SampleDecoder, error) {
	return f(track)
}

// Opener opens MP4 files as ports.Media.
type Opener struct {
	fs       ports.FileSystem
	decoders DecoderFactory
}

// NewOpener creates an opener reading files from fs.
func NewOpener(fs ports.FileSystem, decoders DecoderFactory) *Opener {
	return &Opener{fs: fs, decoders: decoders}
}

// Open indexes the video track of the file at source.
func (o *Opener) Open(ctx context.Context, source string) (ports.Media, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := o.fs.Open(source)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", source, err)
	}

	idx, err := ReadIndex(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("index %s: %w", source, err)
	}

	return &Media{file: f, index: idx, decoders: o.decoders}, nil
}

// Media is an opened MP4 video track.
type Media struct {
	file     ports.File
	index    *Index
	decoders DecoderFactory

	mu     sync.RWMutex
	closed bool

	// rejected holds sync samples whose payload failed verification.
	// They are reported as delta packets so extraction runs through them.
	rejectedMu sync.Mutex
	rejected   map[int]bool
}

// Index returns the sample index of the track.
func (m *Media) Index() *Index {
	return m.index
}

// KeyPacket returns the last sync sample presented at or before ts. With
// opts.Verify, sync samples whose payload is not a keyframe are skipped.
func (m *Media) KeyPacket(ctx context.Context, ts mediatime.Time, opts ports.KeyPacketOptions) (*ports.Packet, error) {
	for i := m.index.syncAtOrBefore(ts); i >= 0; i-- {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		n := m.index.syncs[i]
		if m.isRejected(n) {
			continue
		}
		p, err := m.packet(n)
		if err != nil {
			return nil, err
		}
		if !opts.Verify || IsKeyframe(m.index.Track.Codec, p.Data) {
			return p, nil
		}
		m.reject(p.Index)
	}
	return nil, nil
}

// NextPacket returns the sample after after in decode order.
func (m *Media) NextPacket(ctx context.Context, after ports.Packet) (*ports.Packet, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	n := after.Index + 1
	if n < 0 || n >= len(m.index.Samples) {
		return nil, nil
	}
	return m.packet(n)
}

func (m *Media) packet(n int) (*ports.Packet, error) {
	s := m.index.Samples[n]

	data := s.data
	if data == nil {
		m.mu.RLock()
		defer m.mu.RUnlock()
		if m.closed {
			return nil, ErrClosed
		}

		data = make([]byte, s.Size)
		if _, err := m.file.ReadAt(data, s.Offset); err != nil {
			return nil, fmt.Errorf("read sample %d: %w", n, err)
		}
	}

	return &ports.Packet{
		Timestamp: s.Timestamp,
		Duration:  s.Duration,
		Key:       s.Sync && !m.isRejected(n),
		Index:     n,
		Data:      data,
	}, nil
}

func (m *Media) reject(n int) {
	m.rejectedMu.Lock()
	defer m.rejectedMu.Unlock()
	if m.rejected == nil {
		m.rejected = make(map[int]bool)
	}
	m.rejected[n] = true
}

func (m *Media) isRejected(n int) bool {
	m.rejectedMu.Lock()
	defer m.rejectedMu.Unlock()
	return m.rejected[n]
}

// Codec returns the codec name of the track.
func (m *Media) Codec() string {
	return string(m.index.Track.Codec)
}

// NewDecoder creates a decoder for the track.
func (m *Media) NewDecoder() (ports.SampleDecoder, error) {
	if m.decoders == nil {
		return nil, fmt.Errorf("no decoder factory for %s", m.index.Track.Codec)
	}
	return m.decoders.NewDecoder(m.index.Track)
}

// Close closes the underlying file. Calling it more than once is a no-op.
func (m *Media) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	return m.file.Close()
}

var (
	_ ports.MediaOpener = (*Opener)(nil)
	_ ports.Media       = (*Media)(nil)
)
