package mocks

import (
	"bytes"
	"fmt"

	"github.com/Eyevinn/mp4ff/av1"
	"github.com/Eyevinn/mp4ff/mp4"
)

// MP4Sample is one sample of a synthetic MP4 track.
type MP4Sample struct {
	Data []byte
	Dur  uint32
	Sync bool
	// CTO is the composition time offset in timescale units.
	CTO int32
}

// MP4Track describes a synthetic fragmented MP4 video track.
type MP4Track struct {
	SampleEntry string // "av01", "jpeg", ...
	Width       int
	Height      int
	Timescale   uint32
	// SamplesPerFragment splits samples into fragments. 0 puts all in one.
	SamplesPerFragment int
	Samples            []MP4Sample
}

// BuildFragmentedMP4 muxes a track into a fragmented MP4 file.
func BuildFragmentedMP4(track MP4Track) ([]byte, error) {
	if len(track.Samples) == 0 {
		return nil, fmt.Errorf("no samples")
	}
	const trackID = uint32(1)

	init := mp4.CreateEmptyInit()
	init.AddEmptyTrack(track.Timescale, "video", "en")
	trak := init.Moov.Trak

	var config mp4.Box
	if track.SampleEntry == "av01" {
		config = &mp4.Av1CBox{
			CodecConfRec: av1.CodecConfRec{
				Version:            1,
				SeqLevelIdx0:       8,
				ChromaSubsamplingX: 1,
				ChromaSubsamplingY: 1,
				ConfigOBUs:         AV1SequenceHeaderOBU(),
			},
		}
	}
	entry := mp4.CreateVisualSampleEntryBox(track.SampleEntry, uint16(track.Width), uint16(track.Height), config)
	trak.Mdia.Minf.Stbl.Stsd.AddChild(entry)
	trak.Tkhd.Width = mp4.Fixed32(track.Width << 16)
	trak.Tkhd.Height = mp4.Fixed32(track.Height << 16)

	var buf bytes.Buffer
	ftyp := mp4.NewFtyp("isom", 0x200, []string{"isom", "iso6", "mp41"})
	if err := ftyp.Encode(&buf); err != nil {
		return nil, fmt.Errorf("encode ftyp: %w", err)
	}
	if err := init.Moov.Encode(&buf); err != nil {
		return nil, fmt.Errorf("encode moov: %w", err)
	}

	per := track.SamplesPerFragment
	if per <= 0 {
		per = len(track.Samples)
	}

	var decodeTime uint64
	for seq, start := uint32(1), 0; start < len(track.Samples); seq, start = seq+1, start+per {
		end := start + per
		if end > len(track.Samples) {
			end = len(track.Samples)
		}

		frag, err := mp4.CreateFragment(seq, trackID)
		if err != nil {
			return nil, fmt.Errorf("create fragment: %w", err)
		}
		for _, s := range track.Samples[start:end] {
			flags := mp4.NonSyncSampleFlags
			if s.Sync {
				flags = mp4.SyncSampleFlags
			}
			frag.AddFullSample(mp4.FullSample{
				Sample: mp4.Sample{
					Flags:                 flags,
					Size:                  uint32(len(s.Data)),
					Dur:                   s.Dur,
					CompositionTimeOffset: s.CTO,
				},
				DecodeTime: decodeTime,
				Data:       s.Data,
			})
			decodeTime += uint64(s.Dur)
		}
		if err := frag.Encode(&buf); err != nil {
			return nil, fmt.Errorf("encode fragment %d: %w", seq, err)
		}
	}

	return buf.Bytes(), nil
}

// AV1SequenceHeaderOBU returns a minimal sequence header OBU with a size field.
func AV1SequenceHeaderOBU() []byte {
	return []byte{0x0A, 0x03, 0x00, 0x00, 0x00}
}

// AV1TemporalUnit returns a sample payload: a temporal delimiter, an optional
// sequence header and a frame OBU carrying marker.
func AV1TemporalUnit(withSequenceHeader bool, marker byte) []byte {
	tu := []byte{0x12, 0x00}
	if withSequenceHeader {
		tu = append(tu, AV1SequenceHeaderOBU()...)
	}
	return append(tu, 0x32, 0x02, marker, marker)
}
