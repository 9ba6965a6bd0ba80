package av1encoder

import (
	"bytes"
	"fmt"

	"github.com/Eyevinn/mp4ff/av1"
	"github.com/Eyevinn/mp4ff/mp4"

	"github.com/user/framecache/pkg/mediatime"
)

const timescale = 90000

// buildMP4 muxes the encoded frames into a fragmented MP4 with one
// fragment per keyframe interval.
func (e *Encoder) buildMP4() ([]byte, error) {
	if len(e.frames) == 0 {
		return nil, fmt.Errorf("no frames to encode")
	}

	trackID := uint32(1)

	init := mp4.CreateEmptyInit()
	init.AddEmptyTrack(timescale, "video", "en")
	trak := init.Moov.Trak

	av01 := mp4.CreateVisualSampleEntryBox("av01", uint16(e.width), uint16(e.height), createAV1ConfigRecord(e.frames))
	trak.Mdia.Minf.Stbl.Stsd.AddChild(av01)
	trak.Tkhd.Width = mp4.Fixed32(e.width << 16)
	trak.Tkhd.Height = mp4.Fixed32(e.height << 16)

	var buf bytes.Buffer

	ftyp := mp4.NewFtyp("isom", 0x200, []string{"isom", "iso6", "av01", "mp41"})
	if err := ftyp.Encode(&buf); err != nil {
		return nil, fmt.Errorf("encode ftyp: %w", err)
	}
	if err := init.Moov.Encode(&buf); err != nil {
		return nil, fmt.Errorf("encode moov: %w", err)
	}

	var frag *mp4.Fragment
	seq := uint32(0)
	flush := func() error {
		if frag == nil {
			return nil
		}
		if err := frag.Encode(&buf); err != nil {
			return fmt.Errorf("encode fragment %d: %w", seq, err)
		}
		return nil
	}

	nominal := ticks(e.frameDuration())
	for i, frame := range e.frames {
		if frame.isKeyframe || frag == nil {
			if err := flush(); err != nil {
				return nil, err
			}
			seq++
			var err error
			frag, err = mp4.CreateFragment(seq, trackID)
			if err != nil {
				return nil, fmt.Errorf("create fragment: %w", err)
			}
		}

		dur := nominal
		if i < len(e.frames)-1 {
			if d := ticks(e.frames[i+1].timestamp) - ticks(frame.timestamp); d > 0 {
				dur = d
			}
		}

		flags := mp4.NonSyncSampleFlags
		if frame.isKeyframe {
			flags = mp4.SyncSampleFlags
		}

		frag.AddFullSample(mp4.FullSample{
			Sample: mp4.Sample{
				Flags: flags,
				Size:  uint32(len(frame.data)),
				Dur:   uint32(dur),
			},
			DecodeTime: uint64(ticks(frame.timestamp)),
			Data:       frame.data,
		})
	}
	if err := flush(); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

func ticks(t mediatime.Time) int64 {
	return int64(t) * timescale / int64(mediatime.Second)
}

// createAV1ConfigRecord creates an AV1CodecConfigurationRecord box
func createAV1ConfigRecord(frames []encodedFrame) *mp4.Av1CBox {
	var seqHdr []byte
	for _, f := range frames {
		if f.isKeyframe && len(f.data) > 0 {
			seqHdr = extractSequenceHeader(f.data)
			break
		}
	}

	return &mp4.Av1CBox{
		CodecConfRec: av1.CodecConfRec{
			Version:              1,
			SeqProfile:           0,
			SeqLevelIdx0:         8, // Level 4.0
			SeqTier0:             0,
			HighBitdepth:         0,
			TwelveBit:            0,
			MonoChrome:           0,
			ChromaSubsamplingX:   1, // 4:2:0
			ChromaSubsamplingY:   1,
			ChromaSamplePosition: 0,
			ConfigOBUs:           seqHdr,
		},
	}
}

// extractSequenceHeader returns the sequence header OBU, header included,
// from an AV1 temporal unit.
func extractSequenceHeader(data []byte) []byte {
	offset := 0
	for offset < len(data) {
		start := offset
		header := data[offset]
		obuType := (header >> 3) & 0x0F
		hasExtension := (header >> 2) & 0x01
		hasSizeField := (header >> 1) & 0x01

		offset++
		if hasExtension == 1 {
			offset++
		}

		obuSize := len(data) - offset
		if hasSizeField == 1 {
			obuSize, offset = readLeb128(data, offset)
		}

		end := offset + obuSize
		if end > len(data) {
			end = len(data)
		}
		if obuType == 1 {
			return data[start:end]
		}
		offset = end
	}

	return nil
}

// readLeb128 reads a LEB128 encoded value
func readLeb128(data []byte, offset int) (int, int) {
	value := 0
	for i := 0; i < 8 && offset < len(data); i++ {
		b := data[offset]
		offset++
		value |= int(b&0x7F) << (i * 7)
		if b&0x80 == 0 {
			break
		}
	}
	return value, offset
}
