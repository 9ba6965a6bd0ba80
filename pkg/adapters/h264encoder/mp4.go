package h264encoder

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/Eyevinn/mp4ff/mp4"

	"github.com/user/framecache/pkg/mediatime"
)

const timescale = 90000

// NAL unit types
const (
	nalSlice = 1
	nalIDR   = 5
	nalSPS   = 7
	nalPPS   = 8
	nalAUD   = 9
)

type encodedFrame struct {
	data       []byte // Annex B access unit
	timestamp  mediatime.Time
	isKeyframe bool
}

// buildMP4 muxes access units into a fragmented MP4, opening a fragment at
// every keyframe. Parameter sets move into the avcC box.
func buildMP4(frames []encodedFrame, width, height int, fps float64) ([]byte, error) {
	if len(frames) == 0 {
		return nil, ErrNoFrames
	}

	sps, pps, err := extractSPSPPS(frames)
	if err != nil {
		return nil, fmt.Errorf("extract SPS/PPS: %w", err)
	}
	avcC, err := mp4.CreateAvcC([][]byte{sps}, [][]byte{pps}, true)
	if err != nil {
		return nil, fmt.Errorf("create avcC: %w", err)
	}

	init := mp4.CreateEmptyInit()
	init.AddEmptyTrack(timescale, "video", "en")
	trak := init.Moov.Trak
	trak.Mdia.Minf.Stbl.Stsd.AddChild(mp4.CreateVisualSampleEntryBox("avc1", uint16(width), uint16(height), avcC))
	trak.Tkhd.Width = mp4.Fixed32(width << 16)
	trak.Tkhd.Height = mp4.Fixed32(height << 16)

	var buf bytes.Buffer
	ftyp := mp4.NewFtyp("isom", 0x200, []string{"isom", "iso6", "avc1", "mp41"})
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

	nominal := ticks(mediatime.FromSeconds(1 / fps))
	for i, frame := range frames {
		if frame.isKeyframe || frag == nil {
			if err := flush(); err != nil {
				return nil, err
			}
			seq++
			frag, err = mp4.CreateFragment(seq, 1)
			if err != nil {
				return nil, fmt.Errorf("create fragment: %w", err)
			}
		}

		dur := nominal
		if i < len(frames)-1 {
			if d := ticks(frames[i+1].timestamp) - ticks(frame.timestamp); d > 0 {
				dur = d
			}
		}

		flags := mp4.NonSyncSampleFlags
		if frame.isKeyframe {
			flags = mp4.SyncSampleFlags
		}

		data := toAVCC(frame.data)
		frag.AddFullSample(mp4.FullSample{
			Sample: mp4.Sample{
				Flags: flags,
				Size:  uint32(len(data)),
				Dur:   uint32(dur),
			},
			DecodeTime: uint64(ticks(frame.timestamp)),
			Data:       data,
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

// extractSPSPPS finds the first SPS and PPS in the keyframes.
func extractSPSPPS(frames []encodedFrame) (sps, pps []byte, err error) {
	for _, f := range frames {
		if !f.isKeyframe {
			continue
		}
		for _, nalu := range parseAnnexB(f.data) {
			switch nalu[0] & 0x1F {
			case nalSPS:
				if sps == nil {
					sps = append([]byte(nil), nalu...)
				}
			case nalPPS:
				if pps == nil {
					pps = append([]byte(nil), nalu...)
				}
			}
		}
		if sps != nil && pps != nil {
			return sps, pps, nil
		}
	}

	if sps == nil {
		return nil, nil, fmt.Errorf("SPS not found")
	}
	return nil, nil, fmt.Errorf("PPS not found")
}

// splitAccessUnits cuts an Annex B stream at access unit delimiters. A
// stream without delimiters is cut before the first NAL unit following a
// slice.
func splitAccessUnits(stream []byte) [][]byte {
	var units [][]byte
	var cur []byte
	sawSlice := false

	for _, nalu := range parseAnnexB(stream) {
		t := nalu[0] & 0x1F
		if t == nalAUD || (sawSlice && !isSlice(t)) || (sawSlice && isSlice(t) && firstMBIsZero(nalu)) {
			if len(cur) > 0 {
				units = append(units, cur)
			}
			cur = nil
			sawSlice = false
		}
		cur = append(cur, 0, 0, 0, 1)
		cur = append(cur, nalu...)
		if isSlice(t) {
			sawSlice = true
		}
	}
	if len(cur) > 0 {
		units = append(units, cur)
	}
	return units
}

func isSlice(t byte) bool {
	return t == nalSlice || t == nalIDR
}

// firstMBIsZero reports whether a slice starts a new picture. The
// first_mb_in_slice field is ue(v) coded, so zero is a single set bit.
func firstMBIsZero(nalu []byte) bool {
	return len(nalu) > 1 && nalu[1]&0x80 != 0
}

func isIDR(au []byte) bool {
	for _, nalu := range parseAnnexB(au) {
		if nalu[0]&0x1F == nalIDR {
			return true
		}
	}
	return false
}

// parseAnnexB splits an Annex B byte stream into non-empty NAL units.
func parseAnnexB(data []byte) [][]byte {
	var nalus [][]byte
	start := -1
	i := 0

	for i+2 < len(data) {
		if data[i] == 0 && data[i+1] == 0 && data[i+2] == 1 {
			if start >= 0 {
				nalus = appendNALU(nalus, data[start:i])
			}
			i += 3
			start = i
			continue
		}
		i++
	}
	if start >= 0 && start < len(data) {
		nalus = appendNALU(nalus, data[start:])
	}
	return nalus
}

// appendNALU drops the trailing zero of a four byte start code.
func appendNALU(nalus [][]byte, nalu []byte) [][]byte {
	for len(nalu) > 0 && nalu[len(nalu)-1] == 0 {
		nalu = nalu[:len(nalu)-1]
	}
	if len(nalu) == 0 {
		return nalus
	}
	return append(nalus, nalu)
}

// toAVCC converts an access unit to length-prefixed NAL units, leaving out
// delimiters and parameter sets.
func toAVCC(au []byte) []byte {
	var out []byte
	for _, nalu := range parseAnnexB(au) {
		switch nalu[0] & 0x1F {
		case nalAUD, nalSPS, nalPPS:
			continue
		}
		out = binary.BigEndian.AppendUint32(out, uint32(len(nalu)))
		out = append(out, nalu...)
	}
	return out
}
