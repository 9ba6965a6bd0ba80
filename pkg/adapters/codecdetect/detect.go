// Package codecdetect identifies the video codec of an MP4 track and collects
// the parameters a decoder needs to start on a keyframe.
package codecdetect

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/Eyevinn/mp4ff/mp4"
)

// Codec represents a video codec type.
type Codec string

const (
	CodecH264    Codec = "h264"
	CodecAV1     Codec = "av1"
	CodecMJPEG   Codec = "mjpeg"
	CodecUnknown Codec = "unknown"
)

// ErrNoVideoTrack is returned when a file has no video track.
var ErrNoVideoTrack = errors.New("codecdetect: no video track found")

// Track describes a video track.
type Track struct {
	ID        uint32
	Codec     Codec
	Timescale uint32
	Width     int
	Height    int

	// ParameterSets holds H.264 SPS and PPS NAL units, Annex B framed.
	ParameterSets []byte
	// ConfigOBUs holds AV1 configuration OBUs from the av1C box.
	ConfigOBUs []byte
}

// DetectFromReader detects the video codec from an io.ReadSeeker.
func DetectFromReader(reader io.ReadSeeker) (Codec, error) {
	mp4File, err := mp4.DecodeFile(reader, mp4.WithDecodeMode(mp4.DecModeLazyMdat))
	if err != nil {
		return CodecUnknown, fmt.Errorf("decode mp4: %w", err)
	}

	// Reset reader position for subsequent reads
	if _, err := reader.Seek(0, io.SeekStart); err != nil {
		return CodecUnknown, fmt.Errorf("seek: %w", err)
	}

	trak, err := VideoTrak(mp4File)
	if err != nil {
		return CodecUnknown, err
	}
	return Describe(trak).Codec, nil
}

// DetectFromBytes detects the video codec from MP4 data bytes.
func DetectFromBytes(data []byte) (Codec, error) {
	return DetectFromReader(bytes.NewReader(data))
}

// VideoTrak returns the first video track of a fragmented or progressive file.
func VideoTrak(mp4File *mp4.File) (*mp4.TrakBox, error) {
	moov := mp4File.Moov
	if mp4File.IsFragmented() && mp4File.Init != nil {
		moov = mp4File.Init.Moov
	}
	if moov == nil {
		return nil, ErrNoVideoTrack
	}

	for _, trak := range moov.Traks {
		if trak.Mdia != nil && trak.Mdia.Hdlr != nil && trak.Mdia.Hdlr.HandlerType == "vide" {
			return trak, nil
		}
	}
	return nil, ErrNoVideoTrack
}

// Describe reads codec, geometry and decoder configuration from a track.
func Describe(trak *mp4.TrakBox) Track {
	t := Track{Codec: CodecUnknown, Timescale: 1000}
	if trak.Tkhd != nil {
		t.ID = trak.Tkhd.TrackID
	}
	if trak.Mdia == nil {
		return t
	}
	if trak.Mdia.Mdhd != nil && trak.Mdia.Mdhd.Timescale != 0 {
		t.Timescale = trak.Mdia.Mdhd.Timescale
	}
	if trak.Mdia.Minf == nil || trak.Mdia.Minf.Stbl == nil || trak.Mdia.Minf.Stbl.Stsd == nil {
		return t
	}

	for _, child := range trak.Mdia.Minf.Stbl.Stsd.Children {
		codec := codecFromType(child.Type())
		if codec == CodecUnknown {
			continue
		}
		t.Codec = codec

		vse, ok := child.(*mp4.VisualSampleEntryBox)
		if !ok {
			break
		}
		t.Width = int(vse.Width)
		t.Height = int(vse.Height)

		if vse.AvcC != nil {
			t.ParameterSets = annexBParameterSets(vse.AvcC)
		}
		for _, c := range vse.Children {
			if av1C, ok := c.(*mp4.Av1CBox); ok {
				t.ConfigOBUs = av1C.ConfigOBUs
			}
		}
		break
	}

	return t
}

func codecFromType(boxType string) Codec {
	switch boxType {
	case "avc1", "avc3":
		return CodecH264
	case "av01":
		return CodecAV1
	case "jpeg", "mjpa", "mjpb":
		return CodecMJPEG
	default:
		// hvc1/hev1 and others are detected as unknown
		return CodecUnknown
	}
}

func annexBParameterSets(avcC *mp4.AvcCBox) []byte {
	var out []byte
	for _, sps := range avcC.SPSnalus {
		out = append(out, 0, 0, 0, 1)
		out = append(out, sps...)
	}
	for _, pps := range avcC.PPSnalus {
		out = append(out, 0, 0, 0, 1)
		out = append(out, pps...)
	}
	return out
}
