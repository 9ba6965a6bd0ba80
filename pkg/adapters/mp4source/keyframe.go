package mp4source

import (
	"github.com/Eyevinn/mp4ff/avc"

	"github.com/user/framecache/pkg/adapters/codecdetect"
)

const obuSequenceHeader = 1

// IsKeyframe reports whether a sample payload can start decoding on its own.
// Codecs without a payload check trust the container's sync flag.
func IsKeyframe(codec codecdetect.Codec, data []byte) bool {
	switch codec {
	case codecdetect.CodecH264:
		return avc.IsIDRSample(data)
	case codecdetect.CodecAV1:
		// Sync samples in ISOBMFF carry the sequence header.
		return hasSequenceHeader(data)
	case codecdetect.CodecMJPEG:
		return len(data) >= 2 && data[0] == 0xFF && data[1] == 0xD8
	default:
		return true
	}
}

// hasSequenceHeader walks the OBUs of an AV1 temporal unit.
func hasSequenceHeader(data []byte) bool {
	offset := 0
	for offset < len(data) {
		header := data[offset]
		obuType := (header >> 3) & 0x0F
		hasExtension := header&0x04 != 0
		hasSizeField := header&0x02 != 0

		offset++
		if hasExtension {
			offset++
		}

		if obuType == obuSequenceHeader {
			return true
		}
		if !hasSizeField {
			// The OBU runs to the end of the sample.
			return false
		}

		size, n := readLeb128(data, offset)
		if n == 0 {
			return false
		}
		offset += n + size
	}
	return false
}

// readLeb128 reads a LEB128 value at offset and returns it with the number of
// bytes consumed. Zero bytes consumed means the value was truncated.
func readLeb128(data []byte, offset int) (int, int) {
	value := 0
	for i := 0; i < 8; i++ {
		if offset+i >= len(data) {
			return 0, 0
		}
		b := data[offset+i]
		value |= int(b&0x7F) << (i * 7)
		if b&0x80 == 0 {
			return value, i + 1
		}
	}
	return 0, 0
}
