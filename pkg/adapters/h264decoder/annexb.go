package h264decoder

// avccToAnnexB converts AVCC format (length-prefixed NALUs) to Annex B format (start code prefixed)
func avccToAnnexB(data []byte) []byte {
	var result []byte
	offset := 0

	for offset+4 <= len(data) {
		naluLen := int(data[offset])<<24 | int(data[offset+1])<<16 |
			int(data[offset+2])<<8 | int(data[offset+3])
		offset += 4

		if offset+naluLen > len(data) {
			break
		}

		// Add Annex B start code
		result = append(result, 0, 0, 0, 1)
		result = append(result, data[offset:offset+naluLen]...)
		offset += naluLen
	}

	return result
}
