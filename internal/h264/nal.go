package h264

// H.264 NAL unit types (ITU-T H.264 Table 7-1) that the rewriter inspects
// or injects.
const (
	NALTypeSlice = 1
	NALTypeIDR   = 5
	NALTypeSEI   = 6
	NALTypeSPS   = 7
	NALTypePPS   = 8
	NALTypeAUD   = 9
)

// NAL describes one NAL unit located inside an Annex B buffer. Start and
// Payload offsets index into the original buffer; the payload is still in
// EBSP form (emulation-prevention bytes not yet removed).
type NAL struct {
	StartCodeOffset int // offset of the first byte of the start code
	StartCodeLen    int // 3 or 4
	HeaderByte      byte
	PayloadStart    int // offset of the first byte after the header
	PayloadEnd      int // exclusive
}

// Type returns the nal_unit_type (low 5 bits of the header byte).
func (n NAL) Type() byte {
	return n.HeaderByte & 0x1F
}

// scanStartCodes locates every Annex B start code in data, returning the
// offset of the code itself and the offset of the byte following it.
func scanStartCodes(data []byte) []struct{ start, dataStart int } {
	var positions []struct{ start, dataStart int }
	n := len(data)
	i := 0
	for i+2 < n {
		if data[i] == 0 && data[i+1] == 0 {
			if i+3 < n && data[i+2] == 0 && data[i+3] == 1 {
				positions = append(positions, struct{ start, dataStart int }{i, i + 4})
				i += 4
				continue
			}
			if data[i+2] == 1 {
				positions = append(positions, struct{ start, dataStart int }{i, i + 3})
				i += 3
				continue
			}
		}
		i++
	}
	return positions
}

// ScanNALs splits an Annex B buffer into its constituent NAL units. It
// returns ok=false when data does not begin with a start code, per
// spec.md §4.A: such a buffer is not Annex B and must be passed through
// untouched rather than rewritten.
func ScanNALs(data []byte) (units []NAL, ok bool) {
	if len(data) < 3 || !(isStartCode(data, 0)) {
		return nil, false
	}

	positions := scanStartCodes(data)
	if len(positions) == 0 {
		return nil, false
	}

	for idx, pos := range positions {
		end := len(data)
		if idx+1 < len(positions) {
			end = positions[idx+1].start
		}
		if pos.dataStart >= end {
			// Header-only / empty NAL payload: legal, zero-length payload.
			units = append(units, NAL{
				StartCodeOffset: pos.start,
				StartCodeLen:    pos.dataStart - pos.start,
				PayloadStart:    pos.dataStart,
				PayloadEnd:      pos.dataStart,
			})
			continue
		}
		units = append(units, NAL{
			StartCodeOffset: pos.start,
			StartCodeLen:    pos.dataStart - pos.start,
			HeaderByte:      data[pos.dataStart],
			PayloadStart:    pos.dataStart + 1,
			PayloadEnd:      end,
		})
	}

	return units, true
}

func isStartCode(data []byte, i int) bool {
	if i+3 <= len(data) && data[i] == 0 && data[i+1] == 0 && data[i+2] == 1 {
		return true
	}
	if i+4 <= len(data) && data[i] == 0 && data[i+1] == 0 && data[i+2] == 0 && data[i+3] == 1 {
		return true
	}
	return false
}
