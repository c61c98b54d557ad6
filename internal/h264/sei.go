package h264

// TimecodeSample is a SMPTE 12-1 clock timestamp sample (spec.md §3).
type TimecodeSample struct {
	Hours     int
	Minutes   int
	Seconds   int
	Frames    int
	DropFrame bool
}

// BuildPicTimingSEI builds a payloadType=1 (pic_timing) SEI message
// carrying a single full clock timestamp, per spec.md §4.F. HRD-governed
// fields (cpb_removal_delay, dpb_output_delay, time_offset) are always
// omitted: the rewriter forces cpb_dpb_delays_present_flag=false before
// emitting SEI (spec.md §4.D "why this deep parse"), so timeOffsetLength
// is only ever consulted when hrdPresent is true.
func BuildPicTimingSEI(tc TimecodeSample, hrdPresent bool, timeOffsetLength uint) []byte {
	w := NewBitWriter()
	w.PutBits(0, 4) // pic_struct = 0 (frame)
	w.PutBits(1, 1) // clock_timestamp_flag[0]
	w.PutBits(0, 2) // ct_type
	w.PutBits(0, 1) // nuit_field_based_flag
	w.PutBits(0, 5) // counting_type
	w.PutBits(1, 1) // full_timestamp_flag
	w.PutBits(0, 1) // discontinuity_flag
	if tc.DropFrame {
		w.PutBits(1, 1)
	} else {
		w.PutBits(0, 1)
	}
	w.PutBits(uint32(tc.Frames), 8)
	w.PutBits(uint32(tc.Seconds), 6)
	w.PutBits(uint32(tc.Minutes), 6)
	w.PutBits(uint32(tc.Hours), 5)
	if hrdPresent && timeOffsetLength > 0 {
		w.PutBits(0, int(timeOffsetLength))
	}
	w.FlushZeroAlign()

	payload := w.Bytes()
	rbsp := encodeSEIMessage(1, payload)
	rbsp = append(rbsp, 0x80) // rbsp_trailing_bits of the overall SEI RBSP

	return AssembleNAL(NALTypeSEI, rbsp)
}

// encodeSEIMessage frames a single SEI message as payloadType followed
// by payloadSize (each as a run of 0xFF bytes terminated by the
// remainder) followed by the payload bytes, per the SEI message() syntax.
func encodeSEIMessage(payloadType int, payload []byte) []byte {
	var out []byte

	pt := payloadType
	for pt >= 255 {
		out = append(out, 0xFF)
		pt -= 255
	}
	out = append(out, byte(pt))

	ps := len(payload)
	for ps >= 255 {
		out = append(out, 0xFF)
		ps -= 255
	}
	out = append(out, byte(ps))

	out = append(out, payload...)
	return out
}
