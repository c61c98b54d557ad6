package h264

import "errors"

// ErrPatchFailure is returned when neither patch mode can be constructed
// for the current SPS (spec.md §7: PatchFailure).
var ErrPatchFailure = errors.New("h264: sps patch failure")

// PatchMinimal implements spec.md §4.E mode 1: copy the SPS RBSP
// verbatim and force pic_struct_present_flag to 1 at its existing bit
// position. It requires that the original SPS already has a VUI.
func PatchMinimal(rbsp []byte, parsed ParsedSPS) ([]byte, error) {
	if !parsed.Info.VUIPresent {
		return nil, ErrPatchFailure
	}
	byteIdx := parsed.PicStructBitOffset / 8
	bitIdx := 7 - parsed.PicStructBitOffset%8
	if byteIdx >= len(rbsp) {
		return nil, ErrPatchFailure
	}

	out := make([]byte, len(rbsp))
	copy(out, rbsp)
	out[byteIdx] |= 1 << uint(bitIdx)
	return out, nil
}

// PatchVUIRebuild implements spec.md §4.E mode 2, the primary path: copy
// the RBSP bit-by-bit up to (not including) vui_parameters_present_flag,
// then synthesize a new VUI tail declaring pic_struct_present_flag=1 and
// a timing_info block consistent with fpsNum/fpsDen. Falls back to
// PatchMinimal when either fps component is zero.
func PatchVUIRebuild(rbsp []byte, parsed ParsedSPS, fpsNum, fpsDen uint32) ([]byte, error) {
	if fpsNum == 0 || fpsDen == 0 {
		return PatchMinimal(rbsp, parsed)
	}

	src := NewBitReader(rbsp)
	w := NewBitWriter()
	for i := 0; i < parsed.VUIFlagBitOffset; i++ {
		w.PutBit(src.ReadBit())
	}
	if !src.Ok() {
		return nil, ErrPatchFailure
	}

	w.PutBits(1, 1) // vui_parameters_present_flag
	w.PutBits(0, 1) // aspect_ratio_info_present_flag
	w.PutBits(0, 1) // overscan_info_present_flag
	w.PutBits(0, 1) // video_signal_type_present_flag
	w.PutBits(0, 1) // chroma_loc_info_present_flag
	w.PutBits(1, 1) // timing_info_present_flag
	w.PutBits(fpsDen, 32) // num_units_in_tick
	w.PutBits(2*fpsNum, 32) // time_scale
	w.PutBits(1, 1) // fixed_frame_rate_flag
	w.PutBits(0, 1) // nal_hrd_parameters_present_flag
	w.PutBits(0, 1) // vcl_hrd_parameters_present_flag
	w.PutBits(1, 1) // pic_struct_present_flag
	w.PutBits(0, 1) // bitstream_restriction_flag
	w.PutRBSPTrailing()

	return w.Bytes(), nil
}

// AssembleNAL builds an Annex B NAL unit from a raw RBSP and header byte:
// a 4-byte start code, the header byte, and the RBSP with
// emulation-prevention bytes applied (invariant 5 — RBSP bodies never
// reach the wire without EPB insertion).
func AssembleNAL(headerByte byte, rbsp []byte) []byte {
	ebsp := rbspToEBSP(rbsp)
	out := make([]byte, 0, 4+1+len(ebsp))
	out = append(out, 0x00, 0x00, 0x00, 0x01, headerByte)
	out = append(out, ebsp...)
	return out
}
