package h264

import "errors"

// ErrSPSParseFailure is returned when the bit reader runs past the end
// of the SPS RBSP before the walk completes (spec.md §7: SpsParseFailure).
var ErrSPSParseFailure = errors.New("h264: sps parse failure")

// highProfileIDs are the profile_idc values that carry the chroma/bit-depth
// and scaling-matrix fields (spec.md §4.D step 2).
var highProfileIDs = map[uint32]bool{
	100: true, 110: true, 122: true, 244: true, 44: true, 83: true,
	86: true, 118: true, 128: true, 138: true, 139: true, 134: true, 135: true,
}

// SpsVuiInfo is the structured extract of an SPS's Video Usability
// Information, as defined in spec.md §3.
type SpsVuiInfo struct {
	VUIPresent              bool
	PicStructPresentFlag    bool
	CpbDpbDelaysPresentFlag bool
	CpbRemovalDelayLength   uint
	DpbOutputDelayLength    uint
	TimeOffsetLength        uint
	TimingInfoPresentFlag   bool
	NumUnitsInTick          uint32
	TimeScale               uint32
	FixedFrameRateFlag      bool
}

// DefaultSpsVuiInfo is the conservative default used whenever no SPS has
// ever been observed, or the observed SPS has no VUI at all (spec.md
// §4.D step 5, §7 VuiAbsent).
func DefaultSpsVuiInfo() SpsVuiInfo {
	return SpsVuiInfo{
		VUIPresent:           false,
		PicStructPresentFlag: true,
	}
}

// ParsedSPS is the result of walking an SPS RBSP far enough to extract
// its VUI, plus the bit offsets the patcher needs to splice a new VUI
// onto an otherwise-untouched prefix.
type ParsedSPS struct {
	Info SpsVuiInfo

	// VUIFlagBitOffset is the bit offset, from the start of the RBSP, of
	// vui_parameters_present_flag. The VUI-rebuild patch copies bits
	// [0, VUIFlagBitOffset) verbatim and synthesizes everything after.
	VUIFlagBitOffset int

	// PicStructBitOffset is the bit offset of pic_struct_present_flag
	// within an existing VUI. Valid only when Info.VUIPresent is true.
	PicStructBitOffset int
}

// ParseSPS decodes an SPS RBSP (the NAL header byte must already be
// stripped, and the RBSP must already have emulation-prevention bytes
// removed) up through its VUI, per spec.md §4.D.
func ParseSPS(rbsp []byte) (ParsedSPS, error) {
	if len(rbsp) < 4 {
		return ParsedSPS{}, ErrSPSParseFailure
	}
	r := NewBitReader(rbsp)

	r.ReadBits(8) // profile_idc
	profileIdc := uint32(rbsp[0])
	r.ReadBits(8) // constraint_set flags + reserved
	r.ReadBits(8) // level_idc
	r.ReadUE()    // seq_parameter_set_id

	if highProfileIDs[profileIdc] {
		chromaFormatIdc := r.ReadUE()
		if chromaFormatIdc == 3 {
			r.ReadBits(1) // separate_colour_plane_flag
		}
		r.ReadUE() // bit_depth_luma_minus8
		r.ReadUE() // bit_depth_chroma_minus8
		r.ReadBits(1) // qpprime_y_zero_transform_bypass_flag

		scalingMatrixPresent := r.ReadBits(1)
		if scalingMatrixPresent == 1 {
			limit := 8
			if chromaFormatIdc == 3 {
				limit = 12
			}
			for i := 0; i < limit; i++ {
				present := r.ReadBits(1)
				if present == 1 {
					size := 16
					if i >= 6 {
						size = 64
					}
					r.SkipScalingList(size)
				}
			}
		}
	}

	r.ReadUE() // log2_max_frame_num_minus4
	picOrderCntType := r.ReadUE()
	switch picOrderCntType {
	case 0:
		r.ReadUE() // log2_max_pic_order_cnt_lsb_minus4
	case 1:
		r.ReadBits(1) // delta_pic_order_always_zero_flag
		r.ReadSE()    // offset_for_non_ref_pic
		r.ReadSE()    // offset_for_top_to_bottom_field
		numRefFrames := r.ReadUE()
		for i := uint32(0); i < numRefFrames; i++ {
			r.ReadSE() // offset_for_ref_frame[i]
		}
	}

	r.ReadUE()    // max_num_ref_frames
	r.ReadBits(1) // gaps_in_frame_num_value_allowed_flag
	r.ReadUE()    // pic_width_in_mbs_minus1
	r.ReadUE()    // pic_height_in_map_units_minus1

	frameMbsOnly := r.ReadBits(1)
	if frameMbsOnly == 0 {
		r.ReadBits(1) // mb_adaptive_frame_field_flag
	}
	r.ReadBits(1) // direct_8x8_inference_flag

	cropFlag := r.ReadBits(1)
	if cropFlag == 1 {
		r.ReadUE() // frame_crop_left_offset
		r.ReadUE() // frame_crop_right_offset
		r.ReadUE() // frame_crop_top_offset
		r.ReadUE() // frame_crop_bottom_offset
	}

	vuiFlagOffset := r.BitPos()
	vuiPresent := r.ReadBits(1)
	if !r.Ok() {
		return ParsedSPS{}, ErrSPSParseFailure
	}
	if vuiPresent == 0 {
		return ParsedSPS{Info: DefaultSpsVuiInfo(), VUIFlagBitOffset: vuiFlagOffset}, nil
	}

	parsed := ParsedSPS{VUIFlagBitOffset: vuiFlagOffset}
	parsed.Info.VUIPresent = true

	arPresent := r.ReadBits(1)
	if arPresent == 1 {
		arIdc := r.ReadBits(8)
		if arIdc == 255 { // Extended_SAR
			r.ReadBits(16) // sar_width
			r.ReadBits(16) // sar_height
		}
	}

	overscanPresent := r.ReadBits(1)
	if overscanPresent == 1 {
		r.ReadBits(1) // overscan_appropriate_flag
	}

	videoSignalPresent := r.ReadBits(1)
	if videoSignalPresent == 1 {
		r.ReadBits(3) // video_format
		r.ReadBits(1) // video_full_range_flag
		colourDescPresent := r.ReadBits(1)
		if colourDescPresent == 1 {
			r.ReadBits(24) // colour_primaries, transfer_characteristics, matrix_coefficients
		}
	}

	chromaLocPresent := r.ReadBits(1)
	if chromaLocPresent == 1 {
		r.ReadUE() // chroma_sample_loc_type_top_field
		r.ReadUE() // chroma_sample_loc_type_bottom_field
	}

	timingInfoPresent := r.ReadBits(1)
	parsed.Info.TimingInfoPresentFlag = timingInfoPresent == 1
	if timingInfoPresent == 1 {
		parsed.Info.NumUnitsInTick = r.ReadBits(32)
		parsed.Info.TimeScale = r.ReadBits(32)
		parsed.Info.FixedFrameRateFlag = r.ReadBits(1) == 1
	}

	parseHRD := func() {
		cpbCnt := r.ReadUE()
		r.ReadBits(4) // bit_rate_scale
		r.ReadBits(4) // cpb_size_scale
		for i := uint32(0); i <= cpbCnt; i++ {
			r.ReadUE()    // bit_rate_value_minus1
			r.ReadUE()    // cpb_size_value_minus1
			r.ReadBits(1) // cbr_flag
		}
		r.ReadBits(5) // initial_cpb_removal_delay_length_minus1
		cpbLen := r.ReadBits(5)
		dpbLen := r.ReadBits(5)
		toLen := r.ReadBits(5)
		parsed.Info.CpbRemovalDelayLength = uint(cpbLen) + 1
		parsed.Info.DpbOutputDelayLength = uint(dpbLen) + 1
		parsed.Info.TimeOffsetLength = uint(toLen)
		parsed.Info.CpbDpbDelaysPresentFlag = true
	}

	nalHRD := r.ReadBits(1)
	if nalHRD == 1 {
		parseHRD()
	}
	vclHRD := r.ReadBits(1)
	if vclHRD == 1 {
		parseHRD()
	}
	if nalHRD == 1 || vclHRD == 1 {
		r.ReadBits(1) // low_delay_hrd_flag
	}

	parsed.PicStructBitOffset = r.BitPos()
	picStruct := r.ReadBits(1)
	parsed.Info.PicStructPresentFlag = picStruct == 1

	if !r.Ok() {
		return ParsedSPS{}, ErrSPSParseFailure
	}

	// bitstream_restriction_flag and its sub-fields are not used
	// downstream and are intentionally left unparsed.

	return parsed, nil
}
