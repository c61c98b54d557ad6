package h264

import "testing"

func buildNoVUISPS() []byte {
	w := NewBitWriter()
	w.PutBits(66, 8)
	w.PutBits(0, 8)
	w.PutBits(30, 8)
	writeUE(w, 0)
	writeUE(w, 0)
	writeUE(w, 0)
	writeUE(w, 0)
	writeUE(w, 1)
	w.PutBit(0)
	writeUE(w, 19)
	writeUE(w, 10)
	w.PutBit(1)
	w.PutBit(1)
	w.PutBit(0)
	w.PutBit(0) // vui_parameters_present_flag = 0
	w.PutRBSPTrailing()
	return w.Bytes()
}

func buildVUISPSPicStructZero() []byte {
	w := NewBitWriter()
	w.PutBits(100, 8)
	w.PutBits(0, 8)
	w.PutBits(40, 8)
	writeUE(w, 0)
	writeUE(w, 1)
	writeUE(w, 0)
	writeUE(w, 0)
	w.PutBit(0)
	w.PutBit(0)
	writeUE(w, 0)
	writeUE(w, 0)
	writeUE(w, 0)
	writeUE(w, 1)
	w.PutBit(0)
	writeUE(w, 19)
	writeUE(w, 10)
	w.PutBit(1)
	w.PutBit(1)
	w.PutBit(0)
	w.PutBit(1) // vui present
	w.PutBit(0)
	w.PutBit(0)
	w.PutBit(0)
	w.PutBit(0)
	w.PutBit(0) // timing_info_present_flag = 0
	w.PutBit(0) // nal_hrd
	w.PutBit(0) // vcl_hrd
	w.PutBit(0) // pic_struct_present_flag = 0
	w.PutRBSPTrailing()
	return w.Bytes()
}

func TestPatchMinimalRequiresExistingVUI(t *testing.T) {
	t.Parallel()
	rbsp := buildNoVUISPS()
	parsed, err := ParseSPS(rbsp)
	if err != nil {
		t.Fatalf("ParseSPS: %v", err)
	}
	if _, err := PatchMinimal(rbsp, parsed); err != ErrPatchFailure {
		t.Errorf("expected ErrPatchFailure, got %v", err)
	}
}

func TestPatchMinimalSetsPicStructFlag(t *testing.T) {
	t.Parallel()
	rbsp := buildVUISPSPicStructZero()
	parsed, err := ParseSPS(rbsp)
	if err != nil {
		t.Fatalf("ParseSPS: %v", err)
	}
	if parsed.Info.PicStructPresentFlag {
		t.Fatal("precondition failed: expected pic_struct_present_flag=0 in fixture")
	}

	patched, err := PatchMinimal(rbsp, parsed)
	if err != nil {
		t.Fatalf("PatchMinimal: %v", err)
	}
	if len(patched) != len(rbsp) {
		t.Fatalf("PatchMinimal must not change length, got %d want %d", len(patched), len(rbsp))
	}

	reparsed, err := ParseSPS(patched)
	if err != nil {
		t.Fatalf("re-parse of patched SPS failed: %v", err)
	}
	if !reparsed.Info.PicStructPresentFlag {
		t.Error("expected pic_struct_present_flag=1 after patch")
	}
}

func TestPatchVUIRebuildSynthesizesTimingInfo(t *testing.T) {
	t.Parallel()
	rbsp := buildNoVUISPS()
	parsed, err := ParseSPS(rbsp)
	if err != nil {
		t.Fatalf("ParseSPS: %v", err)
	}

	patched, err := PatchVUIRebuild(rbsp, parsed, 30000, 1001)
	if err != nil {
		t.Fatalf("PatchVUIRebuild: %v", err)
	}

	reparsed, err := ParseSPS(patched)
	if err != nil {
		t.Fatalf("re-parse of rebuilt SPS failed: %v", err)
	}
	info := reparsed.Info
	if !info.VUIPresent {
		t.Fatal("expected VUIPresent=true")
	}
	if !info.PicStructPresentFlag {
		t.Error("expected pic_struct_present_flag=1")
	}
	if !info.TimingInfoPresentFlag {
		t.Error("expected timing_info_present_flag=1")
	}
	if info.NumUnitsInTick != 1001 {
		t.Errorf("num_units_in_tick = %d, want 1001", info.NumUnitsInTick)
	}
	if info.TimeScale != 60000 {
		t.Errorf("time_scale = %d, want 60000 (2*fps_num)", info.TimeScale)
	}
	if !info.FixedFrameRateFlag {
		t.Error("expected fixed_frame_rate_flag=1")
	}
}

func TestPatchVUIRebuildFallsBackToMinimalWhenFpsUnknown(t *testing.T) {
	t.Parallel()
	rbsp := buildVUISPSPicStructZero()
	parsed, err := ParseSPS(rbsp)
	if err != nil {
		t.Fatalf("ParseSPS: %v", err)
	}

	viaRebuild, err := PatchVUIRebuild(rbsp, parsed, 0, 0)
	if err != nil {
		t.Fatalf("PatchVUIRebuild: %v", err)
	}
	viaMinimal, err := PatchMinimal(rbsp, parsed)
	if err != nil {
		t.Fatalf("PatchMinimal: %v", err)
	}
	if string(viaRebuild) != string(viaMinimal) {
		t.Error("expected PatchVUIRebuild with zero fps to equal PatchMinimal")
	}
}

func TestAssembleNALRoundTripsThroughEBSP(t *testing.T) {
	t.Parallel()
	rbsp := []byte{0x00, 0x00, 0x00, 0x01, 0x02, 0x03}
	nal := AssembleNAL(0x67, rbsp)

	if len(nal) < 5 || nal[0] != 0 || nal[1] != 0 || nal[2] != 0 || nal[3] != 1 {
		t.Fatalf("expected 4-byte start code prefix, got %x", nal[:5])
	}
	if nal[4] != 0x67 {
		t.Fatalf("expected header byte 0x67, got %x", nal[4])
	}

	got := ebspToRBSP(nal[5:])
	if string(got) != string(rbsp) {
		t.Errorf("round trip mismatch: got %x, want %x", got, rbsp)
	}
}
