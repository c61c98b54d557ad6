package h264

import "testing"

func TestScanNALsFourByteStartCodes(t *testing.T) {
	t.Parallel()
	data := []byte{
		0x00, 0x00, 0x00, 0x01, 0x67, 0x42, 0xE0, 0x1E,
		0x00, 0x00, 0x00, 0x01, 0x68, 0xCE, 0x38, 0x80,
		0x00, 0x00, 0x00, 0x01, 0x65, 0x88, 0x84, 0x00,
	}

	nals, ok := ScanNALs(data)
	if !ok {
		t.Fatal("expected ok=true")
	}
	if len(nals) != 3 {
		t.Fatalf("expected 3 NALs, got %d", len(nals))
	}
	if nals[0].Type() != NALTypeSPS {
		t.Errorf("nal 0: expected SPS, got %d", nals[0].Type())
	}
	if nals[1].Type() != NALTypePPS {
		t.Errorf("nal 1: expected PPS, got %d", nals[1].Type())
	}
	if nals[2].Type() != NALTypeIDR {
		t.Errorf("nal 2: expected IDR, got %d", nals[2].Type())
	}
	if string(data[nals[2].PayloadStart:nals[2].PayloadEnd]) != string([]byte{0x88, 0x84, 0x00}) {
		t.Errorf("nal 2 payload mismatch: %x", data[nals[2].PayloadStart:nals[2].PayloadEnd])
	}
}

func TestScanNALsThreeByteStartCode(t *testing.T) {
	t.Parallel()
	data := []byte{
		0x00, 0x00, 0x01, 0x67, 0x42, 0xE0,
		0x00, 0x00, 0x01, 0x65, 0x88, 0x84,
	}
	nals, ok := ScanNALs(data)
	if !ok || len(nals) != 2 {
		t.Fatalf("expected 2 NALs ok, got %d ok=%v", len(nals), ok)
	}
	if nals[0].StartCodeLen != 3 || nals[1].StartCodeLen != 3 {
		t.Errorf("expected 3-byte start codes, got %d and %d", nals[0].StartCodeLen, nals[1].StartCodeLen)
	}
}

func TestScanNALsNotAnnexB(t *testing.T) {
	t.Parallel()
	data := []byte{0x01, 0x02, 0x03, 0x04, 0x05}
	nals, ok := ScanNALs(data)
	if ok {
		t.Fatal("expected ok=false for non-Annex-B buffer")
	}
	if nals != nil {
		t.Errorf("expected nil NALs, got %d", len(nals))
	}
}

func TestScanNALsEmptyPayload(t *testing.T) {
	t.Parallel()
	// AUD immediately followed by another start code: header byte present,
	// zero-length payload after it.
	data := []byte{
		0x00, 0x00, 0x00, 0x01, 0x09,
		0x00, 0x00, 0x00, 0x01, 0x67, 0x42,
	}
	nals, ok := ScanNALs(data)
	if !ok || len(nals) != 2 {
		t.Fatalf("expected 2 NALs ok, got %d ok=%v", len(nals), ok)
	}
	if nals[0].Type() != NALTypeAUD {
		t.Errorf("expected AUD, got %d", nals[0].Type())
	}
	if nals[0].PayloadStart != nals[0].PayloadEnd {
		t.Errorf("expected empty payload for AUD NAL, got %d bytes", nals[0].PayloadEnd-nals[0].PayloadStart)
	}
}

func TestScanNALsTooShort(t *testing.T) {
	t.Parallel()
	if nals, ok := ScanNALs(nil); ok || nals != nil {
		t.Errorf("expected nil/false for nil input")
	}
	if nals, ok := ScanNALs([]byte{0x00, 0x00}); ok || nals != nil {
		t.Errorf("expected nil/false for too-short input")
	}
}
