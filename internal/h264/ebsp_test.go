package h264

import (
	"bytes"
	"testing"
)

func TestEBSPToRBSPRemovesEmulationPrevention(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name string
		in   []byte
		want []byte
	}{
		{"no EPB", []byte{0x01, 0x02, 0x00, 0x00, 0x04}, []byte{0x01, 0x02, 0x00, 0x00, 0x04}},
		{"EPB before 0x00", []byte{0x00, 0x00, 0x03, 0x00}, []byte{0x00, 0x00, 0x00}},
		{"EPB before 0x01", []byte{0x00, 0x00, 0x03, 0x01}, []byte{0x00, 0x00, 0x01}},
		{"EPB before 0x03", []byte{0x00, 0x00, 0x03, 0x03}, []byte{0x00, 0x00, 0x03}},
		{"no EPB: 00 00 03 04 keeps the 03", []byte{0x00, 0x00, 0x03, 0x04}, []byte{0x00, 0x00, 0x03, 0x04}},
		{"trailing 00 00 03", []byte{0x00, 0x00, 0x03}, []byte{0x00, 0x00}},
		{"two EPBs", []byte{0x00, 0x00, 0x03, 0x00, 0x00, 0x03, 0x01}, []byte{0x00, 0x00, 0x00, 0x00, 0x01}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			t.Parallel()
			got := ebspToRBSP(c.in)
			if !bytes.Equal(got, c.want) {
				t.Errorf("ebspToRBSP(%x) = %x, want %x", c.in, got, c.want)
			}
		})
	}
}

func TestRBSPToEBSPInsertsEmulationPrevention(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name string
		in   []byte
		want []byte
	}{
		{"no insertion needed", []byte{0x01, 0x02, 0x03}, []byte{0x01, 0x02, 0x03}},
		{"00 00 00", []byte{0x00, 0x00, 0x00}, []byte{0x00, 0x00, 0x03, 0x00}},
		{"00 00 01", []byte{0x00, 0x00, 0x01}, []byte{0x00, 0x00, 0x03, 0x01}},
		{"00 00 02", []byte{0x00, 0x00, 0x02}, []byte{0x00, 0x00, 0x03, 0x02}},
		{"00 00 03", []byte{0x00, 0x00, 0x03}, []byte{0x00, 0x00, 0x03, 0x03}},
		{"00 00 04 untouched", []byte{0x00, 0x00, 0x04}, []byte{0x00, 0x00, 0x04}},
		{"00 01 00 01 untouched (no double zero run)", []byte{0x00, 0x01, 0x00, 0x01}, []byte{0x00, 0x01, 0x00, 0x01}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			t.Parallel()
			got := rbspToEBSP(c.in)
			if !bytes.Equal(got, c.want) {
				t.Errorf("rbspToEBSP(%x) = %x, want %x", c.in, got, c.want)
			}
		})
	}
}

// TestEBSPRoundTrip asserts property P5: ebsp_to_rbsp(rbsp_to_ebsp(x)) == x
// for byte sequences that don't already contain the forbidden pattern.
func TestEBSPRoundTrip(t *testing.T) {
	t.Parallel()
	inputs := [][]byte{
		{},
		{0x01},
		{0x00, 0x00, 0x00, 0x01, 0x02, 0x00, 0x00, 0x00},
		{0x00, 0x00, 0x01, 0x00, 0x00, 0x02, 0x00, 0x00, 0x03},
		{0xFF, 0xFF, 0xFF},
	}
	for _, in := range inputs {
		ebsp := rbspToEBSP(in)
		rbsp := ebspToRBSP(ebsp)
		if !bytes.Equal(rbsp, in) {
			t.Errorf("round trip failed for %x: got %x via ebsp %x", in, rbsp, ebsp)
		}
	}
}
