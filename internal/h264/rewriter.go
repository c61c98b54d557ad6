package h264

import "log/slog"

// Buffer is one access unit flowing through the rewriter, together with
// the metadata needed to derive a timecode and to hand the output back
// to the caller unchanged apart from Data (spec.md §6 "Output buffer
// contract").
type Buffer struct {
	Data []byte

	HasPTS bool
	PTS    int64 // nanoseconds, arbitrary epoch

	// Timecode is the upstream-attached SMPTE 12-1 sample, if any.
	Timecode *TimecodeSample

	// Meta is opaque caller metadata (e.g. GStreamer buffer flags/refs)
	// copied verbatim onto the output buffer; the rewriter never inspects it.
	Meta any
}

// Config holds the options recognized by the rewriter (spec.md §6).
type Config struct {
	InjectSEI bool
	PreferPTS bool
	FpsNum    uint32
	FpsDen    uint32
	Verbose   bool
}

// Stats is a point-in-time snapshot of rewriter activity, used for
// periodic logging by the surrounding pipeline (SPEC_FULL.md §9).
type Stats struct {
	AUsProcessed uint64
	SPSPatched   uint64
	SEIInjected  uint64
	LastTimecode string
}

// Rewriter parses and rewrites Annex B H.264 access units in-flight so
// that each carries a Picture Timing SEI and a VUI-patched SPS, per
// spec.md §4.H. It is single-threaded cooperative (spec.md §5): every
// field below is touched only from the goroutine that calls Process.
type Rewriter struct {
	cfg Config
	log *slog.Logger

	patchedSPSAnnexB []byte

	tracker ptsTracker
	stats   Stats
}

// NewRewriter creates a Rewriter with the given configuration. A nil
// logger falls back to slog.Default().
func NewRewriter(cfg Config, log *slog.Logger) *Rewriter {
	if log == nil {
		log = slog.Default()
	}
	return &Rewriter{cfg: cfg, log: log}
}

// SetFramerate overrides the negotiated framerate used for SPS timing
// and PTS-derived frame-number math (spec.md §6 fps_num/fps_den, §8.2
// "negotiated framerate is read off the encoder sink pad's caps").
func (r *Rewriter) SetFramerate(num, den uint32) {
	r.cfg.FpsNum = num
	r.cfg.FpsDen = den
}

// Stats returns a snapshot of rewriter activity.
func (r *Rewriter) Stats() Stats {
	return r.stats
}

// Process rewrites a single access unit. It never returns an error: any
// parse failure, malformed Annex B, or missing timecode causes the
// original buffer to be passed through unchanged (spec.md §7).
func (r *Rewriter) Process(in Buffer) Buffer {
	if !r.cfg.InjectSEI {
		return in
	}

	tc, ok := resolveTimecode(in.Timecode, in.HasPTS, in.PTS, r.cfg.PreferPTS, r.cfg.FpsNum, r.cfg.FpsDen, &r.tracker)
	if !ok {
		return in
	}

	out, ok := r.rewriteAU(in.Data, tc)
	if !ok {
		return in
	}

	r.stats.AUsProcessed++
	r.stats.LastTimecode = tc.String()
	if r.cfg.Verbose {
		r.log.Debug("rewrote access unit", "timecode", tc.String(), "in_bytes", len(in.Data), "out_bytes", len(out))
	}

	return Buffer{Data: out, HasPTS: in.HasPTS, PTS: in.PTS, Timecode: in.Timecode, Meta: in.Meta}
}

// String formats the timecode as HH:MM:SS:FF, with a semicolon before
// the frame count when drop-frame is in effect (SMPTE convention).
func (tc TimecodeSample) String() string {
	sep := byte(':')
	if tc.DropFrame {
		sep = ';'
	}
	return formatTC(tc.Hours, tc.Minutes, tc.Seconds, tc.Frames, sep)
}

func formatTC(h, m, s, f int, sep byte) string {
	buf := make([]byte, 0, 11)
	buf = appendPad2(buf, h)
	buf = append(buf, ':')
	buf = appendPad2(buf, m)
	buf = append(buf, ':')
	buf = appendPad2(buf, s)
	buf = append(buf, sep)
	buf = appendPad2(buf, f)
	return string(buf)
}

func appendPad2(buf []byte, v int) []byte {
	if v < 0 {
		v = 0
	}
	if v > 99 {
		v = 99
	}
	return append(buf, byte('0'+v/10), byte('0'+v%10))
}

// rewriteAU implements the scan/patch/splice logic of spec.md §4.H. ok
// is false whenever the AU could not be parsed as Annex B at all, in
// which case the caller must pass the original buffer through.
func (r *Rewriter) rewriteAU(data []byte, tc TimecodeSample) (out []byte, ok bool) {
	defer func() {
		// Best-effort transformer (spec.md §7): any unexpected panic from
		// a malformed bitstream degrades to passthrough rather than
		// crashing the streaming thread.
		if rec := recover(); rec != nil {
			out, ok = nil, false
		}
	}()

	nals, annexOK := ScanNALs(data)
	if !annexOK {
		return nil, false
	}

	var audIdx, spsIdx, idrIdx = -1, -1, -1
	for i, n := range nals {
		switch n.Type() {
		case NALTypeAUD:
			if audIdx == -1 {
				audIdx = i
			}
		case NALTypeSPS:
			if spsIdx == -1 {
				spsIdx = i
			}
		case NALTypeIDR:
			if idrIdx == -1 {
				idrIdx = i
			}
		}
	}
	hasAUD := audIdx != -1
	hasSPS := spsIdx != -1
	hasIDR := idrIdx != -1

	var patchedSPS []byte
	needSPS := hasSPS || hasIDR
	if needSPS {
		patchedSPS = r.ensurePatchedSPS(data, nals, spsIdx, hasSPS)
	}

	seiNAL := BuildPicTimingSEI(tc, false, 0)
	r.stats.SEIInjected++

	return r.assemble(data, nals, hasAUD, audIdx, needSPS, patchedSPS, seiNAL), true
}

// ensurePatchedSPS returns the cached patched SPS Annex B NAL, building
// it once from the first in-band SPS this stream carries (spec.md §3
// invariant 1, §4.H step 2). If patching fails (spec.md §7
// PatchFailure) it returns nil so the caller injects SEI without an SPS.
func (r *Rewriter) ensurePatchedSPS(data []byte, nals []NAL, spsIdx int, hasSPS bool) []byte {
	if r.patchedSPSAnnexB != nil {
		return r.patchedSPSAnnexB
	}
	if !hasSPS {
		return nil
	}

	n := nals[spsIdx]
	rbsp := ebspToRBSP(data[n.PayloadStart:n.PayloadEnd])
	parsed, err := ParseSPS(rbsp)
	if err != nil {
		return nil
	}

	var patched []byte
	if r.cfg.FpsNum != 0 && r.cfg.FpsDen != 0 {
		patched, err = PatchVUIRebuild(rbsp, parsed, r.cfg.FpsNum, r.cfg.FpsDen)
	} else {
		patched, err = PatchMinimal(rbsp, parsed)
	}
	if err != nil {
		return nil
	}

	annexb := AssembleNAL(n.HeaderByte, patched)
	r.patchedSPSAnnexB = annexb
	r.stats.SPSPatched++
	return annexb
}

// assemble emits the rewritten AU per spec.md §4.H step 4: injections
// land after a leading AUD if present, else at the very front; every
// original SEI (type 6) is dropped; at most one SPS (type 7) survives,
// substituted by the patched SPS if one is needed and not yet injected.
func (r *Rewriter) assemble(data []byte, nals []NAL, hasAUD bool, audIdx int, needSPS bool, patchedSPS, seiNAL []byte) []byte {
	size := 0
	injectSPS := needSPS && patchedSPS != nil

	startFrom := 0
	if hasAUD {
		startFrom = audIdx + 1
		size += nals[audIdx].PayloadEnd - nals[audIdx].StartCodeOffset
	}

	if injectSPS {
		size += len(patchedSPS)
	}
	size += len(seiNAL)

	// Every original SEI and SPS NAL is dropped from the remainder: SEI
	// because invariant 3 allows only the injected one to survive, SPS
	// because it was either substituted by patchedSPS above or (on
	// PatchFailure) omitted entirely.
	for i := startFrom; i < len(nals); i++ {
		n := nals[i]
		if t := n.Type(); t == NALTypeSEI || t == NALTypeSPS {
			continue
		}
		size += n.PayloadEnd - n.StartCodeOffset
	}

	out := make([]byte, 0, size)
	if hasAUD {
		aud := nals[audIdx]
		out = append(out, data[aud.StartCodeOffset:aud.PayloadEnd]...)
	}
	if injectSPS {
		out = append(out, patchedSPS...)
	}
	out = append(out, seiNAL...)

	for i := startFrom; i < len(nals); i++ {
		n := nals[i]
		if t := n.Type(); t == NALTypeSEI || t == NALTypeSPS {
			continue
		}
		out = append(out, data[n.StartCodeOffset:n.PayloadEnd]...)
	}

	return out
}
