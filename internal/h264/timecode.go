package h264

const (
	nsPerSecond = int64(1_000_000_000)

	minEstFPS = 12.0
	maxEstFPS = 120.0
	defaultFPS = 25.0
)

// ptsTracker derives an estimated frame rate from the spacing between
// consecutive presentation timestamps, for use when neither an upstream
// timecode nor a negotiated framerate is available (spec.md §4.G, §9
// "PTS -> frame number").
type ptsTracker struct {
	lastPTS  int64
	hasLast  bool
	estFPS   float64
}

// estimate updates the tracker with a new PTS (nanoseconds) and returns
// the current frame rate estimate, clamped to [12, 120] fps. The first
// sample has no prior PTS to compare against, so it returns the default
// 25fps (or whatever estimate already exists).
func (t *ptsTracker) estimate(pts int64) float64 {
	if t.estFPS == 0 {
		t.estFPS = defaultFPS
	}
	if !t.hasLast {
		t.hasLast = true
		t.lastPTS = pts
		return t.estFPS
	}

	delta := pts - t.lastPTS
	t.lastPTS = pts
	if delta <= 0 {
		return t.estFPS
	}

	fps := float64(nsPerSecond) / float64(delta)
	if fps < minEstFPS {
		fps = minEstFPS
	} else if fps > maxEstFPS {
		fps = maxEstFPS
	}
	t.estFPS = fps
	return fps
}

// isDropFrameRate reports whether num/den is one of the two NTSC rates
// that conventionally use drop-frame timecode (spec.md §4.G rule 3).
func isDropFrameRate(fpsNum, fpsDen uint32) bool {
	return (fpsNum == 30000 && fpsDen == 1001) || (fpsNum == 60000 && fpsDen == 1001)
}

// deriveFromPTS computes an hh:mm:ss:ff sample from a raw PTS in
// nanoseconds, per spec.md §4.G rule 2. When fpsNum/fpsDen are known
// (non-zero), the sub-second frame index is computed with exact 64-bit
// arithmetic; otherwise it falls back to the tracker's estimated fps.
func (t *ptsTracker) deriveFromPTS(pts int64, fpsNum, fpsDen uint32) TimecodeSample {
	totalSec := pts / nsPerSecond
	subSec := pts % nsPerSecond
	if subSec < 0 {
		subSec += nsPerSecond
	}

	hours := int((totalSec / 3600) % 24)
	minutes := int((totalSec % 3600) / 60)
	seconds := int(totalSec % 60)

	var frames int
	if fpsNum != 0 && fpsDen != 0 {
		frames = int((subSec * int64(fpsNum)) / (nsPerSecond * int64(fpsDen)))
	} else {
		fps := t.estimate(pts)
		frames = int(float64(subSec) * fps / float64(nsPerSecond))
	}

	return TimecodeSample{
		Hours:     hours,
		Minutes:   minutes,
		Seconds:   seconds,
		Frames:    frames,
		DropFrame: isDropFrameRate(fpsNum, fpsDen),
	}
}

// resolveTimecode implements the decision order of spec.md §4.G:
// an upstream-attached timecode wins outright (with drop-frame possibly
// re-derived from the negotiated rate); otherwise a PTS-derived sample is
// used when preferPTS is set and a valid PTS is present; otherwise no
// timecode is available and the caller must pass the buffer through.
func resolveTimecode(upstream *TimecodeSample, havePTS bool, pts int64, preferPTS bool, fpsNum, fpsDen uint32, tracker *ptsTracker) (TimecodeSample, bool) {
	if upstream != nil {
		tc := *upstream
		tc.DropFrame = tc.DropFrame || isDropFrameRate(fpsNum, fpsDen)
		return tc, true
	}
	if preferPTS && havePTS {
		return tracker.deriveFromPTS(pts, fpsNum, fpsDen), true
	}
	return TimecodeSample{}, false
}
