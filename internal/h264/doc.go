// Package h264 rewrites an in-flight Annex B H.264 access unit stream so
// that every access unit carries a Picture Timing SEI message with a
// SMPTE 12-1 clock timestamp, and the Sequence Parameter Set declares a
// VUI consistent with that timestamp.
//
// The entry point is [Rewriter], which owns the per-stream caches (the
// once-built patched SPS, the last parsed VUI info, the PTS estimator)
// and is driven synchronously by a single goroutine — typically a
// GStreamer pad probe callback. [Rewriter.Process] never blocks and
// never returns an error: on any parse failure it falls back to passing
// the input buffer through unchanged.
package h264
