// Package sink implements the output side of ndi2srt: writing the muxed
// MPEG-TS byte stream to stdout, an SRT caller connection, or an
// optional file dump, mirroring the byte-stream plumbing prism's own
// SRT ingest side uses in reverse.
package sink

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	srtgo "github.com/zsiec/srtgo"
)

// srtLatencyNs matches prism's own SRT caller latency setting.
const srtLatencyNs = 120_000_000

// Sink is anything that can receive the muxed MPEG-TS byte stream.
type Sink interface {
	io.WriteCloser
}

// Stdout wraps w (normally os.Stdout) as a Sink that never closes the
// underlying writer.
func Stdout(w io.Writer) Sink {
	return &stdoutSink{w: w}
}

type stdoutSink struct {
	w io.Writer
}

func (s *stdoutSink) Write(p []byte) (int, error) { return s.w.Write(p) }
func (s *stdoutSink) Close() error                { return nil }

// srtCallerSink dials out to a remote SRT listener and writes the muxed
// stream to it, the push-direction counterpart of prism's ingest/srt
// Caller (which pulls).
type srtCallerSink struct {
	log  *slog.Logger
	conn *srtgo.Conn
}

// NewSRTCaller dials addr in SRT caller mode and returns a Sink that
// writes to the connection. streamID is sent as the SRT stream ID,
// following prism's "live/<key>" convention when non-empty.
func NewSRTCaller(addr, streamID string, log *slog.Logger) (Sink, error) {
	if log == nil {
		log = slog.Default()
	}
	if addr == "" {
		return nil, fmt.Errorf("sink: SRT address is required")
	}

	cfg := srtgo.DefaultConfig()
	cfg.Latency = srtLatencyNs
	if streamID != "" {
		cfg.StreamID = streamID
	}

	type dialResult struct {
		conn *srtgo.Conn
		err  error
	}
	ch := make(chan dialResult, 1)
	go func() {
		conn, err := srtgo.Dial(addr, cfg)
		ch <- dialResult{conn, err}
	}()

	dialTimeout := 10 * time.Second
	timer := time.NewTimer(dialTimeout)
	defer timer.Stop()

	select {
	case res := <-ch:
		if res.err != nil {
			return nil, fmt.Errorf("sink: SRT dial failed: %w", res.err)
		}
		log.Info("SRT caller connected", "address", addr)
		return &srtCallerSink{log: log.With("component", "srt-sink"), conn: res.conn}, nil
	case <-timer.C:
		go func() {
			if res := <-ch; res.conn != nil {
				res.conn.Close()
			}
		}()
		return nil, fmt.Errorf("sink: SRT dial timed out after %s", dialTimeout)
	}
}

func (s *srtCallerSink) Write(p []byte) (int, error) { return s.conn.Write(p) }
func (s *srtCallerSink) Close() error                { return s.conn.Close() }

// FileDump opens path for writing and returns a Sink that tees nothing
// itself; it is combined with another Sink via MultiWriter by the
// caller when both a network sink and an on-disk copy are wanted.
func FileDump(path string) (Sink, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("sink: create dump file: %w", err)
	}
	return f, nil
}

// MultiWriter fans writes out to every sink, returning on the first
// error, the same semantics as io.MultiWriter.
func MultiWriter(sinks ...Sink) Sink {
	writers := make([]io.Writer, len(sinks))
	for i, s := range sinks {
		writers[i] = s
	}
	return &multiSink{w: io.MultiWriter(writers...), sinks: sinks}
}

type multiSink struct {
	w     io.Writer
	sinks []Sink
}

func (m *multiSink) Write(p []byte) (int, error) { return m.w.Write(p) }

func (m *multiSink) Close() error {
	var firstErr error
	for _, s := range m.sinks {
		if err := s.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
