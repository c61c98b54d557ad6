// Package gstpipeline wires an NDI source into a GStreamer pipeline that
// encodes video to H.264, splices the h264.Rewriter onto the encoder's
// output pad, muxes with AAC audio into MPEG-TS, and exposes the muxed
// byte stream through an io.Reader.
package gstpipeline

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/go-gst/go-gst/gst"
	"github.com/go-gst/go-gst/gst/app"

	"github.com/matiaspl/ndi2srt/internal/config"
	"github.com/matiaspl/ndi2srt/internal/h264"
)

var initOnce sync.Once

// Init initializes the GStreamer library. Safe to call multiple times.
func Init() {
	initOnce.Do(func() {
		gst.Init(nil)
	})
}

// Pipeline wraps a running GStreamer pipeline together with the
// h264.Rewriter spliced onto its encoder pad and a pipe exposing the
// muxed MPEG-TS output as an io.Reader.
type Pipeline struct {
	log      *slog.Logger
	pipeline *gst.Pipeline
	appsink  *app.Sink
	rewriter *h264.Rewriter

	pr *io.PipeReader
	pw *io.PipeWriter
}

// Build constructs the GStreamer pipeline described by cfg: an NDI
// source, an x264 encoder, a mpegtsmux fed by both the rewritten video
// branch and an AAC audio branch, and an appsink named "tsout" that the
// returned Pipeline's Output reader drains.
func Build(cfg config.Config, log *slog.Logger) (*Pipeline, error) {
	if log == nil {
		log = slog.Default()
	}
	Init()

	desc := fmt.Sprintf(
		"ndisrc name=src ntv2-source-name=%q ! "+
			"video/x-raw,width=%d,height=%d,framerate=%d/%d ! "+
			"videoconvert ! x264enc name=enc tune=zerolatency ! "+
			"video/x-h264,stream-format=byte-stream,alignment=au ! "+
			"h264parse ! mux.video "+
			"src. ! audioconvert ! audioresample ! voaacenc ! aacparse ! mux.audio "+
			"mpegtsmux name=mux ! appsink name=tsout",
		cfg.NDISourceName, cfg.Width, cfg.Height, cfg.FpsNum, cfg.FpsDen,
	)

	gstPipeline, err := gst.NewPipelineFromString(desc)
	if err != nil {
		return nil, fmt.Errorf("gstpipeline: parse pipeline: %w", err)
	}

	elem, err := gstPipeline.GetElementByName("tsout")
	if err != nil {
		gstPipeline.SetState(gst.StateNull)
		return nil, fmt.Errorf("gstpipeline: get appsink: %w", err)
	}
	sink := app.SinkFromElement(elem)
	if sink == nil {
		gstPipeline.SetState(gst.StateNull)
		return nil, fmt.Errorf("gstpipeline: tsout element is not an appsink")
	}

	pr, pw := io.Pipe()

	p := &Pipeline{
		log:      log.With("component", "gstpipeline"),
		pipeline: gstPipeline,
		appsink:  sink,
		rewriter: h264.NewRewriter(h264.Config{
			InjectSEI: cfg.InjectSEI,
			PreferPTS: cfg.PreferPTS,
			FpsNum:    cfg.FpsNum,
			FpsDen:    cfg.FpsDen,
			Verbose:   cfg.Verbose,
		}, log),
		pr: pr,
		pw: pw,
	}

	if err := p.attachRewriter(); err != nil {
		gstPipeline.SetState(gst.StateNull)
		return nil, err
	}

	return p, nil
}

// attachRewriter locates the pad between x264enc and h264parse and adds a
// buffer probe that runs every access unit through the rewriter, per the
// single-threaded cooperative model spec.md §5 describes: the probe
// callback executes on the element's own streaming thread with no locks.
// It also watches the encoder's sink pad for the negotiated caps event so
// the rewriter's SPS patching always matches the framerate the raw video
// actually negotiated, not just the CLI/env default (SPEC_FULL.md §8.2).
func (p *Pipeline) attachRewriter() error {
	enc, err := p.pipeline.GetElementByName("enc")
	if err != nil {
		return fmt.Errorf("gstpipeline: get encoder element: %w", err)
	}

	srcPad := enc.GetStaticPad("src")
	if srcPad == nil {
		return fmt.Errorf("gstpipeline: encoder has no src pad")
	}
	srcPad.AddProbe(gst.PadProbeTypeBuffer, func(pad *gst.Pad, info *gst.PadProbeInfo) gst.PadProbeReturn {
		buf := info.GetBuffer()
		if buf == nil {
			return gst.PadProbeOK
		}
		return p.rewriteBuffer(buf)
	})

	sinkPad := enc.GetStaticPad("sink")
	if sinkPad == nil {
		return fmt.Errorf("gstpipeline: encoder has no sink pad")
	}
	sinkPad.AddProbe(gst.PadProbeTypeEventDownstream, func(pad *gst.Pad, info *gst.PadProbeInfo) gst.PadProbeReturn {
		p.onSinkEvent(info.GetEvent())
		return gst.PadProbeOK
	})

	return nil
}

// onSinkEvent inspects downstream events arriving on the encoder's sink
// pad and, on a caps event, pulls the negotiated framerate fraction and
// feeds it to the rewriter. Caps negotiation happens on the same
// serialized pad before any buffer flows, so this races with nothing.
func (p *Pipeline) onSinkEvent(event *gst.Event) {
	if event == nil || event.Type() != gst.EventTypeCaps {
		return
	}
	caps := event.ParseCaps()
	if caps == nil || caps.GetSize() == 0 {
		return
	}
	structure := caps.GetStructureAt(0)
	if structure == nil {
		return
	}
	num, den, err := structure.GetFraction("framerate")
	if err != nil || num <= 0 || den <= 0 {
		return
	}
	p.rewriter.SetFramerate(uint32(num), uint32(den))
	p.log.Info("negotiated framerate", "num", num, "den", den)
}

func (p *Pipeline) rewriteBuffer(buf *gst.Buffer) gst.PadProbeReturn {
	mapInfo := buf.Map(gst.MapRead)
	if mapInfo == nil {
		return gst.PadProbeOK
	}
	data := make([]byte, len(mapInfo.Bytes()))
	copy(data, mapInfo.Bytes())
	buf.Unmap()

	var pts int64
	hasPTS := false
	if d := buf.PresentationTimestamp().AsDuration(); d != nil {
		pts = d.Nanoseconds()
		hasPTS = true
	}

	out := p.rewriter.Process(h264.Buffer{
		Data:   data,
		HasPTS: hasPTS,
		PTS:    pts,
	})
	if len(out.Data) == len(data) {
		// No rewrite happened (passthrough): avoid a pointless remap.
		same := true
		for i := range data {
			if data[i] != out.Data[i] {
				same = false
				break
			}
		}
		if same {
			return gst.PadProbeOK
		}
	}

	newBuf := gst.NewBufferFromBytes(out.Data)
	newBuf.SetPresentationTimestamp(buf.PresentationTimestamp())
	newBuf.SetDuration(buf.Duration())
	buf.Replace(newBuf)

	return gst.PadProbeOK
}

// Run starts the pipeline, pumps samples from the appsink into the
// Output reader, and watches the bus for EOS/error, tearing everything
// down when ctx is canceled or the pipeline reports EOS.
func (p *Pipeline) Run(ctx context.Context) error {
	p.appsink.SetProperty("emit-signals", true)
	p.appsink.SetProperty("sync", false)
	p.appsink.SetCallbacks(&app.SinkCallbacks{
		NewSampleFunc: p.onNewSample,
		EOSFunc: func(sink *app.Sink) {
			p.pw.Close()
		},
	})

	if err := p.pipeline.SetState(gst.StatePlaying); err != nil {
		return fmt.Errorf("gstpipeline: set state playing: %w", err)
	}

	return p.watchBus(ctx)
}

func (p *Pipeline) onNewSample(sink *app.Sink) gst.FlowReturn {
	sample := sink.PullSample()
	if sample == nil {
		return gst.FlowOK
	}
	buffer := sample.GetBuffer()
	if buffer == nil {
		return gst.FlowOK
	}
	mapInfo := buffer.Map(gst.MapRead)
	if mapInfo == nil {
		return gst.FlowOK
	}
	defer buffer.Unmap()

	if _, err := p.pw.Write(mapInfo.Bytes()); err != nil {
		return gst.FlowError
	}
	return gst.FlowOK
}

func (p *Pipeline) watchBus(ctx context.Context) error {
	bus := p.pipeline.GetPipelineBus()
	if bus == nil {
		return fmt.Errorf("gstpipeline: pipeline has no bus")
	}
	defer p.teardown()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		msg := bus.TimedPop(gst.ClockTime(100 * time.Millisecond))
		if msg == nil {
			continue
		}

		switch msg.Type() {
		case gst.MessageEOS:
			p.log.Info("pipeline reached end of stream")
			return nil
		case gst.MessageError:
			if gerr := msg.ParseError(); gerr != nil {
				return fmt.Errorf("gstpipeline: %w", gerr)
			}
			return fmt.Errorf("gstpipeline: unknown pipeline error")
		case gst.MessageWarning:
			if gwarn := msg.ParseWarning(); gwarn != nil {
				p.log.Warn("pipeline warning", "error", gwarn)
			}
		}
	}
}

func (p *Pipeline) teardown() {
	p.pipeline.SetState(gst.StateNull)
	p.pw.Close()
}

// Output returns an io.Reader that yields the muxed MPEG-TS byte stream
// produced by the pipeline's appsink.
func (p *Pipeline) Output() io.Reader {
	return p.pr
}

// Stats returns the rewriter's current activity snapshot, for periodic
// logging by the caller.
func (p *Pipeline) Stats() h264.Stats {
	return p.rewriter.Stats()
}
