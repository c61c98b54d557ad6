package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/matiaspl/ndi2srt/internal/config"
	"github.com/matiaspl/ndi2srt/internal/gstpipeline"
	"github.com/matiaspl/ndi2srt/internal/sink"
)

var version = "dev"

func main() {
	level := slog.LevelInfo
	if os.Getenv("DEBUG") != "" {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	cfg, err := config.ParseFlags(os.Args[1:])
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("ndi2srt starting",
		"version", version,
		"ndi_source", cfg.NDISourceName,
		"fps", fmt.Sprintf("%d/%d", cfg.FpsNum, cfg.FpsDen),
		"inject_sei", cfg.InjectSEI,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("received signal, shutting down", "signal", sig)
		cancel()
	}()

	p, err := gstpipeline.Build(cfg, slog.Default())
	if err != nil {
		slog.Error("failed to build pipeline", "error", err)
		os.Exit(1)
	}

	out, err := buildOutputSink(cfg)
	if err != nil {
		slog.Error("failed to create output sink", "error", err)
		os.Exit(1)
	}
	defer out.Close()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		// Cancel on a clean EOS too, not only on error: otherwise the
		// stats ticker below blocks on ctx.Done() forever and g.Wait()
		// never returns once the pipeline ends on its own.
		defer cancel()
		return p.Run(ctx)
	})

	g.Go(func() error {
		buf := make([]byte, 64*1024)
		r := p.Output()
		for {
			n, err := r.Read(buf)
			if n > 0 {
				if _, werr := out.Write(buf[:n]); werr != nil {
					return fmt.Errorf("output sink write: %w", werr)
				}
			}
			if err != nil {
				return nil
			}
		}
	})

	g.Go(func() error {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				s := p.Stats()
				slog.Info("rewriter stats",
					"aus_processed", s.AUsProcessed,
					"sps_patched", s.SPSPatched,
					"sei_injected", s.SEIInjected,
					"last_timecode", s.LastTimecode,
				)
			}
		}
	})

	if err := g.Wait(); err != nil && ctx.Err() == nil {
		slog.Error("pipeline error", "error", err)
		os.Exit(1)
	}
}

// buildOutputSink constructs the sink named by cfg: stdout by default,
// an SRT caller when -srt-addr is set, optionally fanned out to an
// additional file dump when -dump is set.
func buildOutputSink(cfg config.Config) (sink.Sink, error) {
	var primary sink.Sink
	var err error
	if cfg.SRTAddr != "" {
		primary, err = sink.NewSRTCaller(cfg.SRTAddr, "live/"+cfg.NDISourceName, slog.Default())
	} else {
		primary = sink.Stdout(os.Stdout)
	}
	if err != nil {
		return nil, err
	}

	if cfg.DumpPath == "" {
		return primary, nil
	}

	dump, err := sink.FileDump(cfg.DumpPath)
	if err != nil {
		return nil, err
	}
	return sink.MultiWriter(primary, dump), nil
}
