// Package config parses the command-line options recognized by ndi2srt,
// following the flag-plus-environment-fallback idiom used throughout the
// rest of this repository's command-line tools.
package config

import (
	"flag"
	"fmt"
	"os"
)

// Config holds every option the pipeline and rewriter need.
type Config struct {
	NDISourceName string
	Width, Height int
	FpsNum        uint32
	FpsDen        uint32

	InjectSEI bool
	PreferPTS bool
	Verbose   bool

	SRTAddr  string // empty => write muxed output to stdout
	DumpPath string // empty => no file dump
}

// ParseFlags parses args (normally os.Args[1:]) into a Config, falling
// back to environment variables for anything left unset on the command
// line, the same two-tier precedence cmd/prism/main.go's envOr applies.
func ParseFlags(args []string) (Config, error) {
	fs := flag.NewFlagSet("ndi2srt", flag.ContinueOnError)

	ndiName := fs.String("ndi-source", envOr("NDI_SOURCE", ""), "NDI source name to capture")
	width := fs.Int("width", envOrInt("WIDTH", 1920), "capture width")
	height := fs.Int("height", envOrInt("HEIGHT", 1080), "capture height")
	fpsNum := fs.Uint("fps-num", uint(envOrInt("FPS_NUM", 30000)), "framerate numerator")
	fpsDen := fs.Uint("fps-den", uint(envOrInt("FPS_DEN", 1001)), "framerate denominator")
	injectSEI := fs.Bool("inject-sei", true, "inject a Picture Timing SEI and patch SPS VUI into every access unit")
	preferPTS := fs.Bool("prefer-pts", true, "derive timecode from buffer PTS when no upstream timecode is attached")
	verbose := fs.Bool("verbose", os.Getenv("DEBUG") != "", "log one line per rewritten access unit")
	srtAddr := fs.String("srt-addr", envOr("SRT_ADDR", ""), "SRT caller address to push muxed output to (empty: write to stdout)")
	dumpPath := fs.String("dump", "", "optional file path to additionally write the muxed MPEG-TS stream to")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	cfg := Config{
		NDISourceName: *ndiName,
		Width:         *width,
		Height:        *height,
		FpsNum:        uint32(*fpsNum),
		FpsDen:        uint32(*fpsDen),
		InjectSEI:     *injectSEI,
		PreferPTS:     *preferPTS,
		Verbose:       *verbose,
		SRTAddr:       *srtAddr,
		DumpPath:      *dumpPath,
	}

	if cfg.NDISourceName == "" {
		return Config{}, fmt.Errorf("-ndi-source (or NDI_SOURCE) is required")
	}
	if cfg.FpsNum == 0 || cfg.FpsDen == 0 {
		return Config{}, fmt.Errorf("fps-num and fps-den must both be non-zero")
	}

	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envOrInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	var n int
	if _, err := fmt.Sscanf(v, "%d", &n); err != nil {
		return fallback
	}
	return n
}
