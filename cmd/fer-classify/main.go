// fer-classify - classify the faces in a set of image files
//
// Usage: fer-classify [flags] <file|dir|glob>...
//
// Prints one JSON line per image and optionally writes annotated copies.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/schollz/progressbar/v3"
	"github.com/teslashibe/go-fer/internal/config"
	"github.com/teslashibe/go-fer/internal/engine"
	"github.com/teslashibe/go-fer/internal/log"
	"github.com/teslashibe/go-fer/pkg/capture"
	"github.com/teslashibe/go-fer/pkg/overlay"
	"github.com/teslashibe/go-fer/pkg/pipeline"
)

// window bounds the frames decoded and queued at once.
const window = 8

type record struct {
	File   string             `json:"file"`
	State  string             `json:"state"`
	Faces  []pipeline.Overlay `json:"faces"`
	Error  string             `json:"error,omitempty"`
	Output string             `json:"output,omitempty"`
}

func main() {
	envErr := config.LoadEnv()

	eng := engine.Register(flag.CommandLine)
	outDir := flag.String("out", config.String("OUT", ""), "Write annotated JPEGs to this directory (FER_OUT)")
	maxFaces := flag.Int("max-faces", config.Int("MAX_FACES", 0), "Faces classified per image, 0 for all")
	logLevel := flag.String("log-level", config.String("LOG_LEVEL", "warn"), "Log level (FER_LOG_LEVEL)")
	quiet := flag.Bool("quiet", false, "Hide the progress bar")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [flags] <file|dir|glob>...\n", filepath.Base(os.Args[0]))
		flag.PrintDefaults()
	}
	flag.Parse()

	log.Init(*logLevel)
	if envErr != nil {
		log.Warn("failed to load .env", "error", envErr)
	}
	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	if err := run(eng, flag.Args(), *outDir, *maxFaces, *quiet); err != nil {
		log.Error("classification failed", "error", err)
		os.Exit(1)
	}
}

func run(eng *engine.Flags, patterns []string, outDir string, maxFaces int, quiet bool) error {
	paths, err := capture.Glob(patterns...)
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		return fmt.Errorf("no images match %s", strings.Join(patterns, " "))
	}
	if outDir != "" {
		if err := os.MkdirAll(outDir, 0o755); err != nil {
			return err
		}
	}

	load, err := eng.Loader(log.With("component", "emotion"))
	if err != nil {
		return err
	}
	det, err := eng.Detector(log.With("component", "detection"))
	if err != nil {
		return err
	}
	defer det.Close()

	sink := pipeline.NewChanSink(window, log.L())
	cfg := pipeline.DefaultConfig().WithMaxFaces(maxFaces).WithLogger(log.With("component", "pipeline"))
	session, err := pipeline.NewSession(cfg, load, det, sink)
	if err != nil {
		return err
	}
	defer session.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	bar := progressbar.NewOptions(len(paths),
		progressbar.OptionSetDescription("Classifying"),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowCount(),
		progressbar.OptionSetVisibility(!quiet),
	)

	enc := json.NewEncoder(os.Stdout)
	files := capture.NewFiles(paths...)
	outputs := outputNames(paths)
	pending := make(map[pipeline.JobID]string)
	failed := 0

	collect := func() error {
		select {
		case r := <-sink.Results():
			file := pending[r.JobID]
			rec := finish(r, file, outDir, outputs[file])
			delete(pending, r.JobID)
			if rec.Error != "" {
				failed++
			}
			bar.Add(1)
			return enc.Encode(rec)
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	for {
		img, err := files.Capture(ctx)
		if errors.Is(err, capture.ErrExhausted) {
			break
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			failed++
			bar.Add(1)
			if err := enc.Encode(record{File: files.Last(), State: pipeline.StateFailed.String(), Error: err.Error()}); err != nil {
				return err
			}
			continue
		}

		id, err := session.Submit(img)
		if err != nil {
			return err
		}
		pending[id] = files.Last()

		if len(pending) >= window {
			if err := collect(); err != nil {
				return err
			}
		}
	}
	for len(pending) > 0 {
		if err := collect(); err != nil {
			return err
		}
	}
	bar.Finish()
	fmt.Fprintln(os.Stderr)

	if failed > 0 {
		return fmt.Errorf("%d of %d images failed", failed, len(paths))
	}
	return nil
}

// outputNames assigns each input an annotated-copy name that is unique within
// the output directory. Inputs sharing a base name get -2, -3 and so on in
// path order.
func outputNames(paths []string) map[string]string {
	names := make(map[string]string, len(paths))
	used := make(map[string]bool, len(paths))
	for _, p := range paths {
		if _, ok := names[p]; ok {
			continue
		}
		stem := strings.TrimSuffix(filepath.Base(p), filepath.Ext(p))
		name := stem + ".fer.jpg"
		for n := 2; used[name]; n++ {
			name = fmt.Sprintf("%s-%d.fer.jpg", stem, n)
		}
		used[name] = true
		names[p] = name
	}
	return names
}

func finish(r pipeline.Result, file, outDir, name string) record {
	rec := record{File: file, State: r.State.String(), Faces: r.Overlays}
	if rec.Faces == nil {
		rec.Faces = []pipeline.Overlay{}
	}
	if r.Err != nil {
		rec.Error = r.Err.Error()
		return rec
	}
	if outDir == "" {
		return rec
	}

	data, err := overlay.Result(r, overlay.DefaultStyle())
	if err != nil {
		log.Warn("render failed", "file", file, "error", err)
		return rec
	}
	out := filepath.Join(outDir, name)
	if err := os.WriteFile(out, data, 0o644); err != nil {
		log.Warn("write failed", "file", out, "error", err)
		return rec
	}
	rec.Output = out
	return rec
}
