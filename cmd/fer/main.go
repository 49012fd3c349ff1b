// fer - live facial emotion recognition server
//
// Opens the camera, and while a session is active classifies the faces of
// every captured frame and streams the results to the web dashboard.
package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/teslashibe/go-fer/internal/config"
	"github.com/teslashibe/go-fer/internal/engine"
	"github.com/teslashibe/go-fer/internal/log"
	"github.com/teslashibe/go-fer/pkg/capture"
	"github.com/teslashibe/go-fer/pkg/pipeline"
	"github.com/teslashibe/go-fer/pkg/protocol"
	"github.com/teslashibe/go-fer/pkg/web"
)

type options struct {
	port      string
	logLevel  string
	camera    capture.Config
	pipeline  pipeline.Config
	interval  time.Duration
	autostart bool
	engine    *engine.Flags
}

func main() {
	envErr := config.LoadEnv()
	opts := parseFlags()
	log.Init(opts.logLevel)
	logger := log.L()
	if envErr != nil {
		log.Warn("failed to load .env", "error", envErr)
	}

	for _, w := range opts.camera.Validate() {
		log.Warn("camera config", "warning", w)
	}

	load, err := opts.engine.Loader(log.With("component", "emotion"))
	if err != nil {
		log.Error("invalid model configuration", "error", err)
		os.Exit(1)
	}
	det, err := opts.engine.Detector(log.With("component", "detection"))
	if err != nil {
		log.Error("face detector unavailable", "error", err)
		os.Exit(1)
	}
	cam, err := capture.OpenCamera(opts.camera)
	if err != nil {
		det.Close()
		log.Error("camera unavailable", "error", err)
		os.Exit(1)
	}

	sink := pipeline.NewChanSink(64, logger)
	metrics := pipeline.NewMetrics()
	metrics.OnUpdate(func(jm pipeline.JobMetrics) {
		log.Debug("job latency", "latency", jm.FormatLatency(), "faces", jm.Faces)
	})
	pcfg := opts.pipeline.WithLogger(log.With("component", "pipeline")).WithMetrics(metrics)
	ctrl := pipeline.NewController(pcfg, load, det, cam, sink)

	wcfg := web.DefaultConfig()
	wcfg.Port = opts.port
	wcfg.Logger = logger
	srv := web.NewServer(wcfg, ctrl)

	go func() {
		for r := range sink.Results() {
			srv.Emit(r)
		}
	}()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	srv.StartAsync()

	if opts.autostart {
		if err := ctrl.Resume(); err != nil {
			log.Error("failed to start session", "error", err)
			srv.Notify(protocol.NoticeError, "Failed to start session: "+err.Error())
		}
	}

	if opts.interval > 0 {
		go captureLoop(ctx, ctrl, opts.interval)
	}

	<-ctx.Done()
	log.Info("shutting down")

	if err := ctrl.Close(); err != nil {
		log.Error("shutdown", "error", err)
	}
	if err := srv.Shutdown(); err != nil {
		log.Error("web shutdown", "error", err)
	}
}

// captureLoop triggers a capture every interval while a session is active.
func captureLoop(ctx context.Context, ctrl *pipeline.Controller, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !ctrl.Active() {
				continue
			}
			cctx, cancel := context.WithTimeout(ctx, interval)
			_, err := ctrl.Capture(cctx)
			cancel()
			if err != nil && !errors.Is(err, pipeline.ErrNotActive) && ctx.Err() == nil {
				log.Warn("capture failed", "error", err)
			}
		}
	}
}

// parseFlags parses command line flags with FER_* environment fallbacks.
func parseFlags() options {
	cam := capture.DefaultConfig()
	pcfg := pipeline.DefaultConfig()

	opts := options{engine: engine.Register(flag.CommandLine)}
	flag.StringVar(&opts.port, "port", config.String("PORT", web.DefaultConfig().Port), "HTTP port (FER_PORT)")
	flag.StringVar(&opts.logLevel, "log-level", config.String("LOG_LEVEL", "info"), "Log level: debug, info, warn, error (FER_LOG_LEVEL)")
	flag.IntVar(&cam.Device, "device", config.Int("DEVICE", cam.Device), "Camera device index (FER_DEVICE)")
	flag.IntVar(&cam.Width, "width", config.Int("WIDTH", cam.Width), "Capture width (FER_WIDTH)")
	flag.IntVar(&cam.Height, "height", config.Int("HEIGHT", cam.Height), "Capture height (FER_HEIGHT)")
	flag.IntVar(&cam.Framerate, "fps", config.Int("FPS", cam.Framerate), "Capture framerate (FER_FPS)")
	flag.IntVar(&pcfg.FrameWidth, "frame-width", config.Int("FRAME_WIDTH", 0), "Rescale frames to this width before detection")
	flag.IntVar(&pcfg.FrameHeight, "frame-height", config.Int("FRAME_HEIGHT", 0), "Rescale frames to this height before detection")
	flag.IntVar(&pcfg.MaxFaces, "max-faces", config.Int("MAX_FACES", pcfg.MaxFaces), "Faces classified per frame, 0 for all (FER_MAX_FACES)")
	flag.DurationVar(&pcfg.DetectTimeout, "detect-timeout", config.Duration("DETECT_TIMEOUT", pcfg.DetectTimeout), "Face detection timeout (FER_DETECT_TIMEOUT)")
	flag.DurationVar(&opts.interval, "interval", config.Duration("INTERVAL", 500*time.Millisecond), "Automatic capture period, 0 for manual capture only (FER_INTERVAL)")
	flag.BoolVar(&opts.autostart, "autostart", config.Bool("AUTOSTART", true), "Start a session immediately (FER_AUTOSTART)")
	flag.Parse()

	opts.camera, opts.pipeline = cam, pcfg
	return opts
}
