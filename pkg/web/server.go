// Package web serves the result dashboard: REST controls for the capture
// session plus websocket streams of results and annotated frames.
package web

import (
	"context"
	_ "embed"
	"errors"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"
	"github.com/teslashibe/go-fer/pkg/hub"
	"github.com/teslashibe/go-fer/pkg/overlay"
	"github.com/teslashibe/go-fer/pkg/pipeline"
	"github.com/teslashibe/go-fer/pkg/protocol"
)

//go:embed static/index.html
var indexHTML []byte

// Controller is the session lifecycle the server drives.
type Controller interface {
	Resume() error
	Pause() error
	Active() bool
	Info() (pipeline.SessionInfo, bool)
	Metrics() *pipeline.Metrics
	Capture(ctx context.Context) (pipeline.JobID, error)
}

// Config configures the server.
type Config struct {
	Port           string
	StaticDir      string        // Served at / instead of the built-in page when set
	History        int           // Results kept for GET /api/results
	CaptureTimeout time.Duration // Bound on one camera read
	Style          overlay.Style
	Logger         *slog.Logger
}

// DefaultConfig returns the default server configuration.
func DefaultConfig() Config {
	return Config{
		Port:           "8080",
		History:        50,
		CaptureTimeout: 5 * time.Second,
		Style:          overlay.DefaultStyle(),
	}
}

// Server is the dashboard server. It also implements pipeline.Sink.
type Server struct {
	cfg    Config
	app    *fiber.App
	ctrl   Controller
	logger *slog.Logger

	results   []protocol.ResultData
	resultsMu sync.RWMutex

	resultHub *hub.Hub
	cameraHub *hub.Hub
}

// NewServer creates the server, starts its hubs and registers its routes.
// Shutdown stops the hubs.
func NewServer(cfg Config, ctrl Controller) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "web")
	if cfg.History <= 0 {
		cfg.History = DefaultConfig().History
	}
	if cfg.CaptureTimeout <= 0 {
		cfg.CaptureTimeout = DefaultConfig().CaptureTimeout
	}

	s := &Server{
		cfg:       cfg,
		ctrl:      ctrl,
		logger:    logger,
		results:   make([]protocol.ResultData, 0, cfg.History),
		resultHub: hub.New("results", logger),
		cameraHub: hub.New("camera", logger),
	}
	s.resultHub.Start()
	s.cameraHub.Start()

	app := fiber.New(fiber.Config{
		AppName:               "go-fer",
		DisableStartupMessage: true,
	})

	app.Use(cors.New())

	if cfg.StaticDir != "" {
		app.Static("/", cfg.StaticDir)
	} else {
		app.Get("/", func(c *fiber.Ctx) error {
			c.Type("html")
			return c.Send(indexHTML)
		})
	}

	api := app.Group("/api")
	api.Get("/status", s.handleStatus)
	api.Get("/results", s.handleResults)
	api.Post("/capture", s.handleCapture)
	api.Post("/session/resume", s.handleResume)
	api.Post("/session/pause", s.handlePause)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/results", websocket.New(s.handleResultsWS))
	app.Get("/ws/camera", websocket.New(s.handleCameraWS))

	s.app = app
	return s
}

// App returns the underlying fiber app.
func (s *Server) App() *fiber.App {
	return s.app
}

// Start listens on the configured port and blocks.
func (s *Server) Start() error {
	s.logger.Info("dashboard listening", "url", "http://localhost:"+s.cfg.Port)
	return s.app.Listen(":" + s.cfg.Port)
}

// Serve serves on ln and blocks.
func (s *Server) Serve(ln net.Listener) error {
	return s.app.Listener(ln)
}

// StartAsync starts the server in a goroutine.
func (s *Server) StartAsync() {
	go func() {
		if err := s.Start(); err != nil {
			s.logger.Error("web server stopped", "error", err)
		}
	}()
}

// shutdownTimeout bounds how long Shutdown waits for open connections.
const shutdownTimeout = 5 * time.Second

// Shutdown stops the server and disconnects every viewer.
func (s *Server) Shutdown() error {
	err := s.app.ShutdownWithTimeout(shutdownTimeout)
	s.resultHub.Stop()
	s.cameraHub.Stop()
	return err
}

// Emit publishes a pipeline result. It renders the annotated frame only when
// a camera viewer is connected, so it should be fed through a ChanSink rather
// than called on the lane.
func (s *Server) Emit(r pipeline.Result) {
	data := resultData(r)

	s.resultsMu.Lock()
	s.results = append(s.results, data)
	if len(s.results) > s.cfg.History {
		s.results = s.results[len(s.results)-s.cfg.History:]
	}
	s.resultsMu.Unlock()

	s.publish(protocol.NewResultMessage(data))
	if r.Err != nil {
		s.publish(noticeFor(r))
	}

	if r.Frame != nil && s.cameraHub.ClientCount() > 0 {
		jpeg, err := overlay.Result(r, s.cfg.Style)
		if err != nil {
			s.logger.Warn("render frame failed", "job", r.JobID, "error", err)
			return
		}
		s.cameraHub.BroadcastBinary(jpeg)
	}
}

// Notify sends a one-shot notice to result viewers.
func (s *Server) Notify(level, text string) {
	s.publish(protocol.NewNoticeMessage(level, text, ""))
}

// Results returns the retained results, oldest first.
func (s *Server) Results() []protocol.ResultData {
	s.resultsMu.RLock()
	defer s.resultsMu.RUnlock()
	return append([]protocol.ResultData(nil), s.results...)
}

func (s *Server) publish(msg *protocol.Message, err error) {
	if err == nil {
		err = s.resultHub.BroadcastMessage(msg)
	}
	if err != nil {
		s.logger.Warn("encode message failed", "error", err)
	}
}

func (s *Server) broadcastStatus() {
	s.publish(protocol.NewStatusMessage(s.status()))
}

func noticeFor(r pipeline.Result) (*protocol.Message, error) {
	if errors.Is(r.Err, pipeline.ErrDetection) {
		return protocol.NewNoticeMessage(protocol.NoticeWarn, "Face detection failed", string(r.JobID))
	}
	return protocol.NewNoticeMessage(protocol.NoticeError, r.Err.Error(), string(r.JobID))
}
