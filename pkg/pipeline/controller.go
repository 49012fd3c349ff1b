package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"sync"

	"github.com/teslashibe/go-fer/pkg/capture"
	"github.com/teslashibe/go-fer/pkg/detection"
)

// Controller ties the session lifecycle to resume and pause events.
// A session exists only between Resume and Pause.
type Controller struct {
	// life serializes Resume, Pause and Close. It is held across model load
	// and teardown so at most one session is ever live.
	life sync.Mutex

	// mu guards session and closed.
	mu      sync.Mutex
	cfg     Config
	load    ModelLoader
	det     detection.Detector
	src     capture.Source
	sink    Sink
	session *Session
	closed  bool
	logger  *slog.Logger
}

// NewController creates a paused controller. src may be nil when frames are
// only submitted directly.
func NewController(cfg Config, load ModelLoader, det detection.Detector, src capture.Source, sink Sink) *Controller {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default().With("component", "pipeline")
	}
	if cfg.Metrics == nil {
		cfg.Metrics = NewMetrics()
	}
	return &Controller{
		cfg:    cfg,
		load:   load,
		det:    det,
		src:    src,
		sink:   sink,
		logger: logger,
	}
}

// Resume opens a session. Calling Resume on an active controller is a no-op.
// A Resume issued during Pause waits for the previous session to be torn down.
func (c *Controller) Resume() error {
	c.life.Lock()
	defer c.life.Unlock()

	c.mu.Lock()
	closed, active := c.closed, c.session != nil
	c.mu.Unlock()
	if closed {
		return ErrSessionClosed
	}
	if active {
		return nil
	}

	s, err := NewSession(c.cfg, c.load, c.det, c.sink)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.session = s
	c.mu.Unlock()
	return nil
}

// Pause tears the active session down and waits for its jobs to finish.
func (c *Controller) Pause() error {
	c.life.Lock()
	defer c.life.Unlock()
	return c.pause()
}

// pause requires c.life.
func (c *Controller) pause() error {
	c.mu.Lock()
	s := c.session
	c.session = nil
	c.mu.Unlock()

	if s == nil {
		return nil
	}
	return s.Close()
}

// Active reports whether a session is running.
func (c *Controller) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session != nil
}

// Info returns the active session description.
func (c *Controller) Info() (SessionInfo, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return SessionInfo{}, false
	}
	return c.session.Info(), true
}

// Metrics returns the collector shared by every session of the controller.
func (c *Controller) Metrics() *Metrics {
	return c.cfg.Metrics
}

// Submit enqueues img on the active session.
func (c *Controller) Submit(img image.Image) (JobID, error) {
	c.mu.Lock()
	s := c.session
	c.mu.Unlock()

	if s == nil {
		return "", ErrNotActive
	}
	id, err := s.Submit(img)
	if errors.Is(err, ErrSessionClosed) {
		return "", ErrNotActive
	}
	return id, err
}

// Capture pulls one frame from the source and submits it.
func (c *Controller) Capture(ctx context.Context) (JobID, error) {
	if c.src == nil {
		return "", errors.New("pipeline: no capture source")
	}
	if !c.Active() {
		return "", ErrNotActive
	}

	img, err := c.src.Capture(ctx)
	if err != nil {
		return "", fmt.Errorf("pipeline: capture: %w", err)
	}
	return c.Submit(img)
}

// Close pauses and releases the detector and capture source. It waits for
// any Pause or Resume in progress.
func (c *Controller) Close() error {
	c.life.Lock()
	defer c.life.Unlock()

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	errs := []error{c.pause()}
	if c.det != nil {
		errs = append(errs, c.det.Close())
	}
	if c.src != nil {
		errs = append(errs, c.src.Close())
	}
	return errors.Join(errs...)
}
