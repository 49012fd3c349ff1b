package pipeline

import (
	"errors"
	"log/slog"
	"time"
)

// Config holds the tunable parameters of a session.
type Config struct {
	// Detection
	DetectTimeout time.Duration // Upper bound on one detection call (default: 2s)
	MaxFaces      int           // Faces classified per frame, highest confidence first; 0 = all

	// Frames are rescaled to FrameWidth x FrameHeight before detection when both are set.
	FrameWidth  int
	FrameHeight int

	Logger  *slog.Logger
	Metrics *Metrics // Shared collector; a private one is created when nil
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		DetectTimeout: 2 * time.Second,
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.DetectTimeout <= 0 {
		return errors.New("pipeline: detect timeout must be positive")
	}
	if c.MaxFaces < 0 {
		return errors.New("pipeline: max faces must not be negative")
	}
	if c.FrameWidth < 0 || c.FrameHeight < 0 {
		return errors.New("pipeline: frame size must not be negative")
	}
	if (c.FrameWidth == 0) != (c.FrameHeight == 0) {
		return errors.New("pipeline: frame width and height must be set together")
	}
	return nil
}

// WithDetectTimeout returns a copy with the detection timeout set.
func (c Config) WithDetectTimeout(d time.Duration) Config {
	c.DetectTimeout = d
	return c
}

// WithFrameSize returns a copy that rescales frames to width x height.
func (c Config) WithFrameSize(width, height int) Config {
	c.FrameWidth = width
	c.FrameHeight = height
	return c
}

// WithMaxFaces returns a copy with the per-frame face cap set.
func (c Config) WithMaxFaces(n int) Config {
	c.MaxFaces = n
	return c
}

// WithLogger returns a copy with the logger set.
func (c Config) WithLogger(l *slog.Logger) Config {
	c.Logger = l
	return c
}

// WithMetrics returns a copy that records into m.
func (c Config) WithMetrics(m *Metrics) Config {
	c.Metrics = m
	return c
}
