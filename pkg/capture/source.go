// Package capture provides the frame sources that trigger a pipeline job.
package capture

import (
	"context"
	"errors"
	"image"
	"sync"
)

// ErrExhausted is returned by finite sources once every frame has been delivered.
var ErrExhausted = errors.New("capture: no more frames")

// Source produces frames on demand.
type Source interface {
	// Capture returns the next frame
	Capture(ctx context.Context) (image.Image, error)

	// Close releases resources
	Close() error
}

// Static replays a fixed list of frames, for tests and demos.
type Static struct {
	mu     sync.Mutex
	frames []image.Image
	next   int
	loop   bool
}

// NewStatic returns a source that yields frames in order and then ErrExhausted.
func NewStatic(frames ...image.Image) *Static {
	return &Static{frames: frames}
}

// NewLoop returns a source that cycles through frames forever.
func NewLoop(frames ...image.Image) *Static {
	return &Static{frames: frames, loop: true}
}

// Capture returns the next frame.
func (s *Static) Capture(ctx context.Context) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.next >= len(s.frames) {
		if !s.loop || len(s.frames) == 0 {
			return nil, ErrExhausted
		}
		s.next = 0
	}
	img := s.frames[s.next]
	s.next++
	return img, nil
}

// Close is a no-op.
func (s *Static) Close() error { return nil }
