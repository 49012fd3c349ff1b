package detection

import (
	"context"
	"image"
	"sync"
	"time"
)

// Mock implements Detector for testing.
type Mock struct {
	// DetectFunc is called when Detect is invoked. The default returns
	// Detections and Err after Delay.
	DetectFunc func(ctx context.Context, img image.Image) ([]Detection, error)

	Detections []Detection
	Err        error
	Delay      time.Duration

	mu     sync.Mutex
	calls  int
	closed bool
}

// NewMock creates a mock that reports dets for every frame.
func NewMock(dets ...Detection) *Mock {
	return &Mock{Detections: dets}
}

// Detect calls DetectFunc and records the call.
func (m *Mock) Detect(ctx context.Context, img image.Image) ([]Detection, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()

	if m.DetectFunc != nil {
		return m.DetectFunc(ctx, img)
	}

	if m.Delay > 0 {
		timer := time.NewTimer(m.Delay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if m.Err != nil {
		return nil, m.Err
	}
	return append([]Detection(nil), m.Detections...), nil
}

// Close marks the mock closed.
func (m *Mock) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Calls returns the number of Detect calls.
func (m *Mock) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Closed reports whether Close was called.
func (m *Mock) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}
