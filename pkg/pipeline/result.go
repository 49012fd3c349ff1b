package pipeline

import (
	"image"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/teslashibe/go-fer/pkg/emotion"
	"github.com/teslashibe/go-fer/pkg/region"
)

// JobID identifies one submitted frame.
type JobID string

// Overlay is one (clampedBox, label) pair ready for rendering.
type Overlay struct {
	Box        region.Box     `json:"box"`
	Label      string         `json:"label"`
	Confidence float64        `json:"confidence"` // Face detection confidence
	Scores     emotion.Scores `json:"scores,omitempty"`
}

// Result is emitted once per job.
type Result struct {
	JobID     JobID      `json:"job_id"`
	SessionID string     `json:"session_id"`
	State     State      `json:"state"`
	Overlays  []Overlay  `json:"overlays"`
	Err       error      `json:"-"`
	Timing    JobMetrics `json:"timing"`
	Submitted time.Time  `json:"submitted"`

	// Frame is the image the overlay boxes refer to, after any rescale.
	Frame image.Image `json:"-"`
}

// Sink receives results. Emit is called from the session lane and must not block.
type Sink interface {
	Emit(Result)
}

// SinkFunc adapts a function to a Sink.
type SinkFunc func(Result)

// Emit calls f(r).
func (f SinkFunc) Emit(r Result) { f(r) }

// MultiSink emits to every sink in order.
type MultiSink []Sink

// Emit forwards r to each sink.
func (m MultiSink) Emit(r Result) {
	for _, s := range m {
		s.Emit(r)
	}
}

// ChanSink hands results to a consumer goroutine. When the buffer is full the
// result is dropped and a warning logged, so the lane never waits on a reader.
type ChanSink struct {
	ch      chan Result
	logger  *slog.Logger
	dropped atomic.Int64
}

// NewChanSink creates a sink buffering up to size results.
func NewChanSink(size int, logger *slog.Logger) *ChanSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &ChanSink{
		ch:     make(chan Result, size),
		logger: logger,
	}
}

// Emit queues r without blocking.
func (c *ChanSink) Emit(r Result) {
	select {
	case c.ch <- r:
	default:
		c.dropped.Add(1)
		c.logger.Warn("result dropped, consumer too slow", "job", r.JobID)
	}
}

// Results returns the receive side.
func (c *ChanSink) Results() <-chan Result {
	return c.ch
}

// Dropped returns the number of results discarded so far.
func (c *ChanSink) Dropped() int64 {
	return c.dropped.Load()
}

// Recorder keeps every result in memory. Used by tests and batch tools.
type Recorder struct {
	mu      sync.Mutex
	results []Result
	notify  chan struct{}
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{notify: make(chan struct{}, 1)}
}

// Emit stores r.
func (r *Recorder) Emit(res Result) {
	r.mu.Lock()
	r.results = append(r.results, res)
	r.mu.Unlock()

	select {
	case r.notify <- struct{}{}:
	default:
	}
}

// Results returns a copy of the stored results in emission order.
func (r *Recorder) Results() []Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Result(nil), r.results...)
}

// Wait blocks until at least n results are stored or timeout elapses.
func (r *Recorder) Wait(n int, timeout time.Duration) bool {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	for {
		r.mu.Lock()
		got := len(r.results)
		r.mu.Unlock()
		if got >= n {
			return true
		}

		select {
		case <-r.notify:
		case <-deadline.C:
			return false
		}
	}
}
