package pipeline

import (
	"sync"
	"time"
)

// historySize bounds the jobs kept for averaging.
const historySize = 100

// JobMetrics tracks latency at each stage of one job.
type JobMetrics struct {
	Detect     time.Duration `json:"detect"`     // Detection round trip, including the hop back to the lane
	Preprocess time.Duration `json:"preprocess"` // Sum over faces
	Infer      time.Duration `json:"infer"`      // Sum over faces
	Total      time.Duration `json:"total"`      // Submit to emit

	Faces  int  `json:"faces"`  // Overlays emitted
	Failed bool `json:"failed"` // Job ended in StateFailed
}

// MetricsSnapshot is a point-in-time view of a collector.
type MetricsSnapshot struct {
	Jobs    int64      `json:"jobs"`
	Failed  int64      `json:"failed"`
	Faces   int64      `json:"faces"`
	Last    JobMetrics `json:"last"`
	Average JobMetrics `json:"average"`
}

// Metrics collects per-job latency.
// It is goroutine-safe and may be shared by successive sessions.
type Metrics struct {
	mu      sync.Mutex
	last    JobMetrics
	history []JobMetrics

	jobs, failed, faces int64

	onUpdate func(JobMetrics)
}

// NewMetrics creates an empty collector.
func NewMetrics() *Metrics {
	return &Metrics{
		history: make([]JobMetrics, 0, historySize),
	}
}

// OnUpdate sets a callback that fires after every recorded job.
func (m *Metrics) OnUpdate(fn func(JobMetrics)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onUpdate = fn
}

// Record archives one finished job.
func (m *Metrics) Record(jm JobMetrics) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.last = jm
	m.jobs++
	m.faces += int64(jm.Faces)
	if jm.Failed {
		m.failed++
	}

	m.history = append(m.history, jm)
	if len(m.history) > historySize {
		m.history = m.history[1:]
	}

	if m.onUpdate != nil {
		go m.onUpdate(jm)
	}
}

// Last returns the most recently recorded job.
func (m *Metrics) Last() JobMetrics {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last
}

// Average returns average latencies over recent jobs.
func (m *Metrics) Average() JobMetrics {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.average()
}

func (m *Metrics) average() JobMetrics {
	if len(m.history) == 0 {
		return JobMetrics{}
	}

	var avg JobMetrics
	for _, h := range m.history {
		avg.Detect += h.Detect
		avg.Preprocess += h.Preprocess
		avg.Infer += h.Infer
		avg.Total += h.Total
		avg.Faces += h.Faces
	}

	n := time.Duration(len(m.history))
	avg.Detect /= n
	avg.Preprocess /= n
	avg.Infer /= n
	avg.Total /= n
	avg.Faces /= len(m.history)

	return avg
}

// Snapshot returns counters and latencies in one consistent view.
func (m *Metrics) Snapshot() MetricsSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return MetricsSnapshot{
		Jobs:    m.jobs,
		Failed:  m.failed,
		Faces:   m.faces,
		Last:    m.last,
		Average: m.average(),
	}
}

// FormatLatency returns a formatted string of the stage latencies.
func (jm *JobMetrics) FormatLatency() string {
	return formatDuration(jm.Detect) + " DET | " +
		formatDuration(jm.Preprocess) + " PRE | " +
		formatDuration(jm.Infer) + " INF | " +
		formatDuration(jm.Total) + " TOTAL"
}

func formatDuration(d time.Duration) string {
	if d == 0 {
		return "---ms"
	}
	return d.Round(time.Millisecond).String()
}
