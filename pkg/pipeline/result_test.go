package pipeline

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/teslashibe/go-fer/pkg/emotion"
	"github.com/teslashibe/go-fer/pkg/region"
)

func TestChanSink_DropsWhenFull(t *testing.T) {
	sink := NewChanSink(2, quiet)

	for i := 0; i < 5; i++ {
		sink.Emit(Result{JobID: JobID(rune('a' + i))})
	}
	if sink.Dropped() != 3 {
		t.Errorf("Dropped = %d, want 3", sink.Dropped())
	}

	first := <-sink.Results()
	second := <-sink.Results()
	if first.JobID != "a" || second.JobID != "b" {
		t.Errorf("received %s, %s; want a, b", first.JobID, second.JobID)
	}
}

func TestMultiSink(t *testing.T) {
	var got []string
	m := MultiSink{
		SinkFunc(func(r Result) { got = append(got, "first:"+string(r.JobID)) }),
		SinkFunc(func(r Result) { got = append(got, "second:"+string(r.JobID)) }),
	}
	m.Emit(Result{JobID: "x"})

	if len(got) != 2 || got[0] != "first:x" || got[1] != "second:x" {
		t.Errorf("got %v", got)
	}
}

func TestResultJSON(t *testing.T) {
	r := Result{
		JobID:     "job-1",
		SessionID: "sess-1",
		State:     StateDone,
		Overlays: []Overlay{{
			Box:    region.Box{Left: 1, Top: 2, Right: 3, Bottom: 4},
			Label:  "happy",
			Scores: emotion.Scores{{Label: "happy", Value: 1}},
		}},
	}

	data, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	s := string(data)
	for _, want := range []string{`"state":"done"`, `"label":"happy"`, `"job_id":"job-1"`} {
		if !strings.Contains(s, want) {
			t.Errorf("JSON %s missing %s", s, want)
		}
	}
}

func TestStateString(t *testing.T) {
	order := []State{StateDetecting, StateExtracting, StatePreprocessing, StateInferring, StateEmitting, StateDone, StateFailed}
	names := []string{"detecting", "extracting", "preprocessing", "inferring", "emitting", "done", "failed"}
	for i, s := range order {
		if s.String() != names[i] {
			t.Errorf("%d.String() = %q, want %q", int(s), s.String(), names[i])
		}
	}
	if !StateDone.Terminal() || !StateFailed.Terminal() || StateInferring.Terminal() {
		t.Error("Terminal reported wrong states")
	}
	if State(42).String() != "state(42)" {
		t.Errorf("unknown state = %q", State(42).String())
	}
}

func TestMetrics(t *testing.T) {
	m := NewMetrics()
	if (m.Average() != JobMetrics{}) {
		t.Error("empty collector has non-zero average")
	}

	m.Record(JobMetrics{Detect: 10 * time.Millisecond, Total: 30 * time.Millisecond, Faces: 1})
	m.Record(JobMetrics{Detect: 30 * time.Millisecond, Total: 50 * time.Millisecond, Faces: 3, Failed: true})

	avg := m.Average()
	if avg.Detect != 20*time.Millisecond || avg.Total != 40*time.Millisecond || avg.Faces != 2 {
		t.Errorf("Average = %+v", avg)
	}

	snap := m.Snapshot()
	if snap.Jobs != 2 || snap.Failed != 1 || snap.Faces != 4 {
		t.Errorf("Snapshot = %+v", snap)
	}
	if snap.Last.Faces != 3 {
		t.Errorf("Last = %+v", snap.Last)
	}

	last := m.Last()
	if got := last.FormatLatency(); !strings.Contains(got, "30ms DET") || !strings.Contains(got, "---ms PRE") {
		t.Errorf("FormatLatency = %q", got)
	}
}

func TestMetrics_HistoryBounded(t *testing.T) {
	m := NewMetrics()
	for i := 0; i < historySize+20; i++ {
		m.Record(JobMetrics{Total: time.Millisecond})
	}
	if len(m.history) != historySize {
		t.Errorf("history length = %d, want %d", len(m.history), historySize)
	}
	if m.Snapshot().Jobs != int64(historySize+20) {
		t.Errorf("Jobs = %d", m.Snapshot().Jobs)
	}
}
