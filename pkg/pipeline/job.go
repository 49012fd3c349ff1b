package pipeline

import (
	"fmt"
	"image"
	"time"
)

// State is the stage a job is in.
type State int

const (
	StateDetecting State = iota
	StateExtracting
	StatePreprocessing
	StateInferring
	StateEmitting
	StateDone
	StateFailed
)

var stateNames = [...]string{
	StateDetecting:     "detecting",
	StateExtracting:    "extracting",
	StatePreprocessing: "preprocessing",
	StateInferring:     "inferring",
	StateEmitting:      "emitting",
	StateDone:          "done",
	StateFailed:        "failed",
}

// String returns the state name.
func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// MarshalText implements encoding.TextMarshaler.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Terminal reports whether no further transitions follow.
func (s State) Terminal() bool {
	return s == StateDone || s == StateFailed
}

// job is the per-frame state carried between lane tasks.
type job struct {
	id        JobID
	original  image.Image
	frame     image.Image
	state     State
	submitted time.Time
	timing    JobMetrics
	overlays  []Overlay
	err       error
}
