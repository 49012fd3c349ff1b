package emotion

import (
	"fmt"
	"math"
	"strings"
)

// Score is the network output for one label.
type Score struct {
	Label string  `json:"label"`
	Value float32 `json:"value"`
}

// Scores holds one entry per label in model-output order. Values are passed
// through from the network as-is and are not renormalized.
type Scores []Score

// Map returns the label to value mapping.
func (s Scores) Map() map[string]float32 {
	m := make(map[string]float32, len(s))
	for _, sc := range s {
		m[sc.Label] = sc.Value
	}
	return m
}

// Get returns the value for label.
func (s Scores) Get(label string) (float32, bool) {
	for _, sc := range s {
		if sc.Label == label {
			return sc.Value, true
		}
	}
	return 0, false
}

// Top returns the entry with the largest value. Ties go to the earliest entry
// and NaN values are never selected. It reports false when no entry qualifies.
func (s Scores) Top() (Score, bool) {
	best := -1
	for i, sc := range s {
		if math.IsNaN(float64(sc.Value)) {
			continue
		}
		if best < 0 || sc.Value > s[best].Value {
			best = i
		}
	}
	if best < 0 {
		return Score{}, false
	}
	return s[best], true
}

// String formats the scores as "{label:value, ...}".
func (s Scores) String() string {
	var b strings.Builder
	b.WriteByte('{')
	for i, sc := range s {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%s:%.3f", sc.Label, sc.Value)
	}
	b.WriteByte('}')
	return b.String()
}

// SelectLabel returns the label with the highest score.
func SelectLabel(s Scores) (string, bool) {
	top, ok := s.Top()
	return top.Label, ok
}
