// Package protocol defines the WebSocket messages streamed to result viewers.
// It has no dependency on the pipeline so clients can import it alone.
package protocol

import (
	"encoding/json"
	"fmt"
	"time"
)

// MessageType identifies the type of WebSocket message
type MessageType string

const (
	// Server → viewer messages
	TypeResult MessageType = "result" // Classified faces for one job
	TypeNotice MessageType = "notice" // One-shot user-facing notice
	TypeStatus MessageType = "status" // Session and metrics snapshot

	// Bidirectional
	TypePing MessageType = "ping" // Health check
	TypePong MessageType = "pong" // Health check response
)

// Message is the base wrapper for all WebSocket messages
type Message struct {
	Type      MessageType     `json:"type"`
	Timestamp int64           `json:"ts,omitempty"` // Unix milliseconds
	Data      json.RawMessage `json:"data,omitempty"`
}

// NewMessage creates a new message with the current timestamp
func NewMessage(msgType MessageType, data any) (*Message, error) {
	var rawData json.RawMessage
	if data != nil {
		var err error
		rawData, err = json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("protocol: marshal %s data: %w", msgType, err)
		}
	}

	return &Message{
		Type:      msgType,
		Timestamp: time.Now().UnixMilli(),
		Data:      rawData,
	}, nil
}

// ParseData unmarshals the message data into v
func (m *Message) ParseData(v any) error {
	if m.Data == nil {
		return nil
	}
	return json.Unmarshal(m.Data, v)
}

// Bytes returns the JSON-encoded message
func (m *Message) Bytes() ([]byte, error) {
	return json.Marshal(m)
}

// ParseMessage parses a JSON message from bytes
func ParseMessage(data []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("protocol: parse message: %w", err)
	}
	if msg.Type == "" {
		return nil, fmt.Errorf("protocol: message has no type")
	}
	return &msg, nil
}

// =============================================================================
// Server → viewer payloads
// =============================================================================

// Box is a face rectangle in frame pixels, right and bottom exclusive.
type Box struct {
	Left   int `json:"left"`
	Top    int `json:"top"`
	Right  int `json:"right"`
	Bottom int `json:"bottom"`
}

// Face is one classified face.
type Face struct {
	Box        Box                `json:"box"`
	Label      string             `json:"label"`
	Confidence float64            `json:"confidence"`
	Scores     map[string]float32 `json:"scores,omitempty"`
}

// Timing holds per-job latencies in milliseconds.
type Timing struct {
	DetectMs     float64 `json:"detect_ms"`
	PreprocessMs float64 `json:"preprocess_ms"`
	InferMs      float64 `json:"infer_ms"`
	TotalMs      float64 `json:"total_ms"`
}

// ResultData describes the outcome of one job.
type ResultData struct {
	JobID     string `json:"job_id"`
	SessionID string `json:"session_id"`
	State     string `json:"state"`
	Width     int    `json:"width,omitempty"`
	Height    int    `json:"height,omitempty"`
	Faces     []Face `json:"faces"`
	Timing    Timing `json:"timing"`
	Error     string `json:"error,omitempty"`
}

// Notice levels.
const (
	NoticeInfo  = "info"
	NoticeWarn  = "warn"
	NoticeError = "error"
)

// NoticeData is a short message meant to be shown once.
type NoticeData struct {
	Level string `json:"level"`
	Text  string `json:"text"`
	JobID string `json:"job_id,omitempty"`
}

// SessionData describes the running session.
type SessionData struct {
	ID          string   `json:"id"`
	Started     int64    `json:"started"` // Unix milliseconds
	Backend     string   `json:"backend"`
	InputWidth  int      `json:"input_width"`
	InputHeight int      `json:"input_height"`
	Labels      []string `json:"labels"`
}

// StatusData is a snapshot of the server state.
type StatusData struct {
	Active  bool         `json:"active"`
	Session *SessionData `json:"session,omitempty"`
	Jobs    int          `json:"jobs"`
	Failed  int          `json:"failed"`
	Faces   int          `json:"faces"`
	Average Timing       `json:"average"`
	Viewers int          `json:"viewers"`
}

// =============================================================================
// Bidirectional payloads
// =============================================================================

// PingData contains ping information
type PingData struct {
	ID        string `json:"id"`
	Timestamp int64  `json:"ts"`
}

// PongData contains pong response
type PongData struct {
	ID        string `json:"id"`
	PingTS    int64  `json:"ping_ts"`
	PongTS    int64  `json:"pong_ts"`
	LatencyMs int64  `json:"latency_ms"`
}
