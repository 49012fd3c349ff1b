// Package hub fans pipeline output out to websocket viewers using a single
// goroutine that owns the client set.
package hub

import "github.com/teslashibe/go-fer/pkg/protocol"

// MessageType indicates the websocket frame type
type MessageType int

const (
	// JSONMessage is a JSON-encoded protocol message
	JSONMessage MessageType = iota
	// BinaryMessage is raw binary data (annotated JPEG frames)
	BinaryMessage
)

// Message is one frame queued for every client
type Message struct {
	Type MessageType
	Data []byte
}

// NewJSONMessage wraps pre-encoded JSON
func NewJSONMessage(data []byte) Message {
	return Message{Type: JSONMessage, Data: data}
}

// NewBinaryMessage wraps binary data
func NewBinaryMessage(data []byte) Message {
	return Message{Type: BinaryMessage, Data: data}
}

// Encode serializes a protocol message for broadcast
func Encode(msg *protocol.Message) (Message, error) {
	data, err := msg.Bytes()
	if err != nil {
		return Message{}, err
	}
	return NewJSONMessage(data), nil
}
