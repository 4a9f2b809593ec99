package websocket

import (
	"bytes"
	"encoding/json"
	"time"
)

type MessageType string

const (
	TypeRowCreated MessageType = "row_created"
	TypeRowUpdated MessageType = "row_updated"
	TypePing       MessageType = "ping"
	TypePong       MessageType = "pong"
)

type Message struct {
	Type      MessageType     `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// RowChangePayload announces a write to the tabular store so subscribers can
// drop stale listings.
type RowChangePayload struct {
	RowID            string `json:"row_id"`
	Kind             string `json:"kind"`
	VentureID        string `json:"venture_id"`
	VentureName      string `json:"venture_name"`
	AdvisorName      string `json:"advisor_name"`
	AssessmentNumber int    `json:"assessment_number"`
}

func NewMessage(msgType MessageType, payload interface{}) (*Message, error) {
	var payloadBytes json.RawMessage
	if payload != nil {
		bytes, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		payloadBytes = bytes
	}

	return &Message{
		Type:      msgType,
		Timestamp: time.Now(),
		Payload:   payloadBytes,
	}, nil
}

func (m *Message) UnmarshalPayload(v interface{}) error {
	if m.Payload == nil {
		return nil
	}
	return json.Unmarshal(m.Payload, v)
}

// ParseFrame splits one text frame into messages. The write pump coalesces
// queued messages into a single frame separated by newlines.
func ParseFrame(frame []byte) ([]*Message, error) {
	var out []*Message
	for _, line := range bytes.Split(frame, []byte{'\n'}) {
		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}
		var msg Message
		if err := json.Unmarshal(line, &msg); err != nil {
			return out, err
		}
		out = append(out, &msg)
	}
	return out, nil
}
