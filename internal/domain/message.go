package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// PayloadType discriminates message payloads. The server only inspects
// command responses (for request correlation); everything else is passed
// through opaque.
type PayloadType string

const (
	PayloadTypeCommandRequest  PayloadType = "command_request"
	PayloadTypeCommandResponse PayloadType = "command_response"
	PayloadTypeLogMessage      PayloadType = "log_message"
	PayloadTypeInit            PayloadType = "init"
)

// Message is the wire message exchanged with agents. Messages entering or
// leaving the core are already plaintext and assumed valid; encryption,
// signing and fragmentation happen at the protocol level.
//
// The message ID is minted by the sender and is globally unique; it is the
// sole identity used for deduplication, shared between both directions.
type Message struct {
	MessageID     uuid.UUID       `json:"message_id"`
	SourceID      uuid.UUID       `json:"source_id"`
	DestinationID uuid.UUID       `json:"destination_id"`
	Timestamp     time.Time       `json:"timestamp"`
	PayloadType   PayloadType     `json:"payload_type"`
	Payload       json.RawMessage `json:"payload,omitempty"`
}

// commandResponseEnvelope is the slice of a command response payload the
// server reads for request correlation.
type commandResponseEnvelope struct {
	RequestID string `json:"request_id"`
}

// CorrelatesTo reports whether the message is a command response answering
// the given request ID.
func (m *Message) CorrelatesTo(requestID string) bool {
	if m.PayloadType != PayloadTypeCommandResponse {
		return false
	}
	var env commandResponseEnvelope
	if err := json.Unmarshal(m.Payload, &env); err != nil {
		return false
	}
	return env.RequestID == requestID
}
