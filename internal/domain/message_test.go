package domain

import (
	"encoding/json"
	"testing"
)

func TestCorrelatesTo(t *testing.T) {
	tests := []struct {
		name        string
		payloadType PayloadType
		payload     string
		requestID   string
		want        bool
	}{
		{"matching response", PayloadTypeCommandResponse, `{"request_id":"req-7","result":"pong"}`, "req-7", true},
		{"other request", PayloadTypeCommandResponse, `{"request_id":"req-8"}`, "req-7", false},
		{"wrong type", PayloadTypeCommandRequest, `{"request_id":"req-7"}`, "req-7", false},
		{"log message", PayloadTypeLogMessage, `{"text":"hi"}`, "req-7", false},
		{"malformed payload", PayloadTypeCommandResponse, `not json`, "req-7", false},
		{"no request id", PayloadTypeCommandResponse, `{}`, "req-7", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := Message{PayloadType: tt.payloadType, Payload: json.RawMessage(tt.payload)}
			if got := msg.CorrelatesTo(tt.requestID); got != tt.want {
				t.Errorf("CorrelatesTo(%q) = %v, want %v", tt.requestID, got, tt.want)
			}
		})
	}
}
