package realtime

import (
	"encoding/json"
	"time"

	"github.com/mythologiq/hearthlink-core/domain"
)

// FrameKind tags every wire frame. The set is closed: the boundary handles
// each kind exhaustively and logs-and-drops anything else.
type FrameKind string

const (
	FrameConnectionAck     FrameKind = "connection_ack"
	FrameClientLog         FrameKind = "client_log"
	FramePing              FrameKind = "ping"
	FramePong              FrameKind = "pong"
	FrameTurnAdvanced      FrameKind = "turn_advanced"
	FrameMessagePosted     FrameKind = "message_posted"
	FrameParticipantJoined FrameKind = "participant_joined"
	FrameSessionPaused     FrameKind = "session_paused"
	FrameSessionResumed    FrameKind = "session_resumed"
	FrameSessionEnded      FrameKind = "session_ended"
)

// Frame is the flat wire envelope. Only the fields belonging to Type are
// populated; Message is raw because client_log carries a string under the
// same key that message_posted uses for an object.
type Frame struct {
	Type FrameKind `json:"type"`

	ConnectionID string `json:"connectionId,omitempty"`
	TraceID      string `json:"traceId,omitempty"`
	Timestamp    string `json:"timestamp,omitempty"`

	SessionID      string              `json:"sessionId,omitempty"`
	PreviousHolder string              `json:"previousHolder,omitempty"`
	NewHolder      string              `json:"newHolder,omitempty"`
	Message        json.RawMessage     `json:"message,omitempty"`
	Participant    *domain.Participant `json:"participant,omitempty"`

	// client_log relay fields.
	Level     string                 `json:"level,omitempty"`
	Component string                 `json:"component,omitempty"`
	Context   map[string]interface{} `json:"context,omitempty"`
}

// LogMessage decodes the client_log message string, if present.
func (f *Frame) LogMessage() string {
	if len(f.Message) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(f.Message, &s); err != nil {
		return string(f.Message)
	}
	return s
}

// NewConnectionAck acknowledges a completed handshake.
func NewConnectionAck(connectionID string) Frame {
	return Frame{Type: FrameConnectionAck, ConnectionID: connectionID}
}

// NewPing builds a liveness probe keyed by a trace id.
func NewPing(traceID string) Frame {
	return Frame{Type: FramePing, TraceID: traceID}
}

// NewPong answers a client ping, echoing its trace id.
func NewPong(traceID string, now time.Time) Frame {
	return Frame{Type: FramePong, TraceID: traceID, Timestamp: now.UTC().Format(time.RFC3339Nano)}
}

// NewTurnAdvanced announces a turn transition to connected parties.
func NewTurnAdvanced(sessionID, previousHolder, newHolder string) Frame {
	return Frame{
		Type:           FrameTurnAdvanced,
		SessionID:      sessionID,
		PreviousHolder: previousHolder,
		NewHolder:      newHolder,
	}
}

// NewMessagePosted announces an appended message.
func NewMessagePosted(sessionID string, msg *domain.Message) Frame {
	raw, err := json.Marshal(msg)
	if err != nil {
		raw = nil
	}
	return Frame{Type: FrameMessagePosted, SessionID: sessionID, Message: raw}
}

// NewParticipantJoined announces a new participant.
func NewParticipantJoined(sessionID string, p *domain.Participant) Frame {
	return Frame{Type: FrameParticipantJoined, SessionID: sessionID, Participant: p}
}

// NewSessionEvent builds a bare lifecycle frame (paused, resumed, ended).
func NewSessionEvent(kind FrameKind, sessionID string) Frame {
	return Frame{Type: kind, SessionID: sessionID}
}
