package domain

import "time"

// ChatSessionStatus enumerates the lifecycle of a multi-party session.
type ChatSessionStatus string

const (
	ChatSessionCreated ChatSessionStatus = "created"
	ChatSessionActive  ChatSessionStatus = "active"
	ChatSessionPaused  ChatSessionStatus = "paused"
	// ChatSessionEnded is terminal: no further mutation is accepted.
	ChatSessionEnded ChatSessionStatus = "ended"
)

// ParticipantRole expresses what a participant may do within a session.
type ParticipantRole string

const (
	RoleFacilitator ParticipantRole = "facilitator"
	RoleParticipant ParticipantRole = "participant"
	RoleObserver    ParticipantRole = "observer"
	RoleEvaluator   ParticipantRole = "evaluator"
)

// Valid reports whether the role is one of the known roles.
func (r ParticipantRole) Valid() bool {
	switch r {
	case RoleFacilitator, RoleParticipant, RoleObserver, RoleEvaluator:
		return true
	}
	return false
}

// ParticipantKind distinguishes humans from autonomous agents.
type ParticipantKind string

const (
	KindUser     ParticipantKind = "user"
	KindPersona  ParticipantKind = "persona"
	KindExternal ParticipantKind = "external"
)

// Participant captures membership of one subject in one ChatSession.
type Participant struct {
	ID            string          `json:"id"`
	ChatSessionID string          `json:"chat_session_id"`
	SubjectID     string          `json:"subject_id"`
	Name          string          `json:"name"`
	Kind          ParticipantKind `json:"kind"`
	Role          ParticipantRole `json:"role"`
	Capabilities  []string        `json:"capabilities,omitempty"`
	JoinedAt      time.Time       `json:"joined_at"`
}

// Message is one append-only entry in a session log. Immutable once created.
type Message struct {
	ID            string            `json:"id"`
	ChatSessionID string            `json:"chat_session_id"`
	SenderID      string            `json:"sender_id"` // participant id
	Body          string            `json:"body"`
	Timestamp     time.Time         `json:"timestamp"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

// SessionMetrics is a derived read model over a session's counters.
// PerformanceScore is produced by a pluggable scorer and only promises
// monotonicity: more balanced participation never lowers it.
type SessionMetrics struct {
	SessionID        string        `json:"session_id"`
	Duration         time.Duration `json:"duration_seconds"`
	ParticipantCount int           `json:"participant_count"`
	MessageCount     int           `json:"message_count"`
	TurnSwitchCount  int           `json:"turn_switch_count"`
	PerformanceScore float64       `json:"performance_score"`
}

// ChatSession is the multi-party, turn-ordered collaboration unit.
//
// Invariants:
//   - TurnOrder is a duplicate-free subset of participant ids.
//   - CurrentTurnIndex is within [0, len(TurnOrder)) whenever Active.
//   - Ended is terminal.
type ChatSession struct {
	ID               string            `json:"id"`
	Topic            string            `json:"topic"`
	CreatorID        string            `json:"creator_id"`
	Status           ChatSessionStatus `json:"status"`
	Participants     []*Participant    `json:"participants"`
	TurnOrder        []string          `json:"turn_order,omitempty"`
	CurrentTurnIndex int               `json:"current_turn_index"`
	Messages         []*Message        `json:"messages"`
	CreatedAt        time.Time         `json:"created_at"`
	EndedAt          *time.Time        `json:"ended_at,omitempty"`
	TurnSwitchCount  int               `json:"turn_switch_count"`
}

// ParticipantByID returns the participant with the given participant id.
func (s *ChatSession) ParticipantByID(id string) *Participant {
	for _, p := range s.Participants {
		if p.ID == id {
			return p
		}
	}
	return nil
}

// ParticipantBySubject returns the participant bound to the given subject.
func (s *ChatSession) ParticipantBySubject(subjectID string) *Participant {
	for _, p := range s.Participants {
		if p.SubjectID == subjectID {
			return p
		}
	}
	return nil
}

// CurrentTurnHolder returns the participant id holding the turn, or "" when
// turn-taking has not started.
func (s *ChatSession) CurrentTurnHolder() string {
	if len(s.TurnOrder) == 0 || s.CurrentTurnIndex < 0 || s.CurrentTurnIndex >= len(s.TurnOrder) {
		return ""
	}
	return s.TurnOrder[s.CurrentTurnIndex]
}

// IsFacilitator reports whether the subject is the creator or holds the
// facilitator role in this session.
func (s *ChatSession) IsFacilitator(subjectID string) bool {
	if subjectID == s.CreatorID {
		return true
	}
	p := s.ParticipantBySubject(subjectID)
	return p != nil && p.Role == RoleFacilitator
}
