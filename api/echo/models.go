package echo

import (
	"time"

	"github.com/mythologiq/hearthlink-core/core"
	"github.com/mythologiq/hearthlink-core/domain"
)

// LoginRequest is the body of POST /auth/login.
type LoginRequest struct {
	Identifier string `json:"identifier"`
	Secret     string `json:"secret"`
	DeviceInfo string `json:"device_info,omitempty"`
}

// LoginResponse carries the minted credential pair.
type LoginResponse struct {
	AccessToken  string    `json:"accessToken"`
	RefreshToken string    `json:"refreshToken"`
	ExpiresAt    time.Time `json:"expiresAt"`
}

// RefreshRequest is the body of POST /auth/refresh when no cookie is set.
type RefreshRequest struct {
	RefreshToken string `json:"refreshToken,omitempty"`
}

// RefreshResponse carries the re-minted access credential.
type RefreshResponse struct {
	AccessToken string    `json:"accessToken"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

// ValidateResponse is the body of GET /auth/validate.
type ValidateResponse struct {
	Valid bool         `json:"valid"`
	User  ValidateUser `json:"user"`
}

// ValidateUser is the caller identity echoed back by validate.
type ValidateUser struct {
	SubjectID string   `json:"subjectId"`
	Email     string   `json:"email"`
	Roles     []string `json:"roles,omitempty"`
}

// CreateSessionRequest is the body of POST /sessions.
type CreateSessionRequest struct {
	Topic        string                 `json:"topic"`
	Participants []core.ParticipantSpec `json:"participants,omitempty"`
}

// AddParticipantRequest is the body of POST /sessions/:id/participants.
type AddParticipantRequest struct {
	core.ParticipantSpec
}

// UpdateRoleRequest is the body of PATCH /sessions/:id/participants/:pid.
type UpdateRoleRequest struct {
	Role domain.ParticipantRole `json:"role"`
}

// StartTurnsRequest is the body of POST /sessions/:id/turns/start.
type StartTurnsRequest struct {
	TurnOrder []string `json:"turnOrder"`
}

// AdvanceTurnResponse reports the transition made by POST /sessions/:id/turns/advance.
type AdvanceTurnResponse struct {
	PreviousHolder string `json:"previousHolder"`
	NewHolder      string `json:"newHolder"`
}

// PostMessageRequest is the body of POST /sessions/:id/messages.
type PostMessageRequest struct {
	Body string `json:"body"`
}
