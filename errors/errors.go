package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors shared across services. The auth boundary deliberately
// folds ErrTokenExpired, ErrTokenInvalid and ErrInvalidCredentials into
// ErrUnauthorized so callers cannot probe revocation state.
var (
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrNotFound           = errors.New("not found")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrTokenExpired       = errors.New("token expired")
	ErrTokenInvalid       = errors.New("token invalid")

	ErrInvalidArgument    = errors.New("invalid argument")
	ErrAlreadyJoined      = errors.New("participant already joined")
	ErrInvalidTurnOrder   = errors.New("invalid turn order")
	ErrTurnOrderViolation = errors.New("turn order violation")
	ErrNotActive          = errors.New("session not active")
	ErrAlreadyEnded       = errors.New("session already ended")
	ErrSessionFull        = errors.New("session participant cap reached")
)

// APIError is the JSON error body returned by the HTTP layer.
type APIError struct {
	Code        string `json:"error"`
	Description string `json:"error_description,omitempty"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

// Error codes used on the wire.
const (
	CodeUnauthorized       = "unauthorized"
	CodeForbidden          = "forbidden"
	CodeNotFound           = "not_found"
	CodeInvalidRequest     = "invalid_request"
	CodeAlreadyJoined      = "already_joined"
	CodeInvalidTurnOrder   = "invalid_turn_order"
	CodeTurnOrderViolation = "turn_order_violation"
	CodeNotActive          = "session_not_active"
	CodeSessionFull        = "session_full"
	CodeServerError        = "server_error"
)

func NewUnauthorized(description string) *APIError {
	return &APIError{Code: CodeUnauthorized, Description: description}
}

func NewForbidden(description string) *APIError {
	return &APIError{Code: CodeForbidden, Description: description}
}

func NewNotFound(description string) *APIError {
	return &APIError{Code: CodeNotFound, Description: description}
}

func NewInvalidRequest(description string) *APIError {
	return &APIError{Code: CodeInvalidRequest, Description: description}
}

func NewServerError(description string) *APIError {
	return &APIError{Code: CodeServerError, Description: description}
}

// StatusAndBody maps a service error onto an HTTP status class and JSON body.
// Every authentication failure maps onto a bare 401 regardless of cause.
func StatusAndBody(err error) (int, *APIError) {
	switch {
	case errors.Is(err, ErrUnauthorized),
		errors.Is(err, ErrTokenExpired),
		errors.Is(err, ErrTokenInvalid),
		errors.Is(err, ErrInvalidCredentials):
		return http.StatusUnauthorized, NewUnauthorized("authentication required")
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden, NewForbidden(err.Error())
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound, NewNotFound(err.Error())
	case errors.Is(err, ErrInvalidArgument):
		return http.StatusBadRequest, NewInvalidRequest(err.Error())
	case errors.Is(err, ErrInvalidTurnOrder):
		return http.StatusBadRequest, &APIError{Code: CodeInvalidTurnOrder, Description: err.Error()}
	case errors.Is(err, ErrAlreadyJoined):
		return http.StatusConflict, &APIError{Code: CodeAlreadyJoined, Description: err.Error()}
	case errors.Is(err, ErrTurnOrderViolation):
		return http.StatusConflict, &APIError{Code: CodeTurnOrderViolation, Description: err.Error()}
	case errors.Is(err, ErrNotActive), errors.Is(err, ErrAlreadyEnded):
		return http.StatusConflict, &APIError{Code: CodeNotActive, Description: err.Error()}
	case errors.Is(err, ErrSessionFull):
		return http.StatusConflict, &APIError{Code: CodeSessionFull, Description: err.Error()}
	default:
		return http.StatusInternalServerError, NewServerError("internal error")
	}
}
