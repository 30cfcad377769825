package echo

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/mythologiq/hearthlink-core/domain"
	serrors "github.com/mythologiq/hearthlink-core/errors"
	"github.com/mythologiq/hearthlink-core/middleware"
	"github.com/mythologiq/hearthlink-core/services"
)

func (a *API) caller(c echo.Context) (*services.Claims, error) {
	claims, ok := middleware.ClaimsFromContext(c)
	if !ok {
		return nil, serrors.ErrUnauthorized
	}
	return claims, nil
}

// CreateSessionHandler creates a new session owned by the caller.
func (a *API) CreateSessionHandler(c echo.Context) error {
	claims, err := a.caller(c)
	if err != nil {
		return fail(c, err)
	}

	var req CreateSessionRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, serrors.NewInvalidRequest("malformed body"))
	}

	session, err := a.core.CreateSession(c.Request().Context(), claims.SubjectID, req.Topic, req.Participants)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusCreated, session)
}

// ListSessionsHandler lists every session that has not ended.
func (a *API) ListSessionsHandler(c echo.Context) error {
	if _, err := a.caller(c); err != nil {
		return fail(c, err)
	}
	sessions := a.core.ActiveSessions(c.Request().Context())
	if sessions == nil {
		sessions = []*domain.ChatSession{}
	}
	return c.JSON(http.StatusOK, sessions)
}

// GetSessionHandler returns a point-in-time session snapshot.
func (a *API) GetSessionHandler(c echo.Context) error {
	if _, err := a.caller(c); err != nil {
		return fail(c, err)
	}
	session, err := a.core.GetSession(c.Request().Context(), c.Param("id"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, session)
}

// AddParticipantHandler admits a participant into a session.
func (a *API) AddParticipantHandler(c echo.Context) error {
	claims, err := a.caller(c)
	if err != nil {
		return fail(c, err)
	}

	var req AddParticipantRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, serrors.NewInvalidRequest("malformed body"))
	}

	p, err := a.core.AddParticipant(c.Request().Context(), c.Param("id"), claims.SubjectID, req.ParticipantSpec)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusCreated, p)
}

// RemoveParticipantHandler removes a participant from a session.
func (a *API) RemoveParticipantHandler(c echo.Context) error {
	claims, err := a.caller(c)
	if err != nil {
		return fail(c, err)
	}
	if err := a.core.RemoveParticipant(c.Request().Context(), c.Param("id"), claims.SubjectID, c.Param("pid")); err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{})
}

// UpdateRoleHandler reassigns a participant role.
func (a *API) UpdateRoleHandler(c echo.Context) error {
	claims, err := a.caller(c)
	if err != nil {
		return fail(c, err)
	}

	var req UpdateRoleRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, serrors.NewInvalidRequest("malformed body"))
	}

	if err := a.core.UpdateParticipantRole(c.Request().Context(), c.Param("id"), claims.SubjectID, c.Param("pid"), req.Role); err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{})
}

// StartTurnsHandler activates turn-taking with the supplied rotation.
func (a *API) StartTurnsHandler(c echo.Context) error {
	claims, err := a.caller(c)
	if err != nil {
		return fail(c, err)
	}

	var req StartTurnsRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, serrors.NewInvalidRequest("malformed body"))
	}

	if err := a.core.StartTurnTaking(c.Request().Context(), c.Param("id"), claims.SubjectID, req.TurnOrder); err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{})
}

// AdvanceTurnHandler moves the rotation forward one step.
func (a *API) AdvanceTurnHandler(c echo.Context) error {
	claims, err := a.caller(c)
	if err != nil {
		return fail(c, err)
	}

	previous, next, err := a.core.AdvanceTurn(c.Request().Context(), c.Param("id"), claims.SubjectID)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, AdvanceTurnResponse{
		PreviousHolder: previous,
		NewHolder:      next,
	})
}

// PostMessageHandler appends a message to the session log.
func (a *API) PostMessageHandler(c echo.Context) error {
	claims, err := a.caller(c)
	if err != nil {
		return fail(c, err)
	}

	var req PostMessageRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, serrors.NewInvalidRequest("malformed body"))
	}

	msg, err := a.core.PostMessage(c.Request().Context(), c.Param("id"), claims.SubjectID, req.Body)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusCreated, msg)
}

// ListMessagesHandler replays the append-only log in creation order.
func (a *API) ListMessagesHandler(c echo.Context) error {
	if _, err := a.caller(c); err != nil {
		return fail(c, err)
	}
	msgs, err := a.core.Messages(c.Request().Context(), c.Param("id"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, msgs)
}

// PerformanceHandler returns the derived metrics snapshot.
func (a *API) PerformanceHandler(c echo.Context) error {
	if _, err := a.caller(c); err != nil {
		return fail(c, err)
	}
	m, err := a.core.Performance(c.Request().Context(), c.Param("id"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, m)
}

// PauseHandler suspends an active session.
func (a *API) PauseHandler(c echo.Context) error {
	claims, err := a.caller(c)
	if err != nil {
		return fail(c, err)
	}
	if err := a.core.PauseSession(c.Request().Context(), c.Param("id"), claims.SubjectID); err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{})
}

// ResumeHandler reactivates a paused session.
func (a *API) ResumeHandler(c echo.Context) error {
	claims, err := a.caller(c)
	if err != nil {
		return fail(c, err)
	}
	if err := a.core.ResumeSession(c.Request().Context(), c.Param("id"), claims.SubjectID); err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{})
}

// EndSessionHandler moves a session to its terminal state.
func (a *API) EndSessionHandler(c echo.Context) error {
	claims, err := a.caller(c)
	if err != nil {
		return fail(c, err)
	}
	if err := a.core.EndSession(c.Request().Context(), c.Param("id"), claims.SubjectID); err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{})
}
