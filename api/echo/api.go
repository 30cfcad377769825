// Package echo exposes the REST and realtime surface over labstack/echo.
package echo

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/mythologiq/hearthlink-core/core"
	serrors "github.com/mythologiq/hearthlink-core/errors"
	"github.com/mythologiq/hearthlink-core/middleware"
	"github.com/mythologiq/hearthlink-core/realtime"
	"github.com/mythologiq/hearthlink-core/services"
)

const refreshCookieName = "hearthlink_refresh"

// API holds the handler dependencies.
type API struct {
	auth    *services.AuthService
	core    *core.Core
	gateway *realtime.Gateway
	limiter services.RateLimiter
}

// NewAPI initializes the HTTP API. limiter may be nil to disable login
// throttling.
func NewAPI(auth *services.AuthService, orchestrator *core.Core, gateway *realtime.Gateway, limiter services.RateLimiter) *API {
	return &API{
		auth:    auth,
		core:    orchestrator,
		gateway: gateway,
		limiter: limiter,
	}
}

// RegisterRoutes registers every route on the echo instance.
func (a *API) RegisterRoutes(e *echo.Echo) {
	authn := middleware.Authn(a.auth)

	e.POST("/auth/login", a.LoginHandler)
	e.POST("/auth/refresh", a.RefreshHandler)
	e.POST("/auth/logout", a.LogoutHandler, authn)
	e.GET("/auth/validate", a.ValidateHandler, authn)

	s := e.Group("/sessions", authn)
	s.POST("", a.CreateSessionHandler)
	s.GET("", a.ListSessionsHandler)
	s.GET("/:id", a.GetSessionHandler)
	s.DELETE("/:id", a.EndSessionHandler)
	s.POST("/:id/participants", a.AddParticipantHandler)
	s.DELETE("/:id/participants/:pid", a.RemoveParticipantHandler)
	s.PATCH("/:id/participants/:pid", a.UpdateRoleHandler)
	s.POST("/:id/turns/start", a.StartTurnsHandler)
	s.POST("/:id/turns/advance", a.AdvanceTurnHandler)
	s.POST("/:id/messages", a.PostMessageHandler)
	s.GET("/:id/messages", a.ListMessagesHandler)
	s.GET("/:id/performance", a.PerformanceHandler)
	s.POST("/:id/pause", a.PauseHandler)
	s.POST("/:id/resume", a.ResumeHandler)

	e.GET("/ws", a.gateway.Handle)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
}

// LoginHandler authenticates a caller and mints a credential pair. The
// refresh credential is additionally set as an http-only cookie.
func (a *API) LoginHandler(c echo.Context) error {
	if a.limiter != nil && !a.limiter.Allow(c.RealIP()) {
		return c.JSON(http.StatusTooManyRequests, &serrors.APIError{
			Code:        "rate_limited",
			Description: "too many login attempts",
		})
	}

	var req LoginRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, serrors.NewInvalidRequest("malformed body"))
	}

	pair, err := a.auth.Login(c.Request().Context(), req.Identifier, req.Secret, req.DeviceInfo)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, serrors.NewUnauthorized("authentication required"))
	}

	c.SetCookie(&http.Cookie{
		Name:     refreshCookieName,
		Value:    pair.RefreshToken,
		Path:     "/auth/refresh",
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteStrictMode,
	})
	return c.JSON(http.StatusOK, LoginResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		ExpiresAt:    pair.ExpiresAt,
	})
}

// RefreshHandler re-mints an access credential from a refresh credential
// supplied either as the refresh cookie or in the JSON body.
func (a *API) RefreshHandler(c echo.Context) error {
	token := ""
	if cookie, err := c.Cookie(refreshCookieName); err == nil {
		token = cookie.Value
	}
	if token == "" {
		var req RefreshRequest
		if err := c.Bind(&req); err == nil {
			token = req.RefreshToken
		}
	}

	pair, err := a.auth.Refresh(c.Request().Context(), token)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, serrors.NewUnauthorized("authentication required"))
	}
	return c.JSON(http.StatusOK, RefreshResponse{
		AccessToken: pair.AccessToken,
		ExpiresAt:   pair.ExpiresAt,
	})
}

// LogoutHandler revokes the caller's auth session. Idempotent.
func (a *API) LogoutHandler(c echo.Context) error {
	claims, ok := middleware.ClaimsFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, serrors.NewUnauthorized("authentication required"))
	}
	if err := a.auth.Logout(c.Request().Context(), claims.SessionID); err != nil {
		log.Ctx(c.Request().Context()).Error().Err(err).Msg("logout failed")
		return c.JSON(http.StatusInternalServerError, serrors.NewServerError("logout failed"))
	}
	return c.JSON(http.StatusOK, map[string]any{})
}

// ValidateHandler reports the identity behind a valid access credential.
func (a *API) ValidateHandler(c echo.Context) error {
	claims, ok := middleware.ClaimsFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, serrors.NewUnauthorized("authentication required"))
	}
	return c.JSON(http.StatusOK, ValidateResponse{
		Valid: true,
		User: ValidateUser{
			SubjectID: claims.SubjectID,
			Email:     claims.Email,
			Roles:     claims.Roles,
		},
	})
}

// fail maps a service error onto its HTTP status and JSON body.
func fail(c echo.Context, err error) error {
	status, body := serrors.StatusAndBody(err)
	return c.JSON(status, body)
}
