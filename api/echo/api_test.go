package echo

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mythologiq/hearthlink-core/cache"
	"github.com/mythologiq/hearthlink-core/core"
	"github.com/mythologiq/hearthlink-core/domain"
	"github.com/mythologiq/hearthlink-core/internal/metrics"
	"github.com/mythologiq/hearthlink-core/realtime"
	"github.com/mythologiq/hearthlink-core/services"
)

func TestMain(m *testing.M) {
	metrics.InitCustomMetrics(prometheus.NewRegistry())
	os.Exit(m.Run())
}

type denyAllLimiter struct{}

func (denyAllLimiter) Allow(string) bool { return false }

func newTestServer(t *testing.T, limiter services.RateLimiter) *echo.Echo {
	t.Helper()

	store := cache.NewMemorySessionStore()
	t.Cleanup(func() { _ = store.Close() })

	validator := services.NewMemoryCredentialValidator()
	require.NoError(t, validator.AddUser(domain.User{
		ID:     "user-a",
		Email:  "a@x.com",
		Status: domain.UserStatusActive,
	}, "pw"))

	auth := services.NewAuthService(
		services.NewTokenService([]byte("test-signing-key"), "hearthlink-core", "hearthlink"),
		store, validator, time.Hour, 7*24*time.Hour,
	)

	registry := realtime.NewRegistry(30*time.Second, 65*time.Second)
	t.Cleanup(func() { registry.Shutdown(context.Background()) })

	orchestrator := core.New(realtime.NewBroadcaster(registry), nil, core.Options{ParticipantCap: 20})

	e := echo.New()
	NewAPI(auth, orchestrator, realtime.NewGateway(auth, registry), limiter).RegisterRoutes(e)
	return e
}

func doJSON(e *echo.Echo, method, path, token, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func login(t *testing.T, e *echo.Echo) string {
	t.Helper()
	rec := doJSON(e, http.MethodPost, "/auth/login", "", `{"identifier":"a@x.com","secret":"pw"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp LoginResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.AccessToken)
	return resp.AccessToken
}

func TestLogin(t *testing.T) {
	e := newTestServer(t, nil)

	rec := doJSON(e, http.MethodPost, "/auth/login", "", `{"identifier":"a@x.com","secret":"pw"}`)
	assert.Equal(t, http.StatusOK, rec.Code)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "hearthlink_refresh", cookies[0].Name)
	assert.Equal(t, "/auth/refresh", cookies[0].Path)
	assert.True(t, cookies[0].HttpOnly)

	rec = doJSON(e, http.MethodPost, "/auth/login", "", `{"identifier":"a@x.com","secret":"wrong"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLogin_RateLimited(t *testing.T) {
	e := newTestServer(t, denyAllLimiter{})

	rec := doJSON(e, http.MethodPost, "/auth/login", "", `{"identifier":"a@x.com","secret":"pw"}`)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Contains(t, rec.Body.String(), "rate_limited")
}

func TestSessionLifecycleOverHTTP(t *testing.T) {
	e := newTestServer(t, nil)
	token := login(t, e)

	rec := doJSON(e, http.MethodPost, "/sessions", token,
		`{"topic":"standup","participants":[{"subject_id":"user-a","name":"A","kind":"user","role":"participant"}]}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	var session domain.ChatSession
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &session))
	require.Len(t, session.Participants, 1)
	pid := session.Participants[0].ID

	rec = doJSON(e, http.MethodPost, "/sessions/"+session.ID+"/turns/start", token,
		`{"turnOrder":["`+pid+`"]}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(e, http.MethodPost, "/sessions/"+session.ID+"/messages", token, `{"body":"hello"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(e, http.MethodGet, "/sessions/"+session.ID+"/messages", token, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var msgs []domain.Message
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &msgs))
	require.Len(t, msgs, 1)
	assert.Equal(t, "hello", msgs[0].Body)

	rec = doJSON(e, http.MethodGet, "/sessions", token, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var active []domain.ChatSession
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &active))
	require.Len(t, active, 1)

	rec = doJSON(e, http.MethodDelete, "/sessions/"+session.ID, token, "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(e, http.MethodGet, "/sessions", token, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())

	rec = doJSON(e, http.MethodPost, "/sessions/"+session.ID+"/messages", token, `{"body":"late"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestSessionRoutesRequireAuth(t *testing.T) {
	e := newTestServer(t, nil)

	rec := doJSON(e, http.MethodPost, "/sessions", "", `{"topic":"standup"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doJSON(e, http.MethodGet, "/sessions/whatever", "garbage", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestValidateAndLogout(t *testing.T) {
	e := newTestServer(t, nil)
	token := login(t, e)

	rec := doJSON(e, http.MethodGet, "/auth/validate", token, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var resp ValidateResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Valid)
	assert.Equal(t, "user-a", resp.User.SubjectID)

	rec = doJSON(e, http.MethodPost, "/auth/logout", token, "")
	require.Equal(t, http.StatusOK, rec.Code)

	// The revoked credential no longer validates.
	rec = doJSON(e, http.MethodGet, "/auth/validate", token, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
