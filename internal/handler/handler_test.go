package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/quocanhngo/reelsync/internal/catalog"
	"github.com/quocanhngo/reelsync/internal/middleware"
	"github.com/quocanhngo/reelsync/internal/model"
	"github.com/quocanhngo/reelsync/internal/repository/memory"
	"github.com/quocanhngo/reelsync/internal/service"
	"github.com/quocanhngo/reelsync/internal/ws"
	"github.com/quocanhngo/reelsync/pkg/auth"
	"github.com/quocanhngo/reelsync/pkg/certauth"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const filmID = 7

type testServer struct {
	router *gin.Engine
	jwt    *auth.JWTManager
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log := zerolog.Nop()

	authority, err := certauth.NewAuthority("Test CA", "ReelSync")
	require.NoError(t, err)

	titles := memory.NewTitleStore()
	require.NoError(t, titles.Save(context.Background(), &model.Title{ID: filmID, Name: "Film", DurationSeconds: 1000}))

	users := memory.NewUserStore()
	sessions := memory.NewSessionStore()
	jwtManager := auth.NewJWTManager("handler-secret", time.Hour, "reelsync")
	hub := ws.NewHub(nil, log)

	sessionSvc := service.NewSessionService(sessions, hub, log)
	progressSvc := service.NewProgressService(memory.NewProgressStore(), sessions, catalog.New(titles, time.Minute), hub, log)
	certSvc := service.NewCertificateService(authority, memory.NewCertificateStore(), users, sessionSvc, memory.NewRevocationList(), jwtManager, nil, log)
	identitySvc := service.NewIdentityService(jwtManager, users, sessionSvc, certSvc, log)
	authSvc := service.NewAuthService(users, sessionSvc, jwtManager)

	r := gin.New()
	api := r.Group("/api/v1")
	api.Use(middleware.Identity(identitySvc, middleware.GatewayConfig{
		CertEnabled:   true,
		ForwardHeader: "X-Client-Cert",
		SkipPaths:     []string{"/api/v1/auth/login", "/api/v1/auth/register", "/api/v1/certificates/enroll"},
	}, log))
	Handlers{
		Auth:        NewAuthHandler(authSvc),
		Session:     NewSessionHandler(sessionSvc),
		Progress:    NewProgressHandler(progressSvc),
		Certificate: NewCertificateHandler(certSvc),
	}.Register(api)

	return &testServer{router: r, jwt: jwtManager}
}

func (s *testServer) do(t *testing.T, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func bearer(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
}

func decodeInto[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func (s *testServer) register(t *testing.T, email, computer, userAgent string) model.LoginResponse {
	t.Helper()
	w := s.do(t, http.MethodPost, "/api/v1/auth/register", map[string]any{
		"name": "Viewer", "email": email, "password": "s3cret-pass",
	}, map[string]string{"X-Computer-Name": computer, "X-Mac-Address": computer + "-mac", "User-Agent": userAgent})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decodeInto[model.LoginResponse](t, w)
}

func (s *testServer) login(t *testing.T, email, computer, userAgent string) model.LoginResponse {
	t.Helper()
	w := s.do(t, http.MethodPost, "/api/v1/auth/login", map[string]any{
		"email": email, "password": "s3cret-pass",
	}, map[string]string{"X-Computer-Name": computer, "X-Mac-Address": computer + "-mac", "User-Agent": userAgent})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	return decodeInto[model.LoginResponse](t, w)
}

const (
	desktopUA = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) Chrome/120"
	tvUA      = "Mozilla/5.0 (SMART-TV; Linux; Tizen 7.0)"
)

func TestAuthFlow(t *testing.T) {
	s := newTestServer(t)
	resp := s.register(t, "a@example.com", "DESKTOP-X", desktopUA)
	assert.NotEmpty(t, resp.Token)
	assert.Equal(t, model.DeviceTypeComputer, resp.Session.DeviceType)

	w := s.do(t, http.MethodPost, "/api/v1/auth/register", map[string]any{
		"name": "Again", "email": "a@example.com", "password": "s3cret-pass",
	}, nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = s.do(t, http.MethodPost, "/api/v1/auth/login", map[string]any{"email": "a@example.com", "password": "wrong-pass"}, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(t, http.MethodPost, "/api/v1/auth/login", map[string]any{"email": "not-an-email"}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodGet, "/api/v1/auth/profile", nil, bearer(resp.Token))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "a@example.com", decodeInto[model.UserResponse](t, w).Email)

	w = s.do(t, http.MethodGet, "/api/v1/auth/profile", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "authentication required", decodeInto[model.ErrorResponse](t, w).Error)

	w = s.do(t, http.MethodGet, "/api/v1/auth/profile", nil, bearer("forged"))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "authentication failed", decodeInto[model.ErrorResponse](t, w).Error)
}

func TestSessions_RenewListLogout(t *testing.T) {
	s := newTestServer(t)
	first := s.register(t, "a@example.com", "DESKTOP-X", desktopUA)
	second := s.login(t, "a@example.com", "DESKTOP-X", desktopUA)
	assert.Equal(t, first.Session.ID, second.Session.ID)

	tv := s.login(t, "a@example.com", "tv-livingroom", tvUA)

	w := s.do(t, http.MethodGet, "/api/v1/sessions/active", nil, bearer(second.Token))
	require.Equal(t, http.StatusOK, w.Code)
	active := decodeInto[[]model.SessionResponse](t, w)
	require.Len(t, active, 2)
	current := 0
	for _, sess := range active {
		if sess.IsCurrent {
			current++
			assert.Equal(t, second.Session.ID, sess.ID)
		}
	}
	assert.Equal(t, 1, current)

	w = s.do(t, http.MethodGet, "/api/v1/sessions/current", nil, bearer(tv.Token))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, model.DeviceTypeTV, decodeInto[model.SessionResponse](t, w).DeviceType)

	w = s.do(t, http.MethodPost, "/api/v1/sessions/activity", nil, bearer(tv.Token))
	assert.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodPost, fmt.Sprintf("/api/v1/sessions/%s/logout", tv.Session.ID), nil, bearer(second.Token))
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, decodeInto[model.SessionResponse](t, w).IsActive)

	// the TV's token still verifies but its session is gone
	w = s.do(t, http.MethodGet, "/api/v1/sessions/current", nil, bearer(tv.Token))
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(t, http.MethodGet, "/api/v1/sessions", nil, bearer(second.Token))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decodeInto[[]model.SessionResponse](t, w), 2)

	w = s.do(t, http.MethodDelete, "/api/v1/sessions/"+tv.Session.ID.String(), nil, bearer(second.Token))
	assert.Equal(t, http.StatusOK, w.Code)
	w = s.do(t, http.MethodDelete, "/api/v1/sessions/"+tv.Session.ID.String(), nil, bearer(second.Token))
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = s.do(t, http.MethodDelete, "/api/v1/sessions/not-a-uuid", nil, bearer(second.Token))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSessions_CurrentRequiresSessionReference(t *testing.T) {
	s := newTestServer(t)
	account := s.register(t, "a@example.com", "DESKTOP-X", desktopUA)

	// a token without a session claim is bound by fallback only
	bare, err := s.jwt.GenerateToken(account.User.ID, account.User.Email, account.User.Name, "")
	require.NoError(t, err)

	w := s.do(t, http.MethodGet, "/api/v1/sessions/current", nil, bearer(bare))
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(t, http.MethodGet, "/api/v1/sessions/current", nil, map[string]string{
		"Authorization":          "Bearer " + bare,
		middleware.SessionHeader: account.SessionToken,
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, account.Session.ID, decodeInto[model.SessionResponse](t, w).ID)
}

func TestSessions_RegisterDeviceAndDevices(t *testing.T) {
	s := newTestServer(t)
	account := s.register(t, "a@example.com", "DESKTOP-X", desktopUA)

	w := s.do(t, http.MethodPost, "/api/v1/sessions/register-device", map[string]any{
		"device_type": "TV",
		"device_info": map[string]any{"computer_name": "tv-livingroom", "mac_address": "tv-mac", "device_name": "Living Room TV"},
	}, bearer(account.Token))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	tv := decodeInto[model.SessionResponse](t, w)
	assert.Equal(t, model.DeviceTypeTV, tv.DeviceType)
	assert.Equal(t, "Living Room TV", tv.DeviceName)
	assert.NotEqual(t, account.Session.ID, tv.ID)
	assert.False(t, tv.IsCurrent)

	// registering the same device again renews it
	w = s.do(t, http.MethodPost, "/api/v1/sessions/register-device", map[string]any{
		"device_type": "TV",
		"device_info": map[string]any{"computer_name": "tv-livingroom", "mac_address": "tv-mac"},
	}, bearer(account.Token))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, tv.ID, decodeInto[model.SessionResponse](t, w).ID)

	// no body: the request headers describe the device
	w = s.do(t, http.MethodPost, "/api/v1/sessions/register-device", nil, map[string]string{
		"Authorization":   "Bearer " + account.Token,
		"X-Computer-Name": "DESKTOP-X",
		"X-Mac-Address":   "DESKTOP-X-mac",
		"User-Agent":      desktopUA,
	})
	require.Equal(t, http.StatusOK, w.Code)
	own := decodeInto[model.SessionResponse](t, w)
	assert.Equal(t, account.Session.ID, own.ID)

	w = s.do(t, http.MethodPost, fmt.Sprintf("/api/v1/sessions/%s/logout", tv.ID), nil, bearer(account.Token))
	require.Equal(t, http.StatusOK, w.Code)

	login := s.login(t, "a@example.com", "DESKTOP-X", desktopUA)
	w = s.do(t, http.MethodGet, "/api/v1/auth/devices", nil, bearer(login.Token))
	require.Equal(t, http.StatusOK, w.Code)
	devices := decodeInto[[]model.SessionResponse](t, w)
	require.Len(t, devices, 2)
	assert.Equal(t, login.Session.ID, devices[0].ID)
	assert.True(t, devices[0].IsCurrent)
	assert.False(t, devices[1].IsActive)

	w = s.do(t, http.MethodGet, "/api/v1/auth/devices", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestProgress_CrossDevice(t *testing.T) {
	s := newTestServer(t)
	desktop := s.register(t, "a@example.com", "DESKTOP-X", desktopUA)
	tv := s.login(t, "a@example.com", "tv-livingroom", tvUA)

	w := s.do(t, http.MethodPost, "/api/v1/progress", map[string]any{"title_id": filmID, "position_seconds": 300}, bearer(desktop.Token))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = s.do(t, http.MethodGet, fmt.Sprintf("/api/v1/progress/titles/%d", filmID), nil, bearer(tv.Token))
	require.Equal(t, http.StatusOK, w.Code)
	got := decodeInto[model.WatchProgress](t, w)
	assert.Equal(t, 300, got.PositionSeconds)
	assert.Equal(t, model.DeviceTypeComputer, got.LastWatchedDeviceType)

	w = s.do(t, http.MethodPost, "/api/v1/progress", map[string]any{"title_id": filmID, "position_seconds": 960}, bearer(tv.Token))
	require.Equal(t, http.StatusOK, w.Code)
	got = decodeInto[model.WatchProgress](t, w)
	assert.True(t, got.Completed)
	assert.Equal(t, model.DeviceTypeTV, got.LastWatchedDeviceType)

	w = s.do(t, http.MethodGet, "/api/v1/progress/sync", nil, bearer(desktop.Token))
	require.Equal(t, http.StatusOK, w.Code)
	items := decodeInto[[]model.SyncItem](t, w)
	require.Len(t, items, 1)
	assert.Equal(t, "Film", items[0].TitleName)
	assert.Equal(t, model.DeviceTypeTV, items[0].DeviceType)

	w = s.do(t, http.MethodDelete, fmt.Sprintf("/api/v1/progress/titles/%d", filmID), nil, bearer(desktop.Token))
	assert.Equal(t, http.StatusOK, w.Code)
	w = s.do(t, http.MethodGet, fmt.Sprintf("/api/v1/progress/titles/%d", filmID), nil, bearer(desktop.Token))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestProgress_Rejections(t *testing.T) {
	s := newTestServer(t)
	desktop := s.register(t, "a@example.com", "DESKTOP-X", desktopUA)

	w := s.do(t, http.MethodPost, "/api/v1/progress", map[string]any{"title_id": 999, "position_seconds": 1}, bearer(desktop.Token))
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(t, http.MethodPost, "/api/v1/progress", map[string]any{"title_id": filmID, "position_seconds": -5}, bearer(desktop.Token))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPost, "/api/v1/progress", map[string]any{"position_seconds": 5}, bearer(desktop.Token))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodGet, "/api/v1/progress/titles/abc", nil, bearer(desktop.Token))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCertificates_EnrollAuthenticateRevoke(t *testing.T) {
	s := newTestServer(t)
	account := s.register(t, "a@example.com", "DESKTOP-X", desktopUA)

	w := s.do(t, http.MethodPost, "/api/v1/certificates/enroll", map[string]any{
		"email": "a@example.com", "password": "s3cret-pass", "device_name": "Bedroom TV", "device_type": "TV",
		"computer_name": "tv-bedroom",
	}, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	enrolled := decodeInto[model.EnrollResponse](t, w)
	certHeader := map[string]string{"X-Client-Cert": url.PathEscape(enrolled.Certificate)}

	w = s.do(t, http.MethodPost, "/api/v1/certificates/authenticate", nil, certHeader)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	authResp := decodeInto[model.CertificateAuthResponse](t, w)
	assert.Equal(t, enrolled.DeviceID, authResp.DeviceID)
	assert.Equal(t, "Bedroom TV", authResp.DeviceName)
	assert.Equal(t, string(model.DeviceTypeTV), authResp.DeviceType)
	assert.Equal(t, "tv-bedroom", authResp.ComputerName)

	w = s.do(t, http.MethodGet, "/api/v1/sessions/current", nil, bearer(authResp.Token))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, enrolled.DeviceID, decodeInto[model.SessionResponse](t, w).DeviceID)

	w = s.do(t, http.MethodGet, "/api/v1/certificates/devices", nil, bearer(account.Token))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decodeInto[[]model.DeviceCertificateResponse](t, w), 1)

	w = s.do(t, http.MethodPost, "/api/v1/certificates/"+enrolled.DeviceID+"/revoke", nil, bearer(account.Token))
	require.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodGet, "/api/v1/sessions/current", nil, certHeader)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "authentication failed", decodeInto[model.ErrorResponse](t, w).Error)

	w = s.do(t, http.MethodPost, "/api/v1/certificates/UNKNOWN/revoke", nil, bearer(account.Token))
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(t, http.MethodPost, "/api/v1/certificates/enroll", map[string]any{
		"email": "a@example.com", "password": "nope", "device_name": "x",
	}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// a bearer identity cannot be exchanged
	w = s.do(t, http.MethodPost, "/api/v1/certificates/authenticate", nil, bearer(account.Token))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
