package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kwiatekh/docpanel-be/internal/auth"
	"github.com/kwiatekh/docpanel-be/internal/database"
	"github.com/kwiatekh/docpanel-be/internal/services"
	"github.com/kwiatekh/docpanel-be/internal/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	server *httptest.Server
	keys   *services.AccessKeyService
}

func newTestEnv(t *testing.T) *testEnv {
	return newTestEnvWithLimiter(t, auth.NewLoginLimiter(100, 100))
}

func newTestEnvWithLimiter(t *testing.T, limiter *auth.LoginLimiter) *testEnv {
	t.Helper()

	db, err := database.New(":memory:")
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	t.Cleanup(func() { db.Close() })

	hub := websocket.NewHub()
	go hub.Run()

	keys := services.NewAccessKeyService(db)
	notifications := services.NewNotificationService(db, hub)
	announcements := services.NewAnnouncementService(db, hub)
	files := services.NewFileService(db)
	audit := services.NewAuditService(db)
	users := services.NewUserService(db, keys, notifications, nil, 4)

	sessions := auth.NewService("test-secret", "root", "hunter22")

	router := NewRouter(Deps{
		Sessions:      sessions,
		LoginLimiter:  limiter,
		Hub:           hub,
		Keys:          keys,
		Users:         users,
		Notifications: notifications,
		Announcements: announcements,
		Files:         files,
		Audit:         audit,
	})

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)
	return &testEnv{server: server, keys: keys}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body interface{}) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, e.server.URL+path, &buf)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, out interface{}) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
}

func (e *testEnv) adminToken(t *testing.T) string {
	t.Helper()
	resp := e.do(t, http.MethodPost, "/api/v1/admin/login", "", map[string]string{
		"username": "root", "password": "hunter22",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var body map[string]string
	decodeBody(t, resp, &body)
	return body["token"]
}

func (e *testEnv) registerUser(t *testing.T, username, password string) string {
	t.Helper()
	key, err := e.keys.Generate("test", 1)
	require.NoError(t, err)

	resp := e.do(t, http.MethodPost, "/api/v1/register", "", map[string]interface{}{
		"username": username, "password": password, "accessKey": key.Key,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	resp = e.do(t, http.MethodPost, "/api/v1/login", "", map[string]string{
		"username": username, "password": password,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var body struct {
		Token string `json:"token"`
	}
	decodeBody(t, resp, &body)
	return body.Token
}

func TestRegisterLoginAndMe(t *testing.T) {
	env := newTestEnv(t)
	token := env.registerUser(t, "alice", "password1")

	resp := env.do(t, http.MethodGet, "/api/v1/me", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var me struct {
		Username string `json:"username"`
	}
	decodeBody(t, resp, &me)
	assert.Equal(t, "alice", me.Username)
}

func TestRegisterWithBadKeyRejected(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodPost, "/api/v1/register", "", map[string]string{
		"username": "alice", "password": "password1", "accessKey": "bogus",
	})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestLoginFailureIsUniformOverHTTP(t *testing.T) {
	env := newTestEnv(t)
	env.registerUser(t, "alice", "password1")

	wrongPass := env.do(t, http.MethodPost, "/api/v1/login", "", map[string]string{
		"username": "alice", "password": "wrong",
	})
	noUser := env.do(t, http.MethodPost, "/api/v1/login", "", map[string]string{
		"username": "ghost", "password": "wrong",
	})
	defer wrongPass.Body.Close()
	defer noUser.Body.Close()

	assert.Equal(t, http.StatusUnauthorized, wrongPass.StatusCode)
	assert.Equal(t, http.StatusUnauthorized, noUser.StatusCode)
}

func TestAdminDomainSeparation(t *testing.T) {
	env := newTestEnv(t)
	userToken := env.registerUser(t, "alice", "password1")
	adminToken := env.adminToken(t)

	// A user token cannot reach admin routes.
	resp := env.do(t, http.MethodGet, "/api/v1/admin/stats", userToken, nil)
	resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	// An admin token cannot reach user routes.
	resp = env.do(t, http.MethodGet, "/api/v1/me", adminToken, nil)
	resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	// Each works in its own domain.
	resp = env.do(t, http.MethodGet, "/api/v1/admin/stats", adminToken, nil)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAdminLoginRejectsBadCredentials(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodPost, "/api/v1/admin/login", "", map[string]string{
		"username": "root", "password": "wrong",
	})
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestAdminKeyLifecycleOverHTTP(t *testing.T) {
	env := newTestEnv(t)
	adminToken := env.adminToken(t)

	resp := env.do(t, http.MethodPost, "/api/v1/admin/keys", adminToken, map[string]interface{}{
		"description": "batch for onboarding", "validityDays": 7,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var key struct {
		Key string `json:"key"`
	}
	decodeBody(t, resp, &key)
	require.NotEmpty(t, key.Key)

	// The key admits exactly one registration.
	resp = env.do(t, http.MethodPost, "/api/v1/register", "", map[string]string{
		"username": "alice", "password": "password1", "accessKey": key.Key,
	})
	resp.Body.Close()
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = env.do(t, http.MethodPost, "/api/v1/register", "", map[string]string{
		"username": "bob", "password": "password2", "accessKey": key.Key,
	})
	resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = env.do(t, http.MethodGet, "/api/v1/admin/keys", adminToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var keys []map[string]interface{}
	decodeBody(t, resp, &keys)
	assert.Len(t, keys, 1)
}

func TestNotificationsOverHTTP(t *testing.T) {
	env := newTestEnv(t)
	token := env.registerUser(t, "alice", "password1")

	resp := env.do(t, http.MethodGet, "/api/v1/notifications/", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var body struct {
		Notifications []struct {
			ID string `json:"id"`
		} `json:"notifications"`
		UnreadCount int `json:"unreadCount"`
	}
	decodeBody(t, resp, &body)
	require.Len(t, body.Notifications, 1) // the welcome notification
	assert.Equal(t, 1, body.UnreadCount)

	resp = env.do(t, http.MethodPost,
		fmt.Sprintf("/api/v1/notifications/%s/read", body.Notifications[0].ID), token, nil)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestLoginRateLimitOverHTTP(t *testing.T) {
	env := newTestEnvWithLimiter(t, auth.NewLoginLimiter(2, 1))

	for i := 0; i < 2; i++ {
		resp := env.do(t, http.MethodPost, "/api/v1/login", "", map[string]string{
			"username": "ghost", "password": "wrong",
		})
		resp.Body.Close()
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	}
	resp := env.do(t, http.MethodPost, "/api/v1/login", "", map[string]string{
		"username": "ghost", "password": "wrong",
	})
	resp.Body.Close()
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
}
