package auth_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/retailops/backoffice/internal/auth"
	"github.com/retailops/backoffice/internal/platform/httpx"
)

func newAuthRouter(t *testing.T, e env, loginPerMinute int) http.Handler {
	t.Helper()
	r := chi.NewRouter()
	r.Route("/auth", auth.NewHandler(nil, e.auth, e.sessions, loginPerMinute).MountRoutes)
	return r
}

func postJSON(t *testing.T, h http.Handler, path, body string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestLoginHandlerSetsCookie(t *testing.T) {
	e := newEnv(t)
	e.createEmployee(t, "ana", "ana-password", nil)
	h := newAuthRouter(t, e, 0)

	rr := postJSON(t, h, "/auth/login", `{"username":"ana","password":"ana-password"}`)
	require.Equal(t, http.StatusOK, rr.Code)

	var body struct {
		Authenticated bool   `json:"authenticated"`
		CSRFToken     string `json:"csrf_token"`
		Employee      struct {
			Username string  `json:"username"`
			Role     *string `json:"role"`
		} `json:"employee"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.True(t, body.Authenticated)
	assert.Equal(t, "ana", body.Employee.Username)
	assert.Nil(t, body.Employee.Role)
	assert.NotEmpty(t, body.CSRFToken)
	assert.NotContains(t, rr.Body.String(), "ana-password")
	assert.NotContains(t, rr.Body.String(), "$2a$")

	cookies := rr.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, e.sessions.CookieName(), cookies[0].Name)
	assert.True(t, e.redis.Exists("session:"+cookies[0].Value))
}

func TestLoginHandlerUniformFailure(t *testing.T) {
	e := newEnv(t)
	e.createEmployee(t, "ana", "ana-password", nil)
	h := newAuthRouter(t, e, 0)

	wrongPassword := postJSON(t, h, "/auth/login", `{"username":"ana","password":"nope-nope"}`)
	unknownUser := postJSON(t, h, "/auth/login", `{"username":"ghost","password":"nope-nope"}`)

	require.Equal(t, http.StatusUnauthorized, wrongPassword.Code)
	assert.Equal(t, wrongPassword.Code, unknownUser.Code)
	assert.Equal(t, wrongPassword.Body.String(), unknownUser.Body.String())
	assert.Contains(t, wrongPassword.Body.String(), httpx.MsgInvalidCredentials)
	assert.Empty(t, wrongPassword.Result().Cookies())
}

func TestLoginHandlerValidation(t *testing.T) {
	e := newEnv(t)
	h := newAuthRouter(t, e, 0)

	assert.Equal(t, http.StatusBadRequest, postJSON(t, h, "/auth/login", `{"username":""}`).Code)
	assert.Equal(t, http.StatusBadRequest, postJSON(t, h, "/auth/login", `not json`).Code)
	assert.Equal(t, http.StatusBadRequest, postJSON(t, h, "/auth/login", `{"username":"a","password":"b","extra":1}`).Code)
}

func TestLoginHandlerRateLimited(t *testing.T) {
	e := newEnv(t)
	h := newAuthRouter(t, e, 2)

	for i := 0; i < 2; i++ {
		assert.Equal(t, http.StatusUnauthorized, postJSON(t, h, "/auth/login", `{"username":"x","password":"y"}`).Code)
	}
	assert.Equal(t, http.StatusTooManyRequests, postJSON(t, h, "/auth/login", `{"username":"x","password":"y"}`).Code)
}

func TestLogoutHandlerAlwaysSucceeds(t *testing.T) {
	e := newEnv(t)
	e.createEmployee(t, "ana", "ana-password", nil)
	h := newAuthRouter(t, e, 0)

	login := postJSON(t, h, "/auth/login", `{"username":"ana","password":"ana-password"}`)
	require.Equal(t, http.StatusOK, login.Code)
	cookie := login.Result().Cookies()[0]

	for i := 0; i < 2; i++ {
		rr := postJSON(t, h, "/auth/logout", "", cookie)
		assert.Equal(t, http.StatusOK, rr.Code)
		assert.JSONEq(t, `{"ok":true}`, rr.Body.String())
	}
	assert.False(t, e.redis.Exists("session:"+cookie.Value))

	anonymous := postJSON(t, h, "/auth/logout", "")
	assert.Equal(t, http.StatusOK, anonymous.Code)
}

func TestLoginReplacesPreviousSession(t *testing.T) {
	e := newEnv(t)
	e.createEmployee(t, "ana", "ana-password", nil)
	h := newAuthRouter(t, e, 0)

	first := postJSON(t, h, "/auth/login", `{"username":"ana","password":"ana-password"}`)
	old := first.Result().Cookies()[0]

	second := postJSON(t, h, "/auth/login", `{"username":"ana","password":"ana-password"}`, old)
	require.Equal(t, http.StatusOK, second.Code)
	assert.False(t, e.redis.Exists("session:"+old.Value))
	assert.True(t, e.redis.Exists("session:"+second.Result().Cookies()[0].Value))
}

func TestBootstrapHandler(t *testing.T) {
	e := newEnv(t)
	h := newAuthRouter(t, e, 0)

	first := postJSON(t, h, "/auth/bootstrap", "")
	require.Equal(t, http.StatusCreated, first.Code)
	assert.JSONEq(t, `{"username":"admin","password":"bootstrap-pass"}`, first.Body.String())

	second := postJSON(t, h, "/auth/bootstrap", "")
	assert.Equal(t, http.StatusConflict, second.Code)
}

func TestSessionHandlerAnonymous(t *testing.T) {
	e := newEnv(t)
	h := newAuthRouter(t, e, 0)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/auth/session", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"authenticated":false}`, rr.Body.String())
}
