package app

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *Config {
	return &Config{
		AppEnv:                 "test",
		AppRequestTimeout:      5 * time.Second,
		StoreDriver:            StoreDriverMemory,
		SessionCookie:          "test_session",
		SessionTTL:             time.Hour,
		CSRFSecret:             "test-csrf",
		BootstrapAdminPassword: "bootstrap-pass",
		BcryptCost:             4,
		EventsChannel:          "test:events",
		EventsClientBuffer:     8,
		RateLimitPerMinute:     1000,
	}
}

func newTestContainer(t *testing.T) *Container {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	c, err := NewContainer(ContainerDeps{
		Config: testConfig(),
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		Redis:  client,
	})
	require.NoError(t, err)
	t.Cleanup(c.Bus.Close)
	return c
}

// apiClient remembers the session cookie and CSRF token of one browser.
type apiClient struct {
	t       *testing.T
	handler http.Handler
	cookie  *http.Cookie
	csrf    string
}

func (c *apiClient) do(method, path, body string) *httptest.ResponseRecorder {
	c.t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if c.cookie != nil {
		req.AddCookie(c.cookie)
	}
	if c.csrf != "" {
		req.Header.Set("X-CSRF-Token", c.csrf)
	}
	rr := httptest.NewRecorder()
	c.handler.ServeHTTP(rr, req)
	return rr
}

func (c *apiClient) login(username, password string) {
	c.t.Helper()
	rr := c.do(http.MethodPost, "/auth/login", `{"username":"`+username+`","password":"`+password+`"}`)
	require.Equal(c.t, http.StatusOK, rr.Code, rr.Body.String())
	var body struct {
		CSRFToken string `json:"csrf_token"`
	}
	require.NoError(c.t, json.Unmarshal(rr.Body.Bytes(), &body))
	c.csrf = body.CSRFToken
	c.cookie = rr.Result().Cookies()[0]
}

func decodeID(t *testing.T, rr *httptest.ResponseRecorder) int64 {
	t.Helper()
	var body struct {
		ID int64 `json:"id"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.NotZero(t, body.ID)
	return body.ID
}

func TestBackOfficeFlow(t *testing.T) {
	c := newTestContainer(t)
	admin := &apiClient{t: t, handler: c.Handler}

	rr := admin.do(http.MethodGet, "/auth/session", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"authenticated":false}`, rr.Body.String())

	rr = admin.do(http.MethodPost, "/auth/bootstrap", "")
	require.Equal(t, http.StatusCreated, rr.Code)
	assert.Equal(t, http.StatusConflict, admin.do(http.MethodPost, "/auth/bootstrap", "").Code)

	admin.login("admin", "bootstrap-pass")
	rr = admin.do(http.MethodGet, "/auth/session", "")
	assert.Contains(t, rr.Body.String(), `"must_change_password":true`)

	// Cookie-authenticated writes need the CSRF token.
	token := admin.csrf
	admin.csrf = ""
	assert.Equal(t, http.StatusForbidden, admin.do(http.MethodPost, "/roles/", `{"name":"sales"}`).Code)
	admin.csrf = token

	rr = admin.do(http.MethodPost, "/roles/", `{"name":"sales"}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	roleID := decodeID(t, rr)
	rolePath := "/roles/" + strconv.FormatInt(roleID, 10)

	rr = admin.do(http.MethodPut, rolePath+"/permissions/products", `{"can_view":true}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, http.StatusBadRequest, admin.do(http.MethodPut, rolePath+"/permissions/payroll", `{"can_view":true}`).Code)

	rr = admin.do(http.MethodPost, "/employees/", `{"username":"ana","password":"ana-password","first_name":"Ana","role_id":`+strconv.FormatInt(roleID, 10)+`}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	assert.NotContains(t, rr.Body.String(), "password_hash")
	anaID := decodeID(t, rr)

	rr = admin.do(http.MethodGet, "/employees/?per_page=1", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"total":2`)

	ana := &apiClient{t: t, handler: c.Handler}
	ana.login("ana", "ana-password")
	assert.Equal(t, http.StatusForbidden, ana.do(http.MethodGet, "/employees/", "").Code)
	assert.Equal(t, http.StatusForbidden, ana.do(http.MethodPost, "/roles/", `{"name":"x"}`).Code)

	rr = ana.do(http.MethodGet, "/modules/", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var modules struct {
		Modules []struct {
			Code      string `json:"code"`
			CanView   bool   `json:"can_view"`
			CanCreate bool   `json:"can_create"`
		} `json:"modules"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &modules))
	for _, m := range modules.Modules {
		assert.Equal(t, m.Code == "products", m.CanView, m.Code)
		assert.False(t, m.CanCreate, m.Code)
	}

	rr = ana.do(http.MethodPost, "/auth/password", `{"current_password":"ana-password","new_password":"ana-password-2"}`)
	assert.Equal(t, http.StatusNoContent, rr.Code, rr.Body.String())

	rr = admin.do(http.MethodPost, "/employees/"+strconv.FormatInt(anaID, 10)+"/deactivate", "")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Contains(t, rr.Body.String(), `"is_active":false`)

	fresh := &apiClient{t: t, handler: c.Handler}
	rr = fresh.do(http.MethodPost, "/auth/login", `{"username":"ana","password":"ana-password-2"}`)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	assert.Equal(t, http.StatusOK, admin.do(http.MethodPost, "/auth/logout", "").Code)
	assert.Equal(t, http.StatusUnauthorized, admin.do(http.MethodGet, "/roles/", "").Code)
}

func TestBearerSessionSkipsCSRF(t *testing.T) {
	c := newTestContainer(t)
	admin := &apiClient{t: t, handler: c.Handler}
	require.Equal(t, http.StatusCreated, admin.do(http.MethodPost, "/auth/bootstrap", "").Code)
	admin.login("admin", "bootstrap-pass")

	req := httptest.NewRequest(http.MethodPost, "/roles/", strings.NewReader(`{"name":"api"}`))
	req.Header.Set("Authorization", "Bearer "+admin.cookie.Value)
	rr := httptest.NewRecorder()
	c.Handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
}

func TestOperationalEndpoints(t *testing.T) {
	c := newTestContainer(t)
	client := &apiClient{t: t, handler: c.Handler}

	rr := client.do(http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))

	rr = client.do(http.MethodGet, "/jobs/health", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"queue":"default"`)

	rr = client.do(http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "backoffice_http_requests_total")
	assert.Contains(t, rr.Body.String(), "backoffice_events_connected_clients")
}

func TestNewContainerRequiresDeps(t *testing.T) {
	_, err := NewContainer(ContainerDeps{})
	assert.Error(t, err)

	cfg := testConfig()
	cfg.StoreDriver = StoreDriverPostgres
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	_, err = NewContainer(ContainerDeps{Config: cfg, Redis: client})
	assert.Error(t, err)
}
