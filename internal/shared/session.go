package shared

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Snapshot is the login-time record of an employee's identity and effective
// permissions. It is captured once at login and is not live: role or permission
// changes made afterwards only take effect on the next login.
type Snapshot struct {
	SessionID          string    `json:"session_id"`
	EmployeeID         int64     `json:"employee_id"`
	Username           string    `json:"username"`
	FirstName          string    `json:"first_name"`
	LastName           string    `json:"last_name"`
	RoleID             *int64    `json:"role_id,omitempty"`
	RoleName           *string   `json:"role_name,omitempty"`
	Access             Access    `json:"access"`
	MustChangePassword bool      `json:"must_change_password"`
	CSRFToken          string    `json:"csrf_token"`
	IssuedAt           time.Time `json:"issued_at"`
	ExpiresAt          time.Time `json:"expires_at"`
}

// EmployeeProjection is the public view of a session returned to clients.
type EmployeeProjection struct {
	ID                 int64   `json:"id"`
	Username           string  `json:"username"`
	FirstName          string  `json:"first_name"`
	LastName           string  `json:"last_name"`
	Role               *string `json:"role"`
	MustChangePassword bool    `json:"must_change_password"`
}

// Projection returns the public view of the snapshot.
func (s *Snapshot) Projection() EmployeeProjection {
	return EmployeeProjection{
		ID:                 s.EmployeeID,
		Username:           s.Username,
		FirstName:          s.FirstName,
		LastName:           s.LastName,
		Role:               s.RoleName,
		MustChangePassword: s.MustChangePassword,
	}
}

// Expired reports whether the snapshot is past its absolute lifetime.
func (s *Snapshot) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

// SessionStore persists snapshots in Redis keyed by an opaque session id and
// manages the session cookie.
type SessionStore struct {
	client     *redis.Client
	cookieName string
	ttl        time.Duration
	secure     bool
	now        func() time.Time
}

// NewSessionStore constructs a SessionStore.
func NewSessionStore(client *redis.Client, cookieName string, ttl time.Duration, secure bool) *SessionStore {
	return &SessionStore{
		client:     client,
		cookieName: cookieName,
		ttl:        ttl,
		secure:     secure,
		now:        time.Now,
	}
}

// WithClock overrides the time source. Intended for tests.
func (s *SessionStore) WithClock(now func() time.Time) *SessionStore {
	s.now = now
	return s
}

// NewSessionID returns a fresh opaque session identifier.
func NewSessionID() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("session: generate id: %w", err)
	}
	return id.String(), nil
}

// Save stamps the lifetime and persists the snapshot. A snapshot without a
// session id gets a fresh one.
func (s *SessionStore) Save(ctx context.Context, snap *Snapshot) error {
	if snap == nil {
		return errors.New("session: snapshot required")
	}
	if snap.SessionID == "" {
		id, err := NewSessionID()
		if err != nil {
			return err
		}
		snap.SessionID = id
	}
	issued := s.now().UTC()
	snap.IssuedAt = issued
	snap.ExpiresAt = issued.Add(s.ttl)
	data, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, s.redisKey(snap.SessionID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("session: save: %w", err)
	}
	return nil
}

// Load returns the snapshot for id, or nil when it does not exist or has
// expired. Expired records are removed on a best-effort basis.
func (s *SessionStore) Load(ctx context.Context, id string) (*Snapshot, error) {
	if strings.TrimSpace(id) == "" {
		return nil, nil
	}
	payload, err := s.client.Get(ctx, s.redisKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("session: load: %w", err)
	}
	var snap Snapshot
	if err := json.Unmarshal(payload, &snap); err != nil {
		return nil, fmt.Errorf("session: decode: %w", err)
	}
	if snap.Expired(s.now()) {
		_ = s.client.Del(ctx, s.redisKey(id)).Err()
		return nil, nil
	}
	return &snap, nil
}

// Delete removes the session. Deleting an unknown id is not an error.
func (s *SessionStore) Delete(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return nil
	}
	if err := s.client.Del(ctx, s.redisKey(id)).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("session: delete: %w", err)
	}
	return nil
}

// SessionID extracts the session id from the cookie, a bearer token or the
// session_id query parameter, in that order.
func (s *SessionStore) SessionID(r *http.Request) string {
	if r == nil {
		return ""
	}
	if cookie, err := r.Cookie(s.cookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	if token := bearerToken(r.Header.Get("Authorization")); token != "" {
		return token
	}
	return strings.TrimSpace(r.URL.Query().Get("session_id"))
}

// FromCookie reports whether the request carries the session cookie. Only
// cookie-authenticated requests need CSRF protection.
func (s *SessionStore) FromCookie(r *http.Request) bool {
	cookie, err := r.Cookie(s.cookieName)
	return err == nil && cookie.Value != ""
}

// SetCookie writes the session cookie for snap.
func (s *SessionStore) SetCookie(w http.ResponseWriter, snap *Snapshot) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.cookieName,
		Value:    snap.SessionID,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteStrictMode,
		Expires:  snap.ExpiresAt,
	})
}

// ClearCookie expires the session cookie.
func (s *SessionStore) ClearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.cookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteStrictMode,
	})
}

// TTL exposes the configured session lifetime.
func (s *SessionStore) TTL() time.Duration {
	return s.ttl
}

// CookieName returns the cookie identifier used for sessions.
func (s *SessionStore) CookieName() string {
	return s.cookieName
}

func (s *SessionStore) redisKey(id string) string {
	return "session:" + id
}

func bearerToken(header string) string {
	parts := strings.Fields(header)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}
	return parts[1]
}
