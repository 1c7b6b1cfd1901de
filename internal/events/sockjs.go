package events

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/igm/sockjs-go/sockjs"

	"github.com/retailops/backoffice/internal/shared"
)

// Close codes sent to clients whose connection is refused.
const (
	CloseUnauthenticated = 4001
	CloseSessionLookup   = 4002
)

var pongFrame = []byte(`{"type":"pong"}`)

// SessionLoader resolves the session attached to a connection request.
type SessionLoader interface {
	SessionID(r *http.Request) string
	Load(ctx context.Context, id string) (*shared.Snapshot, error)
}

// NewSockJSHandler exposes the bus at prefix over SockJS, including the raw
// websocket endpoint at prefix+"/websocket". Only authenticated sessions may
// connect; client frames other than ping are ignored. A connection is closed
// with CloseUnauthenticated when its session expires, and on the first ping
// after the session was logged out.
func NewSockJSHandler(prefix string, bus *Bus, sessions SessionLoader, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return sockjs.NewHandler(prefix, sockjs.DefaultOptions, func(session sockjs.Session) {
		req := session.Request()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		snap, err := sessions.Load(ctx, sessions.SessionID(req))
		cancel()
		if err != nil {
			logger.Error("events session lookup", slog.Any("error", err))
			_ = session.Close(CloseSessionLookup, "session lookup failed")
			return
		}
		if snap == nil {
			_ = session.Close(CloseUnauthenticated, "unauthenticated")
			return
		}

		connID := uuid.NewString()
		unregister := bus.Register(connID, func(payload []byte) error {
			return session.Send(string(payload))
		})
		defer unregister()
		if !snap.ExpiresAt.IsZero() {
			expiry := time.AfterFunc(time.Until(snap.ExpiresAt), func() {
				logger.Info("events session expired", slog.String("conn_id", connID))
				_ = session.Close(CloseUnauthenticated, "session expired")
			})
			defer expiry.Stop()
		}
		logger.Info("events client connected", slog.String("conn_id", connID), slog.Int64("employee_id", snap.EmployeeID))

		for {
			msg, err := session.Recv()
			if err != nil {
				logger.Info("events client disconnected", slog.String("conn_id", connID))
				return
			}
			if !isPing(msg) {
				continue
			}
			if !sessionAlive(sessions, snap.SessionID, logger) {
				_ = session.Close(CloseUnauthenticated, "unauthenticated")
				return
			}
			bus.SendTo(connID, pongFrame)
		}
	})
}

// sessionAlive reports whether id still names a live session. Lookup failures
// keep the connection; the expiry timer still bounds it.
func sessionAlive(sessions SessionLoader, id string, logger *slog.Logger) bool {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	snap, err := sessions.Load(ctx, id)
	if err != nil {
		logger.Warn("events session recheck", slog.Any("error", err))
		return true
	}
	return snap != nil
}

func isPing(msg string) bool {
	event, err := Decode([]byte(strings.TrimSpace(msg)))
	return err == nil && event.Type == "ping"
}
