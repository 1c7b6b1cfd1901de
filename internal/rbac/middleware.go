package rbac

import (
	"log/slog"
	"net/http"

	"github.com/retailops/backoffice/internal/platform/httpx"
	"github.com/retailops/backoffice/internal/shared"
)

// Middleware wires authorization helpers for HTTP handlers. It reads the
// snapshot the session middleware attached to the request context.
type Middleware struct {
	Logger *slog.Logger
}

// Require ensures the current session holds capability on module.
func (m Middleware) Require(module shared.ModuleCode, capability shared.Capability) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			snap := shared.SessionFromContext(r.Context())
			if err := Authorize(snap, module, capability); err != nil {
				if m.Logger != nil && snap != nil {
					m.Logger.Debug("rbac denied",
						slog.Int64("employee_id", snap.EmployeeID),
						slog.String("module", string(module)),
						slog.String("capability", string(capability)))
				}
				httpx.RespondError(w, m.Logger, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAuthenticated ensures a session exists.
func (m Middleware) RequireAuthenticated() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := RequireAuthenticated(shared.SessionFromContext(r.Context())); err != nil {
				httpx.RespondError(w, m.Logger, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
