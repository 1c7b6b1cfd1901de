package app

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/unrolled/secure"

	"github.com/retailops/backoffice/internal/observability"
	"github.com/retailops/backoffice/internal/platform/httpx"
	"github.com/retailops/backoffice/internal/shared"
)

// MiddlewareConfig aggregates dependencies shared by the middleware stack.
type MiddlewareConfig struct {
	Logger   *slog.Logger
	Config   *Config
	Sessions *shared.SessionStore
	CSRF     *shared.CSRFManager
	Metrics  *observability.Metrics
}

// Paths that establish or end a session are reachable without a CSRF token.
var csrfExempt = map[string]struct{}{
	"/auth/login":     {},
	"/auth/logout":    {},
	"/auth/bootstrap": {},
}

// BaseStack is applied to every route, including the long-lived event stream.
func BaseStack(cfg MiddlewareConfig) []func(http.Handler) http.Handler {
	secureMiddleware := secure.New(secure.Options{
		FrameDeny:             true,
		ContentTypeNosniff:    true,
		BrowserXssFilter:      true,
		ReferrerPolicy:        "strict-origin-when-cross-origin",
		ContentSecurityPolicy: "default-src 'self'",
		SSLRedirect:           cfg.Config != nil && cfg.Config.IsProduction(),
		SSLProxyHeaders:       map[string]string{"X-Forwarded-Proto": "https"},
	})

	middlewares := []func(http.Handler) http.Handler{
		middleware.RealIP,
		middleware.RequestID,
		middleware.Recoverer,
		func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if err := secureMiddleware.Process(w, r); err != nil {
					cfg.Logger.Warn("secure headers blocked request", slog.Any("error", err))
					return
				}
				next.ServeHTTP(w, r)
			})
		},
	}
	if cfg.Metrics != nil {
		middlewares = append(middlewares, cfg.Metrics.Middleware)
	}
	return middlewares
}

// APIStack is applied to the JSON API: it attaches the session snapshot,
// enforces request timeouts, rate limits and CSRF.
func APIStack(cfg MiddlewareConfig) []func(http.Handler) http.Handler {
	timeout := 30 * time.Second
	limit := 120
	if cfg.Config != nil {
		if cfg.Config.AppRequestTimeout > 0 {
			timeout = cfg.Config.AppRequestTimeout
		}
		if cfg.Config.RateLimitPerMinute > 0 {
			limit = cfg.Config.RateLimitPerMinute
		}
	}
	return []func(http.Handler) http.Handler{
		SessionMiddleware(cfg.Sessions, cfg.Logger),
		middleware.Timeout(timeout),
		middleware.Compress(5),
		httprate.Limit(limit, time.Minute, httprate.WithKeyFuncs(httprate.KeyByIP)),
		CSRFMiddleware(cfg.Sessions, cfg.CSRF, cfg.Logger),
	}
}

// SessionMiddleware attaches the snapshot of the request's session, if any, to
// the context. A missing or expired session is not an error here; guards
// decide what an anonymous request may do.
func SessionMiddleware(sessions *shared.SessionStore, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			snap, err := sessions.Load(r.Context(), sessions.SessionID(r))
			if err != nil {
				httpx.RespondError(w, logger, err)
				return
			}
			if snap == nil {
				next.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r.WithContext(shared.ContextWithSession(r.Context(), snap)))
		})
	}
}

// CSRFMiddleware requires the session's token on mutating requests that were
// authenticated by cookie. Bearer-authenticated clients are not exposed to
// cross-site request forgery.
func CSRFMiddleware(sessions *shared.SessionStore, csrf *shared.CSRFManager, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet, http.MethodHead, http.MethodOptions:
				next.ServeHTTP(w, r)
				return
			}
			if _, ok := csrfExempt[r.URL.Path]; ok {
				next.ServeHTTP(w, r)
				return
			}
			snap := shared.SessionFromContext(r.Context())
			if snap == nil || !sessions.FromCookie(r) {
				next.ServeHTTP(w, r)
				return
			}
			if err := csrf.Verify(snap, r.Header.Get(shared.CSRFHeader)); err != nil {
				logger.Warn("csrf validation failed", slog.String("path", r.URL.Path), slog.Int64("employee_id", snap.EmployeeID))
				httpx.RespondError(w, logger, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
