package auth

import (
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/go-playground/validator/v10"

	"github.com/retailops/backoffice/internal/platform/httpx"
	"github.com/retailops/backoffice/internal/shared"
)

// Handler wires HTTP endpoints for authentication flows.
type Handler struct {
	logger      *slog.Logger
	service     *Service
	sessions    *shared.SessionStore
	validator   *validator.Validate
	loginPerMin int
}

// NewHandler constructs a Handler instance. loginPerMinute bounds login
// attempts per client IP; zero disables the limit.
func NewHandler(logger *slog.Logger, service *Service, sessions *shared.SessionStore, loginPerMinute int) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:      logger,
		service:     service,
		sessions:    sessions,
		validator:   validator.New(),
		loginPerMin: loginPerMinute,
	}
}

// MountRoutes registers auth routes on provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/session", h.handleSession)
	if h.loginPerMin > 0 {
		r.With(httprate.LimitByIP(h.loginPerMin, time.Minute)).Post("/login", h.handleLogin)
	} else {
		r.Post("/login", h.handleLogin)
	}
	r.Post("/logout", h.handleLogout)
	r.Post("/bootstrap", h.handleBootstrap)
}

type sessionResponse struct {
	Authenticated bool                       `json:"authenticated"`
	Employee      *shared.EmployeeProjection `json:"employee,omitempty"`
	CSRFToken     string                     `json:"csrf_token,omitempty"`
}

func (h *Handler) handleSession(w http.ResponseWriter, r *http.Request) {
	snap := shared.SessionFromContext(r.Context())
	if snap == nil {
		httpx.JSON(w, http.StatusOK, sessionResponse{Authenticated: false})
		return
	}
	projection := snap.Projection()
	httpx.JSON(w, http.StatusOK, sessionResponse{Authenticated: true, Employee: &projection, CSRFToken: snap.CSRFToken})
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !httpx.Bind(w, r, h.validator, &req) {
		return
	}
	snap, err := h.service.Login(r.Context(), req.Username, req.Password, clientMeta(r))
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	// Any session the client held before is replaced.
	if previous := h.sessions.SessionID(r); previous != "" && previous != snap.SessionID {
		if err := h.service.Logout(r.Context(), previous); err != nil {
			h.logger.Warn("drop previous session", slog.Any("error", err))
		}
	}
	h.sessions.SetCookie(w, snap)
	projection := snap.Projection()
	httpx.JSON(w, http.StatusOK, sessionResponse{Authenticated: true, Employee: &projection, CSRFToken: snap.CSRFToken})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Logout(r.Context(), h.sessions.SessionID(r)); err != nil {
		h.logger.Warn("logout", slog.Any("error", err))
	}
	h.sessions.ClearCookie(w)
	httpx.JSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (h *Handler) handleBootstrap(w http.ResponseWriter, r *http.Request) {
	creds, err := h.service.BootstrapAdmin(r.Context())
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, creds)
}

func clientMeta(r *http.Request) ClientMeta {
	ip := r.RemoteAddr
	if host, _, err := net.SplitHostPort(ip); err == nil {
		ip = host
	}
	return ClientMeta{IP: ip, UserAgent: r.UserAgent()}
}
