package employees

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/retailops/backoffice/internal/platform/httpx"
	"github.com/retailops/backoffice/internal/rbac"
	"github.com/retailops/backoffice/internal/shared"
)

// Handler manages employee endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
	rbac      rbac.Middleware
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New(), rbac: rbac}
}

// MountRoutes registers employee routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.Require(shared.ModuleEmployees, shared.CapView))
		r.Get("/", h.listEmployees)
		r.Get("/{id}", h.getEmployee)
	})
	r.With(h.rbac.Require(shared.ModuleEmployees, shared.CapCreate)).Post("/", h.createEmployee)
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.Require(shared.ModuleEmployees, shared.CapEdit))
		r.Post("/{id}/deactivate", h.deactivateEmployee)
		r.Put("/{id}/role", h.assignRole)
		r.Post("/{id}/password", h.resetPassword)
	})
}

func (h *Handler) listEmployees(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := ListFilter{}
	filter.Page, _ = strconv.Atoi(q.Get("page"))
	filter.PerPage, _ = strconv.Atoi(q.Get("per_page"))
	if raw := q.Get("active"); raw != "" {
		active, err := strconv.ParseBool(raw)
		if err != nil {
			httpx.ValidationProblem(w, map[string]string{"active": "boolean"})
			return
		}
		filter.Active = &active
	}
	if raw := q.Get("role_id"); raw != "" {
		roleID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			httpx.ValidationProblem(w, map[string]string{"role_id": "numeric"})
			return
		}
		filter.RoleID = &roleID
	}
	items, page, err := h.service.List(r.Context(), filter)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"employees": items, "pagination": page})
}

func (h *Handler) getEmployee(w http.ResponseWriter, r *http.Request) {
	id, ok := employeeID(w, r)
	if !ok {
		return
	}
	employee, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, employee)
}

func (h *Handler) createEmployee(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if !httpx.Bind(w, r, h.validator, &req) {
		return
	}
	employee, err := h.service.Create(r.Context(), shared.SessionFromContext(r.Context()), req)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, employee)
}

func (h *Handler) deactivateEmployee(w http.ResponseWriter, r *http.Request) {
	id, ok := employeeID(w, r)
	if !ok {
		return
	}
	employee, err := h.service.Deactivate(r.Context(), shared.SessionFromContext(r.Context()), id)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, employee)
}

func (h *Handler) assignRole(w http.ResponseWriter, r *http.Request) {
	id, ok := employeeID(w, r)
	if !ok {
		return
	}
	var req AssignRoleRequest
	if !httpx.Bind(w, r, h.validator, &req) {
		return
	}
	employee, err := h.service.AssignRole(r.Context(), shared.SessionFromContext(r.Context()), id, req.RoleID)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, employee)
}

func (h *Handler) resetPassword(w http.ResponseWriter, r *http.Request) {
	id, ok := employeeID(w, r)
	if !ok {
		return
	}
	var req ChangePasswordRequest
	if !httpx.Bind(w, r, h.validator, &req) {
		return
	}
	if err := h.service.ChangePassword(r.Context(), shared.SessionFromContext(r.Context()), id, req); err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SelfPasswordHandler serves POST /auth/password for the session's own account.
func (h *Handler) SelfPasswordHandler(w http.ResponseWriter, r *http.Request) {
	snap := shared.SessionFromContext(r.Context())
	if err := rbac.RequireAuthenticated(snap); err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	var req ChangePasswordRequest
	if !httpx.Bind(w, r, h.validator, &req) {
		return
	}
	if err := h.service.ChangePassword(r.Context(), snap, snap.EmployeeID, req); err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func employeeID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid employee id")
		return 0, false
	}
	return id, true
}
