package rbac

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/retailops/backoffice/internal/platform/httpx"
	"github.com/retailops/backoffice/internal/shared"
)

// ModulesHandler serves the static module catalogue together with the caller's
// own capabilities, so clients can hide actions they may not take.
type ModulesHandler struct {
	rbac Middleware
}

// NewModulesHandler builds ModulesHandler instance.
func NewModulesHandler(rbac Middleware) *ModulesHandler {
	return &ModulesHandler{rbac: rbac}
}

// MountRoutes registers catalogue routes.
func (h *ModulesHandler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAuthenticated())
		r.Get("/", h.listModules)
	})
}

type moduleView struct {
	shared.Module
	CanView   bool `json:"can_view"`
	CanCreate bool `json:"can_create"`
	CanEdit   bool `json:"can_edit"`
	CanDelete bool `json:"can_delete"`
}

func (h *ModulesHandler) listModules(w http.ResponseWriter, r *http.Request) {
	snap := shared.SessionFromContext(r.Context())
	modules := shared.Modules()
	out := make([]moduleView, 0, len(modules))
	for _, m := range modules {
		out = append(out, moduleView{
			Module:    m,
			CanView:   Authorize(snap, m.Code, shared.CapView) == nil,
			CanCreate: Authorize(snap, m.Code, shared.CapCreate) == nil,
			CanEdit:   Authorize(snap, m.Code, shared.CapEdit) == nil,
			CanDelete: Authorize(snap, m.Code, shared.CapDelete) == nil,
		})
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"modules": out})
}
