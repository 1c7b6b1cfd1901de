package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/retailops/backoffice/internal/auth"
	"github.com/retailops/backoffice/internal/employees"
	"github.com/retailops/backoffice/internal/observability"
	"github.com/retailops/backoffice/internal/rbac"
	"github.com/retailops/backoffice/internal/roles"
	"github.com/retailops/backoffice/internal/shared"
	"github.com/retailops/backoffice/jobs"
)

// EventsPrefix is where the change notification stream is mounted.
const EventsPrefix = "/events"

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger           *slog.Logger
	Config           *Config
	Sessions         *shared.SessionStore
	CSRF             *shared.CSRFManager
	Metrics          *observability.Metrics
	AuthHandler      *auth.Handler
	EmployeesHandler *employees.Handler
	RolesHandler     *roles.Handler
	ModulesHandler   *rbac.ModulesHandler
	JobHandler       *jobs.Handler
	EventsHandler    http.Handler
}

// NewRouter constructs the chi.Router with back-office defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()
	mwCfg := MiddlewareConfig{
		Logger:   params.Logger,
		Config:   params.Config,
		Sessions: params.Sessions,
		CSRF:     params.CSRF,
		Metrics:  params.Metrics,
	}
	for _, mw := range BaseStack(mwCfg) {
		r.Use(mw)
	}
	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}
	// The event stream authenticates on connect and lives longer than any
	// request timeout, so it stays outside the API stack.
	if params.EventsHandler != nil {
		r.Handle(EventsPrefix+"/*", params.EventsHandler)
	}

	r.Group(func(api chi.Router) {
		for _, mw := range APIStack(mwCfg) {
			api.Use(mw)
		}
		api.Route("/auth", func(r chi.Router) {
			params.AuthHandler.MountRoutes(r)
			if params.EmployeesHandler != nil {
				r.Post("/password", params.EmployeesHandler.SelfPasswordHandler)
			}
		})
		if params.ModulesHandler != nil {
			api.Route("/modules", params.ModulesHandler.MountRoutes)
		}
		if params.EmployeesHandler != nil {
			api.Route("/employees", params.EmployeesHandler.MountRoutes)
		}
		if params.RolesHandler != nil {
			api.Route("/roles", params.RolesHandler.MountRoutes)
		}
		if params.JobHandler != nil {
			api.Route("/jobs", params.JobHandler.MountRoutes)
		}
	})

	return r
}
