package app

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/retailops/backoffice/internal/auth"
	"github.com/retailops/backoffice/internal/employees"
	"github.com/retailops/backoffice/internal/events"
	"github.com/retailops/backoffice/internal/observability"
	"github.com/retailops/backoffice/internal/rbac"
	"github.com/retailops/backoffice/internal/roles"
	"github.com/retailops/backoffice/internal/shared"
	"github.com/retailops/backoffice/internal/store/memory"
	"github.com/retailops/backoffice/jobs"
)

// ContainerDeps are the external resources the application is built on.
type ContainerDeps struct {
	Config *Config
	Logger *slog.Logger
	Redis  *redis.Client
	// Pool is required for the postgres store driver and ignored otherwise.
	Pool *pgxpool.Pool
	// Inspector backs /jobs/health; nil reports an empty queue.
	Inspector *asynq.Inspector
}

// Container holds the wired services and the HTTP handler.
type Container struct {
	Config    *Config
	Logger    *slog.Logger
	Metrics   *observability.Metrics
	Sessions  *shared.SessionStore
	CSRF      *shared.CSRFManager
	Bus       *events.Bus
	Relay     *events.Relay
	Resolver  *rbac.Resolver
	Roles     *roles.Service
	Employees *employees.Service
	Auth      *auth.Service
	Handler   http.Handler
}

type repositories struct {
	employees employees.Repository
	roles     roles.Repository
	sessions  auth.Repository
	auditor   shared.Auditor
}

// NewContainer wires repositories, services, the event bus and the router.
func NewContainer(deps ContainerDeps) (*Container, error) {
	cfg := deps.Config
	if cfg == nil {
		return nil, errors.New("app: config required")
	}
	if deps.Redis == nil {
		return nil, errors.New("app: redis client required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = NewLogger(cfg)
	}

	repos, err := buildRepositories(cfg, deps.Pool)
	if err != nil {
		return nil, err
	}

	metrics := observability.NewMetrics()
	bus := events.NewBus(
		events.WithLogger(logger),
		events.WithOutboxSize(cfg.EventsClientBuffer),
		events.WithMetrics(events.NewMetrics(metrics.Registerer())),
	)
	relay := events.NewRelay(deps.Redis, cfg.EventsChannel, bus, logger)

	sessions := shared.NewSessionStore(deps.Redis, cfg.SessionCookie, cfg.SessionTTL, cfg.IsProduction())
	csrf := shared.NewCSRFManager(cfg.CSRFSecret)
	hasher := employees.NewHasher(cfg.BcryptCost)

	roleService := roles.NewService(repos.roles, relay, repos.auditor, logger)
	resolver := rbac.NewResolver(roleService)
	employeeService := employees.NewService(repos.employees, roleService, hasher, relay, repos.auditor, logger)
	credentials, err := auth.NewCredentialStore(repos.employees, hasher)
	if err != nil {
		return nil, err
	}
	authService := auth.NewService(auth.Deps{
		Credentials:       credentials,
		Resolver:          resolver,
		Employees:         repos.employees,
		Roles:             roleService,
		Sessions:          sessions,
		CSRF:              csrf,
		Audit:             repos.sessions,
		Auditor:           repos.auditor,
		Hasher:            hasher,
		Publisher:         relay,
		Logger:            logger,
		BootstrapPassword: cfg.BootstrapAdminPassword,
	})

	guard := rbac.Middleware{Logger: logger}
	handler := NewRouter(RouterParams{
		Logger:           logger,
		Config:           cfg,
		Sessions:         sessions,
		CSRF:             csrf,
		Metrics:          metrics,
		AuthHandler:      auth.NewHandler(logger, authService, sessions, cfg.LoginRatePerMinute),
		EmployeesHandler: employees.NewHandler(logger, employeeService, guard),
		RolesHandler:     roles.NewHandler(logger, roleService, guard),
		ModulesHandler:   rbac.NewModulesHandler(guard),
		JobHandler:       jobs.NewHandler(deps.Inspector, logger),
		EventsHandler:    events.NewSockJSHandler(EventsPrefix, bus, sessions, logger),
	})

	return &Container{
		Config:    cfg,
		Logger:    logger,
		Metrics:   metrics,
		Sessions:  sessions,
		CSRF:      csrf,
		Bus:       bus,
		Relay:     relay,
		Resolver:  resolver,
		Roles:     roleService,
		Employees: employeeService,
		Auth:      authService,
		Handler:   handler,
	}, nil
}

func buildRepositories(cfg *Config, pool *pgxpool.Pool) (repositories, error) {
	switch cfg.StoreDriver {
	case StoreDriverMemory:
		return repositories{
			employees: memory.NewEmployeeRepository(),
			roles:     memory.NewRoleRepository(),
			sessions:  memory.NewSessionAuditRepository(),
			auditor:   shared.NewMemoryAuditor(),
		}, nil
	case StoreDriverPostgres:
		if pool == nil {
			return repositories{}, errors.New("app: postgres pool required")
		}
		return repositories{
			employees: employees.NewRepository(pool),
			roles:     roles.NewRepository(pool),
			sessions:  auth.NewRepository(pool),
			auditor:   shared.NewAuditLogger(pool),
		}, nil
	default:
		return repositories{}, errors.New("app: unknown store driver " + cfg.StoreDriver)
	}
}
