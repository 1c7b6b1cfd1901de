package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/retailops/backoffice/internal/employees"
	"github.com/retailops/backoffice/internal/events"
	"github.com/retailops/backoffice/internal/rbac"
	"github.com/retailops/backoffice/internal/roles"
	"github.com/retailops/backoffice/internal/shared"
)

// SessionBackend stores session snapshots.
type SessionBackend interface {
	Save(ctx context.Context, snap *shared.Snapshot) error
	Load(ctx context.Context, id string) (*shared.Snapshot, error)
	Delete(ctx context.Context, id string) error
}

// AdminRoles provides the administrator role for bootstrap.
type AdminRoles interface {
	EnsureAdminRole(ctx context.Context) (*roles.Role, error)
}

// Deps groups the collaborators of Service.
type Deps struct {
	Credentials       *CredentialStore
	Resolver          *rbac.Resolver
	Employees         employees.Repository
	Roles             AdminRoles
	Sessions          SessionBackend
	CSRF              *shared.CSRFManager
	Audit             Repository
	Auditor           shared.Auditor
	Hasher            employees.Hasher
	Publisher         events.Publisher
	Logger            *slog.Logger
	BootstrapPassword string
}

// Service wraps authentication business rules.
type Service struct {
	creds             *CredentialStore
	resolver          *rbac.Resolver
	employees         employees.Repository
	roles             AdminRoles
	sessions          SessionBackend
	csrf              *shared.CSRFManager
	audit             Repository
	auditor           shared.Auditor
	hasher            employees.Hasher
	publisher         events.Publisher
	logger            *slog.Logger
	bootstrapPassword string
	bootstrapMu       sync.Mutex
	now               func() time.Time
}

// NewService constructs a new Service.
func NewService(d Deps) *Service {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	publisher := d.Publisher
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &Service{
		creds:             d.Credentials,
		resolver:          d.Resolver,
		employees:         d.Employees,
		roles:             d.Roles,
		sessions:          d.Sessions,
		csrf:              d.CSRF,
		audit:             d.Audit,
		auditor:           d.Auditor,
		hasher:            d.Hasher,
		publisher:         publisher,
		logger:            logger,
		bootstrapPassword: d.BootstrapPassword,
		now:               time.Now,
	}
}

// Login verifies the credentials, resolves the role and persists a new
// snapshot. The snapshot is frozen: later role changes are not reflected.
func (s *Service) Login(ctx context.Context, username, password string, meta ClientMeta) (*shared.Snapshot, error) {
	if username == "" || password == "" {
		return nil, fmt.Errorf("%w: username and password required", shared.ErrValidation)
	}
	employee, err := s.creds.Verify(ctx, username, password)
	if err != nil {
		return nil, err
	}
	resolution, err := s.resolver.Resolve(ctx, employee.RoleID)
	if err != nil {
		return nil, fmt.Errorf("resolve role: %w", err)
	}
	sessionID, err := shared.NewSessionID()
	if err != nil {
		return nil, err
	}
	snap := &shared.Snapshot{
		SessionID:          sessionID,
		EmployeeID:         employee.ID,
		Username:           employee.Username,
		FirstName:          employee.FirstName,
		LastName:           employee.LastName,
		RoleID:             employee.RoleID,
		RoleName:           resolution.RoleName,
		Access:             resolution.Access.Clone(),
		MustChangePassword: employee.MustChangePassword,
	}
	if s.csrf != nil {
		snap.CSRFToken = s.csrf.Issue(sessionID)
	}
	if err := s.sessions.Save(ctx, snap); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	if _, err := s.employees.Update(ctx, employee.ID, employees.Patch{LastLoginAt: &now}); err != nil {
		s.logger.Warn("update last login", slog.Int64("employee_id", employee.ID), slog.Any("error", err))
	}
	if s.audit != nil {
		record := SessionRecord{ID: snap.SessionID, EmployeeID: employee.ID, CreatedAt: snap.IssuedAt, ExpiresAt: snap.ExpiresAt, IP: meta.IP, UserAgent: meta.UserAgent}
		if err := s.audit.CreateSession(ctx, record); err != nil {
			s.logger.Warn("register session", slog.Any("error", err))
		}
	}
	s.logger.Info("employee logged in", slog.Int64("employee_id", employee.ID), slog.String("ip", meta.IP))
	return snap, nil
}

// CurrentSession returns the snapshot for id, or nil when there is none.
func (s *Service) CurrentSession(ctx context.Context, id string) (*shared.Snapshot, error) {
	return s.sessions.Load(ctx, id)
}

// Logout destroys the session. Unknown or already destroyed ids are not an error.
func (s *Service) Logout(ctx context.Context, id string) error {
	if id == "" {
		return nil
	}
	if err := s.sessions.Delete(ctx, id); err != nil {
		return err
	}
	if s.audit != nil {
		if err := s.audit.DeleteSession(ctx, id); err != nil {
			s.logger.Warn("remove session", slog.Any("error", err))
		}
	}
	return nil
}

// BootstrapAdmin creates the first administrator. It fails with
// shared.ErrConflict once any employee exists.
func (s *Service) BootstrapAdmin(ctx context.Context) (AdminCredentials, error) {
	s.bootstrapMu.Lock()
	defer s.bootstrapMu.Unlock()

	count, err := s.employees.Count(ctx)
	if err != nil {
		return AdminCredentials{}, err
	}
	if count > 0 {
		return AdminCredentials{}, fmt.Errorf("%w: employees already exist, bootstrap is disabled", shared.ErrConflict)
	}
	if s.bootstrapPassword == "" {
		return AdminCredentials{}, errors.New("bootstrap password not configured")
	}
	role, err := s.roles.EnsureAdminRole(ctx)
	if err != nil {
		return AdminCredentials{}, fmt.Errorf("ensure admin role: %w", err)
	}
	hash, err := s.hasher.Hash(s.bootstrapPassword)
	if err != nil {
		return AdminCredentials{}, fmt.Errorf("hash password: %w", err)
	}
	roleID := role.ID
	admin := &employees.Employee{
		Username:           BootstrapUsername,
		PasswordHash:       hash,
		FirstName:          "System",
		LastName:           "Administrator",
		IsActive:           true,
		RoleID:             &roleID,
		MustChangePassword: true,
	}
	if err := s.employees.Insert(ctx, admin); err != nil {
		return AdminCredentials{}, err
	}
	if s.auditor != nil {
		entry := shared.AuditLog{Action: "auth.bootstrap", Entity: "employee", EntityID: strconv.FormatInt(admin.ID, 10), Meta: map[string]any{"role_id": roleID}}
		if err := s.auditor.Record(ctx, entry); err != nil {
			s.logger.Warn("audit bootstrap", slog.Any("error", err))
		}
	}
	s.publisher.Publish(ctx, events.TopicRoles, map[string]any{"id": roleID, "action": "created"})
	s.publisher.Publish(ctx, events.TopicEmployees, map[string]any{"id": admin.ID, "action": "created"})
	s.logger.Info("bootstrap administrator created", slog.Int64("employee_id", admin.ID))
	return AdminCredentials{Username: BootstrapUsername, Password: s.bootstrapPassword}, nil
}

// PurgeExpiredSessions removes audit rows of sessions that already expired.
func (s *Service) PurgeExpiredSessions(ctx context.Context) (int64, error) {
	if s.audit == nil {
		return 0, nil
	}
	return s.audit.PurgeExpired(ctx, s.now())
}
