package employees

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/retailops/backoffice/internal/events"
	"github.com/retailops/backoffice/internal/rbac"
	"github.com/retailops/backoffice/internal/roles"
	"github.com/retailops/backoffice/internal/shared"
)

// RoleLookup checks that a role exists before it is assigned.
type RoleLookup interface {
	GetRole(ctx context.Context, id int64) (*roles.RoleWithPermissions, error)
}

// Service handles employee business logic.
type Service struct {
	repo      Repository
	roles     RoleLookup
	hasher    Hasher
	publisher events.Publisher
	auditor   shared.Auditor
	logger    *slog.Logger
}

// NewService builds Service instance.
func NewService(repo Repository, roles RoleLookup, hasher Hasher, publisher events.Publisher, auditor shared.Auditor, logger *slog.Logger) *Service {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, roles: roles, hasher: hasher, publisher: publisher, auditor: auditor, logger: logger}
}

// List returns a page of employees.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Employee, shared.Pagination, error) {
	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	if items == nil {
		items = []Employee{}
	}
	return items, shared.NewPagination(filter.Page, filter.PerPage, total), nil
}

// Get returns one employee.
func (s *Service) Get(ctx context.Context, id int64) (*Employee, error) {
	return s.repo.FindByID(ctx, id)
}

// Create registers a new active employee.
func (s *Service) Create(ctx context.Context, actor *shared.Snapshot, req CreateRequest) (*Employee, error) {
	if err := ValidateUsername(req.Username); err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.Password) == "" {
		return nil, fmt.Errorf("%w: password required", shared.ErrValidation)
	}
	if req.RoleID != nil {
		if err := s.checkRole(ctx, actor, *req.RoleID); err != nil {
			return nil, err
		}
	}
	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	employee := &Employee{
		Username:     req.Username,
		PasswordHash: hash,
		FirstName:    strings.TrimSpace(req.FirstName),
		LastName:     strings.TrimSpace(req.LastName),
		IsActive:     true,
		RoleID:       req.RoleID,
	}
	if err := s.repo.Insert(ctx, employee); err != nil {
		return nil, err
	}
	s.audit(ctx, actor, "employee.create", employee.ID, map[string]any{"username": employee.Username, "role_id": employee.RoleID})
	s.publisher.Publish(ctx, events.TopicEmployees, map[string]any{"id": employee.ID, "action": "created"})
	return employee, nil
}

// Deactivate marks the employee inactive. Employees are never hard-deleted.
// Sessions already issued stay valid until logout or expiry.
func (s *Service) Deactivate(ctx context.Context, actor *shared.Snapshot, id int64) (*Employee, error) {
	if actor != nil && actor.EmployeeID == id {
		return nil, fmt.Errorf("%w: cannot deactivate your own account", shared.ErrConflict)
	}
	inactive := false
	employee, err := s.repo.Update(ctx, id, Patch{IsActive: &inactive})
	if err != nil {
		return nil, err
	}
	s.audit(ctx, actor, "employee.deactivate", id, nil)
	s.publisher.Publish(ctx, events.TopicEmployees, map[string]any{"id": id, "action": "deactivated"})
	return employee, nil
}

// AssignRole changes or clears the employee's role. The change applies from
// the employee's next login.
func (s *Service) AssignRole(ctx context.Context, actor *shared.Snapshot, id int64, roleID *int64) (*Employee, error) {
	if roleID != nil {
		if err := s.checkRole(ctx, actor, *roleID); err != nil {
			return nil, err
		}
	}
	employee, err := s.repo.Update(ctx, id, Patch{Role: &RoleAssignment{RoleID: roleID}})
	if err != nil {
		return nil, err
	}
	s.audit(ctx, actor, "employee.role.assign", id, map[string]any{"role_id": roleID})
	s.publisher.Publish(ctx, events.TopicEmployees, map[string]any{"id": id, "action": "role_assigned"})
	return employee, nil
}

// ChangePassword replaces an employee's password. Changing one's own password
// requires the current one and clears the must-change flag; changing another
// employee's password requires employees.edit and sets the flag.
func (s *Service) ChangePassword(ctx context.Context, actor *shared.Snapshot, id int64, req ChangePasswordRequest) error {
	if err := rbac.RequireAuthenticated(actor); err != nil {
		return err
	}
	self := actor.EmployeeID == id
	if !self {
		if err := rbac.Authorize(actor, shared.ModuleEmployees, shared.CapEdit); err != nil {
			return err
		}
	}
	employee, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if self {
		if req.CurrentPassword == "" {
			return fmt.Errorf("%w: current password required", shared.ErrValidation)
		}
		if err := s.hasher.Compare(employee.PasswordHash, req.CurrentPassword); err != nil {
			return shared.ErrInvalidCredentials
		}
	}
	if len(req.NewPassword) < 8 {
		return fmt.Errorf("%w: new password too short", shared.ErrValidation)
	}
	hash, err := s.hasher.Hash(req.NewPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	mustChange := !self
	if _, err := s.repo.Update(ctx, id, Patch{PasswordHash: &hash, MustChangePassword: &mustChange}); err != nil {
		return err
	}
	s.audit(ctx, actor, "employee.password.change", id, map[string]any{"self": self})
	s.publisher.Publish(ctx, events.TopicEmployees, map[string]any{"id": id, "action": "password_changed"})
	return nil
}

// checkRole verifies the role exists and that actor may hand it out: granting a
// system_admin role takes a system administrator.
func (s *Service) checkRole(ctx context.Context, actor *shared.Snapshot, roleID int64) error {
	if s.roles == nil {
		return nil
	}
	role, err := s.roles.GetRole(ctx, roleID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return fmt.Errorf("%w: role %d does not exist", shared.ErrValidation, roleID)
		}
		return err
	}
	if role.Kind == shared.RoleKindSystemAdmin && (actor == nil || !actor.Access.IsSystemAdmin()) {
		return fmt.Errorf("%w: only system administrators may grant role %q", shared.ErrForbidden, role.Name)
	}
	return nil
}

func (s *Service) audit(ctx context.Context, actor *shared.Snapshot, action string, id int64, meta map[string]any) {
	if s.auditor == nil {
		return
	}
	var actorID int64
	if actor != nil {
		actorID = actor.EmployeeID
	}
	entry := shared.AuditLog{ActorID: actorID, Action: action, Entity: "employee", EntityID: strconv.FormatInt(id, 10), Meta: meta}
	if err := s.auditor.Record(ctx, entry); err != nil {
		s.logger.Warn("audit employee", slog.String("action", action), slog.Any("error", err))
	}
}
