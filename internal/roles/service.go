package roles

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/retailops/backoffice/internal/events"
	"github.com/retailops/backoffice/internal/shared"
)

// Service handles role business logic. Permission changes never touch existing
// sessions: snapshots keep the matrix captured at login.
type Service struct {
	repo      Repository
	publisher events.Publisher
	auditor   shared.Auditor
	logger    *slog.Logger
}

// NewService builds Service instance.
func NewService(repo Repository, publisher events.Publisher, auditor shared.Auditor, logger *slog.Logger) *Service {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, publisher: publisher, auditor: auditor, logger: logger}
}

// ListRoles returns all roles.
func (s *Service) ListRoles(ctx context.Context) ([]Role, error) {
	return s.repo.ListRoles(ctx)
}

// GetRole returns a role together with its permission rows.
func (s *Service) GetRole(ctx context.Context, id int64) (*RoleWithPermissions, error) {
	role, err := s.repo.GetRole(ctx, id)
	if err != nil {
		return nil, err
	}
	perms, err := s.repo.ListPermissions(ctx, id)
	if err != nil {
		return nil, err
	}
	return &RoleWithPermissions{Role: *role, Permissions: perms}, nil
}

// RoleAccess returns the role name and its stored matrix. Permission rows come
// back with every flag set, never null, so callers can test them directly.
func (s *Service) RoleAccess(ctx context.Context, roleID int64) (string, shared.Access, error) {
	role, err := s.repo.GetRole(ctx, roleID)
	if err != nil {
		return "", shared.Access{}, err
	}
	perms, err := s.repo.ListPermissions(ctx, roleID)
	if err != nil {
		return "", shared.Access{}, err
	}
	return role.Name, shared.Access{Kind: role.Kind, Permissions: perms}, nil
}

// CreateRole inserts a new role. Kind defaults to scoped; system_admin roles
// can only be created by a system administrator.
func (s *Service) CreateRole(ctx context.Context, actor *shared.Snapshot, req CreateRequest) (*Role, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: role name required", shared.ErrValidation)
	}
	kind := shared.RoleKind(req.Kind)
	if kind == shared.RoleKindNone {
		kind = shared.RoleKindScoped
	}
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: unknown role kind %q", shared.ErrValidation, req.Kind)
	}
	// Only a system administrator may create another bypass role.
	if kind == shared.RoleKindSystemAdmin && (actor == nil || !actor.Access.IsSystemAdmin()) {
		return nil, fmt.Errorf("%w: only system administrators may create %s roles", shared.ErrForbidden, kind)
	}
	role := &Role{Name: name, Description: strings.TrimSpace(req.Description), Kind: kind}
	if err := s.repo.CreateRole(ctx, role); err != nil {
		return nil, err
	}
	s.audit(ctx, actor, "role.create", role.ID, map[string]any{"name": role.Name, "kind": role.Kind})
	s.publisher.Publish(ctx, events.TopicRoles, map[string]any{"id": role.ID, "action": "created"})
	return role, nil
}

// DeleteRole removes a non-system role.
func (s *Service) DeleteRole(ctx context.Context, actor *shared.Snapshot, id int64) error {
	role, err := s.repo.GetRole(ctx, id)
	if err != nil {
		return err
	}
	if role.IsSystem {
		return fmt.Errorf("%w: system role %q cannot be deleted", shared.ErrConflict, role.Name)
	}
	if err := s.repo.DeleteRole(ctx, id); err != nil {
		return err
	}
	s.audit(ctx, actor, "role.delete", id, map[string]any{"name": role.Name})
	s.publisher.Publish(ctx, events.TopicRoles, map[string]any{"id": id, "action": "deleted"})
	// Employees holding the role lost it.
	s.publisher.Publish(ctx, events.TopicEmployees, map[string]any{"role_id": id, "action": "role_removed"})
	return nil
}

// SetPermission writes the capabilities of one module for a role.
func (s *Service) SetPermission(ctx context.Context, actor *shared.Snapshot, roleID int64, module shared.ModuleCode, req PermissionRequest) (shared.ModulePermission, error) {
	if !shared.KnownModule(module) {
		return shared.ModulePermission{}, fmt.Errorf("%w: unknown module %q", shared.ErrValidation, module)
	}
	if _, err := s.repo.GetRole(ctx, roleID); err != nil {
		return shared.ModulePermission{}, err
	}
	perm := shared.ModulePermission{
		Module:    module,
		CanView:   req.CanView,
		CanCreate: req.CanCreate,
		CanEdit:   req.CanEdit,
		CanDelete: req.CanDelete,
	}
	if err := s.repo.UpsertPermission(ctx, roleID, perm); err != nil {
		return shared.ModulePermission{}, err
	}
	s.audit(ctx, actor, "role.permission.set", roleID, map[string]any{
		"module": module, "view": perm.CanView, "create": perm.CanCreate, "edit": perm.CanEdit, "delete": perm.CanDelete,
	})
	s.publisher.Publish(ctx, events.TopicRoles, map[string]any{"id": roleID, "action": "permissions_changed", "module": module})
	return perm, nil
}

// EnsureAdminRole returns the role named "admin", creating it when missing and
// forcing it to be a system administrator role when it exists.
func (s *Service) EnsureAdminRole(ctx context.Context) (*Role, error) {
	role, err := s.repo.FindRoleByName(ctx, AdminRoleName)
	switch {
	case err == nil:
		if role.Kind == shared.RoleKindSystemAdmin && role.IsSystem {
			return role, nil
		}
		return s.repo.MarkSystemAdmin(ctx, role.ID)
	case errors.Is(err, shared.ErrNotFound):
		role = &Role{
			Name:        AdminRoleName,
			Description: "Full access to every module",
			IsSystem:    true,
			Kind:        shared.RoleKindSystemAdmin,
		}
		if err := s.repo.CreateRole(ctx, role); err != nil {
			return nil, err
		}
		return role, nil
	default:
		return nil, err
	}
}

func (s *Service) audit(ctx context.Context, actor *shared.Snapshot, action string, roleID int64, meta map[string]any) {
	if s.auditor == nil {
		return
	}
	var actorID int64
	if actor != nil {
		actorID = actor.EmployeeID
	}
	entry := shared.AuditLog{ActorID: actorID, Action: action, Entity: "role", EntityID: strconv.FormatInt(roleID, 10), Meta: meta}
	if err := s.auditor.Record(ctx, entry); err != nil {
		s.logger.Warn("audit role", slog.String("action", action), slog.Any("error", err))
	}
}
