package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/retailops/backoffice/internal/roles"
	"github.com/retailops/backoffice/internal/shared"
)

// RoleRepository stores roles and their permission matrix. The matrix is keyed
// by (role, module), so at most one row exists per pair.
type RoleRepository struct {
	mu     sync.RWMutex
	nextID int64
	roles  map[int64]roles.Role
	perms  map[int64]map[shared.ModuleCode]shared.ModulePermission
	now    func() time.Time
}

// NewRoleRepository constructs an empty repository.
func NewRoleRepository() *RoleRepository {
	return &RoleRepository{
		roles: make(map[int64]roles.Role),
		perms: make(map[int64]map[shared.ModuleCode]shared.ModulePermission),
		now:   time.Now,
	}
}

// GetRole fetches a role by id.
func (r *RoleRepository) GetRole(_ context.Context, id int64) (*roles.Role, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	role, ok := r.roles[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return &role, nil
}

// FindRoleByName fetches a role by name.
func (r *RoleRepository) FindRoleByName(_ context.Context, name string) (*roles.Role, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, role := range r.roles {
		if role.Name == name {
			out := role
			return &out, nil
		}
	}
	return nil, shared.ErrNotFound
}

// ListRoles returns all roles ordered by id.
func (r *RoleRepository) ListRoles(context.Context) ([]roles.Role, error) {
	r.mu.RLock()
	out := make([]roles.Role, 0, len(r.roles))
	for _, role := range r.roles {
		out = append(out, role)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// CreateRole inserts a role. Names are unique.
func (r *RoleRepository) CreateRole(_ context.Context, role *roles.Role) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.roles {
		if existing.Name == role.Name {
			return fmt.Errorf("%w: role name already taken", shared.ErrConflict)
		}
	}
	r.nextID++
	now := r.now().UTC()
	role.ID = r.nextID
	role.CreatedAt = now
	role.UpdatedAt = now
	r.roles[role.ID] = *role
	return nil
}

// MarkSystemAdmin turns the role into a system administrator role.
func (r *RoleRepository) MarkSystemAdmin(_ context.Context, id int64) (*roles.Role, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	role, ok := r.roles[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	role.Kind = shared.RoleKindSystemAdmin
	role.IsSystem = true
	role.UpdatedAt = r.now().UTC()
	r.roles[id] = role
	return &role, nil
}

// DeleteRole removes a role and its permission rows.
func (r *RoleRepository) DeleteRole(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.roles[id]; !ok {
		return shared.ErrNotFound
	}
	delete(r.roles, id)
	delete(r.perms, id)
	return nil
}

// ListPermissions returns the rows of a role ordered by module.
func (r *RoleRepository) ListPermissions(_ context.Context, roleID int64) ([]shared.ModulePermission, error) {
	r.mu.RLock()
	out := make([]shared.ModulePermission, 0, len(r.perms[roleID]))
	for _, p := range r.perms[roleID] {
		out = append(out, p)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Module < out[j].Module })
	return out, nil
}

// UpsertPermission writes the single row for (roleID, module).
func (r *RoleRepository) UpsertPermission(_ context.Context, roleID int64, perm shared.ModulePermission) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.roles[roleID]; !ok {
		return shared.ErrNotFound
	}
	rows, ok := r.perms[roleID]
	if !ok {
		rows = make(map[shared.ModuleCode]shared.ModulePermission)
		r.perms[roleID] = rows
	}
	rows[perm.Module] = perm
	return nil
}

var _ roles.Repository = (*RoleRepository)(nil)
