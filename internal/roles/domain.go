package roles

import (
	"time"

	"github.com/retailops/backoffice/internal/shared"
)

// AdminRoleName is the name of the role created by the bootstrap procedure.
// Authorisation never compares against it; the role's Kind decides.
const AdminRoleName = "admin"

// Role groups employees sharing a permission matrix.
type Role struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	IsSystem    bool            `json:"is_system"`
	Kind        shared.RoleKind `json:"kind"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// RoleWithPermissions bundles a role with its matrix rows.
type RoleWithPermissions struct {
	Role
	Permissions []shared.ModulePermission `json:"permissions"`
}

// CreateRequest carries the input for creating a role.
type CreateRequest struct {
	Name        string `json:"name" validate:"required,max=64"`
	Description string `json:"description" validate:"max=255"`
	Kind        string `json:"kind" validate:"omitempty,oneof=scoped system_admin"`
}

// PermissionRequest sets the four capabilities of one (role, module) pair.
type PermissionRequest struct {
	CanView   bool `json:"can_view"`
	CanCreate bool `json:"can_create"`
	CanEdit   bool `json:"can_edit"`
	CanDelete bool `json:"can_delete"`
}
