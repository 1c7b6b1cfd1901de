// Package rbac resolves role permission matrices and authorises requests
// against session snapshots.
package rbac

import (
	"context"
	"errors"

	"github.com/retailops/backoffice/internal/shared"
)

// RoleSource loads a role's name and stored access. It returns
// shared.ErrNotFound for unknown roles.
type RoleSource interface {
	RoleAccess(ctx context.Context, roleID int64) (name string, access shared.Access, err error)
}

// Resolution is the effective authorisation of an employee's role.
type Resolution struct {
	RoleName *string
	Access   shared.Access
}

// Resolver turns a role reference into a flat permission list.
type Resolver struct {
	roles RoleSource
}

// NewResolver constructs a Resolver.
func NewResolver(source RoleSource) *Resolver {
	return &Resolver{roles: source}
}

// Resolve returns the role name and access for roleID. A nil or dangling role
// resolves to no role and an empty permission list.
func (r *Resolver) Resolve(ctx context.Context, roleID *int64) (Resolution, error) {
	none := Resolution{Access: shared.Access{Kind: shared.RoleKindNone, Permissions: []shared.ModulePermission{}}}
	if roleID == nil {
		return none, nil
	}
	name, access, err := r.roles.RoleAccess(ctx, *roleID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return none, nil
		}
		return Resolution{}, err
	}
	access = access.Clone()
	if !access.Kind.Valid() {
		access.Kind = shared.RoleKindScoped
	}
	return Resolution{RoleName: &name, Access: access}, nil
}
