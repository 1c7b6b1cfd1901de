package rbac

import (
	"github.com/retailops/backoffice/internal/shared"
)

// Authorize decides whether the session may exercise capability on module.
// System administrator roles are the only shortcut; every other role is
// governed by its permission rows, and a missing row denies everything.
func Authorize(snap *shared.Snapshot, module shared.ModuleCode, capability shared.Capability) error {
	if snap == nil {
		return shared.ErrUnauthenticated
	}
	if snap.Access.IsSystemAdmin() {
		return nil
	}
	perm, ok := snap.Access.Permission(module)
	if ok && perm.Allows(capability) {
		return nil
	}
	return shared.ErrForbidden
}

// RequireAuthenticated allows any present session regardless of role.
func RequireAuthenticated(snap *shared.Snapshot) error {
	if snap == nil {
		return shared.ErrUnauthenticated
	}
	return nil
}
