package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/retailops/backoffice/internal/auth"
	"github.com/retailops/backoffice/internal/employees"
	"github.com/retailops/backoffice/internal/roles"
	"github.com/retailops/backoffice/internal/shared"
)

func TestEmployeeRepositoryUniqueUsername(t *testing.T) {
	repo := NewEmployeeRepository()
	ctx := context.Background()

	first := &employees.Employee{Username: "jdoe", IsActive: true}
	require.NoError(t, repo.Insert(ctx, first))
	assert.Equal(t, int64(1), first.ID)

	err := repo.Insert(ctx, &employees.Employee{Username: "jdoe"})
	assert.ErrorIs(t, err, shared.ErrConflict)

	// Usernames are case-sensitive.
	require.NoError(t, repo.Insert(ctx, &employees.Employee{Username: "JDoe"}))

	found, err := repo.FindByUsername(ctx, "jdoe")
	require.NoError(t, err)
	assert.Equal(t, first.ID, found.ID)

	_, err = repo.FindByUsername(ctx, "nobody")
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestEmployeeRepositoryListFiltersAndPages(t *testing.T) {
	repo := NewEmployeeRepository()
	ctx := context.Background()
	roleID := int64(3)
	for i, name := range []string{"a", "b", "c", "d", "e"} {
		e := &employees.Employee{Username: name, IsActive: i%2 == 0}
		if i < 2 {
			e.RoleID = &roleID
		}
		require.NoError(t, repo.Insert(ctx, e))
	}

	active := true
	items, total, err := repo.List(ctx, employees.ListFilter{Active: &active})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Equal(t, []string{"a", "c", "e"}, usernames(items))

	items, total, err = repo.List(ctx, employees.ListFilter{RoleID: &roleID})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Equal(t, []string{"a", "b"}, usernames(items))

	items, total, err = repo.List(ctx, employees.ListFilter{Page: 2, PerPage: 2})
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	assert.Equal(t, []string{"c", "d"}, usernames(items))

	items, _, err = repo.List(ctx, employees.ListFilter{Page: 9, PerPage: 2})
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestEmployeeRepositoryUpdate(t *testing.T) {
	repo := NewEmployeeRepository()
	ctx := context.Background()
	roleID := int64(2)
	e := &employees.Employee{Username: "jdoe", IsActive: true, RoleID: &roleID}
	require.NoError(t, repo.Insert(ctx, e))

	inactive := false
	updated, err := repo.Update(ctx, e.ID, employees.Patch{IsActive: &inactive, Role: &employees.RoleAssignment{}})
	require.NoError(t, err)
	assert.False(t, updated.IsActive)
	assert.Nil(t, updated.RoleID)

	_, err = repo.Update(ctx, 42, employees.Patch{IsActive: &inactive})
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestRoleRepositoryMatrix(t *testing.T) {
	repo := NewRoleRepository()
	ctx := context.Background()

	role := &roles.Role{Name: "cashier", Kind: shared.RoleKindScoped}
	require.NoError(t, repo.CreateRole(ctx, role))
	assert.ErrorIs(t, repo.CreateRole(ctx, &roles.Role{Name: "cashier"}), shared.ErrConflict)

	require.NoError(t, repo.UpsertPermission(ctx, role.ID, shared.ModulePermission{Module: shared.ModuleSales, CanView: true}))
	require.NoError(t, repo.UpsertPermission(ctx, role.ID, shared.ModulePermission{Module: shared.ModuleSales, CanView: true, CanCreate: true}))
	require.NoError(t, repo.UpsertPermission(ctx, role.ID, shared.ModulePermission{Module: shared.ModuleClients, CanView: true}))

	perms, err := repo.ListPermissions(ctx, role.ID)
	require.NoError(t, err)
	require.Len(t, perms, 2)
	assert.Equal(t, shared.ModuleClients, perms[0].Module)
	assert.True(t, perms[1].CanCreate)

	assert.ErrorIs(t, repo.UpsertPermission(ctx, 99, shared.ModulePermission{Module: shared.ModuleSales}), shared.ErrNotFound)

	require.NoError(t, repo.DeleteRole(ctx, role.ID))
	perms, err = repo.ListPermissions(ctx, role.ID)
	require.NoError(t, err)
	assert.Empty(t, perms)
	assert.ErrorIs(t, repo.DeleteRole(ctx, role.ID), shared.ErrNotFound)
}

func TestRoleRepositoryMarkSystemAdmin(t *testing.T) {
	repo := NewRoleRepository()
	ctx := context.Background()
	role := &roles.Role{Name: "admin", Kind: shared.RoleKindScoped}
	require.NoError(t, repo.CreateRole(ctx, role))

	marked, err := repo.MarkSystemAdmin(ctx, role.ID)
	require.NoError(t, err)
	assert.Equal(t, shared.RoleKindSystemAdmin, marked.Kind)
	assert.True(t, marked.IsSystem)
}

func TestSessionAuditRepositoryPurge(t *testing.T) {
	repo := NewSessionAuditRepository()
	ctx := context.Background()
	now := time.Now()
	require.NoError(t, repo.CreateSession(ctx, auth.SessionRecord{ID: "old", ExpiresAt: now.Add(-time.Minute)}))
	require.NoError(t, repo.CreateSession(ctx, auth.SessionRecord{ID: "live", ExpiresAt: now.Add(time.Hour)}))

	n, err := repo.PurgeExpired(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	records := repo.Records()
	require.Len(t, records, 1)
	assert.Equal(t, "live", records[0].ID)

	require.NoError(t, repo.DeleteSession(ctx, "live"))
	require.NoError(t, repo.DeleteSession(ctx, "live"))
	assert.Empty(t, repo.Records())
}

func usernames(items []employees.Employee) []string {
	out := make([]string, 0, len(items))
	for _, e := range items {
		out = append(out, e.Username)
	}
	return out
}
