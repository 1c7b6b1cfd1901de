package roles_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/retailops/backoffice/internal/events"
	"github.com/retailops/backoffice/internal/roles"
	"github.com/retailops/backoffice/internal/shared"
	"github.com/retailops/backoffice/internal/store/memory"
	_ "github.com/retailops/backoffice/testing"
)

type recordingPublisher struct {
	mu     sync.Mutex
	topics []events.Topic
}

func (p *recordingPublisher) Publish(_ context.Context, topic events.Topic, _ any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topics = append(p.topics, topic)
}

func (p *recordingPublisher) Topics() []events.Topic {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]events.Topic(nil), p.topics...)
}

func newService(t *testing.T) (*roles.Service, *recordingPublisher, *shared.MemoryAuditor) {
	t.Helper()
	pub := &recordingPublisher{}
	auditor := shared.NewMemoryAuditor()
	return roles.NewService(memory.NewRoleRepository(), pub, auditor, nil), pub, auditor
}

var actor = &shared.Snapshot{EmployeeID: 1, Access: shared.Access{Kind: shared.RoleKindSystemAdmin}}

// roleManager may manage roles but is not a system administrator.
var roleManager = &shared.Snapshot{EmployeeID: 2, Access: shared.Access{Kind: shared.RoleKindScoped, Permissions: []shared.ModulePermission{
	{Module: shared.ModuleRoles, CanView: true, CanCreate: true, CanEdit: true},
}}}

func TestCreateRoleDefaultsToScoped(t *testing.T) {
	svc, pub, auditor := newService(t)
	ctx := context.Background()

	role, err := svc.CreateRole(ctx, actor, roles.CreateRequest{Name: "  cashier  "})
	require.NoError(t, err)
	assert.Equal(t, "cashier", role.Name)
	assert.Equal(t, shared.RoleKindScoped, role.Kind)
	assert.Equal(t, []events.Topic{events.TopicRoles}, pub.Topics())
	require.Len(t, auditor.Entries(), 1)
	assert.Equal(t, "role.create", auditor.Entries()[0].Action)

	_, err = svc.CreateRole(ctx, actor, roles.CreateRequest{Name: "cashier"})
	assert.ErrorIs(t, err, shared.ErrConflict)
	_, err = svc.CreateRole(ctx, actor, roles.CreateRequest{Name: "  "})
	assert.ErrorIs(t, err, shared.ErrValidation)
	_, err = svc.CreateRole(ctx, actor, roles.CreateRequest{Name: "x", Kind: "root"})
	assert.ErrorIs(t, err, shared.ErrValidation)
}

func TestSetPermissionUpsertsSingleRow(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()
	role, err := svc.CreateRole(ctx, actor, roles.CreateRequest{Name: "cashier"})
	require.NoError(t, err)

	_, err = svc.SetPermission(ctx, actor, role.ID, shared.ModuleSales, roles.PermissionRequest{CanView: true})
	require.NoError(t, err)
	_, err = svc.SetPermission(ctx, actor, role.ID, shared.ModuleSales, roles.PermissionRequest{CanView: true, CanCreate: true})
	require.NoError(t, err)

	got, err := svc.GetRole(ctx, role.ID)
	require.NoError(t, err)
	require.Len(t, got.Permissions, 1)
	assert.True(t, got.Permissions[0].CanCreate)
	assert.False(t, got.Permissions[0].CanDelete)

	_, err = svc.SetPermission(ctx, actor, role.ID, shared.ModuleCode("payroll"), roles.PermissionRequest{CanView: true})
	assert.ErrorIs(t, err, shared.ErrValidation)
	_, err = svc.SetPermission(ctx, actor, 404, shared.ModuleSales, roles.PermissionRequest{CanView: true})
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestRoleAccessCarriesKind(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()
	role, err := svc.CreateRole(ctx, actor, roles.CreateRequest{Name: "ops", Kind: string(shared.RoleKindSystemAdmin)})
	require.NoError(t, err)

	name, access, err := svc.RoleAccess(ctx, role.ID)
	require.NoError(t, err)
	assert.Equal(t, "ops", name)
	assert.True(t, access.IsSystemAdmin())

	_, _, err = svc.RoleAccess(ctx, 999)
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestEnsureAdminRole(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()

	created, err := svc.EnsureAdminRole(ctx)
	require.NoError(t, err)
	assert.Equal(t, roles.AdminRoleName, created.Name)
	assert.Equal(t, shared.RoleKindSystemAdmin, created.Kind)
	assert.True(t, created.IsSystem)

	again, err := svc.EnsureAdminRole(ctx)
	require.NoError(t, err)
	assert.Equal(t, created.ID, again.ID)
}

func TestEnsureAdminRolePromotesExisting(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()
	existing, err := svc.CreateRole(ctx, actor, roles.CreateRequest{Name: roles.AdminRoleName})
	require.NoError(t, err)
	require.Equal(t, shared.RoleKindScoped, existing.Kind)

	promoted, err := svc.EnsureAdminRole(ctx)
	require.NoError(t, err)
	assert.Equal(t, existing.ID, promoted.ID)
	assert.Equal(t, shared.RoleKindSystemAdmin, promoted.Kind)
}

func TestDeleteRole(t *testing.T) {
	svc, pub, _ := newService(t)
	ctx := context.Background()
	admin, err := svc.EnsureAdminRole(ctx)
	require.NoError(t, err)
	assert.ErrorIs(t, svc.DeleteRole(ctx, actor, admin.ID), shared.ErrConflict)

	role, err := svc.CreateRole(ctx, actor, roles.CreateRequest{Name: "temp"})
	require.NoError(t, err)
	require.NoError(t, svc.DeleteRole(ctx, actor, role.ID))
	assert.Equal(t, []events.Topic{events.TopicRoles, events.TopicRoles, events.TopicEmployees}, pub.Topics())
	assert.ErrorIs(t, svc.DeleteRole(ctx, actor, role.ID), shared.ErrNotFound)
}

func TestCreateSystemAdminRoleRequiresSystemAdmin(t *testing.T) {
	svc, pub, _ := newService(t)
	ctx := context.Background()

	_, err := svc.CreateRole(ctx, roleManager, roles.CreateRequest{Name: "boss", Kind: string(shared.RoleKindSystemAdmin)})
	assert.ErrorIs(t, err, shared.ErrForbidden)
	_, err = svc.CreateRole(ctx, nil, roles.CreateRequest{Name: "boss", Kind: string(shared.RoleKindSystemAdmin)})
	assert.ErrorIs(t, err, shared.ErrForbidden)

	list, err := svc.ListRoles(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)
	assert.Empty(t, pub.Topics())

	scoped, err := svc.CreateRole(ctx, roleManager, roles.CreateRequest{Name: "cashier"})
	require.NoError(t, err)
	assert.Equal(t, shared.RoleKindScoped, scoped.Kind)
}
