package roles

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/retailops/backoffice/internal/platform/db"
	"github.com/retailops/backoffice/internal/shared"
)

// Repository defines persistence operations for roles and their permission matrix.
type Repository interface {
	GetRole(ctx context.Context, id int64) (*Role, error)
	FindRoleByName(ctx context.Context, name string) (*Role, error)
	ListRoles(ctx context.Context) ([]Role, error)
	CreateRole(ctx context.Context, role *Role) error
	MarkSystemAdmin(ctx context.Context, id int64) (*Role, error)
	DeleteRole(ctx context.Context, id int64) error
	ListPermissions(ctx context.Context, roleID int64) ([]shared.ModulePermission, error)
	UpsertPermission(ctx context.Context, roleID int64, perm shared.ModulePermission) error
}

// PGRepository provides PostgreSQL backed persistence.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const roleColumns = `id, name, description, is_system, kind, created_at, updated_at`

func scanRole(row pgx.Row) (*Role, error) {
	var role Role
	if err := row.Scan(&role.ID, &role.Name, &role.Description, &role.IsSystem, &role.Kind, &role.CreatedAt, &role.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &role, nil
}

// GetRole fetches a role by id.
func (r *PGRepository) GetRole(ctx context.Context, id int64) (*Role, error) {
	return scanRole(r.pool.QueryRow(ctx, `SELECT `+roleColumns+` FROM roles WHERE id = $1`, id))
}

// FindRoleByName fetches a role by its unique name.
func (r *PGRepository) FindRoleByName(ctx context.Context, name string) (*Role, error) {
	return scanRole(r.pool.QueryRow(ctx, `SELECT `+roleColumns+` FROM roles WHERE name = $1`, name))
}

// ListRoles returns all roles.
func (r *PGRepository) ListRoles(ctx context.Context) ([]Role, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+roleColumns+` FROM roles ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Role
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *role)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateRole inserts a new role.
func (r *PGRepository) CreateRole(ctx context.Context, role *Role) error {
	err := r.pool.QueryRow(ctx, `INSERT INTO roles (name, description, is_system, kind) VALUES ($1, $2, $3, $4) RETURNING id, created_at, updated_at`,
		role.Name, role.Description, role.IsSystem, role.Kind,
	).Scan(&role.ID, &role.CreatedAt, &role.UpdatedAt)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return fmt.Errorf("%w: role name already taken", shared.ErrConflict)
		}
		return err
	}
	return nil
}

// MarkSystemAdmin turns the role into a system administrator role.
func (r *PGRepository) MarkSystemAdmin(ctx context.Context, id int64) (*Role, error) {
	return scanRole(r.pool.QueryRow(ctx, `UPDATE roles SET kind = $2, is_system = TRUE, updated_at = NOW() WHERE id = $1 RETURNING `+roleColumns, id, shared.RoleKindSystemAdmin))
}

// DeleteRole removes a role and its permission rows. Employees holding the role
// lose it through the foreign key's ON DELETE SET NULL.
func (r *PGRepository) DeleteRole(ctx context.Context, id int64) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM role_module_permissions WHERE role_id = $1`, id); err != nil {
			return err
		}
		tag, err := tx.Exec(ctx, `DELETE FROM roles WHERE id = $1`, id)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return shared.ErrNotFound
		}
		return nil
	})
}

// ListPermissions returns the matrix rows of a role ordered by module.
func (r *PGRepository) ListPermissions(ctx context.Context, roleID int64) ([]shared.ModulePermission, error) {
	rows, err := r.pool.Query(ctx, `SELECT module_code, COALESCE(can_view, FALSE), COALESCE(can_create, FALSE), COALESCE(can_edit, FALSE), COALESCE(can_delete, FALSE)
		FROM role_module_permissions WHERE role_id = $1 ORDER BY module_code`, roleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	perms := []shared.ModulePermission{}
	for rows.Next() {
		var p shared.ModulePermission
		if err := rows.Scan(&p.Module, &p.CanView, &p.CanCreate, &p.CanEdit, &p.CanDelete); err != nil {
			return nil, err
		}
		perms = append(perms, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return perms, nil
}

// UpsertPermission writes the single row for (roleID, module).
func (r *PGRepository) UpsertPermission(ctx context.Context, roleID int64, perm shared.ModulePermission) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO role_module_permissions (role_id, module_code, can_view, can_create, can_edit, can_delete)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (role_id, module_code) DO UPDATE
		SET can_view = EXCLUDED.can_view, can_create = EXCLUDED.can_create, can_edit = EXCLUDED.can_edit, can_delete = EXCLUDED.can_delete`,
		roleID, perm.Module, perm.CanView, perm.CanCreate, perm.CanEdit, perm.CanDelete)
	return err
}

var _ Repository = (*PGRepository)(nil)
