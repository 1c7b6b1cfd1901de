package employees

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/retailops/backoffice/internal/platform/db"
	"github.com/retailops/backoffice/internal/shared"
)

// Repository defines persistence operations for employees.
type Repository interface {
	FindByID(ctx context.Context, id int64) (*Employee, error)
	FindByUsername(ctx context.Context, username string) (*Employee, error)
	List(ctx context.Context, filter ListFilter) ([]Employee, int, error)
	Count(ctx context.Context) (int, error)
	Insert(ctx context.Context, employee *Employee) error
	Update(ctx context.Context, id int64, patch Patch) (*Employee, error)
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const employeeColumns = `id, username, password_hash, first_name, last_name, is_active, role_id, last_login_at, must_change_password, created_at, updated_at`

func scanEmployee(row pgx.Row) (*Employee, error) {
	var e Employee
	if err := row.Scan(&e.ID, &e.Username, &e.PasswordHash, &e.FirstName, &e.LastName, &e.IsActive, &e.RoleID, &e.LastLoginAt, &e.MustChangePassword, &e.CreatedAt, &e.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &e, nil
}

// FindByID fetches an employee by id.
func (r *PGRepository) FindByID(ctx context.Context, id int64) (*Employee, error) {
	return scanEmployee(r.pool.QueryRow(ctx, `SELECT `+employeeColumns+` FROM employees WHERE id = $1`, id))
}

// FindByUsername fetches an employee by exact username.
func (r *PGRepository) FindByUsername(ctx context.Context, username string) (*Employee, error) {
	return scanEmployee(r.pool.QueryRow(ctx, `SELECT `+employeeColumns+` FROM employees WHERE username = $1`, username))
}

// List returns a page of employees matching the filter and the total count.
func (r *PGRepository) List(ctx context.Context, filter ListFilter) ([]Employee, int, error) {
	var (
		where []string
		args  []any
	)
	if filter.Active != nil {
		args = append(args, *filter.Active)
		where = append(where, fmt.Sprintf("is_active = $%d", len(args)))
	}
	if filter.RoleID != nil {
		args = append(args, *filter.RoleID)
		where = append(where, fmt.Sprintf("role_id = $%d", len(args)))
	}
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM employees`+clause, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	page := shared.NewPagination(filter.Page, filter.PerPage, total)
	args = append(args, page.PerPage, (page.Page-1)*page.PerPage)
	query := fmt.Sprintf(`SELECT %s FROM employees%s ORDER BY id LIMIT $%d OFFSET $%d`, employeeColumns, clause, len(args)-1, len(args))
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var out []Employee
	for rows.Next() {
		e, err := scanEmployee(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// Count returns the number of employee records, active or not.
func (r *PGRepository) Count(ctx context.Context) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM employees`).Scan(&n)
	return n, err
}

// Insert stores a new employee, filling ID and timestamps.
func (r *PGRepository) Insert(ctx context.Context, e *Employee) error {
	err := r.pool.QueryRow(ctx, `INSERT INTO employees (username, password_hash, first_name, last_name, is_active, role_id, must_change_password)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at`,
		e.Username, e.PasswordHash, e.FirstName, e.LastName, e.IsActive, e.RoleID, e.MustChangePassword,
	).Scan(&e.ID, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return fmt.Errorf("%w: username already taken", shared.ErrConflict)
		}
		if db.IsForeignKeyViolation(err) {
			return fmt.Errorf("%w: unknown role", shared.ErrValidation)
		}
		return err
	}
	return nil
}

// Update applies patch to the employee and returns the updated record.
func (r *PGRepository) Update(ctx context.Context, id int64, patch Patch) (*Employee, error) {
	sets := []string{"updated_at = $1"}
	args := []any{time.Now().UTC()}
	add := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if patch.IsActive != nil {
		add("is_active", *patch.IsActive)
	}
	if patch.Role != nil {
		add("role_id", patch.Role.RoleID)
	}
	if patch.PasswordHash != nil {
		add("password_hash", *patch.PasswordHash)
	}
	if patch.MustChangePassword != nil {
		add("must_change_password", *patch.MustChangePassword)
	}
	if patch.LastLoginAt != nil {
		add("last_login_at", patch.LastLoginAt.UTC())
	}
	args = append(args, id)
	query := fmt.Sprintf(`UPDATE employees SET %s WHERE id = $%d RETURNING %s`, strings.Join(sets, ", "), len(args), employeeColumns)
	e, err := scanEmployee(r.pool.QueryRow(ctx, query, args...))
	if db.IsForeignKeyViolation(err) {
		return nil, fmt.Errorf("%w: unknown role", shared.ErrValidation)
	}
	return e, err
}

var _ Repository = (*PGRepository)(nil)
