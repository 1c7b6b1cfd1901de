// Package memory provides in-process implementations of the repositories. They
// back tests and the STORE_DRIVER=memory mode and honour the same uniqueness
// rules as the PostgreSQL schema.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/retailops/backoffice/internal/employees"
	"github.com/retailops/backoffice/internal/shared"
)

// EmployeeRepository stores employees in a map.
type EmployeeRepository struct {
	mu     sync.RWMutex
	nextID int64
	byID   map[int64]employees.Employee
	now    func() time.Time
}

// NewEmployeeRepository constructs an empty repository.
func NewEmployeeRepository() *EmployeeRepository {
	return &EmployeeRepository{byID: make(map[int64]employees.Employee), now: time.Now}
}

// FindByID fetches an employee by id.
func (r *EmployeeRepository) FindByID(_ context.Context, id int64) (*employees.Employee, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.byID[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return &e, nil
}

// FindByUsername fetches an employee by exact username.
func (r *EmployeeRepository) FindByUsername(_ context.Context, username string) (*employees.Employee, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, e := range r.byID {
		if e.Username == username {
			out := e
			return &out, nil
		}
	}
	return nil, shared.ErrNotFound
}

// List returns a page of employees ordered by id.
func (r *EmployeeRepository) List(_ context.Context, filter employees.ListFilter) ([]employees.Employee, int, error) {
	r.mu.RLock()
	matched := make([]employees.Employee, 0, len(r.byID))
	for _, e := range r.byID {
		if filter.Active != nil && e.IsActive != *filter.Active {
			continue
		}
		if filter.RoleID != nil && (e.RoleID == nil || *e.RoleID != *filter.RoleID) {
			continue
		}
		matched = append(matched, e)
	}
	r.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool { return matched[i].ID < matched[j].ID })
	page := shared.NewPagination(filter.Page, filter.PerPage, len(matched))
	start := (page.Page - 1) * page.PerPage
	if start >= len(matched) {
		return []employees.Employee{}, len(matched), nil
	}
	end := start + page.PerPage
	if end > len(matched) {
		end = len(matched)
	}
	return matched[start:end], len(matched), nil
}

// Count returns the number of employee records.
func (r *EmployeeRepository) Count(context.Context) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID), nil
}

// Insert stores a new employee. Usernames are unique.
func (r *EmployeeRepository) Insert(_ context.Context, e *employees.Employee) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.byID {
		if existing.Username == e.Username {
			return fmt.Errorf("%w: username already taken", shared.ErrConflict)
		}
	}
	r.nextID++
	now := r.now().UTC()
	e.ID = r.nextID
	e.CreatedAt = now
	e.UpdatedAt = now
	r.byID[e.ID] = *e
	return nil
}

// Update applies patch to the employee.
func (r *EmployeeRepository) Update(_ context.Context, id int64, patch employees.Patch) (*employees.Employee, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.byID[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	if patch.IsActive != nil {
		e.IsActive = *patch.IsActive
	}
	if patch.Role != nil {
		e.RoleID = patch.Role.RoleID
	}
	if patch.PasswordHash != nil {
		e.PasswordHash = *patch.PasswordHash
	}
	if patch.MustChangePassword != nil {
		e.MustChangePassword = *patch.MustChangePassword
	}
	if patch.LastLoginAt != nil {
		at := patch.LastLoginAt.UTC()
		e.LastLoginAt = &at
	}
	e.UpdatedAt = r.now().UTC()
	r.byID[id] = e
	return &e, nil
}

var _ employees.Repository = (*EmployeeRepository)(nil)
