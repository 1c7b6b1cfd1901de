package auth

import (
	"context"
	"errors"

	"github.com/retailops/backoffice/internal/employees"
	"github.com/retailops/backoffice/internal/shared"
)

// EmployeeFinder looks employees up by exact username.
type EmployeeFinder interface {
	FindByUsername(ctx context.Context, username string) (*employees.Employee, error)
}

// CredentialStore verifies usernames and passwords against stored digests.
type CredentialStore struct {
	employees EmployeeFinder
	hasher    employees.Hasher
	dummyHash string
}

// NewCredentialStore constructs a CredentialStore.
func NewCredentialStore(finder EmployeeFinder, hasher employees.Hasher) (*CredentialStore, error) {
	dummy, err := hasher.Hash("backoffice-unknown-user")
	if err != nil {
		return nil, err
	}
	return &CredentialStore{employees: finder, hasher: hasher, dummyHash: dummy}, nil
}

// Verify returns the active employee owning the credentials. Unknown usernames,
// inactive employees and wrong passwords all yield shared.ErrInvalidCredentials.
// Store failures are returned as they are.
func (c *CredentialStore) Verify(ctx context.Context, username, password string) (*employees.Employee, error) {
	employee, err := c.employees.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			// Burn the same bcrypt time as a real comparison.
			_ = c.hasher.Compare(c.dummyHash, password)
			return nil, shared.ErrInvalidCredentials
		}
		return nil, err
	}
	if err := c.hasher.Compare(employee.PasswordHash, password); err != nil {
		return nil, shared.ErrInvalidCredentials
	}
	if !employee.IsActive {
		return nil, shared.ErrInvalidCredentials
	}
	return employee, nil
}
