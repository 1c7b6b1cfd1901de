package employees

import "time"

// Employee represents a back-office account.
type Employee struct {
	ID                 int64      `json:"id"`
	Username           string     `json:"username"`
	PasswordHash       string     `json:"-"`
	FirstName          string     `json:"first_name"`
	LastName           string     `json:"last_name"`
	IsActive           bool       `json:"is_active"`
	RoleID             *int64     `json:"role_id,omitempty"`
	LastLoginAt        *time.Time `json:"last_login_at,omitempty"`
	MustChangePassword bool       `json:"must_change_password"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// Patch lists the mutable fields of an employee. Nil fields are left untouched.
type Patch struct {
	IsActive           *bool
	Role               *RoleAssignment
	PasswordHash       *string
	MustChangePassword *bool
	LastLoginAt        *time.Time
}

// RoleAssignment carries a role change; a nil RoleID clears the role.
type RoleAssignment struct {
	RoleID *int64
}

// ListFilter narrows employee listings.
type ListFilter struct {
	Active  *bool
	RoleID  *int64
	Page    int
	PerPage int
}

// CreateRequest carries the input for creating an employee.
type CreateRequest struct {
	Username  string `json:"username" validate:"required,max=64"`
	Password  string `json:"password" validate:"required,min=8,max=72"`
	FirstName string `json:"first_name" validate:"required,max=100"`
	LastName  string `json:"last_name" validate:"max=100"`
	RoleID    *int64 `json:"role_id,omitempty" validate:"omitempty,gt=0"`
}

// AssignRoleRequest changes or clears an employee's role.
type AssignRoleRequest struct {
	RoleID *int64 `json:"role_id" validate:"omitempty,gt=0"`
}

// ChangePasswordRequest carries a password change. CurrentPassword is only
// required for self-service changes.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"max=72"`
	NewPassword     string `json:"new_password" validate:"required,min=8,max=72"`
}
