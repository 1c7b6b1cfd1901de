package auth

import "time"

// BootstrapUsername is the username of the administrator created on a cold start.
const BootstrapUsername = "admin"

// ClientMeta describes where a login came from. It is only recorded for audit.
type ClientMeta struct {
	IP        string
	UserAgent string
}

// SessionRecord is the audit row written for every login.
type SessionRecord struct {
	ID         string
	EmployeeID int64
	CreatedAt  time.Time
	ExpiresAt  time.Time
	IP         string
	UserAgent  string
}

// AdminCredentials are returned once by the bootstrap procedure.
type AdminCredentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginRequest struct {
	Username string `json:"username" validate:"required,max=64"`
	Password string `json:"password" validate:"required,max=72"`
}
