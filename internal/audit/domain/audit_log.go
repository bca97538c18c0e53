package domain

import "time"

// AuditLog is one recorded auth event (login, logout, token check outcome).
type AuditLog struct {
	ID        string
	UserID    string // empty when the user is unknown (e.g. failed login)
	Action    string
	IP        string
	Metadata  string // JSON; never contains raw tokens or password hashes
	CreatedAt time.Time
}
