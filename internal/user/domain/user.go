package domain

// User is a credential record owned by the external user service.
// This service only reads it to verify logins.
type User struct {
	ID           string
	Login        string
	PasswordHash string
}
