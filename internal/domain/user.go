package domain

import "time"

const (
	RoleAdmin = "admin"
	RoleJury  = "jury"
)

// ValidRole reports whether role is one of the two known roles.
func ValidRole(role string) bool {
	return role == RoleAdmin || role == RoleJury
}

// User is a named account with a role. The credential hash is produced by
// the caller (the core never hashes secrets itself) and persisted verbatim.
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"password_hash"`
	Role         string    `json:"role"`
	Name         string    `json:"name"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (u User) RecordID() string { return u.ID }

// Public returns a copy with the credential hash stripped, safe to hand to
// presentation layers.
func (u User) Public() User {
	u.PasswordHash = ""
	return u
}
