package models

import "time"

// User is a human account row. Passwords are stored as PBKDF2 digests with
// a per-user salt; Roles holds plain role names.
type User struct {
	ID        int64
	Username  string
	PassHash  string
	Salt      string
	Roles     []string
	IsActive  bool
	CreatedAt time.Time
}

// HasRole reports whether the user carries the given role name.
func (u *User) HasRole(role string) bool {
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}
