// Package models holds the server-side records shared between the directory
// repositories and the services.
package models

import (
	"strings"
	"time"
)

// User is the local directory record. ID is assigned by the directory on
// insert and is reused verbatim as the identity provider's account id.
// PasswordHash is a bcrypt hash; the plaintext password is never stored.
type User struct {
	ID           string
	Email        string
	PasswordHash string
	FirstName    string
	LastName     string
	CreatedAt    time.Time
}

// DisplayName is the name registered with the identity provider.
func (u *User) DisplayName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}
