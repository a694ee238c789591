package client

import (
	"context"
	"time"
)

// Registration carries the fields of a new account.
type Registration struct {
	Email     string
	Password  []byte
	FirstName string
	LastName  string
}

// Account is the server's view of a registered user.
type Account struct {
	ID        string
	Email     string
	FirstName string
	LastName  string
}

// Session describes the tokens held after a successful login.
type Session struct {
	UserID           string
	Email            string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}

type Client interface {
	Close() error
	Register(ctx context.Context, r Registration) (*Account, error)
	Login(ctx context.Context, email string, password []byte) (*Session, error)
	WhoAmI(ctx context.Context) (*Session, error)
	DeleteAccount(ctx context.Context, password []byte) error
	Logout()
	LoggedIn() bool
	Ping(ctx context.Context) error
}
