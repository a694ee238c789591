// Package users is the local user directory.
package users

import (
	"context"

	"github.com/dmitrijs2005/gophauth/internal/server/models"
)

// Repository stores local user records. Emails are expected to be
// normalized by the caller; uniqueness is enforced case-insensitively by
// the schema and reported as common.ErrorAlreadyExists.
type Repository interface {
	Create(ctx context.Context, user *models.User) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	Delete(ctx context.Context, user *models.User) error
	List(ctx context.Context) ([]*models.User, error)
}
