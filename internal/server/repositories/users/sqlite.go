package users

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/dbx"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/google/uuid"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"
)

// SQLiteRepository is the single-node directory backend. Ids are generated
// here since SQLite has no uuid default.
type SQLiteRepository struct {
	db  dbx.DBTX
	now func() time.Time
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db, now: time.Now}
}

func (r *SQLiteRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	id := uuid.NewString()
	createdAt := r.now().UTC()

	query :=
		`INSERT INTO users (id, email, password_hash, first_name, last_name, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query,
		id, user.Email, user.PasswordHash, user.FirstName, user.LastName, createdAt)
	if err != nil {
		if isSQLiteUniqueViolation(err) {
			return nil, common.ErrorAlreadyExists
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	user.ID = id
	user.CreatedAt = createdAt
	return user, nil
}

func (r *SQLiteRepository) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	query :=
		`SELECT id, email, password_hash, first_name, last_name, created_at FROM users
		 WHERE lower(email) = lower(?)`

	return scanUser(r.db.QueryRowContext(ctx, query, email))
}

func (r *SQLiteRepository) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	query :=
		`SELECT id, email, password_hash, first_name, last_name, created_at FROM users
		 WHERE id = ?`

	return scanUser(r.db.QueryRowContext(ctx, query, id))
}

func (r *SQLiteRepository) Delete(ctx context.Context, user *models.User) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, user.ID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return checkAffected(res)
}

func (r *SQLiteRepository) List(ctx context.Context) ([]*models.User, error) {
	query :=
		`SELECT id, email, password_hash, first_name, last_name, created_at FROM users
		 ORDER BY created_at, id`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return collectUsers(rows)
}

func isSQLiteUniqueViolation(err error) bool {
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	return false
}
