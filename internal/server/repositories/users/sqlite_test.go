package users

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/server/migrations"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	_ "modernc.org/sqlite"
)

func newSQLiteRepo(t *testing.T) *SQLiteRepository {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	raw, err := migrations.Migrations.ReadFile("sqlite/00001_users.sql")
	if err != nil {
		t.Fatalf("read migration: %v", err)
	}
	up, _, _ := strings.Cut(string(raw), "-- +goose Down")
	up = strings.TrimPrefix(up, "-- +goose Up")
	for _, stmt := range strings.Split(up, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := db.Exec(stmt); err != nil {
			t.Fatalf("migrate: %v", err)
		}
	}

	repo := NewSQLiteRepository(db)
	repo.now = func() time.Time { return time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC) }
	return repo
}

func TestSQLite_CreateAndGet(t *testing.T) {
	repo := newSQLiteRepo(t)
	ctx := context.Background()

	u, err := repo.Create(ctx, &models.User{Email: "alice@example.com", PasswordHash: "h", FirstName: "Alice", LastName: "Smith"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if u.ID == "" {
		t.Fatal("expected generated id")
	}

	byEmail, err := repo.GetUserByEmail(ctx, "ALICE@example.com")
	if err != nil {
		t.Fatalf("GetUserByEmail: %v", err)
	}
	if byEmail.ID != u.ID || byEmail.LastName != "Smith" {
		t.Fatalf("unexpected user: %+v", byEmail)
	}
	if !byEmail.CreatedAt.Equal(u.CreatedAt) {
		t.Fatalf("created_at mismatch: %v vs %v", byEmail.CreatedAt, u.CreatedAt)
	}

	byID, err := repo.GetUserByID(ctx, u.ID)
	if err != nil || byID.Email != "alice@example.com" {
		t.Fatalf("GetUserByID: %+v, %v", byID, err)
	}
}

func TestSQLite_DuplicateEmail(t *testing.T) {
	repo := newSQLiteRepo(t)
	ctx := context.Background()

	if _, err := repo.Create(ctx, &models.User{Email: "alice@example.com", PasswordHash: "h"}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	_, err := repo.Create(ctx, &models.User{Email: "Alice@Example.com", PasswordHash: "h"})
	if !errors.Is(err, common.ErrorAlreadyExists) {
		t.Fatalf("expected ErrorAlreadyExists, got %v", err)
	}
}

func TestSQLite_DeleteAndList(t *testing.T) {
	repo := newSQLiteRepo(t)
	ctx := context.Background()

	a, _ := repo.Create(ctx, &models.User{Email: "a@example.com", PasswordHash: "h"})
	_, _ = repo.Create(ctx, &models.User{Email: "b@example.com", PasswordHash: "h"})

	all, err := repo.List(ctx)
	if err != nil || len(all) != 2 {
		t.Fatalf("List: %d, %v", len(all), err)
	}

	if err := repo.Delete(ctx, a); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := repo.Delete(ctx, a); !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("expected ErrorNotFound on second delete, got %v", err)
	}
	if _, err := repo.GetUserByEmail(ctx, "a@example.com"); !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("expected ErrorNotFound, got %v", err)
	}

	all, _ = repo.List(ctx)
	if len(all) != 1 || all[0].Email != "b@example.com" {
		t.Fatalf("unexpected users: %+v", all)
	}
}
