package repomanager

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// sqlOpen is a seam for sql.Open.
var sqlOpen = sql.Open

// Open picks a backend from dsn, opens the pool and applies migrations.
// postgres:// and postgresql:// URLs and "key=value" connection strings go
// to the pgx driver. Everything else is SQLite: "sqlite://<path>",
// "sqlite:<path>", "file:<path>", ":memory:" or a bare file path.
func Open(ctx context.Context, dsn string) (*sql.DB, RepositoryManager, error) {
	driver, source, m := backendFor(dsn)

	db, err := sqlOpen(driver, source)
	if err != nil {
		return nil, nil, fmt.Errorf("open %s: %w", driver, err)
	}
	if driver == "sqlite" {
		// one writer; avoids SQLITE_BUSY and keeps :memory: on one connection
		db.SetMaxOpenConns(1)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("ping %s: %w", driver, err)
	}

	if err := m.RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("migrate: %w", err)
	}

	return db, m, nil
}

func backendFor(dsn string) (driver, source string, m RepositoryManager) {
	switch {
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"), isKeyValueDSN(dsn):
		return "pgx", dsn, NewPostgresRepositoryManager()
	case strings.HasPrefix(dsn, "sqlite://"):
		return "sqlite", strings.TrimPrefix(dsn, "sqlite://"), NewSQLiteRepositoryManager()
	case strings.HasPrefix(dsn, "sqlite:"):
		return "sqlite", strings.TrimPrefix(dsn, "sqlite:"), NewSQLiteRepositoryManager()
	default:
		return "sqlite", dsn, NewSQLiteRepositoryManager()
	}
}

// isKeyValueDSN reports a libpq style "host=... dbname=..." string. A file
// URI such as "file:x.db?mode=ro" has '=' only inside its query.
func isKeyValueDSN(dsn string) bool {
	if strings.HasPrefix(dsn, "file:") {
		return false
	}
	first, _, _ := strings.Cut(strings.TrimSpace(dsn), " ")
	return strings.Contains(first, "=")
}
