// Package store persists mesh state in SQLite or PostgreSQL.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/cyberorg/sparagliding-meshmap/config"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// DB is the shared handle. Every query goes through Q so the same SQL runs
// on both backends.
type DB struct {
	*sql.DB
	dialect dialect
}

// Open connects to the configured backend and applies the schema.
func Open(cfg *config.DatabaseConfig) (*DB, error) {
	var (
		driverName, dsn string
		d               dialect
	)
	switch cfg.Driver {
	case "sqlite":
		driverName, d = "sqlite", sqliteDialect{}
		dsn = fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", cfg.SQLite.Path)
	case "postgres":
		pg := cfg.Postgres
		driverName, d = "pgx", postgresDialect{}
		dsn = fmt.Sprintf("host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
			pg.Host, pg.Port, pg.Database, pg.User, pg.Password, pg.SSLMode)
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", cfg.Driver)
	}

	sqlDB, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.Driver, err)
	}
	if cfg.Driver == "sqlite" {
		// a single connection keeps writers from hitting SQLITE_BUSY
		sqlDB.SetMaxOpenConns(1)
	}
	db := &DB{DB: sqlDB, dialect: d}
	if _, err := db.Exec(d.schema()); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("migrate %s: %w", cfg.Driver, err)
	}
	return db, nil
}

// Q adapts a query written with ? placeholders to the backend.
func (db *DB) Q(query string) string {
	return db.dialect.bind(query)
}

func (db *DB) ts(t time.Time) any {
	return db.dialect.timestamp(t)
}

// insertID runs an INSERT ... RETURNING id and returns the new id.
func (db *DB) insertID(ctx context.Context, query string, args ...any) (int64, error) {
	var id int64
	err := db.QueryRowContext(ctx, db.Q(query+" RETURNING id"), args...).Scan(&id)
	return id, err
}

// notFound maps sql.ErrNoRows to a found=false result.
func notFound(err error) (bool, error) {
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
