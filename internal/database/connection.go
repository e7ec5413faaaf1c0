package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"           // PostgreSQL driver
	_ "github.com/mattn/go-sqlite3" // SQLite driver
	"github.com/societygate/gate-backend/internal/config"
)

// Queryer defines the operations used by the repositories. Both a
// connection pool and a transaction satisfy it. Queries are written with ?
// placeholders and passed through Rebind.
type Queryer interface {
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	Rebind(query string) string
	DriverName() string
}

// DB is a Queryer backed by a connection pool
type DB interface {
	Queryer
	PingContext(ctx context.Context) error
	Close() error
}

// SQLDB implements the DB interface using sqlx
type SQLDB struct {
	*sqlx.DB
}

// Wrap adapts an existing sqlx handle, mainly for tests
func Wrap(db *sqlx.DB) *SQLDB {
	return &SQLDB{DB: db}
}

// InTx runs fn inside a transaction, committing when fn returns nil and
// rolling back otherwise
func (db *SQLDB) InTx(ctx context.Context, fn func(tx Queryer) error) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("%w (rollback failed: %v)", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// NewConnection creates a new database connection
func NewConnection(cfg config.DatabaseConfig) (*SQLDB, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("database URL is required")
	}

	switch cfg.Driver {
	case "postgres":
		return connectPostgres(cfg)
	case "sqlite3":
		return connectSQLite(cfg)
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", cfg.Driver)
	}
}

func connectPostgres(cfg config.DatabaseConfig) (*SQLDB, error) {
	// Connection poolers (Supavisor, pgbouncer) need the simple protocol
	connectionURL := cfg.URL
	if !strings.Contains(connectionURL, "prefer_simple_protocol") {
		separator := "?"
		if strings.Contains(connectionURL, "?") {
			separator = "&"
		}
		connectionURL = connectionURL + separator + "prefer_simple_protocol=true"
	}

	db, err := sqlx.Connect("postgres", connectionURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxConnections)
	db.SetMaxIdleConns(cfg.MaxIdleConnections)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxLifetime / 2)

	return &SQLDB{DB: db}, nil
}

func connectSQLite(cfg config.DatabaseConfig) (*SQLDB, error) {
	dsn := cfg.URL
	if !strings.Contains(dsn, "_foreign_keys") {
		separator := "?"
		if strings.Contains(dsn, "?") {
			separator = "&"
		}
		dsn = dsn + separator + "_foreign_keys=on&_busy_timeout=5000"
	}

	db, err := sqlx.Connect("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	// SQLite serializes writers; one connection avoids SQLITE_BUSY and keeps :memory: shared
	db.SetMaxOpenConns(1)

	return &SQLDB{DB: db}, nil
}

// OpenSQLiteMemory opens a private in-memory database with the schema applied
func OpenSQLiteMemory(ctx context.Context) (*SQLDB, error) {
	db, err := connectSQLite(config.DatabaseConfig{URL: ":memory:"})
	if err != nil {
		return nil, err
	}
	if err := Migrate(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}
