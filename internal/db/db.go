package db

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/mattn/go-sqlite3"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const (
	journalMode = "WAL"
	busyTimeout = "5000" // 5 seconds
	synchronous = "NORMAL"
	cacheSize   = "-64000" // 64MB
	foreignKeys = "on"
	txLock      = "immediate"
)

type DB struct {
	conn *sql.DB
}

// DSN builds a go-sqlite3 connection string. Pragmas are passed as DSN
// parameters so that every pooled connection gets them, not just the first.
func DSN(path string) string {
	params := make(url.Values)
	params.Add("_journal_mode", journalMode)
	params.Add("_busy_timeout", busyTimeout)
	params.Add("_synchronous", synchronous)
	params.Add("_cache_size", cacheSize)
	params.Add("_foreign_keys", foreignKeys)
	params.Add("_txlock", txLock)
	return fmt.Sprintf("file:%s?%s", path, params.Encode())
}

// Open opens the database without touching the schema.
func Open(path string) (*sql.DB, error) {
	conn, err := sql.Open("sqlite3", DSN(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	conn.SetMaxOpenConns(25)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxLifetime(5 * time.Minute)

	return conn, nil
}

// New opens the database and applies all pending migrations.
func New(path string) (*DB, error) {
	conn, err := Open(path)
	if err != nil {
		return nil, err
	}

	m, err := NewMigrator(conn)
	if err != nil {
		conn.Close()
		return nil, err
	}

	// m.Close would close conn through the sqlite3 driver, so it is left open.
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		conn.Close()
		return nil, fmt.Errorf("migration failed: %w", err)
	}

	return &DB{conn: conn}, nil
}

// NewMigrator returns a golang-migrate instance over the embedded migrations.
func NewMigrator(conn *sql.DB) (*migrate.Migrate, error) {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to load migrations: %w", err)
	}

	driver, err := sqlite3.WithInstance(conn, &sqlite3.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to create migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "sqlite3", driver)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrator: %w", err)
	}
	return m, nil
}

func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) GetConn() *sql.DB {
	return db.conn
}
