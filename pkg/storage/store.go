package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	"github.com/oarkflow/errors"
	_ "modernc.org/sqlite"
)

// Config controls how the storage layer is initialized.
type Config struct {
	Driver string
	DSN    string
}

// Store persists named workspaces and the history of evaluated programs.
type Store struct {
	db     *sql.DB
	driver string
}

// New opens the database for cfg.Driver and runs the migrations.
func New(cfg Config) (*Store, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if driver == "" {
		driver = "sqlite"
	}
	var (
		db  *sql.DB
		err error
	)
	switch driver {
	case "sqlite":
		db, err = openSQLite(cfg.DSN)
	case "postgres", "mysql":
		if cfg.DSN == "" {
			return nil, errors.New("storage dsn is required for " + driver)
		}
		db, err = sql.Open(driver, cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", driver, err)
	}
	store := &Store{db: db, driver: driver}
	if err := store.migrate(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

func openSQLite(path string) (*sql.DB, error) {
	if path == "" {
		path = "data/calc.db"
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create data directory: %w", err)
		}
	}
	dsn := fmt.Sprintf("%s?_pragma=busy_timeout(5000)&_time_format=sqlite", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetConnMaxLifetime(time.Minute * 5)
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	return db, nil
}

// Driver reports the database/sql driver name in use.
func (s *Store) Driver() string {
	return s.driver
}

// Close releases all database resources.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) migrate(ctx context.Context) error {
	text, stamp, double := "TEXT", "DATETIME", "REAL"
	switch s.driver {
	case "mysql":
		text, stamp, double = "VARCHAR(255)", "DATETIME(6)", "DOUBLE"
	case "postgres":
		stamp, double = "TIMESTAMP", "DOUBLE PRECISION"
	}
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS workspaces (
			name ` + text + ` PRIMARY KEY,
			bindings TEXT NOT NULL,
			updated_at ` + stamp + ` NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS run_history (
			id ` + text + ` PRIMARY KEY,
			session ` + text + `,
			source TEXT NOT NULL,
			output TEXT,
			error TEXT,
			duration ` + double + ` NOT NULL DEFAULT 0,
			created_at ` + stamp + ` NOT NULL
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("run migration: %w", err)
		}
	}
	if _, err := s.db.ExecContext(ctx, `CREATE INDEX idx_run_history_created_at ON run_history(created_at)`); err != nil {
		msg := strings.ToLower(err.Error())
		if !strings.Contains(msg, "already exists") && !strings.Contains(msg, "duplicate key name") {
			return fmt.Errorf("run migration: %w", err)
		}
	}
	return nil
}

// rebind rewrites '?' placeholders into the driver's native form.
func (s *Store) rebind(query string) string {
	if s.driver != "postgres" {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func nullString(v string) interface{} {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return v
}
