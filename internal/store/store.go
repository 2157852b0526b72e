package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/eddmann/whatsapp-archive/internal/store/migrations"
)

// MigrationsTable keeps our schema version apart from any table the bridge
// may create in the same file.
const MigrationsTable = "archive_schema_migrations"

var errClosed = errors.New("database not open")

// DB wraps the chat history database written by the bridge. The only table
// we own in it is contact_nicknames.
type DB struct {
	Messages *sql.DB
	path     string
}

// MigrateResult describes what happened during migration.
type MigrateResult struct {
	Version uint
	Dirty   bool
	Changed bool
}

// Open opens the chat history database at the given path and applies the
// nickname schema.
func Open(dbPath string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o700); err != nil {
		return nil, fmt.Errorf("failed to create db dir: %w", err)
	}

	connStr := fmt.Sprintf("file:%s?_foreign_keys=on&_busy_timeout=5000", dbPath)
	mdb, err := sql.Open(driverName, connStr)
	if err != nil {
		return nil, storageErr("open messages db", err)
	}

	// SQLite allows a single writer; the bridge is usually another one.
	mdb.SetMaxOpenConns(1)

	d := &DB{Messages: mdb, path: dbPath}
	if _, err := d.Migrate(); err != nil {
		_ = mdb.Close()
		return nil, err
	}
	return d, nil
}

// Path returns the file the database was opened from.
func (d *DB) Path() string {
	if d == nil {
		return ""
	}
	return d.path
}

// Migrate runs all pending migrations. The underlying connection stays open.
func (d *DB) Migrate() (*MigrateResult, error) {
	if err := d.ready(); err != nil {
		return nil, storageErr("migrate", err)
	}

	source, err := iofs.New(migrations.FS, ".")
	if err != nil {
		return nil, fmt.Errorf("migration source: %w", err)
	}

	driver, err := sqlite3.WithInstance(d.Messages, &sqlite3.Config{MigrationsTable: MigrationsTable})
	if err != nil {
		return nil, storageErr("migration driver", err)
	}

	// m.Close would close d.Messages through the driver, so it is never called.
	m, err := migrate.NewWithInstance("iofs", source, "sqlite3", driver)
	if err != nil {
		return nil, fmt.Errorf("migration instance: %w", err)
	}

	err = m.Up()
	changed := true
	if errors.Is(err, migrate.ErrNoChange) {
		changed = false
		err = nil
	}
	if err != nil {
		return nil, storageErr("migration up", err)
	}

	version, dirty, _ := m.Version()
	return &MigrateResult{Version: version, Dirty: dirty, Changed: changed}, nil
}

// Close closes the database connection.
func (d *DB) Close() error {
	if d == nil || d.Messages == nil {
		return nil
	}
	return d.Messages.Close()
}

// CloseQuietly closes the database connection, ignoring any errors.
func (d *DB) CloseQuietly() {
	_ = d.Close()
}

// Ping checks that the database answers.
func (d *DB) Ping(ctx context.Context) error {
	if err := d.ready(); err != nil {
		return storageErr("ping messages db", err)
	}
	return storageErr("ping messages db", d.Messages.PingContext(ctx))
}

// HasBridgeSchema reports whether the chats and messages tables exist.
func (d *DB) HasBridgeSchema(ctx context.Context) (bool, error) {
	if err := d.ready(); err != nil {
		return false, storageErr("inspect schema", err)
	}
	var n int
	err := d.Messages.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name IN ('chats', 'messages')`).Scan(&n)
	if err != nil {
		return false, storageErr("inspect schema", err)
	}
	return n == 2, nil
}

// Stats returns row counts for the tables the archive reads.
func (d *DB) Stats(ctx context.Context) (DBStats, error) {
	var s DBStats
	var err error
	if s.Chats, err = d.CountChats(ctx, ""); err != nil {
		return s, err
	}
	if s.Messages, err = d.CountMessages(ctx, ""); err != nil {
		return s, err
	}
	if err := d.Messages.QueryRowContext(ctx, "SELECT COUNT(*) FROM contact_nicknames").Scan(&s.Nicknames); err != nil {
		return s, storageErr("count nicknames", err)
	}
	return s, nil
}

func (d *DB) ready() error {
	if d == nil || d.Messages == nil {
		return errClosed
	}
	return nil
}
