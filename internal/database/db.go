// Package database provides SQLite connections and schema setup.
package database

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

//go:embed schemas/*.sql
var schemas embed.FS

// DatabaseProfile selects durability/speed PRAGMAs
type DatabaseProfile string

const (
	// ProfileStandard - balanced, used for price history
	ProfileStandard DatabaseProfile = "standard"
	// ProfileCache - maximum speed for data that can be recomputed
	ProfileCache DatabaseProfile = "cache"
)

// DB wraps a sql.DB with its profile and name
type DB struct {
	conn    *sql.DB
	path    string
	profile DatabaseProfile
	name    string
}

// Config holds database configuration
type Config struct {
	Path    string
	Profile DatabaseProfile
	Name    string // "history" or "cache"; selects the embedded schema
}

// New opens the database, creating its directory when needed. Paths starting
// with "file:" are passed through unchanged (in-memory databases in tests).
func New(cfg Config) (*DB, error) {
	if !strings.HasPrefix(cfg.Path, "file:") {
		absPath, err := filepath.Abs(cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve database path to absolute: %w", err)
		}
		if err := os.MkdirAll(filepath.Dir(absPath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
		cfg.Path = absPath
	}
	if cfg.Profile == "" {
		cfg.Profile = ProfileStandard
	}

	conn, err := sql.Open("sqlite", buildConnectionString(cfg.Path, cfg.Profile))
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w", cfg.Name, err)
	}
	configureConnectionPool(conn, cfg.Profile)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database %s: %w", cfg.Name, err)
	}

	return &DB{
		conn:    conn,
		path:    cfg.Path,
		profile: cfg.Profile,
		name:    cfg.Name,
	}, nil
}

func buildConnectionString(path string, profile DatabaseProfile) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	connStr := path + sep + "_pragma=journal_mode(WAL)"

	switch profile {
	case ProfileCache:
		connStr += "&_pragma=synchronous(OFF)"
		connStr += "&_pragma=auto_vacuum(FULL)"
		connStr += "&_pragma=temp_store(MEMORY)"
	default:
		connStr += "&_pragma=synchronous(NORMAL)"
		connStr += "&_pragma=auto_vacuum(INCREMENTAL)"
		connStr += "&_pragma=temp_store(MEMORY)"
	}

	connStr += "&_pragma=busy_timeout(5000)"
	connStr += "&_pragma=wal_autocheckpoint(1000)"
	connStr += "&_pragma=cache_size(-32000)" // 32MB (negative = KB)
	return connStr
}

func configureConnectionPool(conn *sql.DB, profile DatabaseProfile) {
	conn.SetMaxOpenConns(16)
	conn.SetMaxIdleConns(4)
	conn.SetConnMaxLifetime(24 * time.Hour)
	conn.SetConnMaxIdleTime(30 * time.Minute)

	if profile == ProfileCache {
		conn.SetMaxOpenConns(8)
		conn.SetMaxIdleConns(2)
	}
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.conn.Close()
}

// Conn returns the underlying sql.DB for repositories
func (db *DB) Conn() *sql.DB {
	return db.conn
}

func (db *DB) Name() string {
	return db.name
}

func (db *DB) Profile() DatabaseProfile {
	return db.profile
}

func (db *DB) Path() string {
	return db.path
}

// Migrate applies the embedded schema named after the database. Unknown
// names have no schema and are left alone.
func (db *DB) Migrate() error {
	content, err := schemas.ReadFile("schemas/" + db.name + ".sql")
	if err != nil {
		return nil
	}
	return WithTransaction(db.conn, func(tx *sql.Tx) error {
		if _, err := tx.Exec(string(content)); err != nil {
			return fmt.Errorf("failed to execute schema for %s: %w", db.name, err)
		}
		return nil
	})
}

// WithTransaction runs fn inside a transaction, rolling back on error or
// panic and committing otherwise.
func WithTransaction(db *sql.DB, fn func(*sql.Tx) error) (err error) {
	if db == nil {
		return fmt.Errorf("database connection is nil")
	}
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			err = fmt.Errorf("panic in transaction: %v", p)
		} else if err != nil {
			if rollbackErr := tx.Rollback(); rollbackErr != nil {
				err = fmt.Errorf("transaction failed: %w (rollback also failed: %v)", err, rollbackErr)
			} else {
				err = fmt.Errorf("transaction failed: %w", err)
			}
		} else if commitErr := tx.Commit(); commitErr != nil {
			err = fmt.Errorf("failed to commit transaction: %w", commitErr)
		}
	}()

	err = fn(tx)
	return err
}

// QuickCheck pings the database
func (db *DB) QuickCheck(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// WALStatus runs a passive checkpoint and reports the WAL frame counts.
func (db *DB) WALStatus(ctx context.Context) (frames, checkpointed int, err error) {
	var busy int
	err = db.conn.QueryRowContext(ctx, "PRAGMA wal_checkpoint(PASSIVE)").Scan(&busy, &frames, &checkpointed)
	if err != nil {
		return 0, 0, fmt.Errorf("WAL checkpoint failed for %s: %w", db.name, err)
	}
	return frames, checkpointed, nil
}

// IntegrityCheck runs PRAGMA quick_check and fails unless SQLite reports "ok".
func (db *DB) IntegrityCheck(ctx context.Context) error {
	rows, err := db.conn.QueryContext(ctx, "PRAGMA quick_check")
	if err != nil {
		return fmt.Errorf("integrity check failed for %s: %w", db.name, err)
	}
	defer rows.Close()

	var problems []string
	for rows.Next() {
		var line string
		if err := rows.Scan(&line); err != nil {
			return fmt.Errorf("integrity check failed for %s: %w", db.name, err)
		}
		if line != "ok" {
			problems = append(problems, line)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("integrity check failed for %s: %w", db.name, err)
	}
	if len(problems) > 0 {
		return fmt.Errorf("database %s is corrupt: %s", db.name, strings.Join(problems, "; "))
	}
	return nil
}

// Optimize refreshes query planner statistics. Standard-profile databases
// use incremental auto-vacuum, so free pages are also returned to the OS.
func (db *DB) Optimize(ctx context.Context) error {
	if _, err := db.conn.ExecContext(ctx, "PRAGMA optimize"); err != nil {
		return fmt.Errorf("optimize failed for %s: %w", db.name, err)
	}
	if db.profile == ProfileStandard {
		if _, err := db.conn.ExecContext(ctx, "PRAGMA incremental_vacuum"); err != nil {
			return fmt.Errorf("incremental vacuum failed for %s: %w", db.name, err)
		}
	}
	return nil
}

// Stats describes database size
type Stats struct {
	SizeBytes     int64 `json:"size_bytes"`
	WALSizeBytes  int64 `json:"wal_size_bytes"`
	PageCount     int64 `json:"page_count"`
	PageSize      int64 `json:"page_size"`
	FreelistCount int64 `json:"freelist_count"`
}

// GetStats reads file sizes and page counters
func (db *DB) GetStats(ctx context.Context) (*Stats, error) {
	stats := &Stats{}
	if fi, err := os.Stat(db.path); err == nil {
		stats.SizeBytes = fi.Size()
	}
	if fi, err := os.Stat(db.path + "-wal"); err == nil {
		stats.WALSizeBytes = fi.Size()
	}

	for _, q := range []struct {
		pragma string
		dst    *int64
	}{
		{"page_count", &stats.PageCount},
		{"page_size", &stats.PageSize},
		{"freelist_count", &stats.FreelistCount},
	} {
		if err := db.conn.QueryRowContext(ctx, "PRAGMA "+q.pragma).Scan(q.dst); err != nil {
			return nil, fmt.Errorf("failed to get %s: %w", q.pragma, err)
		}
	}
	return stats, nil
}
