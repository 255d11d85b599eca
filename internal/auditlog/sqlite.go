package auditlog

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/sweeney/crowd-signal/internal/logic"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLiteStore mirrors transitions into a queryable SQLite table.
type SQLiteStore struct {
	db    *sql.DB
	runID string
}

// OpenSQLite opens (or creates) the database at path and migrates it to the
// latest schema. runID tags every row written by this process.
func OpenSQLite(path, runID string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.Exec(`PRAGMA journal_mode=WAL; PRAGMA busy_timeout=5000;`); err != nil {
		db.Close()
		return nil, fmt.Errorf("set pragmas: %w", err)
	}
	if err := migrateUp(db); err != nil {
		db.Close()
		return nil, err
	}
	return &SQLiteStore{db: db, runID: runID}, nil
}

func migrateUp(db *sql.DB) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("load migrations: %w", err)
	}
	driver, err := sqlite.WithInstance(db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("create sqlite driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}
	// m is not closed: closing it would close db.
	m.Log = migrateLogger{}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up failed: %w", err)
	}
	return nil
}

// Append inserts one row.
func (s *SQLiteStore) Append(e Entry) error {
	_, err := s.db.Exec(
		`INSERT INTO transitions (
			run_id, timestamp, crowd_count, status_from, status_to, green_duration_s
		) VALUES (?, ?, ?, ?, ?, ?)`,
		s.runID, e.Timestamp.Format(TimestampLayout), e.Count, string(e.From), string(e.To), e.GreenDuration,
	)
	if err != nil {
		return fmt.Errorf("insert transition: %w", err)
	}
	return nil
}

// Recent returns up to limit of the newest entries, newest first.
func (s *SQLiteStore) Recent(limit int) ([]Entry, error) {
	rows, err := s.db.Query(
		`SELECT timestamp, crowd_count, status_from, status_to, green_duration_s
		FROM transitions ORDER BY transition_id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query transitions: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			ts       string
			e        Entry
			from, to string
		)
		if err := rows.Scan(&ts, &e.Count, &from, &to, &e.GreenDuration); err != nil {
			return nil, fmt.Errorf("scan transition: %w", err)
		}
		e.Timestamp, err = time.ParseInLocation(TimestampLayout, ts, time.Local)
		if err != nil {
			return nil, fmt.Errorf("parse timestamp %q: %w", ts, err)
		}
		e.From = logic.Status(from)
		e.To = logic.Status(to)
		out = append(out, e)
	}
	return out, rows.Err()
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type migrateLogger struct{}

func (migrateLogger) Printf(format string, v ...interface{}) {
	log.Printf("[migrate] "+format, v...)
}

func (migrateLogger) Verbose() bool {
	return false
}
