// Package history records finished exports in SQLite and expires old ones.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	_ "modernc.org/sqlite"

	"github.com/xalatechnologies/aplus/compositor"
	"github.com/xalatechnologies/aplus/exporter"
)

// Entry is one recorded export.
type Entry struct {
	ID         int64             `json:"id"`
	DocumentID string            `json:"document_id"`
	OwnerID    string            `json:"owner_id"`
	Path       string            `json:"path"`
	Format     compositor.Format `json:"format"`
	Requested  int               `json:"requested"`
	Rendered   int               `json:"rendered"`
	SizeBytes  int64             `json:"size_bytes"`
	CreatedAt  time.Time         `json:"created_at"`
}

// Store keeps the export history.
type Store struct {
	db     *sql.DB
	logger *log.Logger
	now    func() time.Time
}

// Open opens or creates the history database at dbPath.
func Open(dbPath string, logger *log.Logger) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("open history db: %w", err)
	}
	if logger == nil {
		logger = log.New(io.Discard)
	}
	s := &Store{db: db, logger: logger, now: time.Now}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) ensureSchema() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS exports (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			document_id TEXT NOT NULL,
			owner_id TEXT NOT NULL,
			path TEXT NOT NULL,
			format TEXT NOT NULL,
			requested INTEGER NOT NULL,
			rendered INTEGER NOT NULL,
			size_bytes INTEGER NOT NULL,
			created_at INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_exports_owner ON exports(owner_id, created_at);
		CREATE INDEX IF NOT EXISTS idx_exports_created ON exports(created_at);

		CREATE TABLE IF NOT EXISTS settings (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);
	`)
	return err
}

const currentSchemaVersion = 1

func (s *Store) migrate() error {
	var v string
	err := s.db.QueryRow(`SELECT value FROM settings WHERE key = 'schema_version'`).Scan(&v)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("read schema version: %w", err)
	}
	version := 0
	if v != "" {
		if version, err = strconv.Atoi(v); err != nil {
			return fmt.Errorf("parse schema version %q: %w", v, err)
		}
	}
	if version > currentSchemaVersion {
		return fmt.Errorf("schema version %d is newer than supported %d", version, currentSchemaVersion)
	}
	_, err = s.db.Exec(`INSERT INTO settings (key, value) VALUES ('schema_version', ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, strconv.Itoa(currentSchemaVersion))
	return err
}

// Record stores r. It satisfies exporter.Recorder.
func (s *Store) Record(ctx context.Context, r exporter.Record) error {
	created := r.CreatedAt
	if created.IsZero() {
		created = s.now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO exports (document_id, owner_id, path, format, requested, rendered, size_bytes, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.DocumentID, r.OwnerID, r.Path, string(r.Format), r.Requested, r.Rendered, r.SizeBytes, created.UTC().UnixMilli())
	if err != nil {
		return fmt.Errorf("record export: %w", err)
	}
	return nil
}

// List returns an owner's exports, newest first. limit <= 0 means 50.
func (s *Store) List(ctx context.Context, owner string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, document_id, owner_id, path, format, requested, rendered, size_bytes, created_at
		FROM exports WHERE owner_id = ?
		ORDER BY created_at DESC, id DESC LIMIT ?`, owner, limit)
	if err != nil {
		return nil, fmt.Errorf("list exports: %w", err)
	}
	return scan(rows)
}

// Expire deletes entries created before cutoff and returns them so the
// caller can remove the archives they point at.
func (s *Store) Expire(ctx context.Context, cutoff time.Time) ([]Entry, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	ms := cutoff.UTC().UnixMilli()
	rows, err := tx.QueryContext(ctx, `
		SELECT id, document_id, owner_id, path, format, requested, rendered, size_bytes, created_at
		FROM exports WHERE created_at < ? ORDER BY created_at`, ms)
	if err != nil {
		return nil, fmt.Errorf("select expired: %w", err)
	}
	expired, err := scan(rows)
	if err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM exports WHERE created_at < ?`, ms); err != nil {
		return nil, fmt.Errorf("delete expired: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return expired, nil
}

// StartCleanupScheduler expires entries older than retention every interval
// and passes them to onExpire. It returns a stop function.
func (s *Store) StartCleanupScheduler(retention, interval time.Duration, onExpire func([]Entry)) func() {
	ticker := time.NewTicker(interval)
	done := make(chan struct{})

	go func() {
		for {
			select {
			case <-ticker.C:
				expired, err := s.Expire(context.Background(), s.now().Add(-retention))
				if err != nil {
					s.logger.Error("history cleanup", "err", err)
					continue
				}
				if len(expired) > 0 {
					s.logger.Info("history cleanup", "expired", len(expired))
					if onExpire != nil {
						onExpire(expired)
					}
				}
			case <-done:
				ticker.Stop()
				return
			}
		}
	}()

	return func() { close(done) }
}

func scan(rows *sql.Rows) ([]Entry, error) {
	defer rows.Close()
	var out []Entry
	for rows.Next() {
		var e Entry
		var format string
		var ms int64
		if err := rows.Scan(&e.ID, &e.DocumentID, &e.OwnerID, &e.Path, &format, &e.Requested, &e.Rendered, &e.SizeBytes, &ms); err != nil {
			return nil, err
		}
		e.Format = compositor.Format(format)
		e.CreatedAt = time.UnixMilli(ms).UTC()
		out = append(out, e)
	}
	return out, rows.Err()
}
