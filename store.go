package aplus

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/xalatechnologies/aplus/exporter"
	"github.com/xalatechnologies/aplus/templates"
)

// ErrOwnerConflict is returned when saving a document id owned by someone else.
var ErrOwnerConflict = errors.New("document belongs to another owner")

// Store wraps a SQLite database holding documents. It is the exporter's
// document reader.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// DocumentSummary is a document without its modules.
type DocumentSummary struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	ModuleCount int       `json:"module_count"`
	UpdatedAt   time.Time `json:"updated_at"`
}

const sqlitePragmas = "_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)&_pragma=cache_size(-8000)"

// NewStore opens (or creates) the SQLite database at path, ensures the data
// directory exists, and creates the schema.
func NewStore(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	// Pragmas in the DSN apply to every pooled connection. WAL lets export
	// reads run alongside document writes; busy_timeout makes writers wait
	// instead of failing with SQLITE_BUSY.
	db, err := sql.Open("sqlite", path+"?"+sqlitePragmas)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(4)
	s := &Store{db: db, now: time.Now}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) ensureSchema() error {
	_, err := s.db.Exec(`
CREATE TABLE IF NOT EXISTS documents (
    id TEXT PRIMARY KEY,
    owner_id TEXT NOT NULL,
    title TEXT NOT NULL DEFAULT '',
    theme TEXT NOT NULL DEFAULT '',
    modules TEXT NOT NULL,
    source_images TEXT NOT NULL,
    updated_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_documents_owner ON documents(owner_id, updated_at);
`)
	return err
}

// Document returns a document by id. It satisfies exporter.DocumentReader.
func (s *Store) Document(ctx context.Context, id string) (*exporter.Document, error) {
	return s.get(ctx, s.db, id)
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Store) get(ctx context.Context, q querier, id string) (*exporter.Document, error) {
	var owner, title, theme, modules, images string
	var updated int64
	err := q.QueryRowContext(ctx, `SELECT owner_id, title, theme, modules, source_images, updated_at FROM documents WHERE id = ?`, id).
		Scan(&owner, &title, &theme, &modules, &images, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", exporter.ErrDocumentNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	doc := &exporter.Document{
		ID:        id,
		OwnerID:   owner,
		Title:     title,
		UpdatedAt: time.UnixMilli(updated).UTC(),
	}
	if theme != "" {
		doc.Theme = new(templates.Theme)
		if err := json.Unmarshal([]byte(theme), doc.Theme); err != nil {
			return nil, fmt.Errorf("decode theme of %s: %w", id, err)
		}
	}
	if err := json.Unmarshal([]byte(modules), &doc.Modules); err != nil {
		return nil, fmt.Errorf("decode modules of %s: %w", id, err)
	}
	if err := json.Unmarshal([]byte(images), &doc.SourceImages); err != nil {
		return nil, fmt.Errorf("decode source images of %s: %w", id, err)
	}
	return doc, nil
}

// SaveDocument inserts or replaces a document. A document id already owned
// by another owner is rejected with ErrOwnerConflict.
func (s *Store) SaveDocument(ctx context.Context, doc *exporter.Document) error {
	doc.UpdatedAt = s.now().UTC()
	return s.put(ctx, s.db, doc)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *Store) put(ctx context.Context, x execer, doc *exporter.Document) error {
	var theme []byte
	if !doc.Theme.IsZero() {
		var err error
		if theme, err = json.Marshal(doc.Theme); err != nil {
			return err
		}
	}
	modules := doc.Modules
	if modules == nil {
		modules = []exporter.Module{}
	}
	mods, err := json.Marshal(modules)
	if err != nil {
		return err
	}
	images := doc.SourceImages
	if images == nil {
		images = []string{}
	}
	imgs, err := json.Marshal(images)
	if err != nil {
		return err
	}
	res, err := x.ExecContext(ctx, `
INSERT INTO documents (id, owner_id, title, theme, modules, source_images, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
    title = excluded.title,
    theme = excluded.theme,
    modules = excluded.modules,
    source_images = excluded.source_images,
    updated_at = excluded.updated_at
WHERE documents.owner_id = excluded.owner_id`,
		doc.ID, doc.OwnerID, doc.Title, string(theme), string(mods), string(imgs), doc.UpdatedAt.UnixMilli())
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrOwnerConflict, doc.ID)
	}
	return nil
}

// GetDocument returns an owner's document. Documents of other owners are
// reported as not found.
func (s *Store) GetDocument(ctx context.Context, owner, id string) (*exporter.Document, error) {
	doc, err := s.Document(ctx, id)
	if err != nil {
		return nil, err
	}
	if doc.OwnerID != owner {
		return nil, fmt.Errorf("%w: %s", exporter.ErrDocumentNotFound, id)
	}
	return doc, nil
}

// ListDocuments returns an owner's documents, most recently updated first.
func (s *Store) ListDocuments(ctx context.Context, owner string) ([]DocumentSummary, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, title, json_array_length(modules), updated_at FROM documents WHERE owner_id = ? ORDER BY updated_at DESC, id`, owner)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []DocumentSummary
	for rows.Next() {
		var d DocumentSummary
		var updated int64
		if err := rows.Scan(&d.ID, &d.Title, &d.ModuleCount, &updated); err != nil {
			return nil, err
		}
		d.UpdatedAt = time.UnixMilli(updated).UTC()
		out = append(out, d)
	}
	return out, rows.Err()
}

// DeleteDocument removes an owner's document.
func (s *Store) DeleteDocument(ctx context.Context, owner, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE id = ? AND owner_id = ?`, id, owner)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", exporter.ErrDocumentNotFound, id)
	}
	return nil
}

// AddSourceImage appends a source image URL to an owner's document.
func (s *Store) AddSourceImage(ctx context.Context, owner, id, url string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	doc, err := s.get(ctx, tx, id)
	if err != nil {
		return err
	}
	if doc.OwnerID != owner {
		return fmt.Errorf("%w: %s", exporter.ErrDocumentNotFound, id)
	}
	doc.SourceImages = append(doc.SourceImages, url)
	doc.UpdatedAt = s.now().UTC()
	if err := s.put(ctx, tx, doc); err != nil {
		return err
	}
	return tx.Commit()
}
