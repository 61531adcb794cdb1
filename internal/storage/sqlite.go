package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	// SQLite driver registration.
	_ "github.com/mattn/go-sqlite3"

	"github.com/loomlabs/loom/internal/types"
)

// SQLiteConfig holds SQLite backend configuration.
type SQLiteConfig struct {
	Path            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	BusyTimeout     time.Duration
}

// DefaultSQLiteConfig returns sensible defaults for the given database path.
func DefaultSQLiteConfig(path string) SQLiteConfig {
	return SQLiteConfig{
		Path:            path,
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxLifetime: time.Hour,
		BusyTimeout:     5 * time.Second,
	}
}

// SQLiteStorage is a durable Storage backend over a single SQLite database.
// Documents of every kind share one table with the body stored as JSON;
// filters and sorting are applied in-process after the kind scan, which
// keeps filter semantics identical to the in-memory backend.
type SQLiteStorage struct {
	cfg  SQLiteConfig
	conn *sql.DB

	mu    sync.Mutex
	repos map[string]*sqliteRepository
}

// NewSQLiteStorage creates a SQLite storage with the given configuration.
// Connect must be called before use.
func NewSQLiteStorage(cfg SQLiteConfig) *SQLiteStorage {
	return &SQLiteStorage{
		cfg:   cfg,
		repos: make(map[string]*sqliteRepository),
	}
}

// Connect opens the database with WAL mode and a busy timeout, and
// verifies the connection with a ping.
func (s *SQLiteStorage) Connect(ctx context.Context) error {
	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=%d",
		s.cfg.Path,
		int(s.cfg.BusyTimeout.Milliseconds()),
	)

	conn, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return types.WrapError(types.STORAGE_OPEN_FAILED, "failed to open database", err)
	}

	conn.SetMaxOpenConns(s.cfg.MaxOpenConns)
	conn.SetMaxIdleConns(s.cfg.MaxIdleConns)
	conn.SetConnMaxLifetime(s.cfg.ConnMaxLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := conn.PingContext(pingCtx); err != nil {
		conn.Close()
		return types.WrapError(types.STORAGE_OPEN_FAILED, "failed to ping database", err)
	}

	s.conn = conn
	return nil
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	if s.conn == nil {
		return nil
	}
	return s.conn.Close()
}

// Migrate creates the documents table and its kind index.
func (s *SQLiteStorage) Migrate(ctx context.Context) error {
	const schema = `
CREATE TABLE IF NOT EXISTS documents (
	kind TEXT NOT NULL,
	id   TEXT NOT NULL,
	body TEXT NOT NULL,
	PRIMARY KEY (kind, id)
);
CREATE INDEX IF NOT EXISTS idx_documents_kind ON documents(kind);`

	if _, err := s.conn.ExecContext(ctx, schema); err != nil {
		return types.WrapError(types.STORAGE_MIGRATION_FAILED, "failed to create documents table", err)
	}
	return nil
}

// GetRepository returns the repository for kind, creating it on first use.
func (s *SQLiteStorage) GetRepository(kind string) Repository {
	s.mu.Lock()
	defer s.mu.Unlock()

	repo, ok := s.repos[kind]
	if !ok {
		repo = &sqliteRepository{storage: s, kind: kind}
		s.repos[kind] = repo
	}
	return repo
}

type sqliteRepository struct {
	storage *SQLiteStorage
	kind    string
}

func (r *sqliteRepository) Insert(ctx context.Context, doc Document) (types.ID, error) {
	stored := copyDocument(doc)
	id := stored.ID()
	if id.IsZero() {
		id = types.NewID()
		stored["id"] = id.String()
	}

	body, err := json.Marshal(stored)
	if err != nil {
		return "", types.WrapError(types.STORAGE_INSERT_FAILED, "failed to encode document", err)
	}

	_, err = r.storage.conn.ExecContext(ctx,
		`INSERT INTO documents (kind, id, body) VALUES (?, ?, ?)`,
		r.kind, id.String(), string(body),
	)
	if err != nil {
		return "", types.WrapError(types.STORAGE_INSERT_FAILED, "failed to insert document", err)
	}

	return id, nil
}

func (r *sqliteRepository) Update(ctx context.Context, id types.ID, set Document, push Document) error {
	doc, err := r.load(ctx, id)
	if err != nil {
		return err
	}
	if doc == nil {
		return types.NewError(types.STORAGE_UPDATE_FAILED, "no document with id "+id.String())
	}

	for field, value := range set {
		if field == "id" {
			continue
		}
		doc[field] = value
	}

	for field, value := range push {
		list, _ := doc[field].([]any)
		doc[field] = append(list, value)
	}

	body, err := json.Marshal(doc)
	if err != nil {
		return types.WrapError(types.STORAGE_UPDATE_FAILED, "failed to encode document", err)
	}

	_, err = r.storage.conn.ExecContext(ctx,
		`UPDATE documents SET body = ? WHERE kind = ? AND id = ?`,
		string(body), r.kind, id.String(),
	)
	if err != nil {
		return types.WrapError(types.STORAGE_UPDATE_FAILED, "failed to update document", err)
	}
	return nil
}

func (r *sqliteRepository) Find(ctx context.Context, filter Filter, opts *FindOptions) ([]Document, error) {
	rows, err := r.storage.conn.QueryContext(ctx,
		`SELECT body FROM documents WHERE kind = ? ORDER BY rowid`,
		r.kind,
	)
	if err != nil {
		return nil, types.WrapError(types.STORAGE_QUERY_FAILED, "failed to query documents", err)
	}
	defer rows.Close()

	matched := make([]Document, 0)
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, types.WrapError(types.STORAGE_QUERY_FAILED, "failed to scan document", err)
		}

		var doc Document
		if err := json.Unmarshal([]byte(body), &doc); err != nil {
			return nil, types.WrapError(types.STORAGE_QUERY_FAILED, "failed to decode document", err)
		}

		if filter == nil || filter.Matches(doc) {
			matched = append(matched, doc)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, types.WrapError(types.STORAGE_QUERY_FAILED, "failed to iterate documents", err)
	}

	if opts != nil {
		sortDocuments(matched, opts.Sort)
	}
	return applyWindow(matched, opts), nil
}

func (r *sqliteRepository) FindOne(ctx context.Context, filter Filter) (Document, error) {
	docs, err := r.Find(ctx, filter, &FindOptions{Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, nil
	}
	return docs[0], nil
}

func (r *sqliteRepository) Delete(ctx context.Context, id types.ID) error {
	_, err := r.storage.conn.ExecContext(ctx,
		`DELETE FROM documents WHERE kind = ? AND id = ?`,
		r.kind, id.String(),
	)
	if err != nil {
		return types.WrapError(types.STORAGE_DELETE_FAILED, "failed to delete document", err)
	}
	return nil
}

func (r *sqliteRepository) DeleteAll(ctx context.Context) error {
	_, err := r.storage.conn.ExecContext(ctx,
		`DELETE FROM documents WHERE kind = ?`, r.kind,
	)
	if err != nil {
		return types.WrapError(types.STORAGE_DELETE_FAILED, "failed to delete documents", err)
	}
	return nil
}

func (r *sqliteRepository) load(ctx context.Context, id types.ID) (Document, error) {
	row := r.storage.conn.QueryRowContext(ctx,
		`SELECT body FROM documents WHERE kind = ? AND id = ?`,
		r.kind, id.String(),
	)

	var body string
	if err := row.Scan(&body); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, types.WrapError(types.STORAGE_QUERY_FAILED, "failed to load document", err)
	}

	var doc Document
	if err := json.Unmarshal([]byte(body), &doc); err != nil {
		return nil, types.WrapError(types.STORAGE_QUERY_FAILED, "failed to decode document", err)
	}
	return doc, nil
}
