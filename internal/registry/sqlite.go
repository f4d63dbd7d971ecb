package registry

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/decksmith-ai/decksmith/internal/model"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS runs (
	run_id     TEXT PRIMARY KEY,
	data       TEXT NOT NULL,
	created_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS documents (
	artifact_id TEXT PRIMARY KEY,
	data        TEXT NOT NULL,
	created_at  TEXT NOT NULL
);
`

// SQLiteStore persists runs and documents as JSON rows in a single SQLite
// database file. Uses the pure-Go driver, so no cgo toolchain is needed.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (creating if needed) the database at path and applies
// the schema. Pass ":memory:" for an ephemeral store.
func NewSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %s: %w", path, err)
	}
	// The driver serializes access per connection; one connection avoids
	// SQLITE_BUSY under concurrent writes.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: apply schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Name identifies the backend.
func (s *SQLiteStore) Name() string { return "sqlite" }

// Close closes the database.
func (s *SQLiteStore) Close() error { return s.db.Close() }

// SaveRun upserts the run record.
func (s *SQLiteStore) SaveRun(ctx context.Context, run *model.Run) error {
	data, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("sqlite: marshal run: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO runs (run_id, data, created_at) VALUES (?, ?, ?)
		ON CONFLICT(run_id) DO UPDATE SET data = excluded.data`,
		run.RunID, string(data), run.CreatedAt.Format("2006-01-02T15:04:05.999999999Z07:00"))
	if err != nil {
		return fmt.Errorf("sqlite: save run: %w", err)
	}
	return nil
}

// DeleteRun removes the run row if present.
func (s *SQLiteStore) DeleteRun(ctx context.Context, runID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE run_id = ?`, runID); err != nil {
		return fmt.Errorf("sqlite: delete run: %w", err)
	}
	return nil
}

// SaveDocument upserts the document record.
func (s *SQLiteStore) SaveDocument(ctx context.Context, doc *model.Document) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("sqlite: marshal document: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO documents (artifact_id, data, created_at) VALUES (?, ?, ?)
		ON CONFLICT(artifact_id) DO UPDATE SET data = excluded.data`,
		doc.ArtifactID, string(data), doc.CreatedAt.Format("2006-01-02T15:04:05.999999999Z07:00"))
	if err != nil {
		return fmt.Errorf("sqlite: save document: %w", err)
	}
	return nil
}

// DeleteDocument removes the document row if present.
func (s *SQLiteStore) DeleteDocument(ctx context.Context, artifactID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE artifact_id = ?`, artifactID); err != nil {
		return fmt.Errorf("sqlite: delete document: %w", err)
	}
	return nil
}

// LoadAll reads every row from both tables.
func (s *SQLiteStore) LoadAll(ctx context.Context) ([]*model.Run, []*model.Document, error) {
	runs, err := loadRows(ctx, s.db, `SELECT data FROM runs`, func(data []byte) (*model.Run, error) {
		var run model.Run
		if err := json.Unmarshal(data, &run); err != nil {
			return nil, err
		}
		return &run, nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("sqlite: load runs: %w", err)
	}

	docs, err := loadRows(ctx, s.db, `SELECT data FROM documents`, func(data []byte) (*model.Document, error) {
		var doc model.Document
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, err
		}
		return &doc, nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("sqlite: load documents: %w", err)
	}

	return runs, docs, nil
}

func loadRows[T any](ctx context.Context, db *sql.DB, query string, decode func([]byte) (*T, error)) ([]*T, error) {
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []*T
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		item, err := decode([]byte(data))
		if err != nil {
			// Skip corrupt rows; a bad record must not block startup.
			continue
		}
		out = append(out, item)
	}
	return out, rows.Err()
}
