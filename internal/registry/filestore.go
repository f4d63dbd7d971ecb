package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/decksmith-ai/decksmith/internal/model"
)

// FileStore persists runs and documents as one pretty-printed JSON file per
// id under <dir>/runs and <dir>/artifacts. Writes go to a temp file first
// and rename into place, so a crash mid-write never leaves a truncated
// record behind.
type FileStore struct {
	runsDir string
	docsDir string
}

// NewFileStore creates the storage directories if needed.
func NewFileStore(dir string) (*FileStore, error) {
	fs := &FileStore{
		runsDir: filepath.Join(dir, "runs"),
		docsDir: filepath.Join(dir, "artifacts"),
	}
	for _, d := range []string{fs.runsDir, fs.docsDir} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return nil, fmt.Errorf("filestore: mkdir %s: %w", d, err)
		}
	}
	return fs, nil
}

// Name identifies the backend.
func (fs *FileStore) Name() string { return "file" }

// Close is a no-op; files are closed after every write.
func (fs *FileStore) Close() error { return nil }

// SaveRun writes the run record atomically.
func (fs *FileStore) SaveRun(_ context.Context, run *model.Run) error {
	return writeJSONFile(filepath.Join(fs.runsDir, run.RunID+".json"), run)
}

// DeleteRun removes the run file if present.
func (fs *FileStore) DeleteRun(_ context.Context, runID string) error {
	return removeFile(filepath.Join(fs.runsDir, runID+".json"))
}

// SaveDocument writes the document atomically.
func (fs *FileStore) SaveDocument(_ context.Context, doc *model.Document) error {
	return writeJSONFile(filepath.Join(fs.docsDir, doc.ArtifactID+".json"), doc)
}

// DeleteDocument removes the document file if present.
func (fs *FileStore) DeleteDocument(_ context.Context, artifactID string) error {
	return removeFile(filepath.Join(fs.docsDir, artifactID+".json"))
}

// LoadAll reads every JSON file in both directories. Unreadable files are
// skipped rather than failing startup; the error for a whole-directory read
// failure still propagates.
func (fs *FileStore) LoadAll(_ context.Context) ([]*model.Run, []*model.Document, error) {
	var runs []*model.Run
	if err := loadDir(fs.runsDir, func(data []byte) error {
		var run model.Run
		if err := json.Unmarshal(data, &run); err != nil {
			return err
		}
		runs = append(runs, &run)
		return nil
	}); err != nil {
		return nil, nil, err
	}

	var docs []*model.Document
	if err := loadDir(fs.docsDir, func(data []byte) error {
		var doc model.Document
		if err := json.Unmarshal(data, &doc); err != nil {
			return err
		}
		docs = append(docs, &doc)
		return nil
	}); err != nil {
		return nil, nil, err
	}

	return runs, docs, nil
}

func loadDir(dir string, decode func([]byte) error) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("filestore: read dir %s: %w", dir, err)
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		// A corrupt record should not take the whole service down.
		_ = decode(data)
	}
	return nil
}

func writeJSONFile(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("filestore: marshal: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return fmt.Errorf("filestore: create temp: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("filestore: write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("filestore: close: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("filestore: rename: %w", err)
	}
	return nil
}

func removeFile(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("filestore: remove %s: %w", path, err)
	}
	return nil
}
