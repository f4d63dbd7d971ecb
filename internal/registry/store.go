package registry

import (
	"context"

	"github.com/decksmith-ai/decksmith/internal/model"
)

// Store is the durable backend behind the registry cache. Implementations
// persist runs and documents keyed by id; the registry owns all read paths
// after startup, so stores only need LoadAll once and write/delete after.
type Store interface {
	// SaveRun persists one run record, overwriting any previous version.
	SaveRun(ctx context.Context, run *model.Run) error

	// DeleteRun removes a run record. Deleting an absent id is not an error.
	DeleteRun(ctx context.Context, runID string) error

	// SaveDocument persists one document, overwriting any previous version.
	SaveDocument(ctx context.Context, doc *model.Document) error

	// DeleteDocument removes a document. Deleting an absent id is not an error.
	DeleteDocument(ctx context.Context, artifactID string) error

	// LoadAll reads every persisted run and document; called once at startup
	// to warm the registry cache.
	LoadAll(ctx context.Context) ([]*model.Run, []*model.Document, error)

	// Name identifies the backend for health reporting.
	Name() string

	// Close releases backend resources.
	Close() error
}
