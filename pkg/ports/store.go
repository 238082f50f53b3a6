package ports

import (
	"context"

	"github.com/aretw0/arbor/pkg/domain"
)

// DocumentStore defines the interface for persisting documents.
type DocumentStore interface {
	// Save persists the document under doc.ID, replacing any previous version.
	Save(ctx context.Context, doc *domain.Document) error

	// Load retrieves a document.
	// Returns domain.ErrDocumentNotFound if the document does not exist.
	Load(ctx context.Context, id string) (*domain.Document, error)

	// Delete removes a document. Deleting a missing document is not an error.
	Delete(ctx context.Context, id string) error

	// List returns the ids of stored documents.
	List(ctx context.Context) ([]string, error)
}
