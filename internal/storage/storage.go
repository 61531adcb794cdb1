// Package storage provides the key-oriented document store backing goals
// and scheduled tasks. A Storage hands out one Repository per document kind;
// repositories support filtered queries with per-field operators, sorting,
// and pagination. Two backends exist: an in-memory store for tests and
// embedded use, and a SQLite store for durable persistence.
package storage

import (
	"context"

	"github.com/loomlabs/loom/internal/types"
)

// Document is a single stored record. Every persisted document carries an
// "id" field holding its types.ID as a string.
type Document map[string]any

// ID returns the document's id field, or the zero ID if absent.
func (d Document) ID() types.ID {
	s, _ := d["id"].(string)
	return types.ID(s)
}

// Repository is a key-oriented document collection of one kind.
type Repository interface {
	// Insert stores a new document and returns its id. If the document has
	// no "id" field one is assigned.
	Insert(ctx context.Context, doc Document) (types.ID, error)

	// Update applies set (field overwrite) and push (append to list fields)
	// to the document with the given id.
	Update(ctx context.Context, id types.ID, set Document, push Document) error

	// Find returns all documents matching filter, honoring opts for
	// sorting and pagination. A nil filter matches everything.
	Find(ctx context.Context, filter Filter, opts *FindOptions) ([]Document, error)

	// FindOne returns the first document matching filter, or nil if none
	// matches.
	FindOne(ctx context.Context, filter Filter) (Document, error)

	// Delete removes the document with the given id. Deleting a missing
	// document is not an error.
	Delete(ctx context.Context, id types.ID) error

	// DeleteAll removes every document in the repository.
	DeleteAll(ctx context.Context) error
}

// Storage manages repositories by kind and the lifecycle of the underlying
// store.
type Storage interface {
	// GetRepository returns the repository for the given kind, creating it
	// on first use. Repeated calls with the same kind return the same
	// repository.
	GetRepository(kind string) Repository

	// Connect opens the underlying store.
	Connect(ctx context.Context) error

	// Close releases the underlying store.
	Close() error

	// Migrate performs index and schema setup. Backends without schemas
	// treat this as a no-op.
	Migrate(ctx context.Context) error
}
