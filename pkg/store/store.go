// Package store persists snapshot documents.
//
// Two backends implement the Store interface:
//   - MemoryStore: in-process, for tests and embedded use
//   - MongoStore: durable, for API deployments
//
// Stores hold the canonical wire form (snapshot.Document), not live
// snapshots: callers replay a loaded document through
// snapshot.FromDocument, which revalidates every record on the way in.
package store

import (
	"context"

	"github.com/matzehuels/stackgate/pkg/snapshot"
)

// Store is the interface for snapshot persistence backends.
type Store interface {
	// Put upserts a document keyed by its ID.
	Put(ctx context.Context, doc snapshot.Document) error

	// Get retrieves a document by ID. A missing document fails with a
	// SNAPSHOT_NOT_FOUND coded error.
	Get(ctx context.Context, id string) (snapshot.Document, error)

	// Delete removes a document. Deleting a missing ID fails with
	// SNAPSHOT_NOT_FOUND.
	Delete(ctx context.Context, id string) error

	// List returns all stored document IDs, sorted.
	List(ctx context.Context) ([]string, error)

	// Close releases backend resources.
	Close(ctx context.Context) error
}
