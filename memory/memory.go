package memory

import (
	"context"
	"errors"

	"github.com/m-mizutani/goerr/v2"
)

// ErrNotFound is returned by KV.Get for absent keys. Read paths in this
// package treat it as "empty", never as a failure.
var ErrNotFound = goerr.New("document not found")

func isNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// Embedder converts text to fixed-length vectors.
// Implementations: embedder/gemini (remote), embedder/onnx (local model),
// embedder/mock (deterministic, for tests), embedder/failover (wrapper
// combining a primary and a fallback with caching).
type Embedder interface {
	// Embed converts a single text to an embedding vector.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch converts several texts at once. Order is preserved.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the embedding vector size.
	Dimensions() int
}

// KV is the document persistence collaborator for FactStore: whole-record
// read/write/delete by key. Get returns ErrNotFound for absent keys.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, doc []byte) error
	Delete(ctx context.Context, key string) error
}

// TurnLog is the persistence collaborator for HistoryLog: an ordered,
// append-only collection of entries per key. Scan returns entries in
// insertion order; a missing key scans as empty.
type TurnLog interface {
	Append(ctx context.Context, key string, entry []byte) error
	Scan(ctx context.Context, key string) ([][]byte, error)
	Clear(ctx context.Context, key string) error
}

// VectorStore is the nearest-neighbor persistence collaborator for
// SemanticIndex. Records are namespaced by user.
type VectorStore interface {
	// Insert persists a record. The record must carry its embedding.
	Insert(ctx context.Context, userID string, rec Record) error

	// Query returns up to limit records nearest to the embedding,
	// highest similarity first. Fewer records than limit is not an error.
	Query(ctx context.Context, userID string, embedding []float32, limit int) ([]Record, error)

	// Count returns the number of records stored for the user.
	Count(ctx context.Context, userID string) (int, error)

	// Purge removes every record for the user.
	Purge(ctx context.Context, userID string) error

	// Close releases resources.
	Close() error
}
