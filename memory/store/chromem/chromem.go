// Package chromem implements memory.VectorStore over chromem-go, a pure
// Go embedded vector database. Each user gets their own collection for
// namespace isolation.
package chromem

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"
	chromem "github.com/philippgille/chromem-go"

	"github.com/lethanhdat/membank/memory"
)

// reserved metadata keys used for record round-tripping.
const (
	metaType      = "type"
	metaUserID    = "user_id"
	metaCreatedAt = "created_at"
)

// Store is a chromem-go backed vector store.
type Store struct {
	db          *chromem.DB
	collections map[string]*chromem.Collection
	mu          sync.RWMutex
}

// New creates an in-memory store.
func New() (*Store, error) {
	return &Store{
		db:          chromem.NewDB(),
		collections: make(map[string]*chromem.Collection),
	}, nil
}

// NewPersistent creates a store that persists collections under path.
func NewPersistent(path string) (*Store, error) {
	db, err := chromem.NewPersistentDB(path, true)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to open persistent vector db", goerr.V("path", path))
	}
	return &Store{
		db:          db,
		collections: make(map[string]*chromem.Collection),
	}, nil
}

func collectionName(userID string) string {
	if userID == "" {
		return "global"
	}
	return fmt.Sprintf("user_%s", userID)
}

func (s *Store) collection(userID string) (*chromem.Collection, error) {
	s.mu.RLock()
	col, ok := s.collections[userID]
	s.mu.RUnlock()
	if ok {
		return col, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if col, ok := s.collections[userID]; ok {
		return col, nil
	}

	// Embeddings are always provided by the caller, so no embedding func.
	col, err := s.db.GetOrCreateCollection(collectionName(userID), nil, nil)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create collection", goerr.V("user_id", userID))
	}
	s.collections[userID] = col
	return col, nil
}

// Insert persists a record with its embedding.
func (s *Store) Insert(ctx context.Context, userID string, rec memory.Record) error {
	col, err := s.collection(userID)
	if err != nil {
		return err
	}

	metadata := map[string]string{
		metaType:      string(rec.Type),
		metaUserID:    userID,
		metaCreatedAt: rec.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
	for k, v := range rec.Metadata {
		switch k {
		case metaType, metaUserID, metaCreatedAt:
			continue
		default:
			metadata[k] = v
		}
	}

	doc := chromem.Document{
		ID:        rec.ID,
		Content:   rec.Content,
		Embedding: rec.Embedding,
		Metadata:  metadata,
	}
	if err := col.AddDocument(ctx, doc); err != nil {
		return goerr.Wrap(err, "failed to add document", goerr.V("record_id", rec.ID))
	}
	return nil
}

// Query retrieves the records nearest to the embedding, highest
// similarity first.
func (s *Store) Query(ctx context.Context, userID string, embedding []float32, limit int) ([]memory.Record, error) {
	col, err := s.collection(userID)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		return nil, nil
	}

	// chromem requires nResults <= collection size.
	if count := col.Count(); limit > count {
		limit = count
	}
	if limit == 0 {
		return nil, nil
	}

	results, err := col.QueryEmbedding(ctx, embedding, limit, nil, nil)
	if err != nil {
		// The collection may have shrunk between Count and Query; treat
		// that as an empty result, not a failure.
		if isInsufficientDocsError(err) {
			return nil, nil
		}
		return nil, goerr.Wrap(err, "vector query failed", goerr.V("user_id", userID))
	}

	records := make([]memory.Record, 0, len(results))
	for _, result := range results {
		records = append(records, toRecord(result))
	}
	return records, nil
}

// Count returns the number of records stored for the user.
func (s *Store) Count(ctx context.Context, userID string) (int, error) {
	col, err := s.collection(userID)
	if err != nil {
		return 0, err
	}
	return col.Count(), nil
}

// Purge drops the user's collection entirely.
func (s *Store) Purge(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.db.DeleteCollection(collectionName(userID)); err != nil {
		return goerr.Wrap(err, "failed to delete collection", goerr.V("user_id", userID))
	}
	delete(s.collections, userID)
	return nil
}

// Close releases resources. chromem keeps everything in process memory,
// so there is nothing to release.
func (s *Store) Close() error {
	return nil
}

func toRecord(result chromem.Result) memory.Record {
	createdAt, _ := time.Parse(time.RFC3339Nano, result.Metadata[metaCreatedAt])

	var custom map[string]string
	for k, v := range result.Metadata {
		switch k {
		case metaType, metaUserID, metaCreatedAt:
			continue
		}
		if custom == nil {
			custom = make(map[string]string)
		}
		custom[k] = v
	}

	return memory.Record{
		ID:         result.ID,
		UserID:     result.Metadata[metaUserID],
		Content:    result.Content,
		Type:       memory.RecordType(result.Metadata[metaType]),
		Embedding:  result.Embedding,
		Metadata:   custom,
		Similarity: result.Similarity,
		CreatedAt:  createdAt,
	}
}

// isInsufficientDocsError matches chromem's error for nResults larger
// than the collection.
func isInsufficientDocsError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "nResults must be") || strings.Contains(msg, "number of documents")
}
