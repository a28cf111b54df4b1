package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"

	"github.com/lethanhdat/membank/logging"
)

const (
	// NoRelevantMemory is the sentinel Summarize returns when nothing
	// non-placeholder matches the query.
	NoRelevantMemory = "Không tìm thấy thông tin liên quan trong bộ nhớ."

	// initContent is the text of the bootstrap placeholder record.
	initContent = "Khởi tạo vector store"

	// summarizePreviewLen bounds each record preview inside Summarize.
	summarizePreviewLen = 200
)

// SemanticIndex is the per-user collection of embedded memory records.
// A fresh index is seeded with exactly one init-typed placeholder so the
// underlying nearest-neighbor structure is never empty; the placeholder
// is excluded from every retrieval result.
//
// Add surfaces persistence failures (a silently dropped record corrupts
// long-term memory); Search degrades to no results and only logs.
type SemanticIndex struct {
	userID   string
	store    VectorStore
	embedder Embedder

	bootstrap sync.Once
}

// NewSemanticIndex creates a SemanticIndex for one user.
func NewSemanticIndex(userID string, store VectorStore, embedder Embedder) *SemanticIndex {
	return &SemanticIndex{userID: userID, store: store, embedder: embedder}
}

// ensure seeds the placeholder record the first time the index is touched
// in this process. Safe to race; the underlying store sees one insert.
func (x *SemanticIndex) ensure(ctx context.Context) {
	x.bootstrap.Do(func() {
		n, err := x.store.Count(ctx, x.userID)
		if err != nil {
			logging.From(ctx).Warn("semantic index count failed during bootstrap",
				"user_id", x.userID, "error", err)
			return
		}
		if n > 0 {
			return
		}
		if err := x.seedPlaceholder(ctx); err != nil {
			logging.From(ctx).Warn("semantic index bootstrap failed",
				"user_id", x.userID, "error", err)
		}
	})
}

func (x *SemanticIndex) seedPlaceholder(ctx context.Context) error {
	embedding, err := x.embedder.Embed(ctx, initContent)
	if err != nil {
		// The placeholder only has to exist; a zero vector is fine.
		embedding = make([]float32, x.embedder.Dimensions())
	}
	rec := Record{
		ID:        uuid.New().String(),
		UserID:    x.userID,
		Content:   initContent,
		Type:      RecordInit,
		Embedding: embedding,
		CreatedAt: time.Now().UTC(),
	}
	return x.store.Insert(ctx, x.userID, rec)
}

// Add embeds content and persists it as a memory record of the given type.
func (x *SemanticIndex) Add(ctx context.Context, content string, typ RecordType, metadata map[string]string) error {
	if content == "" {
		return goerr.New("memory record content must not be empty", goerr.V("type", typ))
	}
	x.ensure(ctx)

	embedding, err := x.embedder.Embed(ctx, content)
	if err != nil {
		return goerr.Wrap(err, "failed to embed memory content", goerr.V("user_id", x.userID))
	}

	rec := Record{
		ID:        uuid.New().String(),
		UserID:    x.userID,
		Content:   content,
		Type:      typ,
		Embedding: embedding,
		Metadata:  metadata,
		CreatedAt: time.Now().UTC(),
	}
	if err := x.store.Insert(ctx, x.userID, rec); err != nil {
		return goerr.Wrap(err, "failed to persist memory record",
			goerr.V("user_id", x.userID), goerr.V("type", typ))
	}
	return nil
}

// Search returns up to k records nearest to the query, best match first.
// The init placeholder is filtered out; failures degrade to no results.
func (x *SemanticIndex) Search(ctx context.Context, query string, k int) []Record {
	if k <= 0 {
		return nil
	}
	x.ensure(ctx)

	embedding, err := x.embedder.Embed(ctx, query)
	if err != nil {
		logging.From(ctx).Warn("semantic search embed failed, returning no results",
			"user_id", x.userID, "error", err)
		return nil
	}

	// Ask for one extra so the placeholder, if retrieved, does not eat a
	// slot the caller asked for.
	results, err := x.store.Query(ctx, x.userID, embedding, k+1)
	if err != nil {
		logging.From(ctx).Warn("semantic search query failed, returning no results",
			"user_id", x.userID, "error", err)
		return nil
	}

	filtered := make([]Record, 0, len(results))
	for _, rec := range results {
		if rec.Type == RecordInit {
			continue
		}
		filtered = append(filtered, rec)
		if len(filtered) >= k {
			break
		}
	}
	if len(filtered) == 0 {
		return nil
	}
	return filtered
}

// Summarize renders Search results as a numbered human-readable list, or
// the NoRelevantMemory sentinel when nothing matches.
func (x *SemanticIndex) Summarize(ctx context.Context, query string, k int) string {
	records := x.Search(ctx, query, k)
	if len(records) == 0 {
		return NoRelevantMemory
	}

	parts := make([]string, 0, len(records))
	for i, rec := range records {
		parts = append(parts, fmt.Sprintf("%d. [%s] %s",
			i+1, rec.Type, truncate(rec.Content, summarizePreviewLen)))
	}
	return strings.Join(parts, "\n")
}

// Clear deletes every record for the user and reseeds a fresh placeholder
// so subsequent searches keep working.
func (x *SemanticIndex) Clear(ctx context.Context) error {
	if err := x.store.Purge(ctx, x.userID); err != nil {
		return goerr.Wrap(err, "failed to purge semantic memory", goerr.V("user_id", x.userID))
	}
	if err := x.seedPlaceholder(ctx); err != nil {
		return goerr.Wrap(err, "failed to reseed semantic memory", goerr.V("user_id", x.userID))
	}
	return nil
}
