// Package firestoredoc implements the KV and TurnLog collaborators on
// Cloud Firestore, for deployments where memory must outlive the host.
// Documents live in one collection keyed by escaped store key; log
// entries live in per-key subcollections ordered by creation time.
package firestoredoc

import (
	"context"
	"errors"
	"net/url"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/lethanhdat/membank/memory"
)

const (
	documentsCollection = "documents"
	logsCollection      = "logs"
	entriesCollection   = "entries"
)

// Store is a Firestore-backed document and log store.
type Store struct {
	client *firestore.Client
}

// New connects to the given Firestore project and database.
func New(ctx context.Context, projectID, databaseID string) (*Store, error) {
	if projectID == "" {
		return nil, goerr.New("firestore project id is required")
	}
	if databaseID == "" {
		databaseID = firestore.DefaultDatabaseID
	}

	client, err := firestore.NewClientWithDatabase(ctx, projectID, databaseID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create firestore client",
			goerr.V("project", projectID), goerr.V("database", databaseID))
	}
	return &Store{client: client}, nil
}

// docID escapes store keys, which may contain "/", into valid Firestore
// document IDs.
func docID(key string) string {
	return url.PathEscape(key)
}

type storedDoc struct {
	Doc       []byte    `firestore:"doc"`
	UpdatedAt time.Time `firestore:"updated_at"`
}

type storedEntry struct {
	Entry     []byte    `firestore:"entry"`
	CreatedAt time.Time `firestore:"created_at"`
}

// Get returns the document stored under key, or memory.ErrNotFound.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	snap, err := s.client.Collection(documentsCollection).Doc(docID(key)).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, memory.ErrNotFound
		}
		return nil, goerr.Wrap(err, "failed to read document", goerr.V("key", key))
	}

	var doc storedDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, goerr.Wrap(err, "failed to decode document", goerr.V("key", key))
	}
	return doc.Doc, nil
}

// Put stores the document under key, replacing any previous value.
func (s *Store) Put(ctx context.Context, key string, doc []byte) error {
	_, err := s.client.Collection(documentsCollection).Doc(docID(key)).Set(ctx, storedDoc{
		Doc:       doc,
		UpdatedAt: time.Now().UTC(),
	})
	if err != nil {
		return goerr.Wrap(err, "failed to write document", goerr.V("key", key))
	}
	return nil
}

// Delete removes the document under key. Deleting an absent key is a no-op.
func (s *Store) Delete(ctx context.Context, key string) error {
	_, err := s.client.Collection(documentsCollection).Doc(docID(key)).Delete(ctx)
	if err != nil && status.Code(err) != codes.NotFound {
		return goerr.Wrap(err, "failed to delete document", goerr.V("key", key))
	}
	return nil
}

func (s *Store) entries(key string) *firestore.CollectionRef {
	return s.client.Collection(logsCollection).Doc(docID(key)).Collection(entriesCollection)
}

// Append adds an entry to the ordered log under key.
func (s *Store) Append(ctx context.Context, key string, entry []byte) error {
	_, _, err := s.entries(key).Add(ctx, storedEntry{
		Entry:     entry,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		return goerr.Wrap(err, "failed to append log entry", goerr.V("key", key))
	}
	return nil
}

// Scan returns the log entries under key in creation order.
func (s *Store) Scan(ctx context.Context, key string) ([][]byte, error) {
	iter := s.entries(key).OrderBy("created_at", firestore.Asc).Documents(ctx)
	defer iter.Stop()

	var out [][]byte
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to scan log", goerr.V("key", key))
		}

		var entry storedEntry
		if err := snap.DataTo(&entry); err != nil {
			return nil, goerr.Wrap(err, "failed to decode log entry", goerr.V("key", key))
		}
		out = append(out, entry.Entry)
	}
	return out, nil
}

// Clear removes the entire log under key; other keys are untouched.
// A clear that leaves entries behind must not look successful, so every
// queued delete is checked after the writer flushes.
func (s *Store) Clear(ctx context.Context, key string) error {
	iter := s.entries(key).Documents(ctx)
	defer iter.Stop()

	bw := s.client.BulkWriter(ctx)
	var jobs []*firestore.BulkWriterJob
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return goerr.Wrap(err, "failed to list log for clearing", goerr.V("key", key))
		}
		job, err := bw.Delete(snap.Ref)
		if err != nil {
			return goerr.Wrap(err, "failed to queue log entry deletion", goerr.V("key", key))
		}
		jobs = append(jobs, job)
	}
	bw.End()

	var errs []error
	for _, job := range jobs {
		if _, err := job.Results(); err != nil {
			errs = append(errs, goerr.Wrap(err, "log entry not deleted", goerr.V("key", key)))
		}
	}
	return errors.Join(errs...)
}

// Close releases the underlying client.
func (s *Store) Close() error {
	return s.client.Close()
}
