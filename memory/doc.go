// Package memory gives a conversational agent durable, multi-faceted
// memory of a user: discrete personal facts, a raw conversation log, and
// a semantically searchable archive of past exchanges.
//
// Architecture:
//   - FactStore: per-user ordered, deduplicated fact lists keyed by entity
//   - HistoryLog: per-(user, session) append-only chat turns
//   - SemanticIndex: per-user embedded records with similarity retrieval
//   - Manager: orchestrates the three stores and assembles a bounded
//     ContextBundle for prompt construction
//
// The stores persist through small collaborator interfaces (KV, TurnLog,
// VectorStore) so the storage medium stays swappable:
//   - store/memdoc: in-memory, for tests and throwaway sessions
//   - store/sqlitedoc: local SQLite file
//   - store/firestoredoc: Cloud Firestore
//   - store/chromem: embedded chromem-go vector database
//
// Embeddings come from an Embedder; embedder/failover wraps a remote
// primary and a local fallback behind a one-way latch so a flaky remote
// backend can never take the conversation down.
package memory
