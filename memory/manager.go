package memory

import (
	"context"
	"errors"
	"fmt"

	"github.com/m-mizutani/goerr/v2"

	"github.com/lethanhdat/membank/logging"
)

const (
	// DefaultRecentTurns bounds the history tail in an assembled context.
	DefaultRecentTurns = 5

	// DefaultRetrievedMemories bounds semantic retrieval in an assembled
	// context.
	DefaultRetrievedMemories = 5
)

// Manager coordinates the three stores for one (user, session) pair. It
// owns no state beyond references to them and never persists data itself.
//
// Write protocol: every turn goes to the history log and the semantic
// index; every extracted fact goes to the fact store and the semantic
// index. Read protocol: AssembleContext is read-only and side-effect
// free, safe to call repeatedly.
type Manager struct {
	userID    string
	sessionID string

	facts    *FactStore
	history  *HistoryLog
	semantic *SemanticIndex
}

// NewManager wires a Manager from the persistence collaborators and the
// embedder used by the semantic index.
func NewManager(userID, sessionID string, kv KV, log TurnLog, vectors VectorStore, embedder Embedder) *Manager {
	return &Manager{
		userID:    userID,
		sessionID: sessionID,
		facts:     NewFactStore(userID, kv),
		history:   NewHistoryLog(userID, sessionID, log),
		semantic:  NewSemanticIndex(userID, vectors, embedder),
	}
}

// Facts exposes the fact store for administrative surfaces.
func (m *Manager) Facts() *FactStore { return m.facts }

// History exposes the history log for administrative surfaces.
func (m *Manager) History() *HistoryLog { return m.history }

// Semantic exposes the semantic index for administrative surfaces.
func (m *Manager) Semantic() *SemanticIndex { return m.semantic }

// RecordUserTurn stores a user message in the history log and the
// semantic index. A lost history append is recoverable by the
// conversation continuing, so it is logged and swallowed; a lost semantic
// record is surfaced.
func (m *Manager) RecordUserTurn(ctx context.Context, text string) error {
	if err := m.history.Append(ctx, RoleUser, text); err != nil {
		logging.From(ctx).Warn("dropping user turn from history", "error", err)
	}
	return m.semantic.Add(ctx, "Người dùng nói: "+text, RecordUserMessage, nil)
}

// RecordAITurn stores an assistant message, mirroring RecordUserTurn.
func (m *Manager) RecordAITurn(ctx context.Context, text string) error {
	if err := m.history.Append(ctx, RoleAssistant, text); err != nil {
		logging.From(ctx).Warn("dropping assistant turn from history", "error", err)
	}
	return m.semantic.Add(ctx, "AI trả lời: "+text, RecordAIMessage, nil)
}

// RecordFact stores an extracted entity fact in the fact store and the
// semantic index. Both writes are attempted; both failures surface.
func (m *Manager) RecordFact(ctx context.Context, entityKey, value string) error {
	var errs []error
	if err := m.facts.AddFact(ctx, entityKey, value); err != nil {
		errs = append(errs, err)
	}
	content := fmt.Sprintf("Thông tin về %s: %s", entityKey, value)
	if err := m.semantic.Add(ctx, content, RecordEntityFact, map[string]string{"entity": entityKey}); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// RecordExchange stores a complete user/assistant exchange as one
// conversation-typed record, capturing context that the per-turn records
// may miss. A blank side skips the write.
func (m *Manager) RecordExchange(ctx context.Context, userText, aiText string) error {
	if userText == "" || aiText == "" {
		return nil
	}
	content := fmt.Sprintf("Người dùng: %s\nAI: %s", userText, aiText)
	return m.semantic.Add(ctx, content, RecordExchange, map[string]string{
		"user_input": userText,
		"ai_output":  aiText,
	})
}

// AssembleContext reads all three stores and merges them into a bounded
// ContextBundle for prompt construction. No writes occur.
func (m *Manager) AssembleContext(ctx context.Context, query string, recentLimit, retrievalLimit int) *ContextBundle {
	if recentLimit <= 0 {
		recentLimit = DefaultRecentTurns
	}
	if retrievalLimit <= 0 {
		retrievalLimit = DefaultRetrievedMemories
	}
	return &ContextBundle{
		Facts:            m.facts.All(ctx),
		RecentTurns:      m.history.Recent(ctx, recentLimit),
		RelevantMemories: m.semantic.Search(ctx, query, retrievalLimit),
	}
}

// SearchHistory scans the session log for turns containing the query.
func (m *Manager) SearchHistory(ctx context.Context, query string, limit int) []Turn {
	return m.history.Search(ctx, query, limit)
}

// Overview summarizes what the memory system currently holds for the user.
type Overview struct {
	UserID              string              `json:"user_id"`
	SessionID           string              `json:"session_id"`
	TotalEntities       int                 `json:"total_entities"`
	ConversationSummary string              `json:"conversation_summary"`
	Entities            map[string][]string `json:"entities"`
}

// Overview reports entity counts and a short transcript of the session.
func (m *Manager) Overview(ctx context.Context) Overview {
	entities := m.facts.All(ctx)
	return Overview{
		UserID:              m.userID,
		SessionID:           m.sessionID,
		TotalEntities:       len(entities),
		ConversationSummary: m.history.Summary(ctx),
		Entities:            entities,
	}
}

// ResetSession clears the session history only. Facts and semantic memory
// persist across sessions for the same user.
func (m *Manager) ResetSession(ctx context.Context) error {
	return m.history.Clear(ctx)
}

// ResetAll clears history, facts, and semantic memory. The clears are not
// atomic: every store's clear is attempted even when an earlier one
// fails, and the aggregate error reports which stores did not clear.
func (m *Manager) ResetAll(ctx context.Context) error {
	var errs []error
	if err := m.history.Clear(ctx); err != nil {
		errs = append(errs, goerr.Wrap(err, "history log not cleared"))
	}
	if err := m.facts.Clear(ctx); err != nil {
		errs = append(errs, goerr.Wrap(err, "fact store not cleared"))
	}
	if err := m.semantic.Clear(ctx); err != nil {
		errs = append(errs, goerr.Wrap(err, "semantic index not cleared"))
	}
	return errors.Join(errs...)
}
