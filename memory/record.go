package memory

import "time"

// Role identifies the speaker of a chat turn. It is stored on the turn at
// write time; readers never infer it from anything else.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one message in a conversation. Immutable once written; ordering
// is by CreatedAt with ties broken by insertion sequence.
type Turn struct {
	UserID    string    `json:"user_id"`
	SessionID string    `json:"session_id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// RecordType classifies a semantic memory record.
type RecordType string

const (
	RecordUserMessage RecordType = "user_message"
	RecordAIMessage   RecordType = "ai_message"
	RecordEntityFact  RecordType = "entity_fact"
	RecordExchange    RecordType = "conversation"

	// RecordInit marks the placeholder that bootstraps an empty index.
	// It must never show up in retrieval results.
	RecordInit RecordType = "init"
)

// Record is a piece of text plus its embedding, retrievable by similarity.
type Record struct {
	ID         string            `json:"id"`
	UserID     string            `json:"user_id"`
	Content    string            `json:"content"`
	Type       RecordType        `json:"type"`
	Embedding  []float32         `json:"-"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	Similarity float32           `json:"-"`
	CreatedAt  time.Time         `json:"created_at"`
}

// ContextBundle is the read-only aggregate assembled for one reply.
// The engine renders these fields directly into prompt text, so their
// names and shapes are stable.
type ContextBundle struct {
	// Facts maps entity key to its ordered fact list.
	Facts map[string][]string

	// RecentTurns holds the tail of the session history, oldest first.
	RecentTurns []Turn

	// RelevantMemories holds scored semantic records, best match first.
	RelevantMemories []Record
}

// truncate shortens s to maxLen runes, appending "..." when something was
// cut. Rune-based so multi-byte text is never split mid-character.
func truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen < 3 {
		return "..."
	}
	return string(r[:maxLen-3]) + "..."
}
