package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"

	"github.com/lethanhdat/membank/logging"
)

const (
	// summaryTurns is how many trailing turns Summary renders.
	summaryTurns = 10

	// summaryPreviewLen bounds each turn's preview inside Summary.
	summaryPreviewLen = 100
)

// HistoryLog is the append-only chat log for one (user, session) pair.
// Turns are never mutated or reordered; clearing one session leaves the
// user's other sessions untouched.
//
// Reads never fail: a missing or corrupt underlying log degrades to empty.
type HistoryLog struct {
	userID    string
	sessionID string
	log       TurnLog
}

// NewHistoryLog creates a HistoryLog over the given TurnLog collaborator.
func NewHistoryLog(userID, sessionID string, log TurnLog) *HistoryLog {
	return &HistoryLog{userID: userID, sessionID: sessionID, log: log}
}

func (h *HistoryLog) key() string {
	return fmt.Sprintf("history/%s/%s", h.userID, h.sessionID)
}

// Append records a new turn with the current timestamp.
func (h *HistoryLog) Append(ctx context.Context, role Role, content string) error {
	turn := Turn{
		UserID:    h.userID,
		SessionID: h.sessionID,
		Role:      role,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
	entry, err := json.Marshal(turn)
	if err != nil {
		return goerr.Wrap(err, "failed to marshal chat turn")
	}
	if err := h.log.Append(ctx, h.key(), entry); err != nil {
		return goerr.Wrap(err, "failed to append chat turn",
			goerr.V("user_id", h.userID), goerr.V("session_id", h.sessionID))
	}
	return nil
}

// all loads every turn in chronological order, degrading to empty on any
// read problem. Entries that fail to decode are skipped, not fatal.
func (h *HistoryLog) all(ctx context.Context) []Turn {
	entries, err := h.log.Scan(ctx, h.key())
	if err != nil {
		if !isNotFound(err) {
			logging.From(ctx).Warn("history read degraded to empty",
				"user_id", h.userID, "session_id", h.sessionID, "error", err)
		}
		return nil
	}

	turns := make([]Turn, 0, len(entries))
	for _, entry := range entries {
		var turn Turn
		if err := json.Unmarshal(entry, &turn); err != nil {
			logging.From(ctx).Warn("skipping corrupt chat turn",
				"user_id", h.userID, "session_id", h.sessionID, "error", err)
			continue
		}
		turns = append(turns, turn)
	}

	// Scan order is insertion order; a stable sort on the timestamp keeps
	// that order for ties.
	sort.SliceStable(turns, func(i, j int) bool {
		return turns[i].CreatedAt.Before(turns[j].CreatedAt)
	})
	return turns
}

// Recent returns the last min(limit, Count) turns in chronological order,
// oldest first within the returned window.
func (h *HistoryLog) Recent(ctx context.Context, limit int) []Turn {
	turns := h.all(ctx)
	if limit <= 0 || len(turns) == 0 {
		return nil
	}
	if len(turns) > limit {
		turns = turns[len(turns)-limit:]
	}
	return turns
}

// Search scans the log chronologically for turns whose content contains
// the substring (case-insensitive), stopping after limit matches.
func (h *HistoryLog) Search(ctx context.Context, substring string, limit int) []Turn {
	if limit <= 0 {
		return nil
	}
	needle := strings.ToLower(substring)

	var matches []Turn
	for _, turn := range h.all(ctx) {
		if strings.Contains(strings.ToLower(turn.Content), needle) {
			matches = append(matches, turn)
			if len(matches) >= limit {
				break
			}
		}
	}
	return matches
}

// Count returns the number of turns recorded for this session.
func (h *HistoryLog) Count(ctx context.Context) int {
	return len(h.all(ctx))
}

// Summary renders the last turns as a short human-readable transcript
// with role labels and bounded previews.
func (h *HistoryLog) Summary(ctx context.Context) string {
	turns := h.Recent(ctx, summaryTurns)
	if len(turns) == 0 {
		return "Chưa có cuộc trò chuyện nào."
	}

	parts := make([]string, 0, len(turns))
	for _, turn := range turns {
		label := "Người dùng"
		if turn.Role == RoleAssistant {
			label = "AI"
		}
		parts = append(parts, fmt.Sprintf("%s: %s", label, truncate(turn.Content, summaryPreviewLen)))
	}
	return strings.Join(parts, "\n")
}

// Clear deletes every turn for this (user, session) pair only.
func (h *HistoryLog) Clear(ctx context.Context) error {
	if err := h.log.Clear(ctx, h.key()); err != nil && !isNotFound(err) {
		return goerr.Wrap(err, "failed to clear session history",
			goerr.V("user_id", h.userID), goerr.V("session_id", h.sessionID))
	}
	return nil
}
