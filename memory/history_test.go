package memory_test

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/m-mizutani/gt"

	"github.com/lethanhdat/membank/memory"
	"github.com/lethanhdat/membank/memory/store/memdoc"
)

func TestHistoryAppendAndRecent(t *testing.T) {
	ctx := context.Background()
	history := memory.NewHistoryLog("user-1", "s1", memdoc.New())

	gt.NoError(t, history.Append(ctx, memory.RoleUser, "xin chào"))
	gt.NoError(t, history.Append(ctx, memory.RoleAssistant, "chào bạn"))
	gt.NoError(t, history.Append(ctx, memory.RoleUser, "bạn khỏe không?"))

	turns := history.Recent(ctx, 10)
	gt.A(t, turns).Length(3)
	gt.Equal(t, turns[0].Content, "xin chào")
	gt.Equal(t, turns[0].Role, memory.RoleUser)
	gt.Equal(t, turns[1].Role, memory.RoleAssistant)
	gt.Equal(t, turns[2].Content, "bạn khỏe không?")
}

func TestHistoryRecentReturnsTail(t *testing.T) {
	ctx := context.Background()
	history := memory.NewHistoryLog("user-1", "s1", memdoc.New())

	for i := 0; i < 12; i++ {
		gt.NoError(t, history.Append(ctx, memory.RoleUser, fmt.Sprintf("tin nhắn %d", i)))
	}

	turns := history.Recent(ctx, 5)
	gt.A(t, turns).Length(5)
	gt.Equal(t, turns[0].Content, "tin nhắn 7")
	gt.Equal(t, turns[4].Content, "tin nhắn 11")

	// recent(n) is always a suffix of recent(n+1).
	wider := history.Recent(ctx, 6)
	gt.Equal(t, wider[1:], turns)

	gt.Equal(t, history.Count(ctx), 12)
}

func TestHistorySearch(t *testing.T) {
	ctx := context.Background()
	history := memory.NewHistoryLog("user-1", "s1", memdoc.New())

	gt.NoError(t, history.Append(ctx, memory.RoleUser, "tôi thích Cà Phê sữa"))
	gt.NoError(t, history.Append(ctx, memory.RoleAssistant, "cà phê sữa rất ngon"))
	gt.NoError(t, history.Append(ctx, memory.RoleUser, "còn trà thì sao?"))

	hits := history.Search(ctx, "cà phê", 10)
	gt.A(t, hits).Length(2)

	hits = history.Search(ctx, "cà phê", 1)
	gt.A(t, hits).Length(1)

	gt.A(t, history.Search(ctx, "bia", 10)).Length(0)
}

func TestHistorySummary(t *testing.T) {
	ctx := context.Background()
	history := memory.NewHistoryLog("user-1", "s1", memdoc.New())

	gt.Equal(t, history.Summary(ctx), "Chưa có cuộc trò chuyện nào.")

	gt.NoError(t, history.Append(ctx, memory.RoleUser, "xin chào"))
	gt.NoError(t, history.Append(ctx, memory.RoleAssistant, strings.Repeat("a", 150)))

	summary := history.Summary(ctx)
	gt.S(t, summary).Contains("Người dùng: xin chào")
	gt.S(t, summary).Contains("AI: " + strings.Repeat("a", 97) + "...")
	gt.S(t, summary).NotContains(strings.Repeat("a", 98))
}

func TestHistoryIsolatedPerSession(t *testing.T) {
	ctx := context.Background()
	log := memdoc.New()
	morning := memory.NewHistoryLog("user-1", "morning", log)
	evening := memory.NewHistoryLog("user-1", "evening", log)

	gt.NoError(t, morning.Append(ctx, memory.RoleUser, "chào buổi sáng"))
	gt.NoError(t, evening.Append(ctx, memory.RoleUser, "chào buổi tối"))

	gt.Equal(t, morning.Count(ctx), 1)
	gt.Equal(t, evening.Count(ctx), 1)

	gt.NoError(t, morning.Clear(ctx))
	gt.Equal(t, morning.Count(ctx), 0)
	gt.Equal(t, evening.Count(ctx), 1)
}
