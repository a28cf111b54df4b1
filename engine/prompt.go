package engine

import (
	"fmt"
	"sort"
	"strings"

	"github.com/lethanhdat/membank/memory"
)

// BuildPrompt renders a context bundle into the single-message prompt sent
// to the model. Empty sections are omitted so a fresh user gets a plain
// question, not a scaffold of blank headers.
func BuildPrompt(systemPrompt string, bundle *memory.ContextBundle, userInput string) string {
	var b strings.Builder
	b.WriteString(systemPrompt)
	b.WriteString("\n")

	if len(bundle.Facts) > 0 {
		b.WriteString("\n=== THÔNG TIN ĐÃ BIẾT VỀ NGƯỜI DÙNG ===\n")
		for _, entity := range sortedKeys(bundle.Facts) {
			fmt.Fprintf(&b, "%s: %s\n", entity, strings.Join(bundle.Facts[entity], ", "))
		}
	}

	if len(bundle.RelevantMemories) > 0 {
		b.WriteString("\n=== THÔNG TIN LIÊN QUAN TỪ CÁC CUỘC TRÒ CHUYỆN TRƯỚC ===\n")
		for i, rec := range bundle.RelevantMemories {
			fmt.Fprintf(&b, "%d. [%s] %s\n", i+1, rec.Type, rec.Content)
		}
	}

	if len(bundle.RecentTurns) > 0 {
		b.WriteString("\n=== LỊCH SỬ TRÒ CHUYỆN GẦN ĐÂY ===\n")
		for _, turn := range bundle.RecentTurns {
			label := "Người dùng"
			if turn.Role == memory.RoleAssistant {
				label = "AI"
			}
			fmt.Fprintf(&b, "%s: %s\n", label, turn.Content)
		}
	}

	b.WriteString("\n=== CÂU HỎI HIỆN TẠI ===\n")
	fmt.Fprintf(&b, "Người dùng: %s\n", userInput)
	b.WriteString("\nHãy trả lời một cách tự nhiên và hữu ích:")

	return b.String()
}

func sortedKeys(m map[string][]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
