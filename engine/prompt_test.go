package engine_test

import (
	"strings"
	"testing"

	"github.com/m-mizutani/gt"

	"github.com/lethanhdat/membank/engine"
	"github.com/lethanhdat/membank/memory"
)

func TestBuildPromptFullContext(t *testing.T) {
	bundle := &memory.ContextBundle{
		Facts: map[string][]string{
			"tên":      {"tên tôi là Lan"},
			"sở thích": {"đọc sách", "cà phê"},
		},
		RecentTurns: []memory.Turn{
			{Role: memory.RoleUser, Content: "xin chào"},
			{Role: memory.RoleAssistant, Content: "chào bạn"},
		},
		RelevantMemories: []memory.Record{
			{Type: memory.RecordEntityFact, Content: "Thông tin về tên: tên tôi là Lan"},
		},
	}

	prompt := engine.BuildPrompt("SYSTEM", bundle, "tên tôi là gì?")

	gt.S(t, prompt).Contains("SYSTEM")
	gt.S(t, prompt).Contains("=== THÔNG TIN ĐÃ BIẾT VỀ NGƯỜI DÙNG ===")
	gt.S(t, prompt).Contains("tên: tên tôi là Lan")
	gt.S(t, prompt).Contains("sở thích: đọc sách, cà phê")
	gt.S(t, prompt).Contains("=== THÔNG TIN LIÊN QUAN TỪ CÁC CUỘC TRÒ CHUYỆN TRƯỚC ===")
	gt.S(t, prompt).Contains("1. [entity_fact] Thông tin về tên: tên tôi là Lan")
	gt.S(t, prompt).Contains("=== LỊCH SỬ TRÒ CHUYỆN GẦN ĐÂY ===")
	gt.S(t, prompt).Contains("Người dùng: xin chào")
	gt.S(t, prompt).Contains("AI: chào bạn")
	gt.S(t, prompt).Contains("=== CÂU HỎI HIỆN TẠI ===\nNgười dùng: tên tôi là gì?")
	gt.S(t, prompt).Contains("Hãy trả lời một cách tự nhiên và hữu ích:")
}

func TestBuildPromptOmitsEmptySections(t *testing.T) {
	bundle := &memory.ContextBundle{}

	prompt := engine.BuildPrompt("SYSTEM", bundle, "xin chào")

	gt.S(t, prompt).NotContains("THÔNG TIN ĐÃ BIẾT")
	gt.S(t, prompt).NotContains("THÔNG TIN LIÊN QUAN")
	gt.S(t, prompt).NotContains("LỊCH SỬ TRÒ CHUYỆN")
	gt.S(t, prompt).Contains("=== CÂU HỎI HIỆN TẠI ===")
	gt.S(t, prompt).Contains("Người dùng: xin chào")
}

func TestBuildPromptSectionOrder(t *testing.T) {
	bundle := &memory.ContextBundle{
		Facts:       map[string][]string{"tên": {"Lan"}},
		RecentTurns: []memory.Turn{{Role: memory.RoleUser, Content: "xin chào"}},
		RelevantMemories: []memory.Record{
			{Type: memory.RecordUserMessage, Content: "cũ"},
		},
	}

	prompt := engine.BuildPrompt("SYSTEM", bundle, "hỏi")

	known := strings.Index(prompt, "THÔNG TIN ĐÃ BIẾT")
	relevant := strings.Index(prompt, "THÔNG TIN LIÊN QUAN")
	recent := strings.Index(prompt, "LỊCH SỬ TRÒ CHUYỆN")
	question := strings.Index(prompt, "CÂU HỎI HIỆN TẠI")

	gt.True(t, known < relevant)
	gt.True(t, relevant < recent)
	gt.True(t, recent < question)
}
