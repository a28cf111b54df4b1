package engine

import "strings"

// entityKeywords maps one entity key to the trigger phrases that mark a
// user message as carrying information about it.
type entityKeywords struct {
	entity   string
	keywords []string
}

// Extractor spots personal information in user messages by keyword match.
// It is deliberately model-free: extraction keeps working when the chat
// model is down, and costs nothing per turn.
type Extractor struct {
	table []entityKeywords
}

// DefaultExtractor recognizes the common Vietnamese self-introduction
// phrases for name, age, occupation, hobbies, address, and family.
func DefaultExtractor() *Extractor {
	return &Extractor{table: []entityKeywords{
		{"tên", []string{"tên tôi là", "tôi tên", "mình tên", "tôi là"}},
		{"tuổi", []string{"tôi", "tuổi", "năm nay", "sinh năm"}},
		{"nghề nghiệp", []string{"tôi làm", "nghề", "công việc", "làm việc tại"}},
		{"sở thích", []string{"thích", "yêu thích", "sở thích", "hobby", "yêu"}},
		{"địa chỉ", []string{"tôi ở", "sống ở", "địa chỉ", "quê ở"}},
		{"gia đình", []string{"vợ", "chồng", "con", "bố mẹ", "anh chị em"}},
	}}
}

// NewExtractor builds an extractor from a caller-supplied table. Entries
// are matched in order.
func NewExtractor(table map[string][]string) *Extractor {
	x := &Extractor{}
	for entity, keywords := range table {
		x.table = append(x.table, entityKeywords{entity: entity, keywords: keywords})
	}
	return x
}

// Extract returns the entity keys whose keywords appear in the input.
// Matching is case-insensitive and each entity is reported at most once.
func (x *Extractor) Extract(input string) []string {
	lowered := strings.ToLower(input)
	var entities []string
	for _, row := range x.table {
		for _, kw := range row.keywords {
			if strings.Contains(lowered, kw) {
				entities = append(entities, row.entity)
				break
			}
		}
	}
	return entities
}
