package engine_test

import (
	"testing"

	"github.com/m-mizutani/gt"

	"github.com/lethanhdat/membank/engine"
)

func TestExtractPersonalInfo(t *testing.T) {
	x := engine.DefaultExtractor()

	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{
			name:     "name introduction",
			input:    "Xin chào, tên tôi là Lan",
			expected: []string{"tên", "tuổi"},
		},
		{
			name:     "age statement",
			input:    "Năm nay 25 tuổi rồi",
			expected: []string{"tuổi"},
		},
		{
			name:     "occupation",
			input:    "Nghề của mình là giáo viên",
			expected: []string{"nghề nghiệp"},
		},
		{
			name:     "hobby",
			input:    "Mình rất thích đọc sách",
			expected: []string{"sở thích"},
		},
		{
			name:     "address",
			input:    "Mình sống ở Hà Nội",
			expected: []string{"địa chỉ"},
		},
		{
			name:     "family",
			input:    "Vợ mình cũng làm giáo viên",
			expected: []string{"gia đình"},
		},
		{
			name:     "case insensitive",
			input:    "TÊN TÔI LÀ MINH",
			expected: []string{"tên", "tuổi"},
		},
		{
			name:     "nothing personal",
			input:    "Hôm nay trời đẹp quá",
			expected: nil,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			gt.Equal(t, x.Extract(tc.input), tc.expected)
		})
	}
}

func TestExtractReportsEachEntityOnce(t *testing.T) {
	x := engine.DefaultExtractor()

	// Input matches several keywords of the same entity.
	entities := x.Extract("sở thích của mình là đọc, mình thích cả âm nhạc, yêu thích du lịch")
	count := 0
	for _, e := range entities {
		if e == "sở thích" {
			count++
		}
	}
	gt.Equal(t, count, 1)
}

func TestCustomExtractor(t *testing.T) {
	x := engine.NewExtractor(map[string][]string{
		"pet": {"my dog", "my cat"},
	})

	gt.Equal(t, x.Extract("My dog is called Rex"), []string{"pet"})
	gt.A(t, x.Extract("I have a goldfish")).Length(0)
}
