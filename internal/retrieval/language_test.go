package retrieval

import "testing"

func TestIsArabic(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		text string
		want bool
	}{
		{"pure arabic", "ما هي استثمارات نيوم؟", true},
		{"pure english", "What are NEOM's investments?", false},
		{"mixed", "What is صندوق الاستثمارات?", true},
		{"single arabic letter", "x ب y", true},
		{"empty", "", false},
		{"digits and punctuation", "2023 — $100bn!", false},
		{"arabic supplement", string(rune(0x0750)), true},
		{"arabic extended-a", string(rune(0x08A0)), true},
		{"presentation forms-a", string(rune(0xFB50)), true},
		{"presentation forms-b", string(rune(0xFE70)), true},
		{"hebrew is not arabic", "שלום", false},
		{"cjk is not arabic", "你好", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := IsArabic(tt.text); got != tt.want {
				t.Errorf("IsArabic(%q) = %v, want %v", tt.text, got, tt.want)
			}
		})
	}
}
