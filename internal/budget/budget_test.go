package budget

import (
	"strings"
	"testing"
)

func Test_Estimate(t *testing.T) {
	t.Parallel()
	cases := []struct {
		input string
		want  int
	}{
		{"", 0},
		{"a", 1},        // < 4 chars → 1
		{"abcd", 1},     // exactly 4 chars → 1
		{"abcde", 1},    // 5 chars → 1
		{"abcdefgh", 2}, // 8 chars → 2
		{strings.Repeat("x", 400), 100},
	}
	for _, tc := range cases {
		got := Estimate(tc.input)
		if got != tc.want {
			t.Errorf("Estimate(%q) = %d, want %d", tc.input, got, tc.want)
		}
	}
}

func Test_EstimateEntries(t *testing.T) {
	t.Parallel()

	entries := []string{
		"User: hello world", // 4 overhead + 17/4 = 4 → 8
		"User: hello world",
	}
	if got := EstimateEntries(entries); got != 16 {
		t.Errorf("EstimateEntries = %d, want 16", got)
	}
}

func Test_TrimEntries_NoTrimNeeded(t *testing.T) {
	t.Parallel()

	entries := []string{"a", "b", "c"}
	got := TrimEntries(10, entries, 1000)
	if len(got) != 3 {
		t.Errorf("trimmed %d entries from a fitting transcript", 3-len(got))
	}
}

func Test_TrimEntries_DropsOldestFirst(t *testing.T) {
	t.Parallel()

	entries := []string{
		strings.Repeat("old ", 100),    // ~104 tokens with overhead
		strings.Repeat("middle ", 100), // ~179
		"recent",
	}
	got := TrimEntries(0, entries, 200)

	if len(got) == 0 {
		t.Fatal("everything trimmed")
	}
	if got[len(got)-1] != "recent" {
		t.Error("most recent entry not preserved")
	}
	if len(got) == 3 {
		t.Error("nothing trimmed from an over-budget transcript")
	}
}

func Test_TrimEntries_FixedAloneOverBudget(t *testing.T) {
	t.Parallel()

	got := TrimEntries(10_000, []string{"a", "b"}, 6000)
	if len(got) != 0 {
		t.Errorf("want empty transcript when fixed parts exceed the budget, got %d entries", len(got))
	}
}
