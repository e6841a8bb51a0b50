// Package budget provides token budget estimation and transcript trimming
// for prompts sent to the LLM proxy. The proxy may route to models with
// different tokenizers, so estimation uses a conservative character-based
// heuristic: 1 token ≈ 4 characters. Arabic text tokenizes denser per
// character than English, which makes the heuristic under-estimate and the
// headroom larger; that is the safe direction.
package budget

const (
	// charsPerToken is the conservative character-to-token ratio used for
	// estimation. 4 chars/token is standard for English prose; using 3
	// would be more aggressive but risks overflowing context windows.
	charsPerToken = 4

	// entryOverheadTokens is the per-message framing overhead (~4 tokens in
	// most chat APIs) counted for each transcript entry.
	entryOverheadTokens = 4

	// DefaultMaxContextTokens is the default input context budget in tokens.
	// Conservative enough to fit within 8k-context models while leaving room
	// for the 500-token answer.
	DefaultMaxContextTokens = 6000
)

// Estimate returns a rough token count for s using the character heuristic.
func Estimate(s string) int {
	n := len(s) / charsPerToken
	if n == 0 && len(s) > 0 {
		return 1
	}
	return n
}

// EstimateEntries returns the estimated total token count for a list of
// transcript entries, including per-entry framing overhead.
func EstimateEntries(entries []string) int {
	total := 0
	for _, e := range entries {
		total += entryOverheadTokens + Estimate(e)
	}
	return total
}

// TrimEntries drops the oldest transcript entries until fixedTokens plus the
// remaining entries fit within maxTokens. fixedTokens covers the untrimmable
// parts of the prompt (system prompt, retrieved context, current question).
//
// If even an empty transcript exceeds the budget, the empty slice is
// returned; callers should warn separately when the fixed parts alone
// overflow.
func TrimEntries(fixedTokens int, entries []string, maxTokens int) []string {
	// History is at most a handful of entries; a linear scan dropping the
	// oldest is clear and correct.
	for len(entries) > 0 {
		if fixedTokens+EstimateEntries(entries) <= maxTokens {
			break
		}
		entries = entries[1:]
	}
	return entries
}
