package retrieval

// arabicRanges lists the Unicode code-point ranges that mark a question as
// Arabic: Arabic, Arabic Supplement, Arabic Extended-A, and the Presentation
// Forms A/B blocks. One code point in any range is enough — there is no
// model-based detection.
var arabicRanges = [...]struct{ lo, hi rune }{
	{0x0600, 0x06FF}, // Arabic
	{0x0750, 0x077F}, // Arabic Supplement
	{0x08A0, 0x08FF}, // Arabic Extended-A
	{0xFB50, 0xFDFF}, // Presentation Forms-A
	{0xFE70, 0xFEFF}, // Presentation Forms-B
}

// IsArabic reports whether text contains at least one Arabic code point.
func IsArabic(text string) bool {
	for _, r := range text {
		for _, rng := range arabicRanges {
			if r >= rng.lo && r <= rng.hi {
				return true
			}
		}
	}
	return false
}
