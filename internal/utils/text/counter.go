// Package text provides small text-processing helpers shared across the
// domain layer and source adapters.
package text

// CountRunes counts Unicode characters (runes) rather than bytes, so content
// limits treat Japanese text, emoji, and other multi-byte characters the way
// the upstream providers do.
//
// Examples:
//
//	CountRunes("hello")     // 5
//	CountRunes("こんにちは")  // 5
//	CountRunes("Hello👋")    // 6
func CountRunes(text string) int {
	return len([]rune(text))
}
