package filter

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// foldTransformer lowercases and strips combining marks so that industry
// terms match regardless of transliteration ("fastighetsförvaltning" and
// "fastighetsforvaltning" fold to the same form).
var foldTransformer = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Fold normalises text for pattern matching against exclusion rules and the
// heuristic vocabulary.
func Fold(s string) string {
	out, _, err := transform.String(foldTransformer, strings.ToLower(s))
	if err != nil {
		return strings.ToLower(s)
	}
	return out
}

// FoldContains reports whether needle occurs in haystack after folding both.
func FoldContains(haystack, needle string) bool {
	return strings.Contains(Fold(haystack), Fold(needle))
}
