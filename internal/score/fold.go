package score

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// stripMarks removes combining marks after canonical decomposition, so
// "café" folds to "cafe"
var stripMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// NewFolder returns the key-normalization function for the given folding
// policy. With neither flag set it is the identity.
func NewFolder(caseFold, diacriticFold bool) func(string) string {
	if !caseFold && !diacriticFold {
		return func(s string) string { return s }
	}
	return func(s string) string {
		if diacriticFold {
			if folded, _, err := transform.String(stripMarks, s); err == nil {
				s = folded
			}
		}
		if caseFold {
			s = strings.ToLower(s)
		}
		return s
	}
}
