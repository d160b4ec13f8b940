// Package toolkit holds the stateless helpers behind the utility endpoints.
package toolkit

import (
	"strings"
	"unicode"

	"github.com/gosimple/slug"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Capitalize title-cases every word. A Caser keeps state, so one is built
// per call.
func Capitalize(text string) string {
	return cases.Title(language.English).String(text)
}

// Slugify lowercases text and joins its alphanumeric runs with hyphens.
// Letters are transliterated to ASCII.
func Slugify(text string) string {
	// Symbols become separators before slug sees them, so none of its
	// word substitutions ("&" to "and", "@" to "at") apply.
	return slug.Make(strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return r
		}
		return ' '
	}, text))
}

func WordCount(text string) int {
	return len(strings.Fields(text))
}

// IsPalindrome compares letters and digits only, ignoring case.
func IsPalindrome(text string) bool {
	runes := make([]rune, 0, len(text))
	for _, r := range strings.ToLower(text) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			runes = append(runes, r)
		}
	}
	for i, j := 0, len(runes)-1; i < j; i, j = i+1, j-1 {
		if runes[i] != runes[j] {
			return false
		}
	}
	return true
}
