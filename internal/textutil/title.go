package textutil

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// MaxTitleRunes bounds chapter titles; longer titles are cut at a rune boundary.
const MaxTitleRunes = 100

var titleCaser = cases.Title(language.English, cases.NoLower)

// NormalizeTitle composes title to NFC, drops control characters, and
// collapses runs of whitespace into single spaces.
func NormalizeTitle(title string) string {
	title = norm.NFC.String(title)
	var b strings.Builder
	space := false
	count := 0
	for _, r := range title {
		if unicode.IsSpace(r) {
			space = b.Len() > 0
			continue
		}
		if unicode.IsControl(r) {
			continue
		}
		if count >= MaxTitleRunes {
			break
		}
		if space {
			b.WriteByte(' ')
			space = false
			count++
		}
		b.WriteRune(r)
		count++
	}
	return b.String()
}

// TitleCase upper-cases the first letter of each word and leaves the rest as
// written.
func TitleCase(s string) string {
	return titleCaser.String(s)
}
