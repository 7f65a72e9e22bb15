package language

import (
	"strings"

	xlang "golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// bibliographic ISO 639-2/B codes still emitted by older muxers.
var bibliographic = map[string]string{
	"fre": "fra",
	"ger": "deu",
	"chi": "zho",
	"dut": "nld",
	"cze": "ces",
	"gre": "ell",
	"per": "fas",
	"rum": "ron",
	"slo": "slk",
	"wel": "cym",
}

// words maps full English language names to their tags.
var words = map[string]string{
	"english":    "en",
	"spanish":    "es",
	"french":     "fr",
	"german":     "de",
	"italian":    "it",
	"portuguese": "pt",
	"japanese":   "ja",
	"korean":     "ko",
	"chinese":    "zh",
	"russian":    "ru",
}

// Canonical returns the BCP 47 base language for a tag such as "jpn", "ger",
// "en-US", or "english". Unknown, empty, and undetermined inputs yield "".
func Canonical(code string) string {
	code = strings.ToLower(strings.TrimSpace(strings.ReplaceAll(code, "\u0000", "")))
	if code == "" || code == "und" {
		return ""
	}
	if mapped, ok := words[code]; ok {
		return mapped
	}
	if mapped, ok := bibliographic[code]; ok {
		code = mapped
	}
	tag, err := xlang.Parse(code)
	if err != nil {
		return ""
	}
	base, confidence := tag.Base()
	if confidence == xlang.No || base.String() == "und" {
		return ""
	}
	return base.String()
}

// DisplayName returns the English name of a language code. Empty input yields
// "Unknown"; unrecognized input is returned upper-cased.
func DisplayName(code string) string {
	trimmed := strings.TrimSpace(code)
	if trimmed == "" {
		return "Unknown"
	}
	canonical := Canonical(trimmed)
	if canonical == "" {
		return strings.ToUpper(trimmed)
	}
	name := display.English.Languages().Name(xlang.MustParse(canonical))
	if name == "" {
		return strings.ToUpper(trimmed)
	}
	return name
}

// Matches reports whether two codes name the same base language.
func Matches(a, b string) bool {
	ca, cb := Canonical(a), Canonical(b)
	return ca != "" && ca == cb
}
