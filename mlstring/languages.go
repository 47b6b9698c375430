package mlstring

import (
	"fmt"

	"golang.org/x/text/language"
)

// Und is the undetermined language code, used for text whose language
// is unknown.
const Und = "und"

// Languages lists the supported language codes in fallback order.
// English first, then the translations, then undetermined.
var Languages = []string{
	"en", "bn", "de", "eo", "es", "fr", "hu", "it", "ja", "ko",
	"mk", "nl", "pt", "pt-BR", "sv", "tr", "zh", "zh-Hant", Und,
}

var languageSet = func() map[string]bool {
	set := make(map[string]bool, len(Languages))
	for _, l := range Languages {
		set[l] = true
	}
	return set
}()

// Valid reports whether code is a supported language code. Codes are
// case-sensitive; use Canonical first for user-supplied input.
func Valid(code string) bool {
	return languageSet[code]
}

// Canonical normalizes a BCP 47 language code to its canonical form,
// e.g. "pt-br" to "pt-BR", and verifies it is supported.
func Canonical(code string) (string, error) {
	if code == Und {
		return Und, nil
	}
	tag, err := language.Parse(code)
	if err != nil {
		return "", fmt.Errorf("folio/mlstring: invalid language code %q: %w", code, err)
	}
	c := tag.String()
	if !languageSet[c] {
		return "", fmt.Errorf("folio/mlstring: unsupported language %q", c)
	}
	return c, nil
}
