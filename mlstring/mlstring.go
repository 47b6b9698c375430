// Package mlstring handles multilingual strings: jsonb objects keyed by
// language code, holding one translation (or a list of them) per
// language. It provides field descriptors for schemas, language-aware
// resolution with fallbacks, search fragments over the jsonb storage,
// and markup stripping.
package mlstring

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/folio-db/folio/schema/field"
)

// Options configure a multilingual string field.
type Options struct {
	MaxLength int  // per-translation rune limit (0 = unlimited)
	Array     bool // each language maps to a list of strings
}

// Field returns a multilingual string descriptor: a jsonb object whose
// keys are supported language codes and whose values are translations.
func Field(name string, opts Options) *field.Descriptor {
	return field.Object(name).Validate(validate(opts, false)).Descriptor()
}

// SafeTextField is like Field but rejects translations containing
// markup. Use it for titles, labels, and anything rendered without
// escaping.
func SafeTextField(name string, opts Options) *field.Descriptor {
	return field.Object(name).Validate(validate(opts, true)).Descriptor()
}

// RichTextField is like Field; markup is allowed and preserved.
func RichTextField(name string, opts Options) *field.Descriptor {
	return Field(name, opts)
}

func validate(opts Options, safeText bool) func(any) error {
	checkText := func(lang, s string) error {
		if opts.MaxLength > 0 && utf8.RuneCountInString(s) > opts.MaxLength {
			return fmt.Errorf("translation %q exceeds maximum length of %d", lang, opts.MaxLength)
		}
		if safeText && StripHTML(s) != s {
			return fmt.Errorf("translation %q must not contain markup", lang)
		}
		return nil
	}
	checkEntry := func(lang string, v any) error {
		if !Valid(lang) {
			return fmt.Errorf("unsupported language %q", lang)
		}
		if opts.Array {
			items, err := textList(v)
			if err != nil {
				return fmt.Errorf("translation %q: %w", lang, err)
			}
			for _, s := range items {
				if err := checkText(lang, s); err != nil {
					return err
				}
			}
			return nil
		}
		s, ok := v.(string)
		if !ok {
			return fmt.Errorf("translation %q: expected string, got %T", lang, v)
		}
		return checkText(lang, s)
	}
	return func(v any) error {
		switch m := v.(type) {
		case map[string]string:
			if opts.Array {
				return fmt.Errorf("expected one list of strings per language")
			}
			for lang, s := range m {
				if err := checkEntry(lang, s); err != nil {
					return err
				}
			}
		case map[string][]string:
			if !opts.Array {
				return fmt.Errorf("expected one string per language")
			}
			for lang, items := range m {
				if err := checkEntry(lang, items); err != nil {
					return err
				}
			}
		case map[string]any:
			for lang, entry := range m {
				if err := checkEntry(lang, entry); err != nil {
					return err
				}
			}
		default:
			return fmt.Errorf("expected a language-keyed object, got %T", v)
		}
		return nil
	}
}

func textList(v any) ([]string, error) {
	switch items := v.(type) {
	case []string:
		return items, nil
	case []any:
		out := make([]string, len(items))
		for i, e := range items {
			s, ok := e.(string)
			if !ok {
				return nil, fmt.Errorf("expected string element, got %T", e)
			}
			out[i] = s
		}
		return out, nil
	}
	return nil, fmt.Errorf("expected list of strings, got %T", v)
}

// Resolved is one translation picked by Resolve.
type Resolved struct {
	Text string
	Lang string
}

// Resolve picks the best available translation: the preferred language
// first, then English, then undetermined, then the first non-empty
// entry in canonical language order. The second return is false when
// values holds no text at all.
func Resolve(preferred string, values map[string]string) (Resolved, bool) {
	for _, lang := range []string{preferred, "en", Und} {
		if lang == "" {
			continue
		}
		if s := values[lang]; s != "" {
			return Resolved{Text: s, Lang: lang}, true
		}
	}
	for _, lang := range Languages {
		if s := values[lang]; s != "" {
			return Resolved{Text: s, Lang: lang}, true
		}
	}
	return Resolved{}, false
}

// FromValue converts a decoded jsonb object into a language-keyed
// string map, skipping non-string entries. Useful with values returned
// by instance accessors.
func FromValue(v any) map[string]string {
	switch m := v.(type) {
	case map[string]string:
		return m
	case map[string]any:
		out := make(map[string]string, len(m))
		for lang, entry := range m {
			if s, ok := entry.(string); ok {
				out[lang] = s
			}
		}
		return out
	}
	return nil
}

// BuildQuery renders a predicate fragment matching the given language
// key of a jsonb multilingual column against placeholder $arg.
func BuildQuery(column, lang string, arg int) string {
	return fmt.Sprintf("%s->>'%s' = $%d", column, lang, arg)
}

// BuildMultiLanguageQuery ORs BuildQuery over every given language,
// reusing the same placeholder, so the caller binds the search text
// once. An empty language list searches all supported languages.
func BuildMultiLanguageQuery(column string, langs []string, arg int) string {
	if len(langs) == 0 {
		langs = Languages
	}
	parts := make([]string, len(langs))
	for i, lang := range langs {
		parts[i] = BuildQuery(column, lang, arg)
	}
	return "(" + strings.Join(parts, " OR ") + ")"
}
