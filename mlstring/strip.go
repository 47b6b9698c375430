package mlstring

import (
	"strings"

	"golang.org/x/net/html"
)

// StripHTML removes markup from s, returning its text content. Script
// and style bodies are dropped entirely. Character entities are kept
// as written, never decoded: decoding could turn encoded markup such
// as &lt;script&gt; into live markup, so the output is a fixed point
// of StripHTML and stays safe to strip again.
func StripHTML(s string) string {
	if !strings.ContainsRune(s, '<') {
		return s
	}
	tz := html.NewTokenizer(strings.NewReader(s))
	var sb strings.Builder
	skip := 0
	for {
		switch tz.Next() {
		case html.ErrorToken:
			return sb.String()
		case html.StartTagToken:
			name, _ := tz.TagName()
			if n := string(name); n == "script" || n == "style" {
				skip++
			}
		case html.EndTagToken:
			name, _ := tz.TagName()
			if n := string(name); (n == "script" || n == "style") && skip > 0 {
				skip--
			}
		case html.TextToken:
			if skip == 0 {
				sb.Write(tz.Raw())
			}
		}
	}
}

// StripHTMLFromArray strips markup from every element.
func StripHTMLFromArray(items []string) []string {
	out := make([]string, len(items))
	for i, s := range items {
		out[i] = StripHTML(s)
	}
	return out
}

// StripHTMLFromMap strips markup from every translation.
func StripHTMLFromMap(values map[string]string) map[string]string {
	out := make(map[string]string, len(values))
	for lang, s := range values {
		out[lang] = StripHTML(s)
	}
	return out
}
