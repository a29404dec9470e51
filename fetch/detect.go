package fetch

import (
	"bytes"
	"strings"

	"golang.org/x/net/html"
)

var spaShells = [][]byte{
	[]byte(`<div id="root"></div>`),
	[]byte(`<div id="app"></div>`),
	[]byte(`<div id="__next"></div>`),
	[]byte("<noscript>you need to enable javascript"),
	[]byte("<noscript>enable javascript"),
}

// IsSufficient reports whether static HTML carries enough visible text to
// be worth editing without rendering it in a browser. Pages under 256
// bytes, with under 200 visible characters, with less than 10% text, or
// matching a known SPA mount point are insufficient.
func IsSufficient(body []byte) bool {
	if len(body) < 256 {
		return false
	}

	text, markup := textMarkupRatio(body)
	if text+markup == 0 || text < 200 {
		return false
	}
	if float64(text)/float64(text+markup) < 0.10 {
		return false
	}

	lower := bytes.ToLower(body)
	for _, shell := range spaShells {
		if bytes.Contains(lower, shell) {
			return false
		}
	}
	return true
}

// textMarkupRatio counts non-whitespace visible text bytes against every
// other byte. Script and style bodies count as markup.
func textMarkupRatio(body []byte) (text, markup int) {
	z := html.NewTokenizer(bytes.NewReader(body))
	skip := 0
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			return text, markup
		}
		raw := z.Raw()
		switch tt {
		case html.TextToken:
			if skip > 0 {
				markup += len(raw)
				continue
			}
			n := len(strings.Join(strings.Fields(string(raw)), ""))
			text += n
		case html.StartTagToken:
			markup += len(raw)
			if isOpaque(z) {
				skip++
			}
		case html.EndTagToken:
			markup += len(raw)
			if isOpaque(z) && skip > 0 {
				skip--
			}
		default:
			markup += len(raw)
		}
	}
}

func isOpaque(z *html.Tokenizer) bool {
	name, _ := z.TagName()
	switch string(name) {
	case "script", "style", "template", "noscript":
		return true
	}
	return false
}
