package parser

import (
	"regexp"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/text/unicode/norm"

	"github.com/aluiziolira/go-audiobooks-api/models"
)

// NormalizeText decodes HTML entities, applies NFKC and collapses whitespace.
//
// Decoding is repeated until the value stops changing, so escaped input of any
// depth such as "&amp;amp;#233;" yields "é".
func NormalizeText(raw string) string {
	if raw == "" {
		return ""
	}

	text := raw
	for {
		next := norm.NFKC.String(html.UnescapeString(text))
		if next == text {
			break
		}
		text = next
	}
	return strings.Join(strings.Fields(text), " ")
}

// ExtractViews keeps only the decimal digits of a view counter label.
func ExtractViews(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for i := 0; i < len(text); i++ {
		if c := text[i]; c >= '0' && c <= '9' {
			b.WriteByte(c)
		}
	}
	if b.Len() == 0 {
		return models.ZeroViews
	}
	return b.String()
}

// resizeSuffix matches lowercase extensions only; "-300x200.JPG" is kept.
var resizeSuffix = regexp.MustCompile(`-\d+x\d+(\.(?:jpe?g|png))`)

// CleanImageURL strips the WordPress "-<W>x<H>" thumbnail suffix so the
// original upload is referenced.
func CleanImageURL(raw string) string {
	if raw == "" {
		return ""
	}
	locs := resizeSuffix.FindAllStringSubmatchIndex(raw, -1)
	if len(locs) == 0 {
		return raw
	}
	last := locs[len(locs)-1]
	return raw[:last[0]] + raw[last[2]:]
}
