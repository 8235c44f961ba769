package narrative

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// StripHTML reduces markup to its visible text. Filings and press releases
// frequently arrive as HTML bodies; plain text passes through untouched.
func StripHTML(s string) string {
	if !strings.Contains(s, "<") || !strings.Contains(s, ">") {
		return s
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return s
	}
	doc.Find("script, style").Remove()
	return doc.Text()
}

// Normalize lowercases text, replaces every rune outside [a-z0-9%$.-] and
// space with a space, and collapses whitespace runs. Pattern spellings in the
// taxonomy are written against this form.
func Normalize(s string) string {
	s = strings.ToLower(s)
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '%', r == '$', r == '.', r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}
