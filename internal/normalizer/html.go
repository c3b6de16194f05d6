package normalizer

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// HTMLToText strips markup from r and returns its text nodes joined by single spaces.
// Script, style and template contents are not text. Plain-text input passes through
// with its whitespace collapsed.
func HTMLToText(r io.Reader) (string, error) {
	z := html.NewTokenizer(r)

	var (
		parts   []string
		skipped int
	)
	for {
		switch z.Next() {
		case html.ErrorToken:
			if err := z.Err(); !errors.Is(err, io.EOF) {
				return "", fmt.Errorf("%w: %v", ErrMalformedMarkup, err)
			}
			return collapse(strings.Join(parts, " ")), nil

		case html.StartTagToken:
			if isNonText(z) {
				skipped++
			}

		case html.EndTagToken:
			if isNonText(z) && skipped > 0 {
				skipped--
			}

		case html.TextToken:
			if skipped > 0 {
				continue
			}
			if s := strings.TrimSpace(string(z.Text())); s != "" {
				parts = append(parts, s)
			}
		}
	}
}

func isNonText(z *html.Tokenizer) bool {
	name, _ := z.TagName()
	switch atom.Lookup(name) {
	case atom.Script, atom.Style, atom.Template:
		return true
	}
	return false
}

// rawText is the fallback when markup cannot be stripped: bytes that are not
// valid UTF-8 are dropped.
func rawText(body []byte) string {
	return strings.ToValidUTF8(string(body), "")
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
