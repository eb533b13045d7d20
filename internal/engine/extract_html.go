package engine

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// extractHTML pulls visible text out of an HTML or XHTML document,
// discarding the contents of <script> and <style>. It uses
// golang.org/x/net/html, a transitive dependency already present in the
// retrieved corpus's web-facing modules, rather than a hand-rolled tag
// scanner.
func extractHTML(r io.Reader) (string, error) {
	tok := html.NewTokenizer(r)

	var out strings.Builder
	skipDepth := 0 // > 0 while inside a <script> or <style> element

	for {
		tt := tok.Next()
		switch tt {
		case html.ErrorToken:
			if err := tok.Err(); err != io.EOF {
				return "", fmt.Errorf("parse html: %w", err)
			}
			return strings.Join(strings.Fields(out.String()), " "), nil

		case html.StartTagToken, html.SelfClosingTagToken:
			name, _ := tok.TagName()
			if a := atom.Lookup(name); (a == atom.Script || a == atom.Style) && tt == html.StartTagToken {
				skipDepth++
			}

		case html.EndTagToken:
			name, _ := tok.TagName()
			if a := atom.Lookup(name); (a == atom.Script || a == atom.Style) && skipDepth > 0 {
				skipDepth--
			}

		case html.TextToken:
			if skipDepth == 0 {
				out.Write(tok.Text())
				out.WriteByte(' ')
			}
		}
	}
}
