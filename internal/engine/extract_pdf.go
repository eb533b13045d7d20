package engine

import (
	"bytes"
	"compress/zlib"
	"fmt"
	"io"
	"regexp"
	"strings"
)

// extractPDF is a minimal, best-effort PDF text extractor: no PDF parsing
// library appears anywhere in the retrieved corpus, so this is built on
// the standard library alone (documented in DESIGN.md). It scans each
// content stream between "stream"/"endstream" markers, inflates it if the
// preceding dictionary advertises /FlateDecode, and pulls out the literal
// strings that directly precede a Tj, ' or " text-showing operator;
// strings inside a TJ array are not extracted. It does not
// understand fonts, encodings, or layout, so ligatures and non-Latin text
// may come out mangled -- acceptable because extraction failures are
// non-fatal for the indexing run, and a malformed or unsupported PDF is
// simply skipped with the rest of the corpus left searchable.
func extractPDF(r io.Reader) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("read pdf: %w", err)
	}

	var pages []string
	pos := 0
	for {
		streamIdx := bytes.Index(data[pos:], []byte("stream"))
		if streamIdx < 0 {
			break
		}
		streamIdx += pos

		dictStart := pos
		if dictStart < 0 {
			dictStart = 0
		}
		dict := data[dictStart:streamIdx]
		flate := bytes.Contains(dict, []byte("FlateDecode"))

		bodyStart := streamIdx + len("stream")
		// content begins after an optional CRLF/LF immediately following
		// the "stream" keyword
		for bodyStart < len(data) && (data[bodyStart] == '\r' || data[bodyStart] == '\n') {
			bodyStart++
		}

		endIdx := bytes.Index(data[bodyStart:], []byte("endstream"))
		if endIdx < 0 {
			break
		}
		endIdx += bodyStart

		body := data[bodyStart:endIdx]

		if flate {
			if inflated, ierr := inflate(body); ierr == nil {
				body = inflated
			}
		}

		if text := pdfOperatorText(body); text != "" {
			pages = append(pages, text)
		}

		pos = endIdx + len("endstream")
	}

	return strings.Join(pages, "\n"), nil
}

func inflate(body []byte) ([]byte, error) {
	zr, err := zlib.NewReader(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	defer zr.Close()
	return io.ReadAll(zr)
}

// pdfShowText matches a literal string followed directly by a Tj, TJ, ' or
// " operator. Strings inside a TJ array ("[(a) -20 (b)] TJ") do not match,
// since the closing bracket stands between them and the operator.
var pdfShowText = regexp.MustCompile(`\(((?:[^()\\]|\\.)*)\)\s*(?:Tj|TJ|'|")`)

func pdfOperatorText(content []byte) string {
	matches := pdfShowText.FindAllSubmatch(content, -1)
	if matches == nil {
		return ""
	}
	parts := make([]string, 0, len(matches))
	for _, m := range matches {
		parts = append(parts, pdfUnescape(string(m[1])))
	}
	return strings.Join(parts, " ")
}

var pdfEscapeReplacer = strings.NewReplacer(
	`\(`, "(",
	`\)`, ")",
	`\\`, `\`,
	`\n`, "\n",
	`\r`, "\r",
	`\t`, "\t",
)

func pdfUnescape(s string) string {
	return pdfEscapeReplacer.Replace(s)
}
