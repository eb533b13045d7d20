package engine

import (
	"fmt"
	"io"
	"strings"
)

// Extractor turns one file's raw bytes into plain text for tokenization.
// Extraction failures are non-fatal: the index writer logs and skips the
// file rather than aborting the run.
type Extractor func(r io.Reader) (string, error)

// extractors is the pure-function registry keyed by lowercased file
// extension (without the leading dot), the tagged-variant dispatch the
// design notes call for: an unrecognized extension is a registry miss, a
// skip, never a runtime error.
var extractors = map[string]Extractor{
	"txt":   extractPlainText,
	"md":    extractPlainText,
	"html":  extractHTML,
	"xhtml": extractHTML,
	"xml":   extractXML,
	"csv":   extractCSV,
	"pdf":   extractPDF,
}

// ExtractorFor returns the extractor registered for ext (without the
// leading dot, case-insensitive), and false if the extension is not
// recognized.
func ExtractorFor(ext string) (Extractor, bool) {
	e, ok := extractors[strings.ToLower(strings.TrimPrefix(ext, "."))]
	return e, ok
}

// RegisterExtractor lets a caller add or override support for an
// extension, e.g. to plug in a fuller PDF or DOCX backend than the
// built-in best-effort implementations below.
func RegisterExtractor(ext string, e Extractor) {
	extractors[strings.ToLower(strings.TrimPrefix(ext, "."))] = e
}

func extractPlainText(r io.Reader) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("read plain text: %w", err)
	}
	return strings.ToValidUTF8(string(data), "�"), nil
}
