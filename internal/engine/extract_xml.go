package engine

import (
	"encoding/xml"
	"fmt"
	"io"
	"strings"
)

// extractXML concatenates all character data in an XML document, separated
// by whitespace, with no interpretation of element names or attributes.
//
// This uses the standard library's encoding/xml decoder: plain
// character-data concatenation doesn't warrant a dedicated streaming
// parser or schema-aware tokenizer.
func extractXML(r io.Reader) (string, error) {
	dec := xml.NewDecoder(r)
	dec.Strict = false

	var out strings.Builder
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("parse xml: %w", err)
		}
		if cd, ok := tok.(xml.CharData); ok {
			out.Write(cd)
			out.WriteByte(' ')
		}
	}
	return strings.Join(strings.Fields(out.String()), " "), nil
}
