package engine

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
)

// extractCSV concatenates every cell of every row, separated by
// whitespace. No header interpretation: the first row is text like any
// other.
func extractCSV(r io.Reader) (string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1 // tolerate ragged rows rather than failing the whole file
	cr.LazyQuotes = true

	var out strings.Builder
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("parse csv: %w", err)
		}
		for _, cell := range record {
			out.WriteString(cell)
			out.WriteByte(' ')
		}
	}
	return strings.Join(strings.Fields(out.String()), " "), nil
}
