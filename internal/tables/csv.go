package tables

import (
	"encoding/csv"
	"fmt"
	"io"
)

// ReadCSV loads table data from CSV. When header is true the first
// record is dropped.
func ReadCSV(r io.Reader, header bool) ([][]string, error) {
	reader := csv.NewReader(r)
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}
	if header && len(records) > 0 {
		records = records[1:]
	}
	if records == nil {
		records = [][]string{}
	}
	return records, nil
}
