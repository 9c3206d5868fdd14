package utils

import (
	"encoding/csv"
	"io"
)

// ParseCSV reads every row of r. Lines starting with '#' are skipped and
// leading whitespace in fields is trimmed; rows may have differing widths.
func ParseCSV(r io.Reader) ([][]string, error) {
	reader := csv.NewReader(r)
	reader.Comment = '#'
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return nil, err
	}
	return records, nil
}
