package parser

import (
	"encoding/csv"
	"io"
	"strings"
)

// ReadLayout extracts the header row and up to sampleSize data rows from raw
// CSV text for fingerprinting and account detection. It is total: malformed
// input yields whatever could be read, never an error.
func ReadLayout(csvText string, sampleSize int) (headers []string, sample [][]string) {
	reader := csv.NewReader(strings.NewReader(csvText))
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	headers, err := reader.Read()
	if err != nil {
		return nil, nil
	}

	for len(sample) < sampleSize {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			continue
		}
		sample = append(sample, record)
	}

	return headers, sample
}
