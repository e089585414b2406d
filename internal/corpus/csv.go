package corpus

import (
	"bytes"
	"encoding/csv"
	"fmt"
)

func readCSV(content []byte) ([][][]string, error) {
	r := csv.NewReader(bytes.NewReader(bytes.TrimPrefix(content, []byte("\xef\xbb\xbf"))))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read CSV: %w", err)
	}
	return [][][]string{records}, nil
}
