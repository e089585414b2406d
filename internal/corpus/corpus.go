// Package corpus reads the question/answer dataset that reconstruction rebuilds a
// collection from. Spreadsheets (.xlsx, .xlsm, .ods) and CSV are supported.
package corpus

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hyperjump/faqcache/internal/cacheerr"
)

// Row is one question/answer pair from the corpus.
type Row struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// Supported reports whether path has an extension Load can read.
func Supported(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm", ".csv", ".ods":
		return true
	}
	return false
}

// Load reads the corpus file at path. The header row must contain a question column
// (question or questions) and an answer column, matched case-insensitively. Fields are
// trimmed and rows with an empty question are dropped. A corpus with no usable rows is
// an invalid format.
func Load(path string) ([]Row, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, cacheerr.New(cacheerr.CodeCorpusNotFound,
				fmt.Sprintf("corpus file not found: %s", path), cacheerr.Field("path", path))
		}
		return nil, cacheerr.Wrap(err, cacheerr.CodeCorpusInvalid, "failed to read corpus", cacheerr.Field("path", path))
	}
	rows, err := LoadBytes(content, strings.ToLower(filepath.Ext(path)))
	if err != nil {
		return nil, cacheerr.Wrap(err, cacheerr.CodeCorpusInvalid, fmt.Sprintf("invalid corpus %s", path), cacheerr.Field("path", path))
	}
	return rows, nil
}

// LoadBytes parses corpus content for the given extension (with leading dot).
func LoadBytes(content []byte, ext string) ([]Row, error) {
	var (
		tables [][][]string
		err    error
	)
	switch ext {
	case ".xlsx", ".xlsm":
		tables, err = readXLSX(content)
	case ".csv":
		tables, err = readCSV(content)
	case ".ods":
		tables, err = readODS(content)
	default:
		return nil, cacheerr.New(cacheerr.CodeCorpusInvalid, fmt.Sprintf("unsupported corpus format: %q", ext))
	}
	if err != nil {
		return nil, cacheerr.Wrap(err, cacheerr.CodeCorpusInvalid, "failed to parse corpus")
	}

	for _, table := range tables {
		rows, ok := fromTable(table)
		if !ok {
			continue
		}
		if len(rows) == 0 {
			return nil, cacheerr.New(cacheerr.CodeCorpusInvalid, "corpus has no rows with a question")
		}
		return rows, nil
	}
	return nil, cacheerr.New(cacheerr.CodeCorpusInvalid,
		"corpus must contain 'question' (or 'questions') and 'answer' columns")
}

// fromTable locates the header in the first row of table and extracts the rows below it.
// It reports false when the header lacks a required column.
func fromTable(table [][]string) ([]Row, bool) {
	if len(table) == 0 {
		return nil, false
	}
	qCol, aCol := -1, -1
	for i, h := range table[0] {
		switch strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\uFEFF"))) {
		case "question", "questions":
			if qCol == -1 {
				qCol = i
			}
		case "answer":
			if aCol == -1 {
				aCol = i
			}
		}
	}
	if qCol == -1 || aCol == -1 {
		return nil, false
	}

	rows := make([]Row, 0, len(table)-1)
	for _, record := range table[1:] {
		q := strings.TrimSpace(cell(record, qCol))
		if q == "" {
			continue
		}
		rows = append(rows, Row{Question: q, Answer: strings.TrimSpace(cell(record, aCol))})
	}
	return rows, true
}

func cell(record []string, i int) string {
	if i < len(record) {
		return record[i]
	}
	return ""
}
