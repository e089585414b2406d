package corpus

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// odsContentPath is the path to the main content inside an .ods zip (OpenDocument Spreadsheet).
const odsContentPath = "content.xml"

// Repeated empty cells and rows are expanded at most this far; trailing filler in
// OpenDocument files often repeats a blank cell thousands of times.
const odsMaxRepeat = 1024

const (
	nsTable = "urn:oasis:names:tc:opendocument:xmlns:table:1.0"
	nsText  = "urn:oasis:names:tc:opendocument:xmlns:text:1.0"
)

// readODS returns the rows of every table in content.xml in document order.
func readODS(content []byte) ([][][]string, error) {
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("read ODS: not a zip: %w", err)
	}
	for _, f := range zr.File {
		if f.Name != odsContentPath {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("read ODS: open %s: %w", f.Name, err)
		}
		defer rc.Close()
		return parseODSContent(rc)
	}
	return nil, fmt.Errorf("read ODS: %s not found", odsContentPath)
}

func parseODSContent(r io.Reader) ([][][]string, error) {
	dec := xml.NewDecoder(r)
	var (
		tables  [][][]string
		table   [][]string
		row     []string
		cellBuf strings.Builder
		inCell  bool
		inPara  bool
		paras   int
		rowRep  int
		cellRep int
	)
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read ODS: parse %s: %w", odsContentPath, err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch {
			case t.Name.Space == nsTable && t.Name.Local == "table":
				table = nil
			case t.Name.Space == nsTable && t.Name.Local == "table-row":
				row = nil
				rowRep = repeatAttr(t, "number-rows-repeated")
			case t.Name.Space == nsTable && (t.Name.Local == "table-cell" || t.Name.Local == "covered-table-cell"):
				inCell = true
				paras = 0
				cellBuf.Reset()
				cellRep = repeatAttr(t, "number-columns-repeated")
			case t.Name.Space == nsText && t.Name.Local == "p" && inCell:
				if paras > 0 {
					cellBuf.WriteByte('\n')
				}
				paras++
				inPara = true
			case t.Name.Space == nsText && t.Name.Local == "s" && inCell:
				cellBuf.WriteString(strings.Repeat(" ", max(1, repeatAttrNS(t, nsText, "c"))))
			case t.Name.Space == nsText && t.Name.Local == "tab" && inCell:
				cellBuf.WriteByte('\t')
			case t.Name.Space == nsText && t.Name.Local == "line-break" && inCell:
				cellBuf.WriteByte('\n')
			}
		case xml.CharData:
			if inCell && inPara {
				cellBuf.Write(t)
			}
		case xml.EndElement:
			switch {
			case t.Name.Space == nsText && t.Name.Local == "p":
				inPara = false
			case t.Name.Space == nsTable && (t.Name.Local == "table-cell" || t.Name.Local == "covered-table-cell"):
				value := cellBuf.String()
				for i := 0; i < cellRep; i++ {
					row = append(row, value)
				}
				inCell = false
			case t.Name.Space == nsTable && t.Name.Local == "table-row":
				row = trimTrailingEmpty(row)
				for i := 0; i < rowRep; i++ {
					table = append(table, row)
				}
			case t.Name.Space == nsTable && t.Name.Local == "table":
				tables = append(tables, trimTrailingRows(table))
			}
		}
	}
	return tables, nil
}

func repeatAttr(el xml.StartElement, local string) int {
	return repeatAttrNS(el, nsTable, local)
}

func repeatAttrNS(el xml.StartElement, space, local string) int {
	for _, a := range el.Attr {
		if a.Name.Space == space && a.Name.Local == local {
			if n, err := strconv.Atoi(a.Value); err == nil && n > 0 {
				return min(n, odsMaxRepeat)
			}
		}
	}
	return 1
}

func trimTrailingEmpty(row []string) []string {
	for len(row) > 0 && strings.TrimSpace(row[len(row)-1]) == "" {
		row = row[:len(row)-1]
	}
	return row
}

func trimTrailingRows(table [][]string) [][]string {
	for len(table) > 0 && len(table[len(table)-1]) == 0 {
		table = table[:len(table)-1]
	}
	return table
}
