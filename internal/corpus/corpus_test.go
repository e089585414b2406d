package corpus

import (
	"archive/zip"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/hyperjump/faqcache/internal/cacheerr"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func writeXLSX(t *testing.T, path string, sheets map[string][][]string, order ...string) {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	for i, name := range order {
		if i == 0 {
			require.NoError(t, f.SetSheetName("Sheet1", name))
		} else {
			_, err := f.NewSheet(name)
			require.NoError(t, err)
		}
		for r, row := range sheets[name] {
			for c, v := range row {
				cellName, err := excelize.CoordinatesToCellName(c+1, r+1)
				require.NoError(t, err)
				require.NoError(t, f.SetCellValue(name, cellName, v))
			}
		}
	}
	require.NoError(t, f.SaveAs(path))
}

func writeODS(t *testing.T, path, content string) {
	t.Helper()
	out, err := os.Create(path)
	require.NoError(t, err)
	defer out.Close()
	zw := zip.NewWriter(out)
	w, err := zw.Create("mimetype")
	require.NoError(t, err)
	_, err = w.Write([]byte("application/vnd.oasis.opendocument.spreadsheet"))
	require.NoError(t, err)
	w, err = zw.Create(odsContentPath)
	require.NoError(t, err)
	_, err = w.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
}

func TestLoad_CSV(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "faq.csv",
		"\xef\xbb\xbf Question ,ANSWER,notes\n"+
			"  How do I reset my password?  , Use the reset link. ,x\n"+
			",orphan answer,\n"+
			"What are the hours?\n"+
			"\"Multi, comma\",\"line one\nline two\",\n")

	rows, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []Row{
		{Question: "How do I reset my password?", Answer: "Use the reset link."},
		{Question: "What are the hours?", Answer: ""},
		{Question: "Multi, comma", Answer: "line one\nline two"},
	}, rows)
}

func TestLoad_QuestionsHeaderAccepted(t *testing.T) {
	rows, err := LoadBytes([]byte("answer,questions\nA1,Q1\n"), ".csv")
	require.NoError(t, err)
	assert.Equal(t, []Row{{Question: "Q1", Answer: "A1"}}, rows)
}

func TestLoad_MissingColumns(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"no answer column", "question,reply\nq,a\n"},
		{"no question column", "prompt,answer\nq,a\n"},
		{"empty file", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadBytes([]byte(tt.content), ".csv")
			require.Error(t, err)
			assert.True(t, cacheerr.HasCode(err, cacheerr.CodeCorpusInvalid))
		})
	}
}

func TestLoad_NoQuestionRows(t *testing.T) {
	_, err := LoadBytes([]byte("question,answer\n , a\n"), ".csv")
	require.Error(t, err)
	assert.True(t, cacheerr.HasCode(err, cacheerr.CodeCorpusInvalid))
}

func TestLoad_NotFound(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.xlsx"))
	require.Error(t, err)
	assert.True(t, cacheerr.HasCode(err, cacheerr.CodeCorpusNotFound))
	assert.Equal(t, 404, cacheerr.HTTPStatus(err))
}

func TestLoad_UnsupportedExtension(t *testing.T) {
	path := writeFile(t, t.TempDir(), "faq.txt", "question,answer\nq,a\n")
	_, err := Load(path)
	require.Error(t, err)
	assert.True(t, cacheerr.HasCode(err, cacheerr.CodeCorpusInvalid))
	assert.False(t, Supported(path))
	assert.True(t, Supported("FAQ.XLSX"))
}

func TestLoad_XLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "faq.xlsx")
	writeXLSX(t, path, map[string][][]string{
		"Notes": {{"title"}, {"not a corpus"}},
		"FAQ": {
			{"ID", "Question", "Answer"},
			{"1", " 営業時間は？ ", "9時から17時です。"},
			{"2", "", "dropped"},
			{"3", "Where is the office?", "Tokyo"},
		},
	}, "Notes", "FAQ")

	rows, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []Row{
		{Question: "営業時間は？", Answer: "9時から17時です。"},
		{Question: "Where is the office?", Answer: "Tokyo"},
	}, rows)
}

func TestLoad_XLSXCorrupt(t *testing.T) {
	path := writeFile(t, t.TempDir(), "faq.xlsx", "not a workbook")
	_, err := Load(path)
	require.Error(t, err)
	assert.True(t, cacheerr.HasCode(err, cacheerr.CodeCorpusInvalid))
}

const odsDoc = `<?xml version="1.0" encoding="UTF-8"?>
<office:document-content
  xmlns:office="urn:oasis:names:tc:opendocument:xmlns:office:1.0"
  xmlns:table="urn:oasis:names:tc:opendocument:xmlns:table:1.0"
  xmlns:text="urn:oasis:names:tc:opendocument:xmlns:text:1.0">
 <office:body><office:spreadsheet>
  <table:table table:name="FAQ">
   <table:table-row>
    <table:table-cell table:number-columns-repeated="2"><text:p>skip</text:p></table:table-cell>
    <table:table-cell><text:p>question</text:p></table:table-cell>
    <table:table-cell><text:p>answer</text:p></table:table-cell>
   </table:table-row>
   <table:table-row>
    <table:table-cell table:number-columns-repeated="2"/>
    <table:table-cell><text:p>How<text:s/>do I log in?</text:p></table:table-cell>
    <table:table-cell><text:p>Line one</text:p><text:p>Line two</text:p></table:table-cell>
   </table:table-row>
   <table:table-row table:number-rows-repeated="1000">
    <table:table-cell table:number-columns-repeated="16384"/>
   </table:table-row>
  </table:table>
 </office:spreadsheet></office:body>
</office:document-content>`

func TestLoad_ODS(t *testing.T) {
	path := filepath.Join(t.TempDir(), "faq.ods")
	writeODS(t, path, odsDoc)

	rows, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []Row{{Question: "How do I log in?", Answer: "Line one\nLine two"}}, rows)
}

func TestLoad_ODSWithoutContent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "faq.ods")
	out, err := os.Create(path)
	require.NoError(t, err)
	zw := zip.NewWriter(out)
	_, err = zw.Create("meta.xml")
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, out.Close())

	_, err = Load(path)
	require.Error(t, err)
	assert.True(t, cacheerr.HasCode(err, cacheerr.CodeCorpusInvalid))
}

func TestFingerprint(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.csv", "question,answer\nq,a\n")
	b := writeFile(t, dir, "b.csv", "question,answer\nq,a\n")
	c := writeFile(t, dir, "c.csv", "question,answer\nq,b\n")

	fa, err := Fingerprint(a)
	require.NoError(t, err)
	fb, err := Fingerprint(b)
	require.NoError(t, err)
	fc, err := Fingerprint(c)
	require.NoError(t, err)

	assert.Equal(t, fa, fb)
	assert.NotEqual(t, fa, fc)
	assert.Contains(t, fa, "sha256:")

	_, err = Fingerprint(filepath.Join(dir, "missing.csv"))
	assert.Error(t, err)
}
