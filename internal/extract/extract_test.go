package extract

import (
	"archive/zip"
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zombar/truthlens/internal/models"
)

func TestFormatOf(t *testing.T) {
	tests := []struct {
		filename string
		want     Format
		ok       bool
	}{
		{"nota.pdf", FormatPDF, true},
		{"NOTA.PDF", FormatPDF, true},
		{"informe.docx", FormatDOCX, true},
		{"texto.txt", FormatTXT, true},
		{"imagen.png", "", false},
		{"informe.doc", "", false},
		{"sin_extension", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			got, ok := FormatOf(tt.filename)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestText_Errors(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		content  []byte
		wantKind models.ErrorKind
	}{
		{name: "empty upload", filename: "a.txt", content: nil, wantKind: models.KindInsufficientContent},
		{name: "unsupported extension", filename: "a.png", content: []byte{0x89, 'P', 'N', 'G'}, wantKind: models.KindUnsupportedFormat},
		{name: "corrupt docx", filename: "a.docx", content: []byte("not a zip"), wantKind: models.KindExtraction},
		{name: "corrupt pdf", filename: "a.pdf", content: []byte("%PDF-1.4 garbage"), wantKind: models.KindExtraction},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Text(tt.filename, tt.content)
			require.Error(t, err)
			assert.Equal(t, tt.wantKind, models.KindOf(err))
		})
	}
}

func TestText_TXTEncodings(t *testing.T) {
	tests := []struct {
		name    string
		content []byte
		want    string
	}{
		{name: "utf-8", content: []byte("Noticia económica"), want: "Noticia económica"},
		{name: "utf-8 with BOM", content: append([]byte{0xEF, 0xBB, 0xBF}, []byte("Año nuevo")...), want: "Año nuevo"},
		{name: "latin-1", content: []byte{'A', 0xF1, 'o', ' ', 'p', 'r', 'e', 'v', 'i', 'o'}, want: "Año previo"},
		{name: "windows-1252 quotes", content: []byte{0x93, 'h', 'o', 'l', 'a', 0x94}, want: "“hola”"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Text("nota.txt", tt.content)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func buildDOCX(t *testing.T, documentXML string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("word/document.xml")
	require.NoError(t, err)
	_, err = w.Write([]byte(documentXML))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestText_DOCX(t *testing.T) {
	doc := `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <w:body>
    <w:p><w:r><w:t>Gobierno anuncia</w:t></w:r><w:r><w:t xml:space="preserve"> reformas</w:t></w:r></w:p>
    <w:p><w:r><w:t>Segundo</w:t><w:tab/><w:t>párrafo</w:t></w:r></w:p>
    <w:p/>
  </w:body>
</w:document>`

	got, err := Text("informe.docx", buildDOCX(t, doc))
	require.NoError(t, err)
	assert.Equal(t, "Gobierno anuncia reformas\nSegundo\tpárrafo\n", got)
}

func TestText_DOCXMissingBody(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	_, err := zw.Create("word/styles.xml")
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	_, err = Text("informe.docx", buf.Bytes())
	require.Error(t, err)
	var extractionErr *models.ExtractionError
	require.ErrorAs(t, err, &extractionErr)
	assert.Equal(t, "docx", extractionErr.Format)
}
