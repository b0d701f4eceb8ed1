package parser

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubExtractor struct {
	text string
	uri  string
}

func (s *stubExtractor) ExtractTextFromBytes(_ context.Context, _ []byte, uri string, meta map[string]interface{}) (string, map[string]interface{}, error) {
	s.uri = uri
	return s.text, mergeMeta(meta), nil
}

func TestExtractorRegistry_SelectsByExtension(t *testing.T) {
	reg := NewExtractorRegistry()
	pdf := &stubExtractor{text: "from pdf"}
	reg.Register("PDF", pdf)

	text, _, err := reg.Extract(context.Background(), []byte("%PDF"), "Resume.Final.PDF", nil)

	require.NoError(t, err)
	assert.Equal(t, "from pdf", text)
	assert.Equal(t, "Resume.Final.PDF", pdf.uri)
	assert.True(t, reg.Supports("notes.txt"))
	assert.False(t, reg.Supports("photo.png"))
}

func TestExtractorRegistry_Errors(t *testing.T) {
	reg := NewExtractorRegistry()

	_, _, err := reg.Extract(context.Background(), []byte("x"), "photo.png", nil)
	assert.True(t, errors.Is(err, ErrUnsupportedFormat))

	_, _, err = reg.Extract(context.Background(), nil, "cv.txt", nil)
	assert.True(t, errors.Is(err, ErrEmptyDocument))
}

func TestExtractorRegistry_ExtractFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cv.txt")
	require.NoError(t, os.WriteFile(path, []byte("Jane Roe\nSkills"), 0o644))

	text, meta, err := NewExtractorRegistry().ExtractFile(context.Background(), path)

	require.NoError(t, err)
	assert.Equal(t, "Jane Roe\nSkills", text)
	assert.Equal(t, path, meta["source_file_path"])
	assert.Equal(t, "plain", meta["extractor"])
}

func TestHTMLExtractor(t *testing.T) {
	page := `<html><head><script>alert("x")</script><style>p{}</style></head>
<body><h1>Jane Roe</h1><p>Work   <b>Experience</b></p>
<ul><li>Acme Corp</li><li><p>Nested item</p></li></ul></body></html>`

	text, meta, err := NewHTMLExtractor().ExtractTextFromBytes(context.Background(), []byte(page), "cv.html", nil)

	require.NoError(t, err)
	assert.Equal(t, "Jane Roe\nWork Experience\nAcme Corp\nNested item", text)
	assert.NotContains(t, text, "alert")
	assert.Equal(t, "html", meta["extractor"])
}

func TestDocxXMLToText(t *testing.T) {
	xml := `<w:document><w:body><w:p><w:r><w:t>Jane Roe</w:t></w:r></w:p>` +
		`<w:p><w:r><w:t>R&amp;D</w:t><w:tab/><w:t>Engineer</w:t></w:r></w:p>` +
		`<w:p><w:r><w:t>Line one</w:t><w:br/><w:t>Line two</w:t></w:r></w:p></w:body></w:document>`

	assert.Equal(t, "Jane Roe\nR&D\tEngineer\nLine one\nLine two", docxXMLToText(xml))
}

func TestDocxExtractor(t *testing.T) {
	data := buildDocx(t, `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>`+
		`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>`+
		`<w:p><w:r><w:t>Jane Roe</w:t></w:r></w:p>`+
		`<w:p><w:r><w:t>Education</w:t></w:r></w:p>`+
		`</w:body></w:document>`)

	text, meta, err := DocxExtractor{}.ExtractTextFromBytes(context.Background(), data, "cv.docx", nil)

	require.NoError(t, err)
	assert.Equal(t, "Jane Roe\nEducation", text)
	assert.Equal(t, "docx", meta["extractor"])
}

func TestDocxExtractor_InvalidArchive(t *testing.T) {
	_, _, err := DocxExtractor{}.ExtractTextFromBytes(context.Background(), []byte("not a zip"), "cv.docx", nil)
	assert.Error(t, err)
}

func TestLedongthucPDFExtractor_InvalidPDF(t *testing.T) {
	_, _, err := NewLedongthucPDFExtractor().ExtractTextFromBytes(context.Background(), []byte("not a pdf"), "cv.pdf", nil)
	assert.Error(t, err)
}

func buildDocx(t *testing.T, documentXML string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	files := map[string]string{
		"[Content_Types].xml":          `<?xml version="1.0" encoding="UTF-8"?><Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types"></Types>`,
		"word/document.xml":            documentXML,
		"word/_rels/document.xml.rels": `<?xml version="1.0" encoding="UTF-8"?><Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships"></Relationships>`,
	}
	for name, content := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}
