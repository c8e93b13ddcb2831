package extraction

import (
	"archive/zip"
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/studyowl/studyowl/internal/core"
)

func buildDocx(t *testing.T, documentXML string) []byte {
	t.Helper()

	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	f, err := w.Create("word/document.xml")
	require.NoError(t, err)
	_, err = f.Write([]byte(documentXML))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.Bytes()
}

const sampleDocumentXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <w:body>
    <w:p><w:r><w:t>First paragraph</w:t></w:r></w:p>
    <w:p></w:p>
    <w:p><w:r><w:t>Second </w:t></w:r><w:r><w:t>paragraph</w:t></w:r></w:p>
    <w:tbl>
      <w:tr>
        <w:tc><w:p><w:r><w:t>cell one</w:t></w:r></w:p></w:tc>
        <w:tc><w:p><w:r><w:t>cell two</w:t></w:r></w:p></w:tc>
      </w:tr>
      <w:tr>
        <w:tc><w:p><w:r><w:t>cell three</w:t></w:r></w:p></w:tc>
        <w:tc><w:p></w:p></w:tc>
      </w:tr>
    </w:tbl>
  </w:body>
</w:document>`

func TestExtract(t *testing.T) {
	e := New(zap.NewNop())

	t.Run("plain text utf8", func(t *testing.T) {
		text, err := e.Extract([]byte("hello world, this is a text file"), ".txt")
		require.NoError(t, err)
		assert.Equal(t, "hello world, this is a text file", text)
	})

	t.Run("extension casing and dot ignored", func(t *testing.T) {
		_, err := e.Extract([]byte("some markdown content here"), "MD")
		assert.NoError(t, err)
	})

	t.Run("latin-1 fallback", func(t *testing.T) {
		// 0xE9 is é in Latin-1 and invalid as a standalone UTF-8 byte.
		data := append([]byte("r\xe9sum\xe9 of the candidate"), []byte(" with more text")...)
		text, err := e.Extract(data, "txt")
		require.NoError(t, err)
		assert.Contains(t, text, "résumé")
	})

	t.Run("unsupported extension", func(t *testing.T) {
		_, err := e.Extract([]byte("binary stuff"), "exe")
		var ute *core.UnsupportedTypeError
		require.ErrorAs(t, err, &ute)
		assert.Equal(t, "exe", ute.Ext)
		assert.Contains(t, err.Error(), "exe")
	})

	t.Run("insufficient content fails", func(t *testing.T) {
		_, err := e.Extract([]byte("short"), "txt")
		var ee *core.ExtractionError
		require.ErrorAs(t, err, &ee)
		assert.Contains(t, err.Error(), "insufficient")
	})

	t.Run("docx paragraphs and tables", func(t *testing.T) {
		text, err := e.Extract(buildDocx(t, sampleDocumentXML), "docx")
		require.NoError(t, err)

		lines := strings.Split(text, "\n")
		require.Len(t, lines, 4)
		assert.Equal(t, "First paragraph", lines[0])
		assert.Equal(t, "Second paragraph", lines[1])
		assert.Equal(t, "cell one cell two", lines[2])
		assert.Equal(t, "cell three", lines[3])
	})

	t.Run("docx from non-zip bytes", func(t *testing.T) {
		_, err := e.Extract([]byte("definitely not a zip archive"), "docx")
		var ee *core.ExtractionError
		require.ErrorAs(t, err, &ee)
	})

	t.Run("garbage pdf fails with extraction error", func(t *testing.T) {
		_, err := e.Extract([]byte("this is not a pdf at all, it just pretends"), "pdf")
		var ee *core.ExtractionError
		require.ErrorAs(t, err, &ee)
		assert.Contains(t, err.Error(), "image-based, encrypted, or corrupted")
		assert.NotEmpty(t, ee.Diagnostics)
	})
}

func TestContentTypeForExtension(t *testing.T) {
	assert.Equal(t, "application/pdf", ContentTypeForExtension(".pdf"))
	assert.Equal(t, "text/markdown", ContentTypeForExtension("md"))
	assert.Equal(t, "text/plain", ContentTypeForExtension(".go"))
	assert.Equal(t, "application/octet-stream", ContentTypeForExtension(".bin"))
}

func TestExtractionErrorMessage(t *testing.T) {
	err := &core.ExtractionError{Reason: "nope", Diagnostics: []string{"a", "b"}}
	assert.Equal(t, "nope: a; b", err.Error())
	assert.False(t, errors.Is(err, core.ErrConflict))
}
