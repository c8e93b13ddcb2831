package extraction

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"github.com/studyowl/studyowl/internal/core"
)

// documentXML mirrors the parts of word/document.xml we read: top-level
// paragraphs followed by tables.
type documentXML struct {
	Body struct {
		Paragraphs []docxParagraph `xml:"p"`
		Tables     []docxTable     `xml:"tbl"`
	} `xml:"body"`
}

type docxParagraph struct {
	Runs []struct {
		Text []struct {
			Content string `xml:",chardata"`
		} `xml:"t"`
	} `xml:"r"`
}

type docxTable struct {
	Rows []struct {
		Cells []struct {
			Paragraphs []docxParagraph `xml:"p"`
		} `xml:"tc"`
	} `xml:"tr"`
}

// extractDOCX reads a DOCX archive and concatenates paragraph text followed
// by table text. Table cells are space-joined within a row and rows are
// newline-joined; empty paragraphs are dropped.
func extractDOCX(data []byte) (string, error) {
	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", &core.ExtractionError{
			Reason:      "not a valid DOCX archive",
			Diagnostics: []string{err.Error()},
		}
	}

	content, err := readArchiveFile(reader, "word/document.xml")
	if err != nil {
		return "", &core.ExtractionError{
			Reason:      "DOCX archive has no readable document body",
			Diagnostics: []string{err.Error()},
		}
	}

	var doc documentXML
	if err := xml.Unmarshal(content, &doc); err != nil {
		return "", &core.ExtractionError{
			Reason:      "could not parse DOCX document body",
			Diagnostics: []string{err.Error()},
		}
	}

	var sb strings.Builder
	for _, para := range doc.Body.Paragraphs {
		if text := paragraphText(para); text != "" {
			sb.WriteString(text)
			sb.WriteString("\n")
		}
	}
	for _, table := range doc.Body.Tables {
		for _, row := range table.Rows {
			var cells []string
			for _, cell := range row.Cells {
				var parts []string
				for _, para := range cell.Paragraphs {
					if text := paragraphText(para); text != "" {
						parts = append(parts, text)
					}
				}
				if len(parts) > 0 {
					cells = append(cells, strings.Join(parts, " "))
				}
			}
			if len(cells) > 0 {
				sb.WriteString(strings.Join(cells, " "))
				sb.WriteString("\n")
			}
		}
	}
	return strings.TrimSpace(sb.String()), nil
}

func paragraphText(para docxParagraph) string {
	var sb strings.Builder
	for _, run := range para.Runs {
		for _, t := range run.Text {
			sb.WriteString(t.Content)
		}
	}
	return strings.TrimSpace(sb.String())
}

func readArchiveFile(reader *zip.Reader, name string) ([]byte, error) {
	for _, file := range reader.File {
		if file.Name != name {
			continue
		}
		rc, err := file.Open()
		if err != nil {
			return nil, err
		}
		defer rc.Close()
		return io.ReadAll(rc)
	}
	return nil, fmt.Errorf("%s missing from archive", name)
}
