package extraction

import (
	"bytes"
	"fmt"
	"strings"

	"code.sajari.com/docconv"
	"github.com/ledongthuc/pdf"
	"go.uber.org/zap"

	"github.com/studyowl/studyowl/internal/core"
)

// pdfStrategy is one way of pulling text out of a PDF. Strategies are tried
// in order; a strategy that returns only whitespace counts as a failure and
// the next one is tried.
type pdfStrategy struct {
	name    string
	extract func(data []byte) (string, error)
}

// extractPDF runs the ordered strategy list and collects one diagnostic per
// failed strategy instead of relying on errors for normal fallback.
func (e *Extractor) extractPDF(data []byte) (string, error) {
	strategies := []pdfStrategy{
		{name: "docconv", extract: extractPDFDocconv},
		{name: "pdfreader", extract: e.extractPDFPages},
	}

	var diagnostics []string
	for _, s := range strategies {
		text, err := s.extract(data)
		if err != nil {
			e.logger.Warn("pdf strategy failed", zap.String("strategy", s.name), zap.Error(err))
			diagnostics = append(diagnostics, fmt.Sprintf("%s: %v", s.name, err))
			continue
		}
		if strings.TrimSpace(text) == "" {
			e.logger.Warn("pdf strategy extracted no text", zap.String("strategy", s.name))
			diagnostics = append(diagnostics, fmt.Sprintf("%s: no readable text", s.name))
			continue
		}
		return text, nil
	}

	return "", &core.ExtractionError{
		Reason:      "PDF text extraction failed; the document may be image-based, encrypted, or corrupted",
		Diagnostics: diagnostics,
	}
}

// extractPDFDocconv converts the whole document at once, preserving layout.
func extractPDFDocconv(data []byte) (string, error) {
	text, _, err := docconv.ConvertPDF(bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	return text, nil
}

// extractPDFPages walks the document page by page. A page that cannot be
// parsed is logged and skipped rather than aborting the whole document.
func (e *Extractor) extractPDFPages(data []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		text, err := extractPage(reader, i)
		if err != nil {
			e.logger.Warn("skipping unreadable pdf page", zap.Int("page", i), zap.Error(err))
			continue
		}
		if strings.TrimSpace(text) != "" {
			sb.WriteString(text)
			sb.WriteString("\n")
		}
	}
	return sb.String(), nil
}

// extractPage isolates a single page so a panic inside the parser (it does
// panic on some malformed xref tables) only loses that page.
func extractPage(reader *pdf.Reader, num int) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("page parser panic: %v", r)
		}
	}()

	page := reader.Page(num)
	if page.V.IsNull() {
		return "", fmt.Errorf("page %d is null", num)
	}
	return page.GetPlainText(nil)
}
