package extraction

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/studyowl/studyowl/internal/core"
)

// minContentLength is the shortest extraction output we accept. Anything
// below this is treated as a failed extraction even when a strategy
// technically succeeded.
const minContentLength = 10

var _ core.TextExtractor = (*Extractor)(nil)

// plainTextExts is the group of extensions decoded as UTF-8 text.
var plainTextExts = map[string]bool{
	"txt": true, "md": true, "py": true, "js": true, "html": true,
	"css": true, "json": true, "xml": true, "go": true, "ts": true,
	"rs": true, "java": true, "c": true, "sh": true, "sql": true,
	"yaml": true, "yml": true, "toml": true, "csv": true,
}

// Extractor converts raw file bytes into plain text, dispatching on the
// declared file extension.
type Extractor struct {
	logger *zap.Logger
}

func New(logger *zap.Logger) *Extractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{logger: logger}
}

// Extract returns the document's text. The extension may carry a leading dot
// and any casing. Unknown extensions fail with UnsupportedTypeError; content
// shorter than minContentLength fails with ExtractionError.
func (e *Extractor) Extract(data []byte, extension string) (string, error) {
	ext := strings.ToLower(strings.TrimPrefix(extension, "."))

	var (
		text string
		err  error
	)
	switch {
	case ext == "pdf":
		text, err = e.extractPDF(data)
	case ext == "docx" || ext == "doc":
		text, err = extractDOCX(data)
	case plainTextExts[ext]:
		text, err = extractPlainText(data)
	default:
		return "", &core.UnsupportedTypeError{Ext: ext}
	}
	if err != nil {
		return "", err
	}

	text = strings.TrimSpace(text)
	if len(text) < minContentLength {
		return "", &core.ExtractionError{
			Reason: "insufficient text content extracted",
			Diagnostics: []string{
				fmt.Sprintf("got %d characters, need at least %d", len(text), minContentLength),
			},
		}
	}
	return text, nil
}

// ContentTypeForExtension maps a file extension to the MIME type recorded on
// the source-file row. Unknown extensions map to application/octet-stream.
func ContentTypeForExtension(extension string) string {
	ext := strings.ToLower(strings.TrimPrefix(extension, "."))
	switch ext {
	case "pdf":
		return "application/pdf"
	case "docx":
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	case "doc":
		return "application/msword"
	case "txt":
		return "text/plain"
	case "md":
		return "text/markdown"
	case "html":
		return "text/html"
	case "css":
		return "text/css"
	case "js":
		return "text/javascript"
	case "json":
		return "application/json"
	case "xml":
		return "application/xml"
	case "csv":
		return "text/csv"
	default:
		if plainTextExts[ext] {
			return "text/plain"
		}
		return "application/octet-stream"
	}
}
