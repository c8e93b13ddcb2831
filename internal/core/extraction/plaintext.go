package extraction

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// extractPlainText decodes bytes as UTF-8, falls back to Latin-1, and as a
// last resort keeps the valid UTF-8 with replacement runes rather than
// failing.
func extractPlainText(data []byte) (string, error) {
	if utf8.Valid(data) {
		return string(data), nil
	}

	if decoded, err := charmap.ISO8859_1.NewDecoder().Bytes(data); err == nil {
		return string(decoded), nil
	}

	return strings.ToValidUTF8(string(data), string(utf8.RuneError)), nil
}
