// Package local provides the in-process fallback parser. It handles text
// formats directly and rejects documents that genuinely require OCR, so
// the chain fails cleanly instead of indexing binary garbage.
package local

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/saga-labs/saga-core/internal/core/domain"
	"github.com/saga-labs/saga-core/internal/core/ports/driven"
)

// Ensure Parser implements the interface.
var _ driven.DocumentParser = (*Parser)(nil)

// printableThreshold is the minimum fraction of text-like runes for a
// byte stream to count as an extractable text layer.
const printableThreshold = 0.9

// Parser is the local fallback document parser.
type Parser struct{}

// New creates the local parser.
func New() *Parser {
	return &Parser{}
}

// Name identifies the parser in logs and warnings.
func (p *Parser) Name() string {
	return "local"
}

// Parse extracts text from the document. Markdown and plain text pass
// through after UTF-8 validation. PDFs succeed only when the bytes carry
// a plain text layer; images always require a remote OCR tier.
func (p *Parser) Parse(_ context.Context, data []byte, kind domain.DocumentKind) (string, error) {
	switch kind {
	case domain.KindMarkdown, domain.KindPlain:
		return decodeText(data)
	case domain.KindPDF:
		text, err := decodeText(data)
		if err != nil {
			return "", fmt.Errorf("pdf has no extractable text layer: %w", err)
		}
		return text, nil
	case domain.KindImage:
		return "", fmt.Errorf("image documents require an OCR service")
	default:
		return "", fmt.Errorf("unsupported document kind %q", kind)
	}
}

// decodeText validates that the bytes are predominantly text and returns
// them as a string with invalid sequences dropped.
func decodeText(data []byte) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("empty document")
	}

	text := strings.ToValidUTF8(string(data), "")
	if text == "" {
		return "", fmt.Errorf("no valid text content")
	}

	printable := 0
	total := 0
	for _, r := range text {
		total++
		if r == '\n' || r == '\t' || r == '\r' || !isControl(r) {
			printable++
		}
	}
	if total == 0 || float64(printable)/float64(total) < printableThreshold {
		return "", fmt.Errorf("content is not text (%d/%d printable)", printable, total)
	}

	return text, nil
}

func isControl(r rune) bool {
	return r < 0x20 || r == 0x7f || r == utf8.RuneError
}
