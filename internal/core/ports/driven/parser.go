package driven

import (
	"context"

	"github.com/saga-labs/saga-core/internal/core/domain"
)

// DocumentParser extracts plain text from raw document bytes.
// Implementations include remote OCR/parsing services and the in-process
// local fallback parser; the parsing chain tries them in priority order.
type DocumentParser interface {
	// Name identifies the parser for logging and warnings.
	Name() string

	// Parse extracts text from the document. A nil error with empty text
	// is treated as a parse failure by the chain.
	Parse(ctx context.Context, data []byte, kind domain.DocumentKind) (string, error)
}
