package domain

// ParseSource records which parsing tier produced a document's text.
type ParseSource string

const (
	// ParseSourcePrimary is the highest-priority remote parsing service.
	ParseSourcePrimary ParseSource = "primary"

	// ParseSourceSecondary is the second remote parsing service.
	ParseSourceSecondary ParseSource = "secondary"

	// ParseSourceLocal is the in-process fallback parser.
	ParseSourceLocal ParseSource = "local"
)

// ParseResult is the outcome of running the parsing fallback chain.
// Warnings from failed tiers are carried even on overall success so the
// caller can report which path was used.
type ParseResult struct {
	// Text is the extracted document text.
	Text string

	// Source is the tier that produced Text.
	Source ParseSource

	// Warnings lists one entry per failed tier that was attempted.
	Warnings []Warning
}
