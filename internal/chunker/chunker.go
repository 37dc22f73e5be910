// Package chunker splits document text into retrievable chunks.
// Splitting is document-kind aware: structured (PDF-like) text is split at
// recognised section boundaries, markup at headings and paragraphs, plain
// text at paragraphs and sentences. Concatenating all chunks with their
// overlap prefixes stripped reconstructs the normalised input exactly.
package chunker

import (
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/saga-labs/saga-core/internal/core/domain"
)

// DefaultTargetSize is the default chunk size in bytes.
const DefaultTargetSize = 1000

// DefaultOverlapRatio is the default overlap as a fraction of target size.
const DefaultOverlapRatio = 0.15

// Splitter produces chunks from document text.
type Splitter struct {
	targetSize   int
	overlapRatio float64
}

// Option configures the splitter.
type Option func(*Splitter)

// WithTargetSize sets the target chunk size in bytes.
func WithTargetSize(size int) Option {
	return func(s *Splitter) {
		s.targetSize = size
	}
}

// WithOverlapRatio sets the overlap as a fraction of the target size.
// Values above 0.5 are capped: overlap never exceeds half a chunk.
func WithOverlapRatio(ratio float64) Option {
	return func(s *Splitter) {
		s.overlapRatio = ratio
	}
}

// New creates a splitter with the given options.
func New(opts ...Option) *Splitter {
	s := &Splitter{
		targetSize:   DefaultTargetSize,
		overlapRatio: DefaultOverlapRatio,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// body is an intermediate chunk before the overlap pass. Bodies are
// verbatim slices of the normalised text; their concatenation in order
// reconstructs it.
type body struct {
	text    string
	section string
	forced  bool
}

// Split divides text into ordered chunks according to the document kind.
// It returns domain.ErrChunking if the target size is not positive or the
// text is empty after normalisation; every other input produces at least
// one chunk.
func (s *Splitter) Split(text string, kind domain.DocumentKind) ([]domain.Chunk, error) {
	if s.targetSize <= 0 {
		return nil, fmt.Errorf("%w: target size must be positive, got %d", domain.ErrChunking, s.targetSize)
	}

	text = Normalise(text)
	if text == "" {
		return nil, fmt.Errorf("%w: text is empty after normalisation", domain.ErrChunking)
	}

	desired := s.desiredOverlap()
	// Bodies are packed against the budget left after overlap so the
	// final chunk, overlap included, stays within the target size.
	limit := s.targetSize - desired

	bodies := s.packSections(sectionise(text, kind), limit)
	return s.applyOverlap(bodies, desired), nil
}

// desiredOverlap returns the overlap length in bytes, capped at half the
// target size.
func (s *Splitter) desiredOverlap() int {
	if s.overlapRatio <= 0 {
		return 0
	}
	desired := int(math.Round(s.overlapRatio * float64(s.targetSize)))
	if maxOv := s.targetSize / 2; desired > maxOv {
		desired = maxOv
	}
	return desired
}

// packSections turns sections into chunk bodies. A section no longer than
// the target size is never split; adjacent small sections accumulate into
// one body while they fit. Oversized sections fall back to paragraph and
// sentence packing.
func (s *Splitter) packSections(sections []section, limit int) []body {
	var bodies []body
	var cur strings.Builder
	var curSection string

	flush := func() {
		if cur.Len() > 0 {
			bodies = append(bodies, body{text: cur.String(), section: curSection})
			cur.Reset()
			curSection = ""
		}
	}

	for _, sec := range sections {
		if len(sec.content) > s.targetSize {
			flush()
			bodies = append(bodies, s.packUnits(units(sec.content, limit), sec.title, limit)...)
			continue
		}

		if cur.Len() > 0 && cur.Len()+len(sec.content) > limit {
			flush()
		}
		if cur.Len() == 0 {
			curSection = sec.title
		}
		cur.WriteString(sec.content)

		// A lone section in the (limit, target] range stands as its
		// own chunk; its overlap budget is trimmed later.
		if cur.Len() > limit {
			flush()
		}
	}
	flush()

	return bodies
}

// packUnits greedily accumulates units into bodies of at most limit bytes.
// A single unit longer than the target size is hard-split at rune
// boundaries and the resulting pieces are marked forced; a lone unit in
// the (limit, target] range stands as its own body with its overlap
// budget trimmed later, mirroring the section treatment.
func (s *Splitter) packUnits(us []string, section string, limit int) []body {
	var out []body
	var cur strings.Builder

	flush := func() {
		if cur.Len() > 0 {
			out = append(out, body{text: cur.String(), section: section})
			cur.Reset()
		}
	}

	for _, u := range us {
		if len(u) > s.targetSize {
			flush()
			rest := u
			for len(rest) > limit {
				cut := runeBoundary(rest, limit)
				out = append(out, body{text: rest[:cut], section: section, forced: true})
				rest = rest[cut:]
			}
			cur.WriteString(rest)
			continue
		}

		if cur.Len() > 0 && cur.Len()+len(u) > limit {
			flush()
		}
		cur.WriteString(u)
		if cur.Len() > limit {
			flush()
		}
	}
	flush()

	return out
}

// applyOverlap prefixes every body after the first with the trailing part
// of its predecessor, rounded to a sentence boundary where possible.
func (s *Splitter) applyOverlap(bodies []body, desired int) []domain.Chunk {
	chunks := make([]domain.Chunk, 0, len(bodies))

	for i, b := range bodies {
		content := b.text
		overlap := 0

		if i > 0 && desired > 0 {
			budget := desired
			// Keep the chunk, overlap included, within the target.
			if room := s.targetSize - len(b.text); room < budget {
				budget = room
			}
			if ov := overlapSuffix(bodies[i-1].text, desired, budget); ov != "" {
				content = ov + content
				overlap = len(ov)
			}
		}

		chunks = append(chunks, domain.Chunk{
			ID:         uuid.New().String(),
			Content:    content,
			Ordinal:    i,
			Section:    b.section,
			Type:       detectType(b.text),
			OverlapLen: overlap,
			Forced:     b.forced,
		})
	}

	return chunks
}

// overlapSuffix selects the trailing part of prev closest in length to
// desired without exceeding max. Sentence boundaries are preferred; when
// none fits, a raw byte suffix at a rune boundary is used.
func overlapSuffix(prev string, desired, max int) string {
	if desired <= 0 || max <= 0 || prev == "" {
		return ""
	}

	sents := sentences(prev)
	best := -1
	sum := 0
	for i := len(sents) - 1; i > 0; i-- {
		sum += len(sents[i])
		if sum > max {
			break
		}
		if best < 0 || abs(sum-desired) < abs(best-desired) {
			best = sum
		}
	}
	if best > 0 {
		return prev[len(prev)-best:]
	}

	n := desired
	if n > max {
		n = max
	}
	if n >= len(prev) {
		return prev
	}
	cut := len(prev) - n
	for cut < len(prev) && !utf8.RuneStart(prev[cut]) {
		cut++
	}
	return prev[cut:]
}

// runeBoundary returns the largest cut <= limit that does not split a rune.
func runeBoundary(s string, limit int) int {
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	if cut == 0 {
		// Degenerate limit smaller than one rune; take the first rune whole.
		_, size := utf8.DecodeRuneInString(s)
		return size
	}
	return cut
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
