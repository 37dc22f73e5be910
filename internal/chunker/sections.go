package chunker

import (
	"regexp"
	"strings"

	"github.com/saga-labs/saga-core/internal/core/domain"
)

var multiNewline = regexp.MustCompile(`\n{3,}`)

// Normalise cleans text before splitting: per-line whitespace is trimmed,
// runs of three or more newlines collapse to a blank line, and leading and
// trailing whitespace is removed. Chunk reconstruction is defined over the
// normalised text.
func Normalise(text string) string {
	lines := strings.Split(text, "\n")
	for i := range lines {
		lines[i] = strings.TrimSpace(lines[i])
	}
	t := strings.Join(lines, "\n")
	t = multiNewline.ReplaceAllString(t, "\n\n")
	return strings.TrimSpace(t)
}

// Heading patterns for structured (PDF-like) text: CJK chapter markers,
// "Chapter N"/"Part N", CJK ordinals, numbered headings and upper-case
// section labels.
var pdfHeadingPatterns = []*regexp.Regexp{
	regexp.MustCompile(`^(第[一二三四五六七八九十百千万0-9]+[章节卷篇部]|(?i:Chapter\s+\d+|Part\s+\d+))`),
	regexp.MustCompile(`^[一二三四五六七八九十百千万]+[、．.]\s*\S`),
	regexp.MustCompile(`^\d+\.\s+\S`),
	regexp.MustCompile(`^[A-Z][A-Z0-9]+\s+\S`),
}

var mdHeadingPattern = regexp.MustCompile(`^#{1,6}\s+\S`)

// section is a verbatim slice of the normalised text. Sections concatenate
// back to the full text; the title repeats the heading line when present.
type section struct {
	title   string
	content string
}

// sectionise splits text at recognised heading lines for the given kind.
// Plain text is a single untitled section. Text without any recognised
// heading also collapses to a single section.
func sectionise(text string, kind domain.DocumentKind) []section {
	var isHeading func(line string) bool
	switch kind {
	case domain.KindPDF, domain.KindImage:
		isHeading = func(line string) bool {
			for _, p := range pdfHeadingPatterns {
				if p.MatchString(line) {
					return true
				}
			}
			return false
		}
	case domain.KindMarkdown:
		isHeading = mdHeadingPattern.MatchString
	default:
		return []section{{content: text}}
	}

	var secs []section
	start := 0
	title := ""
	pos := 0

	for pos < len(text) {
		next := len(text)
		line := text[pos:]
		if nl := strings.IndexByte(line, '\n'); nl >= 0 {
			line = line[:nl]
			next = pos + nl + 1
		}

		if isHeading(line) {
			if pos > start {
				secs = append(secs, section{title: title, content: text[start:pos]})
				start = pos
			}
			title = strings.TrimSpace(line)
		}
		pos = next
	}
	secs = append(secs, section{title: title, content: text[start:]})

	return secs
}

// units flattens section content into packable pieces: paragraphs that fit
// within the limit stay whole, oversized paragraphs break into sentences.
// Concatenating the units reproduces the content exactly.
func units(content string, limit int) []string {
	var out []string
	for _, p := range paragraphs(content) {
		if len(p) <= limit {
			out = append(out, p)
			continue
		}
		out = append(out, sentences(p)...)
	}
	return out
}

// paragraphs splits at blank lines, keeping each separator attached to the
// preceding paragraph.
func paragraphs(text string) []string {
	var out []string
	start := 0
	for {
		idx := strings.Index(text[start:], "\n\n")
		if idx < 0 {
			break
		}
		end := start + idx + 2
		out = append(out, text[start:end])
		start = end
	}
	if start < len(text) {
		out = append(out, text[start:])
	}
	return out
}

// sentenceEnd reports whether r terminates a sentence. Covers both ASCII
// and CJK terminators plus the newline fallback.
func sentenceEnd(r rune) bool {
	switch r {
	case '.', '!', '?', '。', '！', '？', '；', ';', '\n':
		return true
	}
	return false
}

// sentences splits text at sentence terminators, attaching the terminator
// and any following spaces to the preceding sentence. Concatenating the
// result reproduces the input exactly.
func sentences(text string) []string {
	var out []string
	start := 0
	inEnd := false

	for i, r := range text {
		if sentenceEnd(r) {
			inEnd = true
			continue
		}
		if inEnd && r != ' ' && r != '\t' {
			out = append(out, text[start:i])
			start = i
			inEnd = false
		} else if inEnd {
			// Trailing spaces stay with the finished sentence.
			continue
		}
	}
	if start < len(text) {
		out = append(out, text[start:])
	}
	return out
}

var (
	codeFence    = regexp.MustCompile("```")
	headingLine  = regexp.MustCompile(`(?m)^#+\s`)
	tablePattern = regexp.MustCompile(`\|.*\|`)
)

// detectType classifies a chunk's dominant structure for retrieval-time
// filtering, mirroring the ingestion metadata of the original assistant.
func detectType(text string) domain.ChunkType {
	switch {
	case codeFence.MatchString(text):
		return domain.ChunkTypeCode
	case headingLine.MatchString(text):
		return domain.ChunkTypeHeading
	case tablePattern.MatchString(text):
		return domain.ChunkTypeTable
	case strings.Count(text, "\n") >= 5:
		return domain.ChunkTypeParagraph
	default:
		return domain.ChunkTypeShort
	}
}
