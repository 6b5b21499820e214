package chunker

import (
	"regexp"
	"strings"
)

// Primitives shared by the document chunkers. They operate on raw markdown
// text; none of them allocate parsing state beyond their return values.

// HeaderBlock is one (header, block) pair produced by SplitByHeaders.
// Body includes the header line itself.
type HeaderBlock struct {
	Header string
	Body   string
}

// SplitByHeaders partitions content into blocks starting at each line that
// matches header. Content before the first matching line is emitted with an
// empty Header; trailing content after the last match is still emitted.
func SplitByHeaders(content string, header *regexp.Regexp) []HeaderBlock {
	var blocks []HeaderBlock
	var current []string
	currentHeader := ""

	for _, line := range strings.Split(content, "\n") {
		if header.MatchString(line) {
			if len(current) > 0 {
				blocks = append(blocks, HeaderBlock{Header: currentHeader, Body: strings.Join(current, "\n")})
			}
			currentHeader = strings.TrimSpace(line)
			current = []string{line}
		} else {
			current = append(current, line)
		}
	}
	if len(current) > 0 {
		blocks = append(blocks, HeaderBlock{Header: currentHeader, Body: strings.Join(current, "\n")})
	}
	return blocks
}

// EstimateTokens approximates the token count of text as len/4. It is a
// threshold heuristic, never an exact count.
func EstimateTokens(text string) int {
	return len(text) / 4
}

var (
	blankRuns      = regexp.MustCompile(`\n{3,}`)
	trailingSpaces = regexp.MustCompile(` +\n`)
)

// CleanContent normalizes a chunk body before it is frozen: runs of three or
// more newlines collapse to two, spaces before a newline are stripped, and
// the whole text is trimmed.
func CleanContent(content string) string {
	content = blankRuns.ReplaceAllString(content, "\n\n")
	content = trailingSpaces.ReplaceAllString(content, "\n")
	return strings.TrimSpace(content)
}

// MergeSmall folds undersized chunks forward: while the accumulating chunk is
// under minTokens, the next chunk's content is appended onto it (blank-line
// separated) and the next chunk is dropped as a standalone entity. The
// accumulator keeps its original ID, section, and metadata.
//
// Available to any chunker; neither the schema nor the workflow grammar
// currently invokes it.
func MergeSmall(chunks []Chunk, minTokens int) []Chunk {
	if len(chunks) == 0 {
		return chunks
	}

	var merged []Chunk
	var buffer *Chunk

	for i := range chunks {
		c := chunks[i]
		switch {
		case buffer == nil:
			buffer = &c
		case EstimateTokens(buffer.Content) < minTokens:
			buffer.Content = buffer.Content + "\n\n" + c.Content
		default:
			merged = append(merged, *buffer)
			buffer = &c
		}
	}
	if buffer != nil {
		merged = append(merged, *buffer)
	}
	return merged
}

// sectionBody returns the body of a section introduced by a line matching
// start, ending just before the first subsequent line for which stop returns
// true, or at end of text. The empty string means the section is absent.
// This is how section bounds like "until the next ## that is not X" are
// expressed without regex lookahead.
func sectionBody(content string, start *regexp.Regexp, stop func(line string) bool) string {
	loc := start.FindStringIndex(content)
	if loc == nil {
		return ""
	}
	rest := content[loc[1]:]
	lines := strings.Split(rest, "\n")
	for i, line := range lines {
		if stop(line) {
			return strings.Join(lines[:i], "\n")
		}
	}
	return rest
}

// earliestMarker returns the index of the first occurrence of any marker in
// s, or len(s) when none occurs.
func earliestMarker(s string, markers ...string) int {
	end := len(s)
	for _, m := range markers {
		if i := strings.Index(s, m); i >= 0 && i < end {
			end = i
		}
	}
	return end
}
