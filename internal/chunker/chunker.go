// Package chunker splits source file content into bounded, embeddable
// chunks. Files that parse structurally are split at top-level definition
// boundaries; everything else falls back to fixed-size windows so no file is
// silently skipped. Extraction is deterministic: the same content always
// yields the same chunk sequence.
package chunker

import (
	"regexp"
	"strings"
)

const (
	// MaxChunkLines caps a single chunk; an oversized definition is split
	// at this boundary.
	MaxChunkLines = 120

	// WindowLines is the fallback window size for unparseable files.
	WindowLines = 100

	// WindowOverlapLines is the overlap between consecutive fallback
	// windows, so boundary-straddling code appears in full in one window.
	WindowOverlapLines = 10

	// MinTailBytes is the threshold below which a trailing remainder is
	// merged into the previous chunk instead of emitted as a fragment.
	MinTailBytes = 80
)

// defRe matches a top-level Python function or class definition. Indented
// definitions belong to their enclosing top-level block.
var defRe = regexp.MustCompile(`^(def|class)\s+\w+`)

// Chunk is one extracted segment of a file.
type Chunk struct {
	Content   string
	StartLine int // 1-based, inclusive
	EndLine   int // 1-based, inclusive
}

// Extractor splits file content into chunks.
type Extractor struct{}

// New creates an Extractor.
func New() *Extractor {
	return &Extractor{}
}

// Extract returns the ordered chunk sequence for content. fallback reports
// that no structural boundaries were found and window chunking was used;
// callers log that as a parse-fallback warning, not an error.
func (e *Extractor) Extract(path, content string) (chunks []Chunk, fallback bool) {
	if strings.TrimSpace(content) == "" {
		return nil, false
	}

	lines := strings.Split(content, "\n")

	starts := definitionStarts(lines)
	if len(starts) == 0 {
		return windowChunks(lines), true
	}

	// Preamble (imports, module constants) ahead of the first definition
	// forms its own segment.
	segments := make([][2]int, 0, len(starts)+1)
	if starts[0] > 0 && strings.TrimSpace(strings.Join(lines[:starts[0]], "\n")) != "" {
		segments = append(segments, [2]int{0, starts[0]})
	}
	for i, s := range starts {
		end := len(lines)
		if i+1 < len(starts) {
			end = starts[i+1]
		}
		segments = append(segments, [2]int{s, end})
	}

	for _, seg := range segments {
		chunks = append(chunks, splitSegment(lines, seg[0], seg[1])...)
	}

	return mergeSmallTail(chunks), false
}

// definitionStarts returns the 0-based line indexes of top-level def/class
// statements.
func definitionStarts(lines []string) []int {
	var starts []int
	for i, line := range lines {
		if defRe.MatchString(line) {
			starts = append(starts, i)
		}
	}
	return starts
}

// splitSegment emits the lines [start, end) as one chunk, splitting at the
// fixed line-count ceiling when the segment is oversized.
func splitSegment(lines []string, start, end int) []Chunk {
	var chunks []Chunk
	for s := start; s < end; s += MaxChunkLines {
		e := s + MaxChunkLines
		if e > end {
			e = end
		}
		content := strings.TrimRight(strings.Join(lines[s:e], "\n"), "\n")
		if strings.TrimSpace(content) == "" {
			continue
		}
		chunks = append(chunks, Chunk{
			Content:   content,
			StartLine: s + 1,
			EndLine:   e,
		})
	}
	return chunks
}

// windowChunks slices the file into fixed-size overlapping windows.
func windowChunks(lines []string) []Chunk {
	stride := WindowLines - WindowOverlapLines
	var chunks []Chunk
	for s := 0; s < len(lines); s += stride {
		e := s + WindowLines
		if e > len(lines) {
			e = len(lines)
		}
		content := strings.TrimRight(strings.Join(lines[s:e], "\n"), "\n")
		if strings.TrimSpace(content) != "" {
			chunks = append(chunks, Chunk{
				Content:   content,
				StartLine: s + 1,
				EndLine:   e,
			})
		}
		if e == len(lines) {
			break
		}
	}
	return mergeSmallTail(chunks)
}

// mergeSmallTail folds a below-minimum trailing chunk into its predecessor.
func mergeSmallTail(chunks []Chunk) []Chunk {
	n := len(chunks)
	if n < 2 {
		return chunks
	}
	tail := chunks[n-1]
	if len(tail.Content) >= MinTailBytes {
		return chunks
	}
	prev := &chunks[n-2]
	prev.Content = prev.Content + "\n" + tail.Content
	prev.EndLine = tail.EndLine
	return chunks[:n-1]
}
