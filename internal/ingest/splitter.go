package ingest

import (
	"fmt"
	"unicode"

	"github.com/bugaboo-team/nudge/internal/document"
)

const (
	// DefaultChunkSize is the chunk length in characters.
	DefaultChunkSize = 800
	// DefaultChunkOverlap is how many characters consecutive chunks share.
	DefaultChunkOverlap = 80
)

// Chunk is one window of document text, identified deterministically so
// re-splitting the same material yields the same IDs.
type Chunk struct {
	// ID has the form <source>::<locator>::chunk-<n>, with n restarting
	// at zero for each (source, locator) pair.
	ID         string
	Source     string
	Locator    string
	ChunkIndex int
	Text       string
}

// Splitter cuts documents into overlapping windows of roughly Size runes,
// preferring to end each window at whitespace. Windows never cross a document
// boundary; a page shorter than Size becomes one chunk.
type Splitter struct {
	Size    int
	Overlap int
}

// NewSplitter returns a Splitter, substituting defaults for non-positive
// size or negative overlap. Overlap is clamped below size so the window
// always advances.
func NewSplitter(size, overlap int) *Splitter {
	if size <= 0 {
		size = DefaultChunkSize
	}
	if overlap < 0 {
		overlap = DefaultChunkOverlap
	}
	if overlap >= size {
		overlap = size - 1
	}
	return &Splitter{Size: size, Overlap: overlap}
}

// Split cuts each document into overlapping chunks. Chunk indices restart
// per (source, locator) pair, so the same page always produces the same IDs.
func (s *Splitter) Split(docs []document.Document) []Chunk {
	var chunks []Chunk
	counters := make(map[string]int)

	for _, doc := range docs {
		runes := []rune(doc.Text)
		if len(runes) == 0 {
			continue
		}

		key := doc.Source + "::" + doc.Locator

		for start := 0; start < len(runes); {
			end := start + s.Size
			if end >= len(runes) {
				end = len(runes)
			} else if j := lastSpaceBefore(runes, start, end, s.Overlap); j > start {
				// Pull the cut back to whitespace so windows do not
				// split a word. A run longer than the overlap keeps
				// the hard cut.
				end = j
			}

			n := counters[key]
			counters[key] = n + 1

			chunks = append(chunks, Chunk{
				ID:         fmt.Sprintf("%s::%s::chunk-%d", doc.Source, doc.Locator, n),
				Source:     doc.Source,
				Locator:    doc.Locator,
				ChunkIndex: n,
				Text:       string(runes[start:end]),
			})

			if end == len(runes) {
				break
			}

			next := end - s.Overlap
			if next <= start {
				next = start + 1
			}
			start = next
		}
	}

	return chunks
}

// lastSpaceBefore finds the whitespace rune closest to end, searching back at
// most window runes and never past start. Returns end when none is found.
func lastSpaceBefore(runes []rune, start, end, window int) int {
	limit := end - window
	if limit <= start {
		limit = start + 1
	}
	for j := end - 1; j >= limit; j-- {
		if unicode.IsSpace(runes[j]) {
			return j
		}
	}
	return end
}
