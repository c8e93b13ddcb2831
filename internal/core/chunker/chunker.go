package chunker

import (
	"strings"
)

// Chunker splits extracted text into overlapping word-count windows suitable
// for embedding.
//
// SizeWords:    words per chunk (e.g. 3000).
// OverlapWords: words shared between consecutive chunks (e.g. 200).
type Chunker struct {
	SizeWords    int
	OverlapWords int
}

func New(sizeWords, overlapWords int) *Chunker {
	return &Chunker{SizeWords: sizeWords, OverlapWords: overlapWords}
}

// Chunk splits text into windows of SizeWords words, each window starting
// SizeWords-OverlapWords words after the previous one. The final window may
// be shorter than SizeWords; once a window reaches the end of the text no
// further windows are emitted. Text that fits in a single window is returned
// unchanged. Whitespace-only input returns nil, which callers must treat as
// an ingestion failure rather than silently skip. A non-positive SizeWords
// degrades to one-word windows so the loop always terminates.
func (c *Chunker) Chunk(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	size := c.SizeWords
	if size < 1 {
		size = 1
	}

	words := strings.Fields(text)
	if len(words) <= size {
		return []string{text}
	}

	step := size - c.OverlapWords
	if step < 1 {
		step = 1
	}

	var chunks []string
	for start := 0; ; start += step {
		end := start + size
		if end > len(words) {
			end = len(words)
		}
		chunks = append(chunks, strings.Join(words[start:end], " "))
		if end == len(words) {
			break
		}
	}
	return chunks
}
