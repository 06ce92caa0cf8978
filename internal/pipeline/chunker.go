package pipeline

import "strings"

const (
	DefaultChunkSize = 1500
	DefaultOverlap   = 200
)

// ChunkOptions sizes the windows produced by ChunkText, in characters.
type ChunkOptions struct {
	ChunkSize int
	Overlap   int
}

// ChunkText splits text into windows of ChunkSize runes where consecutive
// windows share Overlap runes. The last window ends at the end of the input.
// A non-positive ChunkSize uses DefaultChunkSize; an Overlap outside
// [0, ChunkSize) is treated as 0 so the window always advances.
func ChunkText(text string, opts ChunkOptions) []string {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}

	size := opts.ChunkSize
	if size <= 0 {
		size = DefaultChunkSize
	}
	overlap := opts.Overlap
	if overlap < 0 || overlap >= size {
		overlap = 0
	}
	step := size - overlap

	chunks := make([]string, 0, len(runes)/step+1)
	for start := 0; ; start += step {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[start:end]))
		if end == len(runes) {
			break
		}
	}
	return chunks
}

// sanitizeText replaces NUL characters, which MySQL text columns reject, and trims.
func sanitizeText(text string) string {
	return strings.TrimSpace(strings.ReplaceAll(text, "\x00", " "))
}
