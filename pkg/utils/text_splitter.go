package utils

import "strings"

// Split points in preference order. Paragraph and line breaks beat sentence
// ends, which beat plain spaces; Chinese sentence punctuation counts too.
var boundarySeparators = []string{"\n\n", "\n", "。", "？", "！", ". ", "? ", "! ", " "}

// boundaryLookback bounds how far a chunk end may move back to reach a
// boundary, as a fraction of the window.
const boundaryLookback = 4

// SplitText splits text into chunks of at most chunkSize runes, with overlap
// runes shared between consecutive chunks. Chunk ends snap to the nearest
// natural boundary in the tail of the window; a window without any boundary
// is cut mid-word rather than dropped.
func SplitText(text string, chunkSize int, overlap int) []string {
	runes := []rune(text)
	if chunkSize <= 0 || len(runes) <= chunkSize {
		return []string{text}
	}
	if overlap >= chunkSize {
		overlap = 0
	}

	var chunks []string
	start := 0
	for start < len(runes) {
		end := start + chunkSize
		if end >= len(runes) {
			chunks = append(chunks, string(runes[start:]))
			break
		}

		end = snapToBoundary(runes, start, end)
		chunks = append(chunks, string(runes[start:end]))

		next := end - overlap
		if next <= start {
			next = end
		}
		start = next
	}

	return chunks
}

// snapToBoundary moves end back to the best separator inside the lookback
// region, or leaves it unchanged when none is close enough.
func snapToBoundary(runes []rune, start, end int) int {
	lookback := (end - start) / boundaryLookback
	window := string(runes[start:end])

	for _, sep := range boundarySeparators {
		idx := strings.LastIndex(window, sep)
		if idx < 0 {
			continue
		}
		cut := start + len([]rune(window[:idx+len(sep)]))
		if cut >= end-lookback {
			return cut
		}
	}
	return end
}
