package ingest

import "strings"

// tokenCharRatio approximates characters per token; chunk budgets are
// configured in tokens but applied in characters.
const tokenCharRatio = 4

// Split cuts text into word-aligned chunks of at most chunkTokens tokens,
// with each chunk starting with roughly overlapTokens of the previous
// chunk's tail. Non-empty text always yields at least one chunk.
func Split(text string, chunkTokens, overlapTokens int) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}

	maxChars := chunkTokens * tokenCharRatio
	overlapChars := overlapTokens * tokenCharRatio
	if overlapChars >= maxChars {
		overlapChars = maxChars / 2
	}

	var chunks []string
	start := 0
	for start < len(words) {
		length := 0
		end := start
		for end < len(words) {
			wl := len(words[end]) + 1
			if length > 0 && length+wl > maxChars {
				break
			}
			length += wl
			end++
		}

		chunks = append(chunks, strings.Join(words[start:end], " "))
		if end >= len(words) {
			break
		}

		// Walk back from the cut to build the overlap window.
		back := end
		overlap := 0
		for back > start && overlap < overlapChars {
			back--
			overlap += len(words[back]) + 1
		}
		// Always advance, even when a single huge word defeats the budget.
		if back <= start {
			back = end
		}
		start = back
	}
	return chunks
}
