package chunking

import "strings"

// mergeSlack is how far past MaxTokens a merged final window may grow.
const mergeSlack = 10

// slidingWindows splits tokens into windows of at most maxTokens advancing by
// maxTokens-overlap. A final window shorter than minTokens is folded into the
// previous one when the result stays within maxTokens+mergeSlack.
func slidingWindows(tokens []string, maxTokens, overlap, minTokens int) []string {
	if len(tokens) == 0 {
		return nil
	}
	step := maxTokens - overlap
	if step <= 0 {
		step = maxTokens
	}

	var starts []int
	for start := 0; start < len(tokens); start += step {
		starts = append(starts, start)
		if start+maxTokens >= len(tokens) {
			break
		}
	}

	if n := len(starts); n >= 2 {
		lastLen := len(tokens) - starts[n-1]
		mergedLen := len(tokens) - starts[n-2]
		if lastLen < minTokens && mergedLen <= maxTokens+mergeSlack {
			starts = starts[:n-1]
		}
	}

	windows := make([]string, 0, len(starts))
	for i, start := range starts {
		end := start + maxTokens
		if i == len(starts)-1 {
			end = len(tokens)
		}
		windows = append(windows, strings.Join(tokens[start:end], " "))
	}
	return windows
}
