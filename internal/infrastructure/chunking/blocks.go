package chunking

import (
	"regexp"
	"strings"
)

var (
	paragraphBreak = regexp.MustCompile(`\n[ \t\r]*\n`)
	// Numbered, lettered, bulleted and parenthesised sub-clause markers.
	listMarker = regexp.MustCompile(`^\s*(?:\d+[.)]|[A-Za-z][.)]|[-•*]|\((?:\d+|[A-Za-z]{1,4})\))(?:\s+|$)`)
)

// splitBlocks breaks section text into paragraph blocks. Text without
// paragraph breaks is split on lines that start with a list marker instead.
func splitBlocks(text string) []string {
	blocks := nonEmpty(paragraphBreak.Split(text, -1))
	if len(blocks) >= 2 {
		return normalizeBlocks(blocks)
	}
	return normalizeBlocks(splitOnMarkers(text))
}

func splitOnMarkers(text string) []string {
	var (
		blocks  []string
		current []string
	)
	flush := func() {
		if len(current) > 0 {
			blocks = append(blocks, strings.Join(current, "\n"))
			current = nil
		}
	}
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		if listMarker.MatchString(line) {
			flush()
		}
		current = append(current, line)
	}
	flush()
	return blocks
}

func normalizeBlocks(blocks []string) []string {
	out := make([]string, 0, len(blocks))
	for _, b := range blocks {
		if n := normalizeWhitespace(b); n != "" {
			out = append(out, n)
		}
	}
	return out
}

func normalizeWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func nonEmpty(parts []string) []string {
	out := parts[:0]
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			out = append(out, p)
		}
	}
	return out
}
