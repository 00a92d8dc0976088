package ollama

import "strings"

const maxQueryRunes = 2000

func buildClassificationPrompt(query string, acts []string) string {
	snippet := strings.TrimSpace(query)
	if runes := []rune(snippet); len(runes) > maxQueryRunes {
		snippet = string(runes[:maxQueryRunes])
	}

	var catalog strings.Builder
	for _, act := range acts {
		catalog.WriteString("- ")
		catalog.WriteString(act)
		catalog.WriteString("\n")
	}

	return `You route legal questions to the statute that governs them.
Known acts:
` + catalog.String() + `
Return strict JSON object with keys:
act (string, one of the known acts or "none"), confidence (number from 0 to 1).
No markdown, no extra keys.

Question:
` + snippet
}
