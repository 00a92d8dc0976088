package plaintext

import (
	"context"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/uhaki/legal-retrieval/internal/core/domain"
)

// Extractor reads UTF-8 statute text and normalizes it for the act parser.
type Extractor struct{}

func NewExtractor() *Extractor {
	return &Extractor{}
}

func (e *Extractor) Extract(_ context.Context, r io.Reader) (string, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("read source document: %w", err)
	}
	if !utf8.Valid(raw) {
		return "", domain.WrapError(domain.ErrInvalidInput, "extract plaintext", fmt.Errorf("source is not valid UTF-8 text"))
	}
	return CleanStatuteText(string(raw)), nil
}

var punctuation = strings.NewReplacer(
	"\ufeff", "",
	"\u00a0", " ",
	"\u2009", " ",
	"\u202f", " ",
	"\u201c", `"`,
	"\u201d", `"`,
	"\u201e", `"`,
	"\u2018", "'",
	"\u2019", "'",
	"\u2014", "\u2013",
	"\f", "\n",
	"\r\n", "\n",
	"\r", "\n",
)

// CleanStatuteText keeps line structure, which the parser keys on, while
// collapsing runs of blanks inside each line and runs of empty lines to one.
// Curly quotes become straight so definitions match.
func CleanStatuteText(text string) string {
	text = punctuation.Replace(text)

	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines))
	blank := false
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line == "" {
			if !blank && len(out) > 0 {
				out = append(out, "")
			}
			blank = true
			continue
		}
		blank = false
		out = append(out, line)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}
