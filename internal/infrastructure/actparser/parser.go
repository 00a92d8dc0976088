package actparser

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/uhaki/legal-retrieval/internal/core/domain"
)

const defaultPart = "General"

var (
	partLine       = regexp.MustCompile(`(?i)^Part\s+([IVXLC]+)\b\s*[-–—]?\s*(.*)$`)
	sectionLine    = regexp.MustCompile(`^\s*(\d+[A-Z]?)\.\s*(.*)$`)
	definitionExpr = regexp.MustCompile(`(?i)["“]([^"”]+)["”]\s+means\s+([^;]*)`)
)

// Parser turns cleaned statute text into a structured Act. Lines matching
// "Part <roman> – heading" open a part, "<n>. heading" lines open a section and
// any other line is appended to the open section.
type Parser struct{}

func New() *Parser {
	return &Parser{}
}

func (p *Parser) Parse(name, text string) (*domain.Act, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "parse act", fmt.Errorf("act name is required"))
	}

	b := &builder{act: &domain.Act{Name: name}, partIdx: -1, sectionIdx: -1}
	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		if m := partLine.FindStringSubmatch(line); m != nil {
			b.openPart(partName(m[1], m[2]))
			continue
		}
		if m := sectionLine.FindStringSubmatch(line); m != nil {
			b.openSection(m[1], strings.TrimSpace(m[2]))
			continue
		}
		b.appendLine(line)
	}

	act := b.finish()
	if len(act.Parts) == 0 && act.Preamble == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "parse act", fmt.Errorf("act %q has no content", name))
	}
	return act, nil
}

func partName(roman, heading string) string {
	heading = strings.TrimSpace(heading)
	if heading == "" {
		return "Part " + strings.ToUpper(roman)
	}
	return "Part " + strings.ToUpper(roman) + " – " + heading
}

type builder struct {
	act        *domain.Act
	partIdx    int
	sectionIdx int
	seenAny    bool
	contents   map[[2]int]*strings.Builder
	preamble   strings.Builder
}

func (b *builder) openPart(name string) {
	for i, part := range b.act.Parts {
		if part.Name == name {
			b.partIdx = i
			b.sectionIdx = -1
			return
		}
	}
	b.act.Parts = append(b.act.Parts, domain.Part{Name: name})
	b.partIdx = len(b.act.Parts) - 1
	b.sectionIdx = -1
}

func (b *builder) ensurePart() {
	if b.partIdx < 0 {
		b.openPart(defaultPart)
	}
}

func (b *builder) openSection(number, heading string) {
	b.ensurePart()
	b.seenAny = true
	part := &b.act.Parts[b.partIdx]
	part.Sections = append(part.Sections, domain.Section{Number: number, Heading: heading})
	b.sectionIdx = len(part.Sections) - 1
}

func (b *builder) appendLine(line string) {
	if b.sectionIdx < 0 {
		// Text ahead of the first section of the document is the act preamble;
		// later stray text lands in a per-part Preamble section.
		if !b.seenAny {
			b.preamble.WriteString(" ")
			b.preamble.WriteString(line)
			return
		}
		b.ensurePart()
		b.openPreambleSection()
	}
	if b.contents == nil {
		b.contents = make(map[[2]int]*strings.Builder)
	}
	key := [2]int{b.partIdx, b.sectionIdx}
	sb, ok := b.contents[key]
	if !ok {
		sb = &strings.Builder{}
		b.contents[key] = sb
	}
	sb.WriteString(" ")
	sb.WriteString(line)
}

func (b *builder) openPreambleSection() {
	part := &b.act.Parts[b.partIdx]
	for i, sec := range part.Sections {
		if sec.Number == domain.PartPreamble {
			b.sectionIdx = i
			return
		}
	}
	part.Sections = append(part.Sections, domain.Section{Number: domain.PartPreamble, Heading: domain.PartPreamble})
	b.sectionIdx = len(part.Sections) - 1
}

func (b *builder) finish() *domain.Act {
	act := b.act
	act.Preamble = strings.TrimSpace(b.preamble.String())
	for pi := range act.Parts {
		for si := range act.Parts[pi].Sections {
			sec := &act.Parts[pi].Sections[si]
			var content string
			if sb, ok := b.contents[[2]int{pi, si}]; ok {
				content = strings.TrimSpace(sb.String())
			}
			sec.Content = domain.TextNode(content)
			if strings.Contains(strings.ToLower(sec.Heading), "interpretation") {
				sec.Definitions = ExtractDefinitions(content)
			}
		}
	}
	return act
}

// ExtractDefinitions collects `"term" means ...;` clauses.
func ExtractDefinitions(text string) map[string]string {
	matches := definitionExpr.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return nil
	}
	defs := make(map[string]string, len(matches))
	for _, m := range matches {
		term := strings.TrimSpace(m[1])
		meaning := strings.TrimSpace(m[2])
		if term == "" {
			continue
		}
		defs[term] = meaning
	}
	if len(defs) == 0 {
		return nil
	}
	return defs
}
