package chunking

import (
	"strings"

	"github.com/uhaki/legal-retrieval/internal/core/domain"
)

type Config struct {
	MaxTokens      int
	OverlapTokens  int
	MinChunkTokens int
}

func DefaultConfig() Config {
	return Config{
		MaxTokens:      220,
		OverlapTokens:  80,
		MinChunkTokens: 60,
	}
}

// Chunker splits parsed acts into token-bounded, overlapping chunks that keep
// their act/part/section lineage.
type Chunker struct {
	cfg Config
}

func NewChunker(cfg Config) *Chunker {
	defaults := DefaultConfig()
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = defaults.MaxTokens
	}
	if cfg.OverlapTokens < 0 {
		cfg.OverlapTokens = 0
	}
	if cfg.OverlapTokens >= cfg.MaxTokens {
		cfg.OverlapTokens = cfg.MaxTokens / 4
	}
	if cfg.MinChunkTokens < 0 {
		cfg.MinChunkTokens = 0
	}
	return &Chunker{cfg: cfg}
}

func (c *Chunker) Config() Config {
	return c.cfg
}

// Chunk produces the act's chunks in document order: section chunks first,
// then the preamble, then schedules. chunk_id runs across the whole act and
// prev/next links follow that sequence.
func (c *Chunker) Chunk(act *domain.Act) []domain.Chunk {
	if act == nil {
		return nil
	}

	var out []domain.Chunk
	emit := func(part, number, title, section string, texts []string) {
		for i, text := range texts {
			out = append(out, domain.Chunk{
				Act:           act.Name,
				Part:          part,
				Section:       section,
				SectionNumber: number,
				SectionTitle:  title,
				SectionPath:   domain.SectionPath(part, number),
				ChunkIndex:    i + 1,
				ChunkID:       len(out) + 1,
				Text:          text,
			})
		}
	}

	for _, part := range act.Parts {
		for _, sec := range part.Sections {
			texts := c.chunkSection(sec)
			if len(texts) == 0 {
				continue
			}
			emit(part.Name, sec.Number, sec.Heading, domain.SectionLabel(sec.Number, sec.Heading), texts)
		}
	}

	if preamble := strings.Fields(act.Preamble); len(preamble) > 0 {
		emit(domain.PartPreamble, domain.PartPreamble, domain.PartPreamble, domain.PartPreamble, c.window(preamble))
	}

	for _, sched := range act.Schedules {
		tokens := strings.Fields(sched.Content.Flatten())
		if len(tokens) == 0 {
			continue
		}
		title := strings.TrimSpace(sched.Title)
		if title == "" {
			title = domain.PartSchedule
		}
		emit(domain.PartSchedule, title, title, title, c.window(tokens))
	}

	linkNeighbours(out)
	return out
}

func (c *Chunker) chunkSection(sec domain.Section) []string {
	text := strings.Join(sec.Content.Texts(), "\n\n")
	if strings.TrimSpace(text) == "" {
		return nil
	}

	var (
		out       []string
		buf       []string
		bufTokens int
	)
	flush := func() {
		if len(buf) > 0 {
			out = append(out, strings.Join(buf, "\n\n"))
			buf = nil
			bufTokens = 0
		}
	}

	for _, block := range splitBlocks(text) {
		tokens := strings.Fields(block)
		n := len(tokens)
		switch {
		case n > c.cfg.MaxTokens:
			flush()
			out = append(out, c.window(tokens)...)
		case bufTokens+n > c.cfg.MaxTokens:
			flush()
			buf = append(buf, block)
			bufTokens = n
		default:
			buf = append(buf, block)
			bufTokens += n
		}
	}
	flush()
	return out
}

func (c *Chunker) window(tokens []string) []string {
	return slidingWindows(tokens, c.cfg.MaxTokens, c.cfg.OverlapTokens, c.cfg.MinChunkTokens)
}

func linkNeighbours(chunks []domain.Chunk) {
	for i := range chunks {
		if i > 0 {
			prev := chunks[i-1].ChunkID
			chunks[i].PrevChunkID = &prev
		}
		if i < len(chunks)-1 {
			next := chunks[i+1].ChunkID
			chunks[i].NextChunkID = &next
		}
	}
}
