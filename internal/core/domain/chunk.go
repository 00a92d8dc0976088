package domain

import "strings"

const (
	PartPreamble = "Preamble"
	PartSchedule = "Schedule"
)

// Chunk is the atomic retrieval unit produced by the chunker.
type Chunk struct {
	Act           string `json:"act"`
	Part          string `json:"part"`
	Section       string `json:"section"`
	SectionNumber string `json:"section_number"`
	SectionTitle  string `json:"section_title"`
	SectionPath   string `json:"section_path"`
	ChunkIndex    int    `json:"chunk_index"`
	ChunkID       int    `json:"chunk_id"`
	Text          string `json:"text"`
	PrevChunkID   *int   `json:"prev_chunk_id"`
	NextChunkID   *int   `json:"next_chunk_id"`
}

// SectionLabel builds the human-readable "{number} – {title}" label.
func SectionLabel(number, title string) string {
	number = strings.TrimSpace(number)
	title = strings.TrimSpace(title)
	switch {
	case title == "":
		return number
	case number == "":
		return title
	default:
		return number + " – " + title
	}
}

func SectionPath(part, number string) string {
	return strings.TrimSpace(part) + " > " + strings.TrimSpace(number)
}

// Metadata returns the chunk lineage as a flat map with null fields dropped.
func (c Chunk) Metadata() map[string]any {
	meta := map[string]any{
		"act":            c.Act,
		"part":           c.Part,
		"section":        c.Section,
		"section_number": c.SectionNumber,
		"section_title":  c.SectionTitle,
		"section_path":   c.SectionPath,
		"chunk_index":    c.ChunkIndex,
		"chunk_id":       c.ChunkID,
	}
	if c.PrevChunkID != nil {
		meta["prev_chunk_id"] = *c.PrevChunkID
	}
	if c.NextChunkID != nil {
		meta["next_chunk_id"] = *c.NextChunkID
	}
	return meta
}

// IndexedRecord is what gets persisted in the vector store.
type IndexedRecord struct {
	ID       string
	Vector   []float32
	Text     string
	Metadata map[string]any
}
