package qdrant

import (
	"encoding/hex"

	"github.com/google/uuid"
)

// PayloadChunkUID holds the full content-addressed chunk id; Qdrant point ids
// must be UUIDs or integers.
const (
	PayloadChunkUID = "chunk_uid"
	PayloadText     = "text"
	PayloadAct      = "act"
)

// PointID maps a hex chunk identity onto a stable UUID built from its first
// 16 bytes (version 8, RFC 4122 variant). Ids that are not hex fall back to a
// name-based UUID.
func PointID(chunkUID string) string {
	raw, err := hex.DecodeString(chunkUID)
	if err != nil || len(raw) < 16 {
		return uuid.NewSHA1(uuid.NameSpaceOID, []byte(chunkUID)).String()
	}
	var b [16]byte
	copy(b[:], raw[:16])
	b[6] = (b[6] & 0x0f) | 0x80
	b[8] = (b[8] & 0x3f) | 0x80
	return uuid.UUID(b).String()
}

// SplitPayload separates the stored text and chunk uid from the metadata a
// caller should see.
func SplitPayload(pointID string, payload map[string]any) (id, text string, meta map[string]any) {
	id = pointID
	meta = make(map[string]any, len(payload))
	for k, v := range payload {
		switch k {
		case PayloadChunkUID:
			if s, ok := v.(string); ok && s != "" {
				id = s
			}
		case PayloadText:
			if s, ok := v.(string); ok {
				text = s
			}
		default:
			meta[k] = v
		}
	}
	return id, text, meta
}

// BuildPayload is the inverse of SplitPayload.
func BuildPayload(chunkUID, text string, metadata map[string]any) map[string]any {
	payload := make(map[string]any, len(metadata)+2)
	for k, v := range metadata {
		payload[k] = v
	}
	payload[PayloadText] = text
	payload[PayloadChunkUID] = chunkUID
	return payload
}
