package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
)

const identitySeparator = "\x1f"

// ChunkIdentity derives the storage id of a chunk. The same tuple always
// yields the same digest; a different embedding model tag yields a different
// one so vectors from two models never share an id.
func ChunkIdentity(act, section string, chunkID int, modelTag string) string {
	key := strings.Join([]string{act, section, strconv.Itoa(chunkID), modelTag}, identitySeparator)
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}
