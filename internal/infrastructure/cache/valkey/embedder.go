package valkey

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/rueidis"

	"github.com/uhaki/legal-retrieval/internal/core/domain"
	"github.com/uhaki/legal-retrieval/internal/core/ports"
)

const keyPrefix = "legal:emb:"

// CachedEmbedder memoizes embeddings in Valkey/Redis keyed by model, role and
// text. Cache failures are logged and fall through to the inner embedder.
type CachedEmbedder struct {
	inner      ports.Embedder
	client     rueidis.Client
	ttl        time.Duration
	cacheTotal *prometheus.CounterVec
}

// NewClient connects to Valkey with client-side caching disabled.
func NewClient(addrs []string, password string) (rueidis.Client, error) {
	if len(addrs) == 0 {
		return nil, fmt.Errorf("valkey addrs is required")
	}
	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress:  addrs,
		Password:     password,
		DisableCache: true,
	})
	if err != nil {
		return nil, fmt.Errorf("create valkey client: %w", err)
	}
	return client, nil
}

// New wraps inner. cacheTotal, when set, is a counter vec labelled "result"
// ("hit"/"miss").
func New(inner ports.Embedder, client rueidis.Client, ttl time.Duration, cacheTotal *prometheus.CounterVec) *CachedEmbedder {
	return &CachedEmbedder{inner: inner, client: client, ttl: ttl, cacheTotal: cacheTotal}
}

func (c *CachedEmbedder) ModelTag() string {
	return c.inner.ModelTag()
}

func (c *CachedEmbedder) Embed(ctx context.Context, texts []string, role domain.EmbedRole) ([][]float32, error) {
	out := make([][]float32, len(texts))
	var (
		missTexts []string
		missIdx   []int
	)
	for i, text := range texts {
		if vec, ok := c.get(ctx, c.cacheKey(role, text)); ok {
			out[i] = vec
			c.inc("hit")
			continue
		}
		c.inc("miss")
		missTexts = append(missTexts, text)
		missIdx = append(missIdx, i)
	}
	if len(missTexts) == 0 {
		return out, nil
	}

	vectors, err := c.inner.Embed(ctx, missTexts, role)
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(missTexts) {
		return nil, fmt.Errorf("embed: expected %d vectors, got %d", len(missTexts), len(vectors))
	}
	for j, vec := range vectors {
		out[missIdx[j]] = vec
		c.put(ctx, c.cacheKey(role, missTexts[j]), vec)
	}
	return out, nil
}

func (c *CachedEmbedder) Ping(ctx context.Context) error {
	if err := c.client.Do(ctx, c.client.B().Ping().Build()).Error(); err != nil {
		return domain.WrapError(domain.ErrCollaboratorUnavailable, "valkey ping", err)
	}
	return nil
}

func (c *CachedEmbedder) cacheKey(role domain.EmbedRole, text string) string {
	h := sha256.Sum256([]byte(c.inner.ModelTag() + "\x1f" + string(role) + "\x1f" + text))
	return keyPrefix + hex.EncodeToString(h[:])
}

func (c *CachedEmbedder) get(ctx context.Context, key string) ([]float32, bool) {
	data, err := c.client.Do(ctx, c.client.B().Get().Key(key).Build()).AsBytes()
	if err != nil {
		if !rueidis.IsRedisNil(err) {
			slog.WarnContext(ctx, "embedding_cache_get_failed", "key", key, "error", err)
		}
		return nil, false
	}
	vec, err := bytesToVector(data)
	if err != nil || len(vec) == 0 {
		slog.WarnContext(ctx, "embedding_cache_corrupt", "key", key, "error", err)
		return nil, false
	}
	return vec, true
}

func (c *CachedEmbedder) put(ctx context.Context, key string, vec []float32) {
	cmd := c.client.B().Set().Key(key).Value(rueidis.BinaryString(vectorToBytes(vec)))
	var err error
	if c.ttl > 0 {
		err = c.client.Do(ctx, cmd.Ex(c.ttl).Build()).Error()
	} else {
		err = c.client.Do(ctx, cmd.Build()).Error()
	}
	if err != nil {
		slog.WarnContext(ctx, "embedding_cache_set_failed", "key", key, "error", err)
	}
}

func (c *CachedEmbedder) inc(result string) {
	if c.cacheTotal != nil {
		c.cacheTotal.WithLabelValues(result).Inc()
	}
}

func vectorToBytes(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func bytesToVector(data []byte) ([]float32, error) {
	if len(data)%4 != 0 {
		return nil, fmt.Errorf("invalid embedding cache data: len=%d (not multiple of 4)", len(data))
	}
	vec := make([]float32, len(data)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return vec, nil
}
