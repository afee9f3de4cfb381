package service

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/timmy/memehub/internal/logger"
)

// redisKV is the subset of *redis.Client used by the cache.
type redisKV interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

// CachedEmbedding caches query embeddings in Redis. Content embeddings are
// not cached. Cache errors fall through to the wrapped provider.
type CachedEmbedding struct {
	EmbeddingProvider
	rdb redisKV
	ttl time.Duration
}

// NewCachedEmbedding wraps p with a Redis query cache.
func NewCachedEmbedding(p EmbeddingProvider, rdb redisKV, ttl time.Duration) *CachedEmbedding {
	return &CachedEmbedding{EmbeddingProvider: p, rdb: rdb, ttl: ttl}
}

// EmbedQuery returns the cached vector or embeds and stores it.
func (c *CachedEmbedding) EmbedQuery(ctx context.Context, query string) ([]float32, error) {
	key := c.cacheKey(query)

	raw, err := c.rdb.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		if vec, ok := decodeVector(raw, c.Dimensions()); ok {
			return vec, nil
		}
		logger.CtxWarn(ctx, "Discarding malformed cached embedding %s", key)
	case !errors.Is(err, redis.Nil):
		logger.CtxWarn(ctx, "Embedding cache read failed: %v", err)
	}

	vec, err := c.EmbeddingProvider.EmbedQuery(ctx, query)
	if err != nil {
		return nil, err
	}
	if err := c.rdb.Set(ctx, key, encodeVector(vec), c.ttl).Err(); err != nil {
		logger.CtxWarn(ctx, "Embedding cache write failed: %v", err)
	}
	return vec, nil
}

func (c *CachedEmbedding) cacheKey(query string) string {
	sum := sha256.Sum256([]byte(query))
	return fmt.Sprintf("memehub:emb:%s:%d:%s", c.GetModel(), c.Dimensions(), hex.EncodeToString(sum[:]))
}

func encodeVector(vec []float32) []byte {
	buf := make([]byte, 4*len(vec))
	for i, f := range vec {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(raw []byte, dims int) ([]float32, bool) {
	if len(raw) == 0 || len(raw)%4 != 0 || (dims > 0 && len(raw)/4 != dims) {
		return nil, false
	}
	vec := make([]float32, len(raw)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[4*i:]))
	}
	return vec, true
}
