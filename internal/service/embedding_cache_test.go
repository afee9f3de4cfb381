package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

type fakeRedis struct {
	data   map[string][]byte
	getErr error
	sets   int
}

func (f *fakeRedis) Get(ctx context.Context, key string) *redis.StringCmd {
	if f.getErr != nil {
		return redis.NewStringResult("", f.getErr)
	}
	v, ok := f.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(string(v), nil)
}

func (f *fakeRedis) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	f.sets++
	f.data[key] = value.([]byte)
	return redis.NewStatusResult("OK", nil)
}

type countingEmbedder struct {
	hashEmbedder
	calls int
}

func (c *countingEmbedder) EmbedQuery(ctx context.Context, q string) ([]float32, error) {
	c.calls++
	return c.hashEmbedder.EmbedQuery(ctx, q)
}

func TestCachedEmbeddingHitsCache(t *testing.T) {
	inner := &countingEmbedder{hashEmbedder: hashEmbedder{dims: testDims}}
	rdb := &fakeRedis{data: map[string][]byte{}}
	c := NewCachedEmbedding(inner, rdb, time.Hour)
	ctx := context.Background()

	first, err := c.EmbedQuery(ctx, "doge")
	if err != nil {
		t.Fatalf("EmbedQuery() error = %v", err)
	}
	second, err := c.EmbedQuery(ctx, "doge")
	if err != nil {
		t.Fatalf("EmbedQuery() error = %v", err)
	}
	if inner.calls != 1 || rdb.sets != 1 {
		t.Errorf("provider calls = %d, sets = %d; want 1, 1", inner.calls, rdb.sets)
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("cached vector differs at %d", i)
		}
	}
}

func TestCachedEmbeddingFallsThrough(t *testing.T) {
	inner := &countingEmbedder{hashEmbedder: hashEmbedder{dims: testDims}}
	rdb := &fakeRedis{data: map[string][]byte{}, getErr: errors.New("connection refused")}
	c := NewCachedEmbedding(inner, rdb, time.Hour)

	for i := 0; i < 2; i++ {
		if _, err := c.EmbedQuery(context.Background(), "doge"); err != nil {
			t.Fatalf("EmbedQuery() error = %v", err)
		}
	}
	if inner.calls != 2 {
		t.Errorf("provider calls = %d, want 2", inner.calls)
	}

	// malformed entries are ignored
	rdb.getErr = nil
	rdb.data[c.cacheKey("cat")] = []byte{1, 2, 3}
	vec, err := c.EmbedQuery(context.Background(), "cat")
	if err != nil || len(vec) != testDims {
		t.Errorf("EmbedQuery() = %v, %v", vec, err)
	}
}

func TestVectorEncoding(t *testing.T) {
	in := []float32{0, -1.5, 3.25, 1e-7}
	out, ok := decodeVector(encodeVector(in), len(in))
	if !ok {
		t.Fatal("decodeVector() rejected its own encoding")
	}
	for i := range in {
		if in[i] != out[i] {
			t.Errorf("out[%d] = %v, want %v", i, out[i], in[i])
		}
	}
	if _, ok := decodeVector(encodeVector(in), 8); ok {
		t.Error("wrong dimension accepted")
	}
}
