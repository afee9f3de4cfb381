package service

import (
	"context"
	"crypto/sha256"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/spf13/afero"

	"github.com/timmy/memehub/internal/domain"
	"github.com/timmy/memehub/internal/repository"
	"github.com/timmy/memehub/internal/storage"
)

const testDims = 8

// hashEmbedder maps equal texts to equal vectors.
type hashEmbedder struct {
	dims    int
	err     error
	mu      sync.Mutex
	queries []string
}

func (e *hashEmbedder) vector(text string) []float32 {
	sum := sha256.Sum256([]byte(text))
	vec := make([]float32, e.dims)
	for i := range vec {
		vec[i] = float32(sum[i%len(sum)]) - 127.5
	}
	return vec
}

func (e *hashEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if e.err != nil {
		return nil, e.err
	}
	return e.vector(text), nil
}

func (e *hashEmbedder) EmbedQuery(ctx context.Context, q string) ([]float32, error) {
	e.mu.Lock()
	e.queries = append(e.queries, q)
	e.mu.Unlock()
	return e.Embed(ctx, q)
}

func (e *hashEmbedder) GetModel() string { return "hash" }
func (e *hashEmbedder) Dimensions() int  { return e.dims }

// stubDescriber describes by filename-independent image bytes.
type stubDescriber struct {
	mu       sync.Mutex
	requests []DescribeRequest
	failOn   map[string]bool // image data that fails
}

func (d *stubDescriber) Describe(ctx context.Context, req DescribeRequest) (string, error) {
	d.mu.Lock()
	d.requests = append(d.requests, req)
	d.mu.Unlock()
	if d.failOn[string(req.ImageData)] {
		return "", domain.ErrNoDescription
	}
	return "a meme showing " + string(req.ImageData), nil
}

// memLedger is an in-memory OwnershipLedger.
type memLedger struct {
	mu      sync.Mutex
	records map[[2]string]domain.OwnershipRecord
	getErr  error
	now     time.Time
}

func newMemLedger() *memLedger {
	return &memLedger{records: make(map[[2]string]domain.OwnershipRecord), now: time.Now()}
}

func (l *memLedger) Add(ctx context.Context, owner, url string) (*domain.OwnershipRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	k := [2]string{owner, url}
	if _, ok := l.records[k]; ok {
		return nil, nil
	}
	l.now = l.now.Add(time.Second)
	rec := domain.OwnershipRecord{UserEmail: owner, ItemURL: url, UploadedAt: l.now}
	l.records[k] = rec
	return &rec, nil
}

func (l *memLedger) Remove(ctx context.Context, owner, url string) (*domain.OwnershipRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	k := [2]string{owner, url}
	rec, ok := l.records[k]
	if !ok {
		return nil, nil
	}
	delete(l.records, k)
	return &rec, nil
}

func (l *memLedger) Get(ctx context.Context, owner, url string) (*domain.OwnershipRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.getErr != nil {
		return nil, l.getErr
	}
	rec, ok := l.records[[2]string{owner, url}]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (l *memLedger) ListByOwner(ctx context.Context, owner string, limit int) ([]domain.OwnershipRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []domain.OwnershipRecord
	for k, rec := range l.records {
		if k[0] == owner {
			out = append(out, rec)
		}
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j].UploadedAt.After(out[j-1].UploadedAt); j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (l *memLedger) count(owner string) int {
	recs, _ := l.ListByOwner(context.Background(), owner, 0)
	return len(recs)
}

// countingStore wraps a BlobStore and counts calls that reach it.
type countingStore struct {
	storage.BlobStore
	mu      sync.Mutex
	saves   int
	deletes int
}

func (c *countingStore) Save(ctx context.Context, key string, r io.Reader, contentType string) (*storage.SaveResult, error) {
	c.mu.Lock()
	c.saves++
	c.mu.Unlock()
	return c.BlobStore.Save(ctx, key, r, contentType)
}

func (c *countingStore) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	c.deletes++
	c.mu.Unlock()
	return c.BlobStore.Delete(ctx, key)
}

// failingIndex wraps a VectorIndex and fails chosen operations.
type failingIndex struct {
	repository.VectorIndex
	failDelete bool
}

func (f *failingIndex) Delete(ctx context.Context, namespace, id string) error {
	if f.failDelete {
		return errors.New("vector store unavailable")
	}
	return f.VectorIndex.Delete(ctx, namespace, id)
}

// fixedIndex returns canned matches regardless of the query.
type fixedIndex struct {
	dims    int
	matches []repository.VectorMatch
	gotTopK int
}

func (f *fixedIndex) Upsert(ctx context.Context, namespace string, e repository.VectorEntry) error {
	return nil
}

func (f *fixedIndex) Query(ctx context.Context, namespace string, v []float32, topK int) ([]repository.VectorMatch, error) {
	f.gotTopK = topK
	return f.matches, nil
}

func (f *fixedIndex) Delete(ctx context.Context, namespace, id string) error { return nil }
func (f *fixedIndex) Dimension() int                                        { return f.dims }

type fixture struct {
	fs       afero.Fs
	store    *countingStore
	index    *repository.MemoryIndex
	embedder *hashEmbedder
	vlm      *stubDescriber
	ledger   *memLedger
	meme     *DomainSpace
	tiktok   *DomainSpace
}

func newFixture() *fixture {
	fs := afero.NewMemMapFs()
	embedder := &hashEmbedder{dims: testDims}
	f := &fixture{
		fs:       fs,
		store:    &countingStore{BlobStore: storage.NewLocalStorageFs(fs, "/images", "http://localhost:3001")},
		index:    repository.NewMemoryIndex(testDims),
		embedder: embedder,
		vlm:      &stubDescriber{failOn: map[string]bool{}},
		ledger:   newMemLedger(),
	}
	f.meme = &DomainSpace{
		Name:           domain.DomainMeme,
		Embedder:       embedder,
		Index:          f.index,
		ScoreThreshold: 0.75,
		DefaultTopK:    5,
	}
	f.tiktok = &DomainSpace{
		Name:           domain.DomainTikTok,
		Embedder:       embedder,
		Index:          repository.NewMemoryIndex(testDims),
		ScoreThreshold: 0.3,
		DefaultTopK:    10,
		MinTopK:        2,
		MaxTopK:        20,
	}
	return f
}

func (f *fixture) ingest() *IngestService {
	return NewIngestService(f.store, f.vlm, f.meme, f.ledger, &IngestConfig{
		Workers:          3,
		MaxFiles:         10,
		MaxFileSize:      1 << 20,
		MaxContextLength: 30,
	})
}
