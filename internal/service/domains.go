package service

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/timmy/memehub/internal/domain"
	"github.com/timmy/memehub/internal/repository"
)

// DomainSpace bundles one embedding model with its vector index and search
// policy. The meme and TikTok domains are two instances.
type DomainSpace struct {
	Name           domain.Domain
	Embedder       EmbeddingProvider
	Index          repository.VectorIndex
	ScoreThreshold float32
	DefaultTopK    int
	MinTopK        int // 0 when the caller cannot choose top K
	MaxTopK        int
}

// Validate checks that embedder and index agree on the dimension.
func (d *DomainSpace) Validate() error {
	if d.Embedder == nil || d.Index == nil {
		return fmt.Errorf("domain %s: embedder and index are required", d.Name)
	}
	if d.Embedder.Dimensions() != d.Index.Dimension() {
		return fmt.Errorf("domain %s: embedder produces %d dimensions, index expects %d",
			d.Name, d.Embedder.Dimensions(), d.Index.Dimension())
	}
	if d.DefaultTopK <= 0 {
		return fmt.Errorf("domain %s: default top K must be positive", d.Name)
	}
	return nil
}

// CallerSetsTopK reports whether callers may choose top K.
func (d *DomainSpace) CallerSetsTopK() bool {
	return d.MinTopK > 0 && d.MaxTopK >= d.MinTopK
}

// ResolveTopK validates a caller-supplied top K. An empty value yields the
// default; domains without caller control always use the default.
func (d *DomainSpace) ResolveTopK(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if !d.CallerSetsTopK() || raw == "" {
		return d.DefaultTopK, nil
	}
	k, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: topK must be an integer between %d and %d", domain.ErrValidation, d.MinTopK, d.MaxTopK)
	}
	return d.CheckTopK(k)
}

// CheckTopK validates k against the domain bounds.
func (d *DomainSpace) CheckTopK(k int) (int, error) {
	if !d.CallerSetsTopK() {
		return d.DefaultTopK, nil
	}
	if k < d.MinTopK || k > d.MaxTopK {
		return 0, fmt.Errorf("%w: topK must be an integer between %d and %d", domain.ErrValidation, d.MinTopK, d.MaxTopK)
	}
	return k, nil
}
