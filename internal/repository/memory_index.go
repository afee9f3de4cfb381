package repository

import (
	"context"
	"math"
	"sort"
	"sync"
)

// MemoryIndex is an in-process VectorIndex using cosine similarity.
// It backs tests and single-node deployments without Qdrant.
type MemoryIndex struct {
	dim        int
	mu         sync.RWMutex
	namespaces map[string]map[string]VectorEntry
}

// NewMemoryIndex creates an empty index for vectors of length dim.
func NewMemoryIndex(dim int) *MemoryIndex {
	return &MemoryIndex{
		dim:        dim,
		namespaces: make(map[string]map[string]VectorEntry),
	}
}

func (m *MemoryIndex) Dimension() int { return m.dim }

func (m *MemoryIndex) Upsert(ctx context.Context, namespace string, entry VectorEntry) error {
	if err := checkNamespace(namespace); err != nil {
		return err
	}
	if err := checkDimension(entry.Vector, m.dim); err != nil {
		return err
	}

	stored := VectorEntry{
		ID:       entry.ID,
		Vector:   append([]float32(nil), entry.Vector...),
		Metadata: copyMetadata(entry.Metadata),
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	ns, ok := m.namespaces[namespace]
	if !ok {
		ns = make(map[string]VectorEntry)
		m.namespaces[namespace] = ns
	}
	ns[entry.ID] = stored
	return nil
}

func (m *MemoryIndex) Query(ctx context.Context, namespace string, vector []float32, topK int) ([]VectorMatch, error) {
	if err := checkNamespace(namespace); err != nil {
		return nil, err
	}
	if err := checkDimension(vector, m.dim); err != nil {
		return nil, err
	}
	if topK <= 0 {
		return nil, nil
	}

	m.mu.RLock()
	matches := make([]VectorMatch, 0, len(m.namespaces[namespace]))
	for id, e := range m.namespaces[namespace] {
		matches = append(matches, VectorMatch{
			ID:       id,
			Score:    cosine(vector, e.Vector),
			Metadata: copyMetadata(e.Metadata),
		})
	}
	m.mu.RUnlock()

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score == matches[j].Score {
			return matches[i].ID < matches[j].ID
		}
		return matches[i].Score > matches[j].Score
	})
	if len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}

func (m *MemoryIndex) Delete(ctx context.Context, namespace, id string) error {
	if err := checkNamespace(namespace); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if ns, ok := m.namespaces[namespace]; ok {
		delete(ns, id)
		if len(ns) == 0 {
			delete(m.namespaces, namespace)
		}
	}
	return nil
}

// Len returns the number of entries in namespace.
func (m *MemoryIndex) Len(namespace string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.namespaces[namespace])
}

func cosine(a, b []float32) float32 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}

func copyMetadata(md map[string]interface{}) map[string]interface{} {
	if md == nil {
		return nil
	}
	out := make(map[string]interface{}, len(md))
	for k, v := range md {
		out[k] = v
	}
	return out
}
