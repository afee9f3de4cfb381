package repository

import (
	"context"
	"errors"
	"fmt"
)

// ErrDimensionMismatch is returned when a vector does not fit the index.
var ErrDimensionMismatch = errors.New("vector dimension mismatch")

// VectorEntry is one stored vector with its metadata.
type VectorEntry struct {
	ID       string
	Vector   []float32
	Metadata map[string]interface{}
}

// VectorMatch is a query hit.
type VectorMatch struct {
	ID       string
	Score    float32
	Metadata map[string]interface{}
}

// VectorIndex stores vectors partitioned by namespace. A query in one
// namespace never returns entries of another.
type VectorIndex interface {
	// Upsert inserts or fully replaces the entry with the same id.
	Upsert(ctx context.Context, namespace string, entry VectorEntry) error

	// Query returns at most topK matches ordered by descending score.
	Query(ctx context.Context, namespace string, vector []float32, topK int) ([]VectorMatch, error)

	// Delete removes id from namespace. Missing ids are not an error.
	Delete(ctx context.Context, namespace, id string) error

	// Dimension is the fixed vector length of the index.
	Dimension() int
}

func checkDimension(vector []float32, want int) error {
	if len(vector) != want {
		return fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(vector), want)
	}
	return nil
}

func checkNamespace(namespace string) error {
	if namespace == "" {
		return errors.New("vector namespace is required")
	}
	return nil
}
