package source

import (
	"context"

	"github.com/timmy/memehub/internal/domain"
)

// Item is one image found by a bulk import source.
type Item struct {
	SourceID string             // unique within the source
	Path     string             // path inside the source filesystem
	Filename string             // base name sent as the upload filename
	Context  domain.MemeContext // hints from the manifest, if any
}

// Source lists images for bulk import.
type Source interface {
	// GetSourceID returns the unique identifier for this source.
	GetSourceID() string

	// FetchBatch fetches a batch of items starting from the given cursor.
	// Parameters:
	//   - ctx: context for cancellation and deadlines.
	//   - cursor: pagination cursor or empty for first page.
	//   - limit: maximum number of items to fetch.
	// Returns:
	//   - items: batch of items.
	//   - nextCursor: cursor for the next batch or empty if done.
	//   - err: non-nil if listing fails.
	FetchBatch(ctx context.Context, cursor string, limit int) (items []Item, nextCursor string, err error)

	// ReadFile returns the bytes of an item.
	ReadFile(ctx context.Context, item Item) ([]byte, error)
}
